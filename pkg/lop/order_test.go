package lop

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func testOrder(t *testing.T) *Order {
	t.Helper()
	return &Order{
		Salt:         big.NewInt(42),
		Maker:        common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Receiver:     common.Address{},
		MakerAsset:   common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"),
		TakerAsset:   common.HexToAddress("0x2222222222222222222222222222222222222222"),
		MakingAmount: big.NewInt(100000),
		TakingAmount: big.NewInt(2000000),
		MakerTraits:  BuildMakerTraits(1735000000, 7),
	}
}

func TestOrderHashDeterministic(t *testing.T) {
	o := testOrder(t)

	h1, err := o.Hash(42161)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, err := o.Hash(42161)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 != h2 {
		t.Error("order hash not deterministic")
	}

	// Different chain means a different domain separator.
	h3, err := o.Hash(1)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 == h3 {
		t.Error("order hash identical across chains")
	}
}

func TestMakerTraitsExpiration(t *testing.T) {
	o := testOrder(t)
	if got := o.Expiration(); got != 1735000000 {
		t.Errorf("Expiration() = %d, want 1735000000", got)
	}

	o.MakerTraits = BuildMakerTraits(0, 7)
	if got := o.Expiration(); got != 0 {
		t.Errorf("Expiration() = %d, want 0 for no expiry", got)
	}
}

func TestCompactSignature(t *testing.T) {
	key, _ := crypto.GenerateKey()
	digest := crypto.Keccak256([]byte("payload"))
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		t.Fatal(err)
	}

	r, vs, err := CompactSignature(sig)
	if err != nil {
		t.Fatalf("CompactSignature: %v", err)
	}
	if !bytes.Equal(r[:], sig[:32]) {
		t.Error("r component mismatch")
	}
	// Low 255 bits of vs must equal s.
	s := new(big.Int).SetBytes(sig[32:64])
	gotS := new(big.Int).SetBytes(vs[:])
	gotS.SetBit(gotS, 255, 0)
	if gotS.Cmp(s) != 0 {
		t.Error("s component mismatch")
	}
	if (vs[0]>>7)&1 != sig[64] {
		t.Errorf("recovery bit = %d, want %d", (vs[0]>>7)&1, sig[64])
	}

	if _, _, err := CompactSignature(sig[:64]); err == nil {
		t.Error("short signature accepted")
	}
}

func TestFillOrderArgsCalldata(t *testing.T) {
	o := testOrder(t)
	sig := make([]byte, 65)
	sig[64] = 27

	inner := Interaction{
		Target: common.HexToAddress("0x3333333333333333333333333333333333333333"),
		Data:   []byte{0xde, 0xad, 0xbe, 0xef},
	}
	data, err := FillOrderArgsCalldata(o, sig, big.NewInt(2000000), TakerTraits{Interaction: &inner})
	if err != nil {
		t.Fatalf("FillOrderArgsCalldata: %v", err)
	}

	wantSelector := routerABI.Methods["fillOrderArgs"].ID
	if !bytes.Equal(data[:4], wantSelector) {
		t.Errorf("selector = %x, want %x", data[:4], wantSelector)
	}
	// Interaction bytes (target || data) must appear in the packed args.
	if !bytes.Contains(data, inner.encode()) {
		t.Error("interaction payload missing from calldata")
	}
}

func TestTakerTraitsEncode(t *testing.T) {
	inner := Interaction{Target: common.Address{0x01}, Data: make([]byte, 10)}
	traits, args := TakerTraits{Interaction: &inner}.Encode()

	if len(args) != 30 { // 20-byte target + 10 data bytes
		t.Fatalf("args length = %d, want 30", len(args))
	}
	gotLen := new(big.Int).Rsh(traits, takerTraitsInteractionBits)
	gotLen.And(gotLen, big.NewInt((1<<24)-1))
	if gotLen.Int64() != 30 {
		t.Errorf("interaction length in traits = %d, want 30", gotLen.Int64())
	}
	if traits.Bit(takerTraitsMakerAmountFlag) != 0 {
		t.Error("maker amount flag set for taker-amount fill")
	}
}
