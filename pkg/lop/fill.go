package lop

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const routerABIJSON = `[
  {
    "type": "function",
    "name": "fillOrderArgs",
    "inputs": [
      {
        "name": "order",
        "type": "tuple",
        "components": [
          {"name": "salt", "type": "uint256"},
          {"name": "maker", "type": "uint256"},
          {"name": "receiver", "type": "uint256"},
          {"name": "makerAsset", "type": "uint256"},
          {"name": "takerAsset", "type": "uint256"},
          {"name": "makingAmount", "type": "uint256"},
          {"name": "takingAmount", "type": "uint256"},
          {"name": "makerTraits", "type": "uint256"}
        ]
      },
      {"name": "r", "type": "bytes32"},
      {"name": "vs", "type": "bytes32"},
      {"name": "amount", "type": "uint256"},
      {"name": "takerTraits", "type": "uint256"},
      {"name": "args", "type": "bytes"}
    ],
    "outputs": [
      {"name": "makingAmount", "type": "uint256"},
      {"name": "takingAmount", "type": "uint256"},
      {"name": "orderHash", "type": "bytes32"}
    ]
  }
]`

var routerABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		panic(fmt.Errorf("parse router abi: %w", err))
	}
	routerABI = parsed
}

// taker traits bit layout.
const (
	takerTraitsMakerAmountFlag  = 255 // set: amount is making-amount; unset: taking-amount
	takerTraitsArgsHasTarget    = 251
	takerTraitsExtensionLenBits = 224 // 24-bit extension byte length
	takerTraitsInteractionBits  = 200 // 24-bit interaction byte length
)

// Interaction is a post-fill callback the router invokes on the target with
// the given data, inside the same transaction as the fill.
type Interaction struct {
	Target common.Address
	Data   []byte
}

func (i Interaction) encode() []byte {
	out := make([]byte, 0, common.AddressLength+len(i.Data))
	out = append(out, i.Target.Bytes()...)
	out = append(out, i.Data...)
	return out
}

// TakerTraits describes how a fill call interprets its amount and what extra
// payload rides along in args.
type TakerTraits struct {
	AmountIsMaking bool
	Interaction    *Interaction
}

// Encode packs the traits word and the matching args byte string. The two
// must be produced together: the traits word carries the byte lengths the
// router uses to slice args.
func (t TakerTraits) Encode() (*big.Int, []byte) {
	traits := new(big.Int)
	var args []byte

	if t.AmountIsMaking {
		traits.SetBit(traits, takerTraitsMakerAmountFlag, 1)
	}
	if t.Interaction != nil {
		enc := t.Interaction.encode()
		traits.Or(traits, new(big.Int).Lsh(big.NewInt(int64(len(enc))), takerTraitsInteractionBits))
		args = append(args, enc...)
	}
	return traits, args
}

// CompactSignature splits a 65-byte [R || S || V] signature into the (r, vs)
// pair fillOrderArgs expects (EIP-2098: the recovery bit folded into the high
// bit of s).
func CompactSignature(sig []byte) (r, vs [32]byte, err error) {
	if len(sig) != 65 {
		return r, vs, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	copy(r[:], sig[:32])
	copy(vs[:], sig[32:64])
	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return r, vs, fmt.Errorf("invalid recovery id %d", sig[64])
	}
	vs[0] |= v << 7
	return r, vs, nil
}

// abiOrder mirrors the router's Order tuple; addresses travel as uint256.
type abiOrder struct {
	Salt         *big.Int
	Maker        *big.Int
	Receiver     *big.Int
	MakerAsset   *big.Int
	TakerAsset   *big.Int
	MakingAmount *big.Int
	TakingAmount *big.Int
	MakerTraits  *big.Int
}

func toABIOrder(o *Order) abiOrder {
	addr := func(a common.Address) *big.Int { return new(big.Int).SetBytes(a.Bytes()) }
	return abiOrder{
		Salt:         o.Salt,
		Maker:        addr(o.Maker),
		Receiver:     addr(o.Receiver),
		MakerAsset:   addr(o.MakerAsset),
		TakerAsset:   addr(o.TakerAsset),
		MakingAmount: o.MakingAmount,
		TakingAmount: o.TakingAmount,
		MakerTraits:  o.MakerTraits,
	}
}

// FillOrderArgsCalldata encodes a router fillOrderArgs call for the given
// signed order. amount is interpreted per the traits' amount mode.
func FillOrderArgsCalldata(o *Order, signature []byte, amount *big.Int, traits TakerTraits) ([]byte, error) {
	r, vs, err := CompactSignature(signature)
	if err != nil {
		return nil, fmt.Errorf("fill calldata: %w", err)
	}
	traitsWord, args := traits.Encode()
	data, err := routerABI.Pack("fillOrderArgs", toABIOrder(o), r, vs, amount, traitsWord, args)
	if err != nil {
		return nil, fmt.Errorf("pack fillOrderArgs: %w", err)
	}
	return data, nil
}
