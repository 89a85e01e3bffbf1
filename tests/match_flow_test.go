// End-to-end flow across two nodes, with the gossip hop replaced by a direct
// wire encode/decode: node A places a sell, node B receives it over the wire,
// places a crossing buy, and settles both legs in one instruction.
package tests

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"

	"github.com/otcmesh/otcmesh/pkg/book"
	"github.com/otcmesh/otcmesh/pkg/engine"
	"github.com/otcmesh/otcmesh/pkg/lop"
	"github.com/otcmesh/otcmesh/pkg/p2p"
	"github.com/otcmesh/otcmesh/pkg/trade"
	"github.com/otcmesh/otcmesh/pkg/wallet"
)

type testWallet struct {
	key  *ecdsa.PrivateKey
	addr common.Address
	sent []wallet.Instruction
}

func newTestWallet(t *testing.T) *testWallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	return &testWallet{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

func (w *testWallet) Address() common.Address { return w.addr }
func (w *testWallet) ChainID() int64          { return 42161 }

func (w *testWallet) SignTypedData(payload apitypes.TypedData) ([]byte, error) {
	digest, _, err := apitypes.TypedDataAndHash(payload)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest, w.key)
	if err != nil {
		return nil, err
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

func (w *testWallet) SendInstruction(_ context.Context, ins wallet.Instruction) (common.Hash, error) {
	w.sent = append(w.sent, ins)
	return common.Hash{0x77}, nil
}

func (w *testWallet) CallContract(context.Context, common.Address, []byte) ([]byte, error) {
	return nil, nil
}

// capturePublisher records broadcasts instead of gossiping them.
type capturePublisher struct {
	ch chan *trade.SignedOrder
}

func (p *capturePublisher) Publish(_ context.Context, so *trade.SignedOrder) error {
	p.ch <- so
	return nil
}

func newNode(t *testing.T, w *testWallet, pub engine.Publisher) *engine.Engine {
	t.Helper()
	log := zap.NewNop().Sugar()
	return engine.New(w, nil, book.New(nil, log), pub, nil, nil, log, engine.Config{
		OrderTTL: time.Hour,
	})
}

func TestTwoNodeMatchFlow(t *testing.T) {
	sellerWallet := newTestWallet(t)
	buyerWallet := newTestWallet(t)

	sellerPub := &capturePublisher{ch: make(chan *trade.SignedOrder, 1)}
	seller := newNode(t, sellerWallet, sellerPub)
	buyer := newNode(t, buyerWallet, nil)

	// Node A: sell 3 calls at 0.04. Nothing to match, so it rests and is
	// broadcast.
	res, err := seller.PlaceOrder(context.Background(), "ETH-28FEB25-4000-C",
		trade.Quote{Quantity: "3", Price: "0.04", Buy: false})
	if err != nil {
		t.Fatalf("seller PlaceOrder: %v", err)
	}
	if res.Matched != nil {
		t.Fatal("sell matched on an empty book")
	}

	var published *trade.SignedOrder
	select {
	case published = <-sellerPub.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("sell order was never broadcast")
	}

	// The gossip hop: encode as node A sends it, decode as node B receives
	// it.
	raw, err := p2p.EncodeOrder(published)
	if err != nil {
		t.Fatalf("EncodeOrder: %v", err)
	}
	received, err := p2p.DecodeOrder(raw)
	if err != nil {
		t.Fatalf("DecodeOrder: %v", err)
	}

	buyer.AddRemote(received)
	if buyer.Book().Len() != 1 {
		t.Fatal("remote sell did not enter the buyer's book")
	}

	// Node B: buy 2 at 0.05 crosses the resting sell and settles atomically.
	fill, err := buyer.PlaceOrder(context.Background(), "ETH-28FEB25-4000-C",
		trade.Quote{Quantity: "2", Price: "0.05", Buy: true})
	if err != nil {
		t.Fatalf("buyer PlaceOrder: %v", err)
	}
	if fill.Matched == nil || fill.Matched.OrderHash != published.OrderHash {
		t.Fatal("buy did not match the gossiped sell")
	}
	if buyer.Book().Len() != 0 {
		t.Errorf("buyer book len = %d after fill, want 0", buyer.Book().Len())
	}

	if len(buyerWallet.sent) != 1 {
		t.Fatalf("buyer sent %d instructions, want 1", len(buyerWallet.sent))
	}
	ins := buyerWallet.sent[0]
	if ins.To != lop.DefaultArbitrageContract {
		t.Errorf("settlement sent to %s, want the arbitrage contract", ins.To.Hex())
	}
	// The outer calldata must carry the inner fill so both legs ride one
	// transaction.
	innerSig, innerVS, err := lop.CompactSignature(received.Signature)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(ins.Data, innerSig[:]) || !bytes.Contains(ins.Data, innerVS[:]) {
		t.Error("settlement calldata does not embed the resting order's signature")
	}
}
