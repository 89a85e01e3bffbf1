package trade

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/otcmesh/otcmesh/pkg/derivative"
	"github.com/otcmesh/otcmesh/pkg/wallet"
)

func signedFixture(t *testing.T) *SignedOrder {
	t.Helper()
	w, err := wallet.NewLocalWallet("", 42161, nil)
	if err != nil {
		t.Fatal(err)
	}
	d, err := derivative.Parse("ETH-28FEB25-4000-C")
	if err != nil {
		t.Fatal(err)
	}
	h := d.Hash()
	long := derivative.PositionAddress(h, derivative.Long)
	short := derivative.PositionAddress(h, derivative.Short)

	res, err := BuildOrder(d, long, short,
		Quote{Quantity: "2", Price: "0.05", Buy: true},
		w.Address(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	orderHash, err := res.Order.Hash(42161)
	if err != nil {
		t.Fatal(err)
	}
	sig, err := w.SignTypedData(res.Order.TypedData(42161))
	if err != nil {
		t.Fatal(err)
	}
	return &SignedOrder{
		ChainID:        42161,
		Order:          res.Order,
		OrderHash:      orderHash,
		Signature:      sig,
		Derivative:     d,
		DerivativeHash: h,
		LongPosition:   long,
		ShortPosition:  short,
	}
}

func TestVerifyAcceptsWellFormedOrder(t *testing.T) {
	so := signedFixture(t)
	if err := so.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsTamperedEnvelope(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(so *SignedOrder)
	}{
		{"nil params", func(so *SignedOrder) {
			so.Derivative.Params = nil
		}},
		{"truncated params", func(so *SignedOrder) {
			so.Derivative.Params = so.Derivative.Params[:1]
		}},
		{"derivative hash mismatch", func(so *SignedOrder) {
			so.DerivativeHash[0] ^= 0xff
		}},
		{"forged long position", func(so *SignedOrder) {
			so.LongPosition = common.HexToAddress("0x00000000000000000000000000000000000000ee")
		}},
		{"forged short position", func(so *SignedOrder) {
			so.ShortPosition = common.HexToAddress("0x00000000000000000000000000000000000000ee")
		}},
		{"order hash mismatch", func(so *SignedOrder) {
			so.OrderHash[0] ^= 0xff
		}},
		{"truncated signature", func(so *SignedOrder) {
			so.Signature = so.Signature[:64]
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			so := signedFixture(t)
			tt.mutate(so)
			if err := so.Verify(); err == nil {
				t.Error("tampered order verified")
			}
		})
	}
}
