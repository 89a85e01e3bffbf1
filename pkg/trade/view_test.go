package trade

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func signedQuote(t *testing.T, q Quote) *SignedOrder {
	t.Helper()
	d, long, short := testDerivative(t)
	res, err := BuildOrder(d, long, short, q, testMaker, testExp.Add(time.Hour))
	if err != nil {
		t.Fatalf("BuildOrder: %v", err)
	}
	return &SignedOrder{
		Order:          res.Order,
		Derivative:     d,
		DerivativeHash: d.Hash(),
		LongPosition:   long,
		ShortPosition:  short,
	}
}

func TestClassify(t *testing.T) {
	buy := signedQuote(t, Quote{Quantity: "2", Price: "0.05", Buy: true})
	kind, err := Classify(buy)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if kind != BuyLong {
		t.Errorf("kind = %s, want buy-long", kind)
	}

	sell := signedQuote(t, Quote{Quantity: "3", Price: "0.04", Buy: false})
	kind, err = Classify(sell)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if kind != SellShort {
		t.Errorf("kind = %s, want sell-short", kind)
	}
}

func TestClassifyUnsupported(t *testing.T) {
	so := signedQuote(t, Quote{Quantity: "1", Price: "0.05", Buy: true})
	so.Order.TakerAsset = common.HexToAddress("0x00000000000000000000000000000000000000ee")

	if _, err := Classify(so); !errors.Is(err, ErrUnsupportedOrder) {
		t.Errorf("err = %v, want ErrUnsupportedOrder", err)
	}
}

func TestNewViewSellerPremiumNetOfMargin(t *testing.T) {
	sell := signedQuote(t, Quote{Quantity: "3", Price: "0.04", Buy: false})

	v, err := NewView(sell)
	if err != nil {
		t.Fatalf("NewView: %v", err)
	}
	if v.Kind.Buying() {
		t.Error("sell order classified as buying")
	}
	// Margin embedded in the taking amount must be subtracted back out.
	if v.Premium.Cmp(wad("40000000000000000")) != 0 {
		t.Errorf("premium = %s, want 4e16", v.Premium)
	}
	if v.Quantity.Cmp(wad("3000000000000000000")) != 0 {
		t.Errorf("quantity = %s, want 3e18", v.Quantity)
	}
}

func TestCrossed(t *testing.T) {
	view := func(q Quote) View {
		v, err := NewView(signedQuote(t, q))
		if err != nil {
			t.Fatalf("NewView: %v", err)
		}
		return v
	}

	buy := view(Quote{Quantity: "2", Price: "0.05", Buy: true})
	sell := view(Quote{Quantity: "3", Price: "0.04", Buy: false})

	if !Crossed(buy, sell) {
		t.Error("buy 2@0.05 should cross sell 3@0.04")
	}
	// Matching is commutative in outcome.
	if !Crossed(sell, buy) {
		t.Error("crossing is not symmetric")
	}

	tests := []struct {
		name string
		a, b View
	}{
		{name: "same direction", a: buy, b: view(Quote{Quantity: "1", Price: "0.06", Buy: true})},
		{name: "buyer limit below ask", a: buy, b: view(Quote{Quantity: "3", Price: "0.07", Buy: false})},
		{name: "resting too small", a: buy, b: view(Quote{Quantity: "1", Price: "0.04", Buy: false})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Crossed(tt.a, tt.b) {
				t.Error("views should not cross")
			}
		})
	}
}
