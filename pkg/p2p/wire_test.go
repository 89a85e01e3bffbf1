package p2p

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/otcmesh/otcmesh/pkg/derivative"
	"github.com/otcmesh/otcmesh/pkg/trade"

	"github.com/ethereum/go-ethereum/common"
)

func wireFixture(t *testing.T) *trade.SignedOrder {
	t.Helper()
	d, err := derivative.Parse("ETH-28FEB25-4000-C")
	if err != nil {
		t.Fatal(err)
	}
	h := d.Hash()
	long := derivative.PositionAddress(h, derivative.Long)
	short := derivative.PositionAddress(h, derivative.Short)

	res, err := trade.BuildOrder(d, long, short,
		trade.Quote{Quantity: "2", Price: "0.05", Buy: true},
		common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	orderHash, err := res.Order.Hash(42161)
	if err != nil {
		t.Fatal(err)
	}
	sig := make([]byte, 65)
	sig[64] = 27
	return &trade.SignedOrder{
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

func TestOrderWireRoundTrip(t *testing.T) {
	so := wireFixture(t)

	data, err := EncodeOrder(so)
	if err != nil {
		t.Fatalf("EncodeOrder: %v", err)
	}
	got, err := DecodeOrder(data)
	if err != nil {
		t.Fatalf("DecodeOrder: %v", err)
	}

	if got.OrderHash != so.OrderHash {
		t.Errorf("order hash = %s, want %s", got.OrderHash.Hex(), so.OrderHash.Hex())
	}
	if got.DerivativeHash != so.DerivativeHash {
		t.Error("derivative hash mismatch")
	}
	if got.Order.MakingAmount.Cmp(so.Order.MakingAmount) != 0 {
		t.Errorf("makingAmount = %s, want %s", got.Order.MakingAmount, so.Order.MakingAmount)
	}
	if got.Order.TakingAmount.Cmp(so.Order.TakingAmount) != 0 {
		t.Errorf("takingAmount = %s, want %s", got.Order.TakingAmount, so.Order.TakingAmount)
	}
	if got.Derivative.Hash() != so.DerivativeHash {
		t.Error("decoded derivative re-hashes to a different hash")
	}
	if got.LongPosition != so.LongPosition || got.ShortPosition != so.ShortPosition {
		t.Error("position addresses mismatch")
	}

	// The decoded order must classify identically on the receiving node.
	v1, err := trade.NewView(so)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := trade.NewView(got)
	if err != nil {
		t.Fatal(err)
	}
	if v1.Kind != v2.Kind || v1.Premium.Cmp(v2.Premium) != 0 || v1.Quantity.Cmp(v2.Quantity) != 0 {
		t.Error("decoded order yields a different economic view")
	}
}

func TestWireBigintsAreStrings(t *testing.T) {
	so := wireFixture(t)
	data, err := EncodeOrder(so)
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	var order map[string]json.RawMessage
	if err := json.Unmarshal(raw["order"], &order); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"makingAmount", "takingAmount", "salt", "makerTraits"} {
		if !strings.HasPrefix(string(order[field]), `"`) {
			t.Errorf("field %s serialized as a JSON number: %s", field, order[field])
		}
	}
}

func TestDecodeOrderRejectsStrippedParams(t *testing.T) {
	so := wireFixture(t)
	data, err := EncodeOrder(so)
	if err != nil {
		t.Fatal(err)
	}

	// A peer relaying an otherwise-valid order with the derivative params
	// stripped must be stopped at the decode boundary.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	var deriv map[string]json.RawMessage
	if err := json.Unmarshal(raw["derivative"], &deriv); err != nil {
		t.Fatal(err)
	}
	deriv["params"] = json.RawMessage(`[]`)
	if raw["derivative"], err = json.Marshal(deriv); err != nil {
		t.Fatal(err)
	}
	mutated, err := json.Marshal(raw)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := DecodeOrder(mutated); err == nil {
		t.Error("decoder accepted an order without derivative params")
	}
}

func TestDecodeOrderRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "not json", in: "hello"},
		{name: "bad amount", in: `{"order":{"salt":"1","makingAmount":"x","takingAmount":"1","makerTraits":"0"},"signature":"0x00","derivativeHash":"0x00"}`},
		{name: "short derivative hash", in: `{"order":{"salt":"1","makingAmount":"1","takingAmount":"1","makerTraits":"0"},"signature":"0x00","derivative":{"margin":"1"},"derivativeHash":"0x0011"}`},
		{name: "missing params", in: `{"order":{"salt":"1","makingAmount":"1","takingAmount":"1","makerTraits":"0"},"signature":"0x00","derivative":{"margin":"1","params":[]},"derivativeHash":"0x00"}`},
		{name: "truncated params", in: `{"order":{"salt":"1","makingAmount":"1","takingAmount":"1","makerTraits":"0"},"signature":"0x00","derivative":{"margin":"1","params":["1","2"]},"derivativeHash":"0x00"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeOrder([]byte(tt.in)); err == nil {
				t.Error("want error, got nil")
			}
		})
	}
}
