package trade

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/otcmesh/otcmesh/pkg/derivative"
)

// ErrUnsupportedOrder marks a resting order whose asset pair maps to neither
// position address. Such orders are dropped from matching, never fatal.
var ErrUnsupportedOrder = errors.New("order assets match no known position address")

// Kind is the structural classification of an order, computed once at
// ingestion and stored with it.
type Kind int

const (
	BuyLong Kind = iota
	BuyShort
	SellLong
	SellShort
)

func (k Kind) String() string {
	switch k {
	case BuyLong:
		return "buy-long"
	case BuyShort:
		return "buy-short"
	case SellLong:
		return "sell-long"
	case SellShort:
		return "sell-short"
	}
	return "unknown"
}

func (k Kind) Buying() bool   { return k == BuyLong || k == BuyShort }
func (k Kind) LongSide() bool { return k == BuyLong || k == SellLong }

// View is the canonical economic reduction of a signed order: direction,
// per-unit premium (settlement-token decimals) and quantity (18 decimals).
// Sellers' quoted amounts embed margin, which is subtracted back out here so
// premiums compare like for like.
type View struct {
	Kind     Kind
	Premium  *big.Int
	Quantity *big.Int
}

// Classify inspects which position address the order trades against.
func Classify(so *SignedOrder) (Kind, error) {
	o := so.Order
	switch {
	case o.TakerAsset == so.LongPosition:
		return BuyLong, nil
	case o.TakerAsset == so.ShortPosition:
		return BuyShort, nil
	case o.MakerAsset == so.LongPosition:
		return SellLong, nil
	case o.MakerAsset == so.ShortPosition:
		return SellShort, nil
	}
	return 0, fmt.Errorf("%w: maker=%s taker=%s", ErrUnsupportedOrder, o.MakerAsset.Hex(), o.TakerAsset.Hex())
}

// NewView classifies the order and derives its per-unit premium.
func NewView(so *SignedOrder) (View, error) {
	kind, err := Classify(so)
	if err != nil {
		return View{}, err
	}

	var totalAmount, quantity *big.Int
	if kind.Buying() {
		totalAmount = so.Order.MakingAmount
		quantity = so.Order.TakingAmount
	} else {
		totalAmount = so.Order.TakingAmount
		quantity = so.Order.MakingAmount
	}
	if quantity == nil || quantity.Sign() <= 0 {
		return View{}, fmt.Errorf("%w: zero quantity", ErrUnsupportedOrder)
	}

	// Long-side amounts are pure premium. Short-side amounts embed posted
	// margin: premium = margin-at-quantity - amount.
	totalPremium := new(big.Int).Set(totalAmount)
	if !kind.LongSide() {
		_, shortMargin := so.Derivative.InitialMargin()
		totalMargin := mulWad(shortMargin, quantity)
		totalPremium.Sub(totalMargin, totalAmount)
	}

	premium := new(big.Int).Mul(totalPremium, derivative.Wad)
	premium.Quo(premium, quantity)

	return View{Kind: kind, Premium: premium, Quantity: new(big.Int).Set(quantity)}, nil
}

// Crossed reports whether two views of the same derivative economically
// satisfy each other: opposite directions, the buyer's limit at or above the
// seller's ask, and the resting/selling side large enough to cover the
// buyer's full quantity (no partial fills).
func Crossed(a, b View) bool {
	if a.Kind.Buying() == b.Kind.Buying() {
		return false
	}
	buy, sell := a, b
	if !a.Kind.Buying() {
		buy, sell = b, a
	}
	if buy.Premium.Cmp(sell.Premium) < 0 {
		return false
	}
	return buy.Quantity.Cmp(sell.Quantity) <= 0
}
