// Package trade turns quotes into protocol orders and reduces signed orders
// to the canonical economic view the matching engine compares.
package trade

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/otcmesh/otcmesh/pkg/derivative"
	"github.com/otcmesh/otcmesh/pkg/lop"
)

// SignedOrder is a maker's signed intent together with the derivative context
// every node needs to classify and fill it. Broadcast copies are read-only
// replicas; nothing mutates a SignedOrder after creation.
type SignedOrder struct {
	ChainID        int64
	Order          lop.Order
	OrderHash      common.Hash
	Signature      []byte
	Derivative     derivative.Derivative
	DerivativeHash [32]byte
	LongPosition   common.Address
	ShortPosition  common.Address
}

// Quote is an ephemeral request to trade: quantity and limit price as decimal
// strings (parsed to fixed point exactly once), and the direction.
type Quote struct {
	Quantity string
	Price    string
	Buy      bool
}
