package api

// API response types for REST endpoints and WebSocket messages.

// OrderSummary is the public view of a resting order. Amounts are base-10
// integer strings in their native scale (quantity 18 decimals, premium in
// settlement-token decimals).
type OrderSummary struct {
	OrderHash      string `json:"orderHash"`
	DerivativeHash string `json:"derivativeHash"`
	Maker          string `json:"maker"`
	Side           string `json:"side"` // "buy-long", "sell-short", ...
	Premium        string `json:"premium"`
	Quantity       string `json:"quantity"`
	Expiration     int64  `json:"expiration"` // unix seconds, 0 = never
}

// BookSnapshot is the current resting order set in insertion order.
type BookSnapshot struct {
	Orders    []OrderSummary `json:"orders"`
	Timestamp int64          `json:"timestamp"` // unix milliseconds
}

// PlaceOrderRequest quotes a trade on an instrument, decimal strings as a
// human would write them.
type PlaceOrderRequest struct {
	Instrument string `json:"instrument"` // e.g. "ETH-28FEB25-4000-C"
	Quantity   string `json:"quantity"`   // e.g. "2"
	Price      string `json:"price"`      // premium per unit, e.g. "0.05"
	Side       string `json:"side"`       // "buy" or "sell"
}

// PlaceOrderResponse reports the placement outcome.
type PlaceOrderResponse struct {
	Status       string `json:"status"` // "resting" or "filled"
	OrderHash    string `json:"orderHash"`
	MatchedHash  string `json:"matchedHash,omitempty"`
	SettlementTx string `json:"settlementTx,omitempty"`
}

// CancelOrderRequest removes one of the node's own resting orders.
type CancelOrderRequest struct {
	OrderHash string `json:"orderHash"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WSSubscribeRequest is sent by a client to manage channel subscriptions.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // "orders", "trades"
}

// OrderUpdate is broadcast on the "orders" channel when an order enters the
// local book.
type OrderUpdate struct {
	Type      string       `json:"type"` // "order"
	Order     OrderSummary `json:"order"`
	Timestamp int64        `json:"timestamp"`
}

// TradeUpdate is broadcast on the "trades" channel when a matched pair
// settles.
type TradeUpdate struct {
	Type         string `json:"type"` // "trade"
	TakenHash    string `json:"takenHash"`
	MadeHash     string `json:"madeHash"`
	SettlementTx string `json:"settlementTx"`
	Timestamp    int64  `json:"timestamp"`
}
