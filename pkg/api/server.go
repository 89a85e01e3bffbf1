// Package api exposes the node over REST and WebSocket: book snapshots,
// order placement and cancellation, and live order/trade streams.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/otcmesh/otcmesh/pkg/book"
	"github.com/otcmesh/otcmesh/pkg/derivative"
	"github.com/otcmesh/otcmesh/pkg/engine"
	"github.com/otcmesh/otcmesh/pkg/trade"
)

type Server struct {
	engine *engine.Engine
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

func NewServer(e *engine.Engine, log *zap.SugaredLogger) *Server {
	s := &Server{
		engine: e,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}
	s.setupRoutes()

	// Live streams ride the engine's hooks.
	e.OnOrderAdded = s.broadcastOrder
	e.OnTrade = s.broadcastTrade
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/orders/{hash}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders", s.handlePlaceOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	entries := s.engine.Book().Snapshot()
	orders := make([]OrderSummary, len(entries))
	for i, e := range entries {
		orders[i] = summarize(e)
	}
	respondJSON(w, BookSnapshot{
		Orders:    orders,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	hashStr := mux.Vars(r)["hash"]
	if len(hashStr) != 2+2*common.HashLength {
		respondError(w, http.StatusBadRequest, "invalid order hash", hashStr)
		return
	}
	entry, ok := s.engine.Book().Get(common.HexToHash(hashStr))
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", hashStr)
		return
	}
	respondJSON(w, summarize(entry))
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	var buy bool
	switch req.Side {
	case "buy":
		buy = true
	case "sell":
		buy = false
	default:
		respondError(w, http.StatusBadRequest, "invalid side", "expected \"buy\" or \"sell\"")
		return
	}

	res, err := s.engine.PlaceOrder(r.Context(), req.Instrument, trade.Quote{
		Quantity: req.Quantity,
		Price:    req.Price,
		Buy:      buy,
	})
	if err != nil {
		switch {
		case errors.Is(err, derivative.ErrInvalidInstrument),
			errors.Is(err, derivative.ErrUnsupportedAsset),
			errors.Is(err, derivative.ErrInvalidOptionType):
			respondError(w, http.StatusBadRequest, "invalid instrument", err.Error())
		case errors.Is(err, trade.ErrInsufficientFunds),
			errors.Is(err, trade.ErrInsufficientAllowance):
			respondError(w, http.StatusUnprocessableEntity, "cannot settle", err.Error())
		case errors.Is(err, engine.ErrSettlementSubmissionFailed):
			respondError(w, http.StatusBadGateway, "settlement failed", err.Error())
		default:
			respondError(w, http.StatusBadRequest, "order rejected", err.Error())
		}
		return
	}

	resp := PlaceOrderResponse{
		Status:    "resting",
		OrderHash: res.Order.OrderHash.Hex(),
	}
	if res.Matched != nil {
		resp.Status = "filled"
		resp.MatchedHash = res.Matched.OrderHash.Hex()
		resp.SettlementTx = res.Settlement.Hex()
	}
	respondJSON(w, resp)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(req.OrderHash) != 2+2*common.HashLength {
		respondError(w, http.StatusBadRequest, "invalid order hash", req.OrderHash)
		return
	}

	err := s.engine.Cancel(common.HexToHash(req.OrderHash))
	switch {
	case errors.Is(err, engine.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order not found", req.OrderHash)
	case errors.Is(err, engine.ErrNotOrderOwner):
		respondError(w, http.StatusForbidden, "not order owner", req.OrderHash)
	case err != nil:
		respondError(w, http.StatusInternalServerError, "cancel failed", err.Error())
	default:
		respondJSON(w, map[string]string{"status": "cancelled", "orderHash": req.OrderHash})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods (called from engine hooks)
// ==============================

func (s *Server) broadcastOrder(so *trade.SignedOrder) {
	entry, ok := s.engine.Book().Get(so.OrderHash)
	if !ok {
		return
	}
	s.hub.BroadcastToChannel("orders", OrderUpdate{
		Type:      "order",
		Order:     summarize(entry),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) broadcastTrade(taken, made *trade.SignedOrder, tx common.Hash) {
	s.hub.BroadcastToChannel("trades", TradeUpdate{
		Type:         "trade",
		TakenHash:    taken.OrderHash.Hex(),
		MadeHash:     made.OrderHash.Hex(),
		SettlementTx: tx.Hex(),
		Timestamp:    time.Now().UnixMilli(),
	})
}

// ==============================
// Helper Functions
// ==============================

func summarize(e *book.Entry) OrderSummary {
	return OrderSummary{
		OrderHash:      e.Order.OrderHash.Hex(),
		DerivativeHash: common.Hash(e.Order.DerivativeHash).Hex(),
		Maker:          e.Order.Order.Maker.Hex(),
		Side:           e.View.Kind.String(),
		Premium:        e.View.Premium.String(),
		Quantity:       e.View.Quantity.String(),
		Expiration:     e.Order.Order.Expiration(),
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
