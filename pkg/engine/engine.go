// Package engine orchestrates the matching node: local placements, remote
// order intake, and settlement of matched pairs. All matching decisions go
// through the book's single serialization point; signing and settlement
// submission happen strictly outside it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/otcmesh/otcmesh/pkg/book"
	"github.com/otcmesh/otcmesh/pkg/derivative"
	"github.com/otcmesh/otcmesh/pkg/lop"
	"github.com/otcmesh/otcmesh/pkg/storage"
	"github.com/otcmesh/otcmesh/pkg/trade"
	"github.com/otcmesh/otcmesh/pkg/util"
	"github.com/otcmesh/otcmesh/pkg/wallet"
)

var (
	ErrSettlementSubmissionFailed = errors.New("settlement submission failed")
	ErrOrderNotFound              = errors.New("order not found")
	ErrNotOrderOwner              = errors.New("order belongs to another maker")
)

// Publisher broadcasts locally created orders to peers.
type Publisher interface {
	Publish(ctx context.Context, so *trade.SignedOrder) error
}

type Config struct {
	Faucet            common.Address // zero disables the test-network top-up path
	ArbitrageContract common.Address
	OrderTTL          time.Duration
}

type Engine struct {
	wallet wallet.Wallet
	oracle wallet.BalanceOracle
	book   *book.Book
	net    Publisher           // nil: offline, placements stay local
	store  *storage.OrderStore // nil: no persistence
	clock  util.Clock
	log    *zap.SugaredLogger
	cfg    Config

	// OnOrderAdded fires when an order rests in the local book (local or
	// remote). OnTrade fires when a matched pair settles.
	OnOrderAdded func(so *trade.SignedOrder)
	OnTrade      func(incoming, resting *trade.SignedOrder, tx common.Hash)
}

func New(w wallet.Wallet, oracle wallet.BalanceOracle, b *book.Book, net Publisher, store *storage.OrderStore, clock util.Clock, log *zap.SugaredLogger, cfg Config) *Engine {
	if clock == nil {
		clock = util.RealClock{}
	}
	if cfg.OrderTTL <= 0 {
		cfg.OrderTTL = 2 * time.Minute
	}
	if cfg.ArbitrageContract == (common.Address{}) {
		cfg.ArbitrageContract = lop.DefaultArbitrageContract
	}
	return &Engine{
		wallet: w, oracle: oracle, book: b, net: net, store: store,
		clock: clock, log: log, cfg: cfg,
	}
}

func (e *Engine) Book() *book.Book { return e.book }

// PlaceResult reports what happened to a placement.
type PlaceResult struct {
	Order      *trade.SignedOrder
	Matched    *trade.SignedOrder // non-nil when the order settled immediately
	Settlement common.Hash        // settlement tx hash when matched
}

// PlaceOrder is the main entry point: parse the instrument, derive position
// addresses, build and sign an order for the quote, then match it against
// the book or let it rest and propagate.
func (e *Engine) PlaceOrder(ctx context.Context, instrument string, q trade.Quote) (*PlaceResult, error) {
	d, err := derivative.Parse(instrument)
	if err != nil {
		return nil, err
	}
	dh := d.Hash()
	long := derivative.PositionAddress(dh, derivative.Long)
	short := derivative.PositionAddress(dh, derivative.Short)

	res, err := trade.BuildOrder(d, long, short, q, e.wallet.Address(), e.clock.Now().Add(e.cfg.OrderTTL))
	if err != nil {
		return nil, err
	}

	if e.oracle != nil {
		if err := trade.Preflight(ctx, e.wallet, e.oracle, d.Token, res.Required, e.cfg.Faucet); err != nil {
			return nil, err
		}
	}

	chainID := e.wallet.ChainID()
	orderHash, err := res.Order.Hash(chainID)
	if err != nil {
		return nil, err
	}
	sig, err := e.wallet.SignTypedData(res.Order.TypedData(chainID))
	if err != nil {
		return nil, fmt.Errorf("sign order: %w", err)
	}

	so := &trade.SignedOrder{
		ChainID:        chainID,
		Order:          res.Order,
		OrderHash:      orderHash,
		Signature:      sig,
		Derivative:     d,
		DerivativeHash: dh,
		LongPosition:   long,
		ShortPosition:  short,
	}

	matched, added, err := e.book.MatchOrAdd(so)
	if err != nil {
		return nil, err
	}

	if matched != nil {
		tx, err := e.settle(ctx, so, matched)
		if err != nil {
			// Both legs go back whole: the resting entry untouched, the
			// incoming order resting like any unmatched placement. The
			// periodic sweep retries the pair later.
			e.book.Restore(matched)
			if readded, aerr := e.book.Add(so); aerr == nil && readded {
				e.persistAndAnnounce(so)
				e.broadcast(so)
			}
			return nil, err
		}
		if e.store != nil {
			if derr := e.store.DeleteOrder(matched.Order.OrderHash); derr != nil {
				e.log.Warnw("order_store_delete_failed", "hash", matched.Order.OrderHash.Hex(), "err", derr)
			}
		}
		e.log.Infow("orders_matched",
			"incoming", so.OrderHash.Hex(),
			"resting", matched.Order.OrderHash.Hex(),
			"tx", tx.Hex())
		if e.OnTrade != nil {
			e.OnTrade(so, matched.Order, tx)
		}
		return &PlaceResult{Order: so, Matched: matched.Order, Settlement: tx}, nil
	}

	if added {
		e.persistAndAnnounce(so)
		e.broadcast(so)
	}
	return &PlaceResult{Order: so}, nil
}

// Cancel removes one of our own resting orders.
func (e *Engine) Cancel(orderHash common.Hash) error {
	entry, ok := e.book.Get(orderHash)
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderHash.Hex())
	}
	if entry.Order.Order.Maker != e.wallet.Address() {
		return fmt.Errorf("%w: %s", ErrNotOrderOwner, orderHash.Hex())
	}
	e.book.Remove(orderHash)
	if e.store != nil {
		if err := e.store.DeleteOrder(orderHash); err != nil {
			e.log.Warnw("order_store_delete_failed", "hash", orderHash.Hex(), "err", err)
		}
	}
	e.log.Infow("order_cancelled", "hash", orderHash.Hex())
	return nil
}

// Run consumes remotely received orders and periodically sweeps the book for
// crossed pairs. Blocks until ctx is done.
func (e *Engine) Run(ctx context.Context, inbound <-chan *trade.SignedOrder, scanTick time.Duration) {
	if scanTick <= 0 {
		scanTick = 5 * time.Second
	}
	ticker := time.NewTicker(scanTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case so, ok := <-inbound:
			if !ok {
				return
			}
			e.AddRemote(so)
		case <-ticker.C:
			e.ArbitrageScan(ctx)
		}
	}
}

// AddRemote merges a remotely received order into the book. Duplicates are
// no-ops; structurally invalid orders are dropped and logged, never fatal.
func (e *Engine) AddRemote(so *trade.SignedOrder) {
	if err := so.Verify(); err != nil {
		e.log.Warnw("remote_order_rejected", "hash", so.OrderHash.Hex(), "err", err)
		return
	}
	added, err := e.book.Add(so)
	if err != nil {
		e.log.Warnw("remote_order_unsupported", "hash", so.OrderHash.Hex(), "err", err)
		return
	}
	if !added {
		return // duplicate delivery
	}
	e.persistAndAnnounce(so)
	e.log.Infow("remote_order_added", "hash", so.OrderHash.Hex(), "maker", so.Order.Maker.Hex())
}

// ArbitrageScan settles the first crossed pair resting in the book, if any.
// Recovers crosses formed by two remote orders, which no local placement
// would ever touch.
func (e *Engine) ArbitrageScan(ctx context.Context) {
	x, y := e.book.TakeCrossedPair()
	if x == nil {
		return
	}
	tx, err := e.settle(ctx, x.Order, y)
	if err != nil {
		e.book.Restore(x)
		e.book.Restore(y)
		e.log.Warnw("arbitrage_settlement_failed",
			"outer", x.Order.OrderHash.Hex(),
			"inner", y.Order.OrderHash.Hex(),
			"err", err)
		return
	}
	if e.store != nil {
		for _, h := range []common.Hash{x.Order.OrderHash, y.Order.OrderHash} {
			if err := e.store.DeleteOrder(h); err != nil {
				e.log.Warnw("order_store_delete_failed", "hash", h.Hex(), "err", err)
			}
		}
	}
	e.log.Infow("arbitrage_settled",
		"outer", x.Order.OrderHash.Hex(),
		"inner", y.Order.OrderHash.Hex(),
		"tx", tx.Hex())
	if e.OnTrade != nil {
		e.OnTrade(x.Order, y.Order, tx)
	}
}

// settle builds the linked two-leg fill bundle and submits it. The outer fill
// embeds the inner fill as an interaction, so either both legs settle in one
// atomic submission or neither does.
func (e *Engine) settle(ctx context.Context, outer *trade.SignedOrder, inner *book.Entry) (common.Hash, error) {
	ins, err := e.composeArbitrage(outer, inner.Order)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrSettlementSubmissionFailed, err)
	}
	tx, err := e.wallet.SendInstruction(ctx, ins)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrSettlementSubmissionFailed, err)
	}
	return tx, nil
}

func (e *Engine) composeArbitrage(outer, inner *trade.SignedOrder) (wallet.Instruction, error) {
	// Both legs fill at the outer order's taker amount; the matching
	// predicate already guaranteed the inner order covers it.
	quantity := outer.Order.TakingAmount

	// The inner fill's interaction hands the derivative encoding to the
	// helper so it can mint the position pair during settlement.
	innerPayload := append([]byte{0xff}, outer.Derivative.Encode()...)
	innerCalldata, err := lop.FillOrderArgsCalldata(&inner.Order, inner.Signature, quantity, lop.TakerTraits{
		Interaction: &lop.Interaction{Target: e.cfg.ArbitrageContract, Data: innerPayload},
	})
	if err != nil {
		return wallet.Instruction{}, fmt.Errorf("inner fill: %w", err)
	}

	outerCalldata, err := lop.FillOrderArgsCalldata(&outer.Order, outer.Signature, quantity, lop.TakerTraits{
		Interaction: &lop.Interaction{Target: e.cfg.ArbitrageContract, Data: innerCalldata},
	})
	if err != nil {
		return wallet.Instruction{}, fmt.Errorf("outer fill: %w", err)
	}

	data, err := lop.ArbitrageCreateCalldata(outerCalldata)
	if err != nil {
		return wallet.Instruction{}, err
	}
	return wallet.Instruction{To: e.cfg.ArbitrageContract, Data: data}, nil
}

func (e *Engine) persistAndAnnounce(so *trade.SignedOrder) {
	if e.store != nil {
		if err := e.store.SaveOrder(so); err != nil {
			e.log.Warnw("order_store_save_failed", "hash", so.OrderHash.Hex(), "err", err)
		}
	}
	if e.OnOrderAdded != nil {
		e.OnOrderAdded(so)
	}
}

// broadcast publishes in the background; propagation failures never fail the
// placement that triggered them.
func (e *Engine) broadcast(so *trade.SignedOrder) {
	if e.net == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.net.Publish(ctx, so); err != nil {
			e.log.Warnw("order_broadcast_failed", "hash", so.OrderHash.Hex(), "err", err)
			return
		}
		e.log.Infow("order_broadcast", "hash", so.OrderHash.Hex())
	}()
}

// Rehydrate loads persisted orders back into the book at startup.
func (e *Engine) Rehydrate() error {
	if e.store == nil {
		return nil
	}
	orders, skipped, err := e.store.LoadAll()
	if err != nil {
		return err
	}
	restored := 0
	for _, so := range orders {
		added, err := e.book.Add(so)
		if err != nil {
			e.log.Warnw("rehydrate_order_unsupported", "hash", so.OrderHash.Hex(), "err", err)
			continue
		}
		if added {
			restored++
		}
	}
	e.log.Infow("book_rehydrated", "restored", restored, "skipped", skipped)
	return nil
}
