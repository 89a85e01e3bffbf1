// Package book holds the local replica of known open orders and answers the
// matching query. All mutation and match selection is serialized behind one
// mutex; compound decisions (classify, pick match, remove) are single methods
// so callers never observe a half-applied decision.
package book

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/otcmesh/otcmesh/pkg/trade"
	"github.com/otcmesh/otcmesh/pkg/util"
)

// Entry is a resting order plus its economic view, classified once at
// ingestion.
type Entry struct {
	Order *trade.SignedOrder
	View  trade.View
}

type Book struct {
	mu      sync.Mutex
	entries map[common.Hash]*Entry
	seq     []common.Hash // insertion order, used for first-match tie-breaking
	clock   util.Clock
	log     *zap.SugaredLogger
}

func New(clock util.Clock, log *zap.SugaredLogger) *Book {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Book{
		entries: make(map[common.Hash]*Entry),
		clock:   clock,
		log:     log,
	}
}

// Add classifies and inserts an order. Duplicate delivery of the same order
// hash is a no-op (idempotent remote insertion); malformed orders are
// rejected with trade.ErrUnsupportedOrder and leave the book untouched.
func (b *Book) Add(so *trade.SignedOrder) (bool, error) {
	view, err := trade.NewView(so)
	if err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addLocked(so, view), nil
}

func (b *Book) addLocked(so *trade.SignedOrder, view trade.View) bool {
	if _, ok := b.entries[so.OrderHash]; ok {
		return false
	}
	b.entries[so.OrderHash] = &Entry{Order: so, View: view}
	b.seq = append(b.seq, so.OrderHash)
	return true
}

// Restore re-inserts a previously removed entry, e.g. after a failed
// settlement submission. The original view is kept; no re-classification.
func (b *Book) Restore(e *Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addLocked(e.Order, e.View)
}

func (b *Book) Remove(h common.Hash) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(h)
}

func (b *Book) removeLocked(h common.Hash) bool {
	if _, ok := b.entries[h]; !ok {
		return false
	}
	delete(b.entries, h)
	for i, s := range b.seq {
		if s == h {
			b.seq = append(b.seq[:i], b.seq[i+1:]...)
			break
		}
	}
	return true
}

func (b *Book) Get(h common.Hash) (*Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[h]
	return e, ok
}

func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Snapshot returns the resting entries in insertion order.
func (b *Book) Snapshot() []*Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Entry, 0, len(b.seq))
	for _, h := range b.seq {
		out = append(out, b.entries[h])
	}
	return out
}

// MatchOrAdd is the matching decision for a new order: find the first resting
// order (insertion order) on the same derivative that economically crosses
// it. On a match the resting entry is removed and returned and the incoming
// order is NOT inserted; the caller settles both legs and restores the entry
// if submission fails. On no match the incoming order is inserted.
//
// First-match-wins is deliberate; this is not price-time priority.
func (b *Book) MatchOrAdd(so *trade.SignedOrder) (matched *Entry, added bool, err error) {
	view, err := trade.NewView(so)
	if err != nil {
		return nil, false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if m := b.findLocked(so.DerivativeHash, view, so.OrderHash); m != nil {
		b.removeLocked(m.Order.OrderHash)
		return m, false, nil
	}
	return nil, b.addLocked(so, view), nil
}

// findLocked scans in insertion order. Expired resting orders encountered on
// the way are dropped, never matched.
func (b *Book) findLocked(derivativeHash [32]byte, view trade.View, exclude common.Hash) *Entry {
	now := b.clock.Now().Unix()

	for i := 0; i < len(b.seq); i++ {
		h := b.seq[i]
		e := b.entries[h]
		if h == exclude || e.Order.DerivativeHash != derivativeHash {
			continue
		}
		if exp := e.Order.Order.Expiration(); exp > 0 && exp <= now {
			b.removeLocked(h)
			if b.log != nil {
				b.log.Infow("order_expired", "hash", h.Hex())
			}
			i--
			continue
		}
		if trade.Crossed(view, e.View) {
			return e
		}
	}
	return nil
}

// TakeCrossedPair removes and returns the first crossed pair resting in the
// book, scanning in insertion order. Used by the periodic arbitrage sweep;
// returns nils when nothing crosses.
func (b *Book) TakeCrossedPair() (*Entry, *Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now().Unix()

	// findLocked may drop expired entries and reshuffle seq; scan a copy.
	seq := append([]common.Hash(nil), b.seq...)
	for _, h := range seq {
		e, ok := b.entries[h]
		if !ok {
			continue
		}
		// Expired entries are no settlement leg on either side.
		if exp := e.Order.Order.Expiration(); exp > 0 && exp <= now {
			b.removeLocked(h)
			if b.log != nil {
				b.log.Infow("order_expired", "hash", h.Hex())
			}
			continue
		}
		if m := b.findLocked(e.Order.DerivativeHash, e.View, h); m != nil {
			b.removeLocked(h)
			b.removeLocked(m.Order.OrderHash)
			return e, m
		}
	}
	return nil, nil
}
