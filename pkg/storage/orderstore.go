// Package storage persists resting orders so a restarted node rejoins the
// network with its last known book instead of an empty one.
package storage

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/otcmesh/otcmesh/pkg/p2p"
	"github.com/otcmesh/otcmesh/pkg/trade"
)

type OrderStore struct {
	db *pebble.DB
}

func NewOrderStore(path string) (*OrderStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open order store: %w", err)
	}
	return &OrderStore{db: db}, nil
}

func (s *OrderStore) Close() error { return s.db.Close() }

// keys: o:<32-byte-order-hash>
func kOrder(h common.Hash) []byte { return append([]byte("o:"), h[:]...) }

// SaveOrder persists an order in its wire encoding, so the stored bytes are
// exactly what peers would receive.
func (s *OrderStore) SaveOrder(so *trade.SignedOrder) error {
	val, err := p2p.EncodeOrder(so)
	if err != nil {
		return fmt.Errorf("encode order %s: %w", so.OrderHash.Hex(), err)
	}
	if err := s.db.Set(kOrder(so.OrderHash), val, pebble.Sync); err != nil {
		return fmt.Errorf("save order %s: %w", so.OrderHash.Hex(), err)
	}
	return nil
}

func (s *OrderStore) DeleteOrder(h common.Hash) error {
	if err := s.db.Delete(kOrder(h), pebble.Sync); err != nil {
		return fmt.Errorf("delete order %s: %w", h.Hex(), err)
	}
	return nil
}

func (s *OrderStore) GetOrder(h common.Hash) (*trade.SignedOrder, bool, error) {
	val, closer, err := s.db.Get(kOrder(h))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get order %s: %w", h.Hex(), err)
	}
	defer closer.Close()
	so, err := p2p.DecodeOrder(val)
	if err != nil {
		return nil, false, fmt.Errorf("decode stored order %s: %w", h.Hex(), err)
	}
	return so, true, nil
}

// LoadAll iterates every stored order, for book rehydration at startup.
// Undecodable entries are skipped and reported via the returned count so one
// corrupt value cannot keep the node down.
func (s *OrderStore) LoadAll() (orders []*trade.SignedOrder, skipped int, err error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("o:"),
		UpperBound: []byte("o;"), // ';' is ':'+1
	})
	if err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		so, decErr := p2p.DecodeOrder(iter.Value())
		if decErr != nil {
			skipped++
			continue
		}
		orders = append(orders, so)
	}
	if err := iter.Error(); err != nil {
		return nil, skipped, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, skipped, nil
}
