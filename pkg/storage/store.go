package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/tickerlabs/ticksettle/pkg/engine"
	"github.com/tickerlabs/ticksettle/pkg/ledger"
)

// PebbleStore persists engine state: registry, ticker directory, live
// orders and consumed order ids.
type PebbleStore struct {
	db *pebble.DB
}

// keys: reg, tkr:<symbol>, ord:<32-byte-maker><8-byte-id>, cns:<same>
func kRegistry() []byte { return []byte("reg") }

func kTicker(symbol string) []byte { return append([]byte("tkr:"), symbol...) }

func kOrder(key engine.OrderKey) []byte { return orderKey("ord:", key) }

func kConsumed(key engine.OrderKey) []byte { return orderKey("cns:", key) }

func orderKey(prefix string, key engine.OrderKey) []byte {
	k := make([]byte, 0, len(prefix)+40)
	k = append(k, prefix...)
	k = append(k, key.Maker[:]...)
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], key.ID)
	return append(k, id[:]...)
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// SaveRegistry persists the registry singleton
func (s *PebbleStore) SaveRegistry(r engine.Registry) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := s.db.Set(kRegistry(), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}
	return nil
}

// LoadRegistry loads the registry, or nil if none was initialized
func (s *PebbleStore) LoadRegistry() (*engine.Registry, error) {
	data, closer, err := s.db.Get(kRegistry())
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registry: %w", err)
	}
	defer closer.Close()

	var r engine.Registry
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal registry: %w", err)
	}
	return &r, nil
}

// SaveTicker persists a ticker directory entry
func (s *PebbleStore) SaveTicker(t engine.Ticker) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal ticker: %w", err)
	}
	if err := s.db.Set(kTicker(t.Symbol), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save ticker: %w", err)
	}
	return nil
}

// LoadTickers loads the whole ticker directory
func (s *PebbleStore) LoadTickers() ([]engine.Ticker, error) {
	var out []engine.Ticker
	err := s.scan([]byte("tkr:"), func(_, val []byte) {
		var t engine.Ticker
		if err := json.Unmarshal(val, &t); err != nil {
			return // skip invalid entries
		}
		out = append(out, t)
	})
	return out, err
}

// SaveOrder persists a live order
func (s *PebbleStore) SaveOrder(o *engine.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	if err := s.db.Set(kOrder(o.Key()), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// DeleteOrder reclaims a terminally transitioned order
func (s *PebbleStore) DeleteOrder(key engine.OrderKey) error {
	if err := s.db.Delete(kOrder(key), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

// LoadOrders loads all live orders
func (s *PebbleStore) LoadOrders() ([]*engine.Order, error) {
	var out []*engine.Order
	err := s.scan([]byte("ord:"), func(_, val []byte) {
		var o engine.Order
		if err := json.Unmarshal(val, &o); err != nil {
			return
		}
		out = append(out, &o)
	})
	return out, err
}

// MarkConsumed records a (maker, id) as consumed forever
func (s *PebbleStore) MarkConsumed(key engine.OrderKey) error {
	if err := s.db.Set(kConsumed(key), []byte{1}, pebble.Sync); err != nil {
		return fmt.Errorf("failed to mark consumed: %w", err)
	}
	return nil
}

// LoadConsumed loads every consumed (maker, id)
func (s *PebbleStore) LoadConsumed() ([]engine.OrderKey, error) {
	var out []engine.OrderKey
	err := s.scan([]byte("cns:"), func(key, _ []byte) {
		if len(key) != 4+40 {
			return
		}
		var k engine.OrderKey
		var maker ledger.AccountID
		copy(maker[:], key[4:36])
		k.Maker = maker
		k.ID = binary.BigEndian.Uint64(key[36:44])
		out = append(out, k)
	})
	return out, err
}

func (s *PebbleStore) scan(prefix []byte, fn func(key, val []byte)) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		fn(iter.Key(), iter.Value())
	}
	return nil
}

func keyUpperBound(b []byte) []byte {
	end := make([]byte, len(b))
	copy(end, b)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

var _ engine.Store = (*PebbleStore)(nil)
