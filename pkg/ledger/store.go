package ledger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Store provides Pebble-based persistence for balances and mints.
// Thread-safe: all writes go through the Ledger's mutex.
type Store struct {
	db *pebble.DB
}

// keys: bal:<32-byte-account><32-byte-mint>, mint:<32-byte-mint>
func balKey(account, mint AccountID) []byte {
	k := make([]byte, 0, 4+64)
	k = append(k, []byte("bal:")...)
	k = append(k, account[:]...)
	k = append(k, mint[:]...)
	return k
}

func mintKey(mint AccountID) []byte { return append([]byte("mint:"), mint[:]...) }

// NewStore opens a Pebble database at the given path
func NewStore(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error { return s.db.Close() }

// SaveBalance persists a single (account, mint) balance
func (s *Store) SaveBalance(account, mint AccountID, amount uint64) error {
	var val [8]byte
	binary.LittleEndian.PutUint64(val[:], amount)
	if err := s.db.Set(balKey(account, mint), val[:], pebble.Sync); err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

// DeleteBalance removes a closed (account, mint) sub-account
func (s *Store) DeleteBalance(account, mint AccountID) error {
	if err := s.db.Delete(balKey(account, mint), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete balance: %w", err)
	}
	return nil
}

// LoadBalances streams every persisted balance into fn
func (s *Store) LoadBalances(fn func(account, mint AccountID, amount uint64)) error {
	prefix := []byte("bal:")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != 4+64 || len(iter.Value()) != 8 {
			continue // skip invalid entries
		}
		var account, mint AccountID
		copy(account[:], key[4:36])
		copy(mint[:], key[36:68])
		fn(account, mint, binary.LittleEndian.Uint64(iter.Value()))
	}
	return nil
}

// SaveMint persists a mint registration
func (s *Store) SaveMint(mint AccountID, info MintInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal mint: %w", err)
	}
	if err := s.db.Set(mintKey(mint), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save mint: %w", err)
	}
	return nil
}

// LoadMints loads all mint registrations into dst
func (s *Store) LoadMints(dst map[AccountID]MintInfo) error {
	prefix := []byte("mint:")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != 5+32 {
			continue
		}
		var mint AccountID
		copy(mint[:], key[5:])

		var info MintInfo
		if err := json.Unmarshal(iter.Value(), &info); err != nil {
			continue
		}
		dst[mint] = info
	}
	return nil
}

// keyUpperBound returns the smallest key greater than every key with prefix b
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
