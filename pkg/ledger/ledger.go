// Package ledger is an embedded single-node token ledger: balances keyed by
// (account, mint), named mints with a mint authority, and atomic multi-step
// transactions. It stands in for the host ledger's account runtime and
// fungible-token service; the settlement engine consumes it through the
// operations below and never touches storage directly.
package ledger

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// AccountID is a 32-byte account or mint identity
type AccountID [32]byte

func (a AccountID) Hex() string { return hex.EncodeToString(a[:]) }

func (a AccountID) Bytes() []byte { return a[:] }

func (a AccountID) IsZero() bool { return a == AccountID{} }

// MarshalJSON encodes the id as a hex string
func (a AccountID) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Hex())
}

func (a *AccountID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := AccountIDFromHex(s)
	if err != nil {
		return err
	}
	*a = id
	return nil
}

func AccountIDFromHex(s string) (AccountID, error) {
	var id AccountID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("failed to parse account id: %w", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("account id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownMint       = errors.New("unknown mint")
	ErrMintExists        = errors.New("mint already exists")
	ErrNotMintAuthority  = errors.New("caller is not the mint authority")
	ErrNonZeroBalance    = errors.New("account balance is not zero")
)

// MintInfo describes a fungible token mint
type MintInfo struct {
	Decimals  uint8     `json:"decimals"`
	Authority AccountID `json:"authority"`
}

type balanceKey struct {
	Account AccountID
	Mint    AccountID
}

// Ledger is the balance book. A single mutex serializes every transaction,
// which is the host-ledger write-serialization the engine's state machine
// relies on: two transactions racing on the same account commit one at a
// time, and a failed transaction commits nothing.
type Ledger struct {
	mu       sync.RWMutex
	balances map[balanceKey]uint64
	mints    map[AccountID]MintInfo
	store    *Store // nil for in-memory ledgers
}

// NewLedger creates an in-memory ledger (tests, attest CLI)
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[balanceKey]uint64),
		mints:    make(map[AccountID]MintInfo),
	}
}

// OpenLedger creates a ledger backed by a Pebble database at path,
// reloading all balances and mints persisted by a previous run
func OpenLedger(path string) (*Ledger, error) {
	store, err := NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	l := NewLedger()
	l.store = store

	if err := store.LoadMints(l.mints); err != nil {
		return nil, fmt.Errorf("failed to load mints: %w", err)
	}
	if err := store.LoadBalances(func(acc, mint AccountID, amount uint64) {
		l.balances[balanceKey{acc, mint}] = amount
	}); err != nil {
		return nil, fmt.Errorf("failed to load balances: %w", err)
	}

	return l, nil
}

// Close closes the underlying Pebble database
func (l *Ledger) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

// CreateMint registers a new mint with the given authority
func (l *Ledger) CreateMint(mint AccountID, decimals uint8, authority AccountID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.mints[mint]; exists {
		return fmt.Errorf("mint %s: %w", mint.Hex(), ErrMintExists)
	}

	info := MintInfo{Decimals: decimals, Authority: authority}
	l.mints[mint] = info

	if l.store != nil {
		return l.store.SaveMint(mint, info)
	}
	return nil
}

// Mint returns the mint's info and whether it exists
func (l *Ledger) Mint(mint AccountID) (MintInfo, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	info, ok := l.mints[mint]
	return info, ok
}

// Balance returns the account's balance in the given mint
func (l *Ledger) Balance(account, mint AccountID) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[balanceKey{account, mint}]
}

// HasAccount reports whether a (account, mint) sub-account exists.
// A closed account does not, even at zero balance.
func (l *Ledger) HasAccount(account, mint AccountID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.balances[balanceKey{account, mint}]
	return ok
}

// Apply runs fn against a staged transaction. Every read sees prior writes
// within the same transaction; if fn returns an error nothing is committed
// and the ledger is untouched.
func (l *Ledger) Apply(fn func(tx *Txn) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &Txn{
		l:       l,
		pending: make(map[balanceKey]uint64),
		closed:  make(map[balanceKey]bool),
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.commit()
}

// Transfer moves amount of mint between accounts as a single transaction
func (l *Ledger) Transfer(from, to, mint AccountID, amount uint64) error {
	return l.Apply(func(tx *Txn) error {
		return tx.Transfer(from, to, mint, amount)
	})
}

// MintTo credits freshly minted tokens; caller must be the mint authority
func (l *Ledger) MintTo(mint, to AccountID, amount uint64, caller AccountID) error {
	return l.Apply(func(tx *Txn) error {
		return tx.MintTo(mint, to, amount, caller)
	})
}

// Txn is a staged view of the ledger used inside Apply. Writes land in the
// pending set and only reach the balance book on commit.
type Txn struct {
	l       *Ledger
	pending map[balanceKey]uint64
	closed  map[balanceKey]bool
}

func (tx *Txn) balance(k balanceKey) (uint64, bool) {
	if tx.closed[k] {
		return 0, false
	}
	if v, ok := tx.pending[k]; ok {
		return v, true
	}
	v, ok := tx.l.balances[k]
	return v, ok
}

// Balance returns the staged balance of (account, mint)
func (tx *Txn) Balance(account, mint AccountID) uint64 {
	v, _ := tx.balance(balanceKey{account, mint})
	return v
}

// Transfer moves amount of mint from one account to another
func (tx *Txn) Transfer(from, to, mint AccountID, amount uint64) error {
	if _, ok := tx.l.mints[mint]; !ok {
		return fmt.Errorf("mint %s: %w", mint.Hex(), ErrUnknownMint)
	}

	fromKey := balanceKey{from, mint}
	have, _ := tx.balance(fromKey)
	if have < amount {
		return fmt.Errorf("account %s: have %d, need %d: %w", from.Hex(), have, amount, ErrInsufficientFunds)
	}

	toKey := balanceKey{to, mint}
	toBal, _ := tx.balance(toKey)

	tx.pending[fromKey] = have - amount
	tx.pending[toKey] = toBal + amount
	delete(tx.closed, toKey)
	return nil
}

// MintTo credits amount of newly minted mint to an account
func (tx *Txn) MintTo(mint, to AccountID, amount uint64, caller AccountID) error {
	info, ok := tx.l.mints[mint]
	if !ok {
		return fmt.Errorf("mint %s: %w", mint.Hex(), ErrUnknownMint)
	}
	if info.Authority != caller {
		return fmt.Errorf("mint %s: %w", mint.Hex(), ErrNotMintAuthority)
	}

	k := balanceKey{to, mint}
	bal, _ := tx.balance(k)
	tx.pending[k] = bal + amount
	delete(tx.closed, k)
	return nil
}

// CloseAccount removes a zero-balance (account, mint) sub-account
func (tx *Txn) CloseAccount(account, mint AccountID) error {
	k := balanceKey{account, mint}
	if bal, _ := tx.balance(k); bal != 0 {
		return fmt.Errorf("account %s: %w", account.Hex(), ErrNonZeroBalance)
	}
	delete(tx.pending, k)
	tx.closed[k] = true
	return nil
}

// commit applies the staged writes; caller holds the ledger lock
func (tx *Txn) commit() error {
	for k, v := range tx.pending {
		tx.l.balances[k] = v
	}
	for k := range tx.closed {
		delete(tx.l.balances, k)
	}

	if tx.l.store == nil {
		return nil
	}
	for k, v := range tx.pending {
		if err := tx.l.store.SaveBalance(k.Account, k.Mint, v); err != nil {
			return err
		}
	}
	for k := range tx.closed {
		if err := tx.l.store.DeleteBalance(k.Account, k.Mint); err != nil {
			return err
		}
	}
	return nil
}
