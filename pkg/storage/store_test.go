package storage

import (
	"testing"

	"github.com/tickerlabs/ticksettle/pkg/crypto"
	"github.com/tickerlabs/ticksettle/pkg/engine"
	"github.com/tickerlabs/ticksettle/pkg/ledger"
	"github.com/tickerlabs/ticksettle/pkg/oracle"
)

func newTestStore(t *testing.T) (*PebbleStore, string) {
	t.Helper()
	path := t.TempDir() + "/engine.db"
	s, err := NewPebbleStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { closeQuietly(s) })
	return s, path
}

// closeQuietly closes a store in t.Cleanup; pebble panics on double Close,
// and a store handed to reopen has already been closed.
func closeQuietly(s *PebbleStore) {
	defer func() { _ = recover() }()
	_ = s.Close()
}

func reopen(t *testing.T, s *PebbleStore, path string) *PebbleStore {
	t.Helper()
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	r, err := NewPebbleStore(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	t.Cleanup(func() { closeQuietly(r) })
	return r
}

func testOrder(id uint64) *engine.Order {
	return &engine.Order{
		ID:          id,
		Maker:       ledger.Derive("test", []byte("maker")),
		Side:        oracle.Buy,
		Type:        oracle.Limit,
		TickerMint:  ledger.Derive("mint", []byte("XYZ")),
		Amount:      10,
		PaymentMint: ledger.Derive("mint", []byte("USD")),
		Price:       5,
		Fee:         5,
		Status:      engine.StatusCreated,
		ExpiresAt:   1_700_000_060,
		CreatedAt:   1_700_000_000,
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	s, path := newTestStore(t)

	if reg, err := s.LoadRegistry(); err != nil || reg != nil {
		t.Fatalf("empty store: reg=%v err=%v, want nil, nil", reg, err)
	}

	seed := make([]byte, 32)
	seed[0] = 7
	want := engine.Registry{
		Authority: ledger.Derive("test", []byte("authority")),
		Executor:  ledger.Derive("test", []byte("executor")),
		Oracle:    crypto.OracleKeyFromSeed(seed).Public(),
	}
	if err := s.SaveRegistry(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	s = reopen(t, s, path)
	got, err := s.LoadRegistry()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || *got != want {
		t.Errorf("registry mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestTickerRoundTrip(t *testing.T) {
	s, path := newTestStore(t)

	want := []engine.Ticker{
		{Symbol: "AAA", Mint: engine.MintAddress("AAA"), Decimals: 0},
		{Symbol: "XYZ", Mint: engine.MintAddress("XYZ"), Decimals: 6},
	}
	for _, tk := range want {
		if err := s.SaveTicker(tk); err != nil {
			t.Fatalf("save %s: %v", tk.Symbol, err)
		}
	}

	s = reopen(t, s, path)
	got, err := s.LoadTickers()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d tickers, want %d", len(got), len(want))
	}
	bySym := make(map[string]engine.Ticker)
	for _, tk := range got {
		bySym[tk.Symbol] = tk
	}
	for _, tk := range want {
		if bySym[tk.Symbol] != tk {
			t.Errorf("ticker %s mismatch: got %+v", tk.Symbol, bySym[tk.Symbol])
		}
	}
}

func TestOrderRoundTrip(t *testing.T) {
	s, path := newTestStore(t)

	o1 := testOrder(1)
	o2 := testOrder(2)
	o2.Status = engine.StatusProcessing
	for _, o := range []*engine.Order{o1, o2} {
		if err := s.SaveOrder(o); err != nil {
			t.Fatalf("save order %d: %v", o.ID, err)
		}
	}
	if err := s.DeleteOrder(o1.Key()); err != nil {
		t.Fatalf("delete: %v", err)
	}

	s = reopen(t, s, path)
	got, err := s.LoadOrders()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d orders, want 1", len(got))
	}
	if *got[0] != *o2 {
		t.Errorf("order mismatch:\n got %+v\nwant %+v", got[0], o2)
	}
}

func TestConsumedRoundTrip(t *testing.T) {
	s, path := newTestStore(t)

	maker := ledger.Derive("test", []byte("maker"))
	keys := []engine.OrderKey{
		{Maker: maker, ID: 1},
		{Maker: maker, ID: 2},
		{Maker: ledger.Derive("test", []byte("other")), ID: 1},
	}
	for _, k := range keys {
		if err := s.MarkConsumed(k); err != nil {
			t.Fatalf("mark consumed: %v", err)
		}
	}

	s = reopen(t, s, path)
	got, err := s.LoadConsumed()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != len(keys) {
		t.Fatalf("got %d consumed keys, want %d", len(got), len(keys))
	}
	seen := make(map[engine.OrderKey]bool)
	for _, k := range got {
		seen[k] = true
	}
	for _, k := range keys {
		if !seen[k] {
			t.Errorf("missing consumed key %+v", k)
		}
	}
}

// Consumed ids and live orders must not bleed into each other's scans even
// though they share the same key suffix.
func TestPrefixIsolation(t *testing.T) {
	s, _ := newTestStore(t)

	o := testOrder(1)
	if err := s.SaveOrder(o); err != nil {
		t.Fatalf("save order: %v", err)
	}
	if err := s.MarkConsumed(o.Key()); err != nil {
		t.Fatalf("mark consumed: %v", err)
	}
	if err := s.DeleteOrder(o.Key()); err != nil {
		t.Fatalf("delete order: %v", err)
	}

	orders, err := s.LoadOrders()
	if err != nil {
		t.Fatalf("load orders: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("got %d orders, want 0", len(orders))
	}

	consumed, err := s.LoadConsumed()
	if err != nil {
		t.Fatalf("load consumed: %v", err)
	}
	if len(consumed) != 1 {
		t.Errorf("got %d consumed keys, want 1", len(consumed))
	}
}
