package ledger

import (
	"errors"
	"testing"
)

var (
	treasury = Derive("test", []byte("treasury"))
	alice    = Derive("test", []byte("alice"))
	bob      = Derive("test", []byte("bob"))
	usd      = Derive("mint", []byte("USD"))
)

func newFundedLedger(t *testing.T) *Ledger {
	l := NewLedger()
	if err := l.CreateMint(usd, 2, treasury); err != nil {
		t.Fatalf("create mint: %v", err)
	}
	if err := l.MintTo(usd, alice, 1000, treasury); err != nil {
		t.Fatalf("mint to alice: %v", err)
	}
	return l
}

func TestTransfer(t *testing.T) {
	l := newFundedLedger(t)

	if err := l.Transfer(alice, bob, usd, 400); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if got := l.Balance(alice, usd); got != 600 {
		t.Errorf("alice = %d, want 600", got)
	}
	if got := l.Balance(bob, usd); got != 400 {
		t.Errorf("bob = %d, want 400", got)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	l := newFundedLedger(t)

	err := l.Transfer(alice, bob, usd, 1001)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// Nothing moved
	if got := l.Balance(alice, usd); got != 1000 {
		t.Errorf("alice = %d, want 1000", got)
	}
	if got := l.Balance(bob, usd); got != 0 {
		t.Errorf("bob = %d, want 0", got)
	}
}

func TestTransferUnknownMint(t *testing.T) {
	l := newFundedLedger(t)

	bogus := Derive("mint", []byte("BOGUS"))
	if err := l.Transfer(alice, bob, bogus, 1); !errors.Is(err, ErrUnknownMint) {
		t.Fatalf("expected ErrUnknownMint, got %v", err)
	}
}

func TestMintToRequiresAuthority(t *testing.T) {
	l := newFundedLedger(t)

	if err := l.MintTo(usd, bob, 100, bob); !errors.Is(err, ErrNotMintAuthority) {
		t.Fatalf("expected ErrNotMintAuthority, got %v", err)
	}
	if got := l.Balance(bob, usd); got != 0 {
		t.Errorf("bob = %d, want 0", got)
	}
}

func TestCreateMintDuplicate(t *testing.T) {
	l := newFundedLedger(t)

	if err := l.CreateMint(usd, 2, treasury); !errors.Is(err, ErrMintExists) {
		t.Fatalf("expected ErrMintExists, got %v", err)
	}
}

// A failing step anywhere in Apply must leave the ledger untouched, even
// after earlier steps in the same transaction succeeded.
func TestApplyAtomicity(t *testing.T) {
	l := newFundedLedger(t)

	err := l.Apply(func(tx *Txn) error {
		if err := tx.Transfer(alice, bob, usd, 500); err != nil {
			return err
		}
		// Second leg overdraws what alice has left
		return tx.Transfer(alice, bob, usd, 600)
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	if got := l.Balance(alice, usd); got != 1000 {
		t.Errorf("alice = %d, want 1000 (rolled back)", got)
	}
	if got := l.Balance(bob, usd); got != 0 {
		t.Errorf("bob = %d, want 0 (rolled back)", got)
	}
}

// Reads inside a transaction must see writes staged earlier in the same
// transaction.
func TestApplyReadsOwnWrites(t *testing.T) {
	l := newFundedLedger(t)

	err := l.Apply(func(tx *Txn) error {
		if err := tx.Transfer(alice, bob, usd, 1000); err != nil {
			return err
		}
		if got := tx.Balance(bob, usd); got != 1000 {
			t.Errorf("staged bob = %d, want 1000", got)
		}
		// bob can spend funds received within the transaction
		return tx.Transfer(bob, alice, usd, 250)
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if got := l.Balance(alice, usd); got != 250 {
		t.Errorf("alice = %d, want 250", got)
	}
	if got := l.Balance(bob, usd); got != 750 {
		t.Errorf("bob = %d, want 750", got)
	}
}

func TestCloseAccount(t *testing.T) {
	l := newFundedLedger(t)

	err := l.Apply(func(tx *Txn) error {
		if err := tx.Transfer(alice, bob, usd, 1000); err != nil {
			return err
		}
		return tx.CloseAccount(alice, usd)
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if l.HasAccount(alice, usd) {
		t.Error("alice's sub-account should be closed")
	}
	if got := l.Balance(alice, usd); got != 0 {
		t.Errorf("alice = %d, want 0", got)
	}
}

func TestCloseAccountNonZero(t *testing.T) {
	l := newFundedLedger(t)

	err := l.Apply(func(tx *Txn) error {
		return tx.CloseAccount(alice, usd)
	})
	if !errors.Is(err, ErrNonZeroBalance) {
		t.Fatalf("expected ErrNonZeroBalance, got %v", err)
	}
	if !l.HasAccount(alice, usd) {
		t.Error("alice's sub-account should survive the failed close")
	}
}

// A credit landing on a closed sub-account within the same transaction
// reopens it.
func TestReopenClosedAccount(t *testing.T) {
	l := newFundedLedger(t)

	err := l.Apply(func(tx *Txn) error {
		if err := tx.Transfer(alice, bob, usd, 1000); err != nil {
			return err
		}
		if err := tx.CloseAccount(alice, usd); err != nil {
			return err
		}
		return tx.Transfer(bob, alice, usd, 10)
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if !l.HasAccount(alice, usd) {
		t.Error("alice's sub-account should be open again")
	}
	if got := l.Balance(alice, usd); got != 10 {
		t.Errorf("alice = %d, want 10", got)
	}
}

func TestLedgerPersistence(t *testing.T) {
	dbPath := t.TempDir() + "/ledger.db"

	l, err := OpenLedger(dbPath)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	if err := l.CreateMint(usd, 2, treasury); err != nil {
		t.Fatalf("create mint: %v", err)
	}
	if err := l.MintTo(usd, alice, 777, treasury); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Transfer(alice, bob, usd, 77); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenLedger(dbPath)
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	defer reopened.Close()

	if got := reopened.Balance(alice, usd); got != 700 {
		t.Errorf("alice = %d, want 700 after reload", got)
	}
	if got := reopened.Balance(bob, usd); got != 77 {
		t.Errorf("bob = %d, want 77 after reload", got)
	}
	info, ok := reopened.Mint(usd)
	if !ok {
		t.Fatal("mint not reloaded")
	}
	if info.Decimals != 2 || info.Authority != treasury {
		t.Errorf("mint info mismatch after reload: %+v", info)
	}
}
