// Package engine is the settlement core: the order state machine, escrow and
// pool accounting, and the registry gating privileged operations. Every
// public operation runs as one indivisible transition — all validation
// precedes any mutation, and a single mutex serializes transitions the way
// the host ledger serializes transactions on the same accounts.
package engine

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tickerlabs/ticksettle/pkg/crypto"
	"github.com/tickerlabs/ticksettle/pkg/ledger"
	"github.com/tickerlabs/ticksettle/pkg/oracle"
	"github.com/tickerlabs/ticksettle/pkg/util"
)

// Store persists engine state across restarts. Nil is a valid store for
// in-memory engines (tests, attest CLI).
type Store interface {
	SaveRegistry(r Registry) error
	LoadRegistry() (*Registry, error)

	SaveTicker(t Ticker) error
	LoadTickers() ([]Ticker, error)

	SaveOrder(o *Order) error
	DeleteOrder(key OrderKey) error
	LoadOrders() ([]*Order, error)

	MarkConsumed(key OrderKey) error
	LoadConsumed() ([]OrderKey, error)
}

// Engine ties registry, ticker directory, escrow and pool accounting into
// the order state machine. It is an explicit context object: no package
// globals, explicit init, one engine per deployment.
type Engine struct {
	// mu serializes state transitions: two transitions racing on the same
	// order commit one at a time, first-committed-wins, the loser observing
	// ErrInvalidState. This is the engine's only concurrency guard.
	mu sync.RWMutex

	l     *ledger.Ledger
	clock util.Clock
	log   *zap.SugaredLogger
	emit  Emitter
	store Store

	registry *Registry
	tickers  map[string]Ticker
	orders   map[OrderKey]*Order
	consumed map[OrderKey]struct{}
}

// New creates an engine over the given ledger, reloading registry, tickers,
// orders and consumed ids from store when one is supplied
func New(l *ledger.Ledger, clock util.Clock, log *zap.SugaredLogger, emit Emitter, store Store) (*Engine, error) {
	e := &Engine{
		l:        l,
		clock:    clock,
		log:      log,
		emit:     emit,
		store:    store,
		tickers:  make(map[string]Ticker),
		orders:   make(map[OrderKey]*Order),
		consumed: make(map[OrderKey]struct{}),
	}
	if e.log == nil {
		e.log = zap.NewNop().Sugar()
	}

	if store != nil {
		reg, err := store.LoadRegistry()
		if err != nil {
			return nil, fmt.Errorf("failed to load registry: %w", err)
		}
		e.registry = reg

		tickers, err := store.LoadTickers()
		if err != nil {
			return nil, fmt.Errorf("failed to load tickers: %w", err)
		}
		for _, t := range tickers {
			e.tickers[t.Symbol] = t
		}

		orders, err := store.LoadOrders()
		if err != nil {
			return nil, fmt.Errorf("failed to load orders: %w", err)
		}
		for _, o := range orders {
			e.orders[o.Key()] = o
		}

		consumed, err := store.LoadConsumed()
		if err != nil {
			return nil, fmt.Errorf("failed to load consumed ids: %w", err)
		}
		for _, k := range consumed {
			e.consumed[k] = struct{}{}
		}
	}

	return e, nil
}

// Ledger returns the underlying ledger (balance queries)
func (e *Engine) Ledger() *ledger.Ledger { return e.l }

func (e *Engine) emitEvent(ev Event) {
	if e.emit != nil {
		e.emit.Emit(ev)
	}
}

// CreateOrder verifies an oracle attestation and locks the maker's funds in
// a fresh escrow. Buy locks amount*price+fee of the payment mint, sell locks
// amount of the ticker mint. The (maker, id) pair is consumed forever, even
// after the order resolves.
func (e *Engine) CreateOrder(maker ledger.AccountID, p oracle.Payload, digest [crypto.DigestSize]byte, sig []byte) (*Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	reg := e.registry
	if reg == nil {
		return nil, ErrNotInitialized
	}
	if reg.Oracle.IsZero() {
		return nil, ErrInvalidOracle
	}

	// Digest must bind the submitted payload, and the signature must come
	// from the registry's oracle. A payload re-signed with any other key is
	// rejected here regardless of its contents.
	if p.Digest() != digest {
		return nil, fmt.Errorf("digest does not match payload: %w", ErrInvalidSignature)
	}
	if !crypto.Verify(reg.Oracle, digest[:], sig) {
		return nil, ErrInvalidSignature
	}

	now := e.clock.Now().Unix()
	if p.ExpiresAt <= uint64(now) {
		return nil, fmt.Errorf("payload expired at %d, now %d: %w", p.ExpiresAt, now, ErrExpired)
	}

	key := OrderKey{Maker: maker, ID: p.ID}
	if _, dup := e.consumed[key]; dup {
		return nil, fmt.Errorf("order %d for maker %s: %w", p.ID, maker.Hex(), ErrDuplicateOrder)
	}

	if _, ok := e.l.Mint(p.TickerMint); !ok {
		return nil, fmt.Errorf("ticker mint %s: %w", p.TickerMint.Hex(), ErrUnknownMint)
	}
	if _, ok := e.l.Mint(p.PaymentMint); !ok {
		return nil, fmt.Errorf("payment mint %s: %w", p.PaymentMint.Hex(), ErrUnknownMint)
	}

	order := &Order{
		ID:          p.ID,
		Maker:       maker,
		Side:        p.Side,
		Type:        p.Type,
		TickerMint:  p.TickerMint,
		Amount:      p.Amount,
		PaymentMint: p.PaymentMint,
		Price:       p.Price,
		Fee:         p.Fee,
		Status:      StatusCreated,
		ExpiresAt:   p.ExpiresAt,
		CreatedAt:   now,
	}

	lockAmount, err := order.lockedAmount()
	if err != nil {
		return nil, err
	}
	lockMint := order.lockedMint()
	escrow := EscrowAddress(maker, order.ID, lockMint)

	if err := e.l.Transfer(maker, escrow, lockMint, lockAmount); err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return nil, fmt.Errorf("escrow lock of %d: %w", lockAmount, ErrInsufficientFunds)
		}
		return nil, err
	}

	e.orders[key] = order
	e.consumed[key] = struct{}{}
	if e.store != nil {
		if err := e.store.SaveOrder(order); err != nil {
			return nil, err
		}
		if err := e.store.MarkConsumed(key); err != nil {
			return nil, err
		}
	}

	e.log.Infow("order_created",
		"id", order.ID, "maker", maker.Hex(), "side", order.Side.String(),
		"amount", order.Amount, "price", order.Price, "fee", order.Fee,
		"locked", lockAmount)

	e.emitEvent(OrderCreated{
		ID:          order.ID,
		Maker:       order.Maker,
		Side:        order.Side,
		TickerMint:  order.TickerMint,
		PaymentMint: order.PaymentMint,
		Amount:      order.Amount,
		Price:       order.Price,
		Fee:         order.Fee,
	})

	cp := *order
	return &cp, nil
}

// ProcessOrder fences an order against cancellation while off-ledger
// execution is being arranged. Privileged: authority or delegated executor.
func (e *Engine) ProcessOrder(caller, maker ledger.AccountID, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireExecutor(caller); err != nil {
		return err
	}

	order, ok := e.orders[OrderKey{Maker: maker, ID: id}]
	if !ok {
		return fmt.Errorf("order %d for maker %s: %w", id, maker.Hex(), ErrNotFound)
	}
	if order.Status != StatusCreated {
		return fmt.Errorf("order %d is %s: %w", id, order.Status, ErrInvalidState)
	}

	order.Status = StatusProcessing
	if e.store != nil {
		if err := e.store.SaveOrder(order); err != nil {
			return err
		}
	}

	e.log.Infow("order_processing", "id", id, "maker", maker.Hex())
	e.emitEvent(OrderProcessing{ID: id, Maker: maker, Timestamp: e.clock.Now().Unix()})
	return nil
}

// ExecuteOrder settles a Processing order against the trading pair's pool.
// spent is the externally realized notional and may differ from the quoted
// price. proofRef is recorded and emitted verbatim, never interpreted.
//
// Buy: spent+fee of escrowed payment moves to the pool, any remainder
// refunds the maker, and amount of ticker tokens is minted to the maker.
// Sell: the escrowed amount of ticker moves to the pool and the pool pays
// the maker spent of the payment mint, retaining the fee.
func (e *Engine) ExecuteOrder(caller, maker ledger.AccountID, id uint64, spent uint64, proofRef oracle.ProofRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireExecutor(caller); err != nil {
		return err
	}

	key := OrderKey{Maker: maker, ID: id}
	order, ok := e.orders[key]
	if !ok {
		return fmt.Errorf("order %d for maker %s: %w", id, maker.Hex(), ErrNotFound)
	}
	if order.Status != StatusProcessing {
		return fmt.Errorf("order %d is %s: %w", id, order.Status, ErrInvalidState)
	}

	escrow := EscrowAddress(maker, id, order.lockedMint())
	pool := PoolAddress(order.TickerMint, order.PaymentMint)

	err := e.l.Apply(func(tx *ledger.Txn) error {
		switch order.Side {
		case oracle.Buy:
			outflow, err := addChecked(spent, order.Fee)
			if err != nil {
				return err
			}
			locked := tx.Balance(escrow, order.PaymentMint)
			if outflow > locked {
				return fmt.Errorf("spent+fee %d exceeds escrow %d: %w", outflow, locked, ErrInsufficientFunds)
			}
			if err := tx.Transfer(escrow, pool, order.PaymentMint, outflow); err != nil {
				return err
			}
			if rem := locked - outflow; rem > 0 {
				if err := tx.Transfer(escrow, maker, order.PaymentMint, rem); err != nil {
					return err
				}
			}
			if err := tx.MintTo(order.TickerMint, maker, order.Amount, RegistryAddress()); err != nil {
				return err
			}
			return tx.CloseAccount(escrow, order.PaymentMint)

		case oracle.Sell:
			if err := tx.Transfer(escrow, pool, order.TickerMint, order.Amount); err != nil {
				return err
			}
			if err := tx.Transfer(pool, maker, order.PaymentMint, spent); err != nil {
				if errors.Is(err, ledger.ErrInsufficientFunds) {
					return fmt.Errorf("pool payout of %d: %w", spent, ErrInsufficientFunds)
				}
				return err
			}
			return tx.CloseAccount(escrow, order.TickerMint)

		default:
			return fmt.Errorf("order %d has invalid side: %w", id, ErrInvalidState)
		}
	})
	if err != nil {
		return err
	}

	delete(e.orders, key)
	if e.store != nil {
		if err := e.store.DeleteOrder(key); err != nil {
			return err
		}
	}

	now := e.clock.Now().Unix()
	e.log.Infow("order_executed",
		"id", id, "maker", maker.Hex(), "side", order.Side.String(),
		"spent", spent, "fee", order.Fee, "proof", proofRef.Hex())

	e.emitEvent(OrderExecuted{
		ID:          order.ID,
		Maker:       order.Maker,
		Side:        order.Side,
		TickerMint:  order.TickerMint,
		PaymentMint: order.PaymentMint,
		Amount:      order.Amount,
		Price:       order.Price,
		Fee:         order.Fee,
		ProofRef:    proofRef,
		Timestamp:   now,
	})
	return nil
}

// CancelOrder refunds the escrow in full and destroys the order. Maker only,
// and only before processing: a Processing order is fenced.
func (e *Engine) CancelOrder(caller, maker ledger.AccountID, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != maker {
		return fmt.Errorf("caller %s is not the maker: %w", caller.Hex(), ErrUnauthorized)
	}

	key := OrderKey{Maker: maker, ID: id}
	order, ok := e.orders[key]
	if !ok {
		return fmt.Errorf("order %d for maker %s: %w", id, maker.Hex(), ErrNotFound)
	}
	if order.Status != StatusCreated {
		return fmt.Errorf("order %d is %s: %w", id, order.Status, ErrInvalidState)
	}

	refund, err := order.lockedAmount()
	if err != nil {
		return err
	}
	lockMint := order.lockedMint()
	escrow := EscrowAddress(maker, id, lockMint)

	err = e.l.Apply(func(tx *ledger.Txn) error {
		if err := tx.Transfer(escrow, maker, lockMint, refund); err != nil {
			return err
		}
		return tx.CloseAccount(escrow, lockMint)
	})
	if err != nil {
		return err
	}

	delete(e.orders, key)
	if e.store != nil {
		if err := e.store.DeleteOrder(key); err != nil {
			return err
		}
	}

	e.log.Infow("order_cancelled", "id", id, "maker", maker.Hex(), "refund", refund)
	e.emitEvent(OrderCancelled{ID: id, Maker: maker, Timestamp: e.clock.Now().Unix()})
	return nil
}

// Order returns a copy of a live order
func (e *Engine) Order(maker ledger.AccountID, id uint64) (Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	o, ok := e.orders[OrderKey{Maker: maker, ID: id}]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Orders returns copies of all live orders for a maker
func (e *Engine) Orders(maker ledger.AccountID) []Order {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []Order
	for _, o := range e.orders {
		if o.Maker == maker {
			out = append(out, *o)
		}
	}
	return out
}

// EscrowBalance returns the balance locked for a live order
func (e *Engine) EscrowBalance(maker ledger.AccountID, id uint64) (uint64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	o, ok := e.orders[OrderKey{Maker: maker, ID: id}]
	if !ok {
		return 0, false
	}
	escrow := EscrowAddress(maker, id, o.lockedMint())
	return e.l.Balance(escrow, o.lockedMint()), true
}

// PoolBalances returns a pair pool's holdings in both of its mints
func (e *Engine) PoolBalances(tickerMint, paymentMint ledger.AccountID) (tickerBal, paymentBal uint64) {
	pool := PoolAddress(tickerMint, paymentMint)
	return e.l.Balance(pool, tickerMint), e.l.Balance(pool, paymentMint)
}

// requireExecutor gates privileged transitions: the registry authority or
// its delegated executor
func (e *Engine) requireExecutor(caller ledger.AccountID) error {
	reg := e.registry
	if reg == nil {
		return ErrNotInitialized
	}
	if caller != reg.Authority && (reg.Executor.IsZero() || caller != reg.Executor) {
		return fmt.Errorf("caller %s: %w", caller.Hex(), ErrUnauthorized)
	}
	return nil
}

func addChecked(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}
