package engine

import (
	"errors"
	"fmt"

	"github.com/tickerlabs/ticksettle/pkg/crypto"
	"github.com/tickerlabs/ticksettle/pkg/ledger"
)

// MaxSymbolLen bounds ticker symbols to a short fixed-length string
const MaxSymbolLen = 8

// Registry holds the administrative authority, its delegated executor, and
// the oracle key trusted for price attestations. Singleton per deployment.
type Registry struct {
	Authority ledger.AccountID `json:"authority"`
	Executor  ledger.AccountID `json:"executor"`
	Oracle    crypto.PubKey    `json:"oracle"`
}

// Ticker maps a symbol to its deterministic token mint. Immutable once
// created.
type Ticker struct {
	Symbol   string           `json:"symbol"`
	Mint     ledger.AccountID `json:"mint"`
	Decimals uint8            `json:"decimals"`
}

// Init creates the registry. Fails if one already exists for this
// deployment.
func (e *Engine) Init(authority ledger.AccountID, oraclePub crypto.PubKey) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.registry != nil {
		return ErrAlreadyInitialized
	}
	if authority.IsZero() {
		return ErrInvalidAuthority
	}

	e.registry = &Registry{Authority: authority, Oracle: oraclePub}
	if e.store != nil {
		if err := e.store.SaveRegistry(*e.registry); err != nil {
			return err
		}
	}

	e.log.Infow("registry_initialized", "authority", authority.Hex(), "oracle", oraclePub.Hex())
	return nil
}

// Registry returns a copy of the registry
func (e *Engine) Registry() (Registry, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.registry == nil {
		return Registry{}, false
	}
	return *e.registry, true
}

// SetOracle overwrites the trusted oracle key, visible to all subsequent
// order creations. Authority only.
func (e *Engine) SetOracle(caller ledger.AccountID, newOracle crypto.PubKey) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	if newOracle.IsZero() {
		return ErrInvalidOracle
	}

	e.registry.Oracle = newOracle
	if e.store != nil {
		if err := e.store.SaveRegistry(*e.registry); err != nil {
			return err
		}
	}

	e.log.Infow("oracle_updated", "oracle", newOracle.Hex())
	return nil
}

// TransferAuthority hands the registry to a new authority, effective
// immediately
func (e *Engine) TransferAuthority(caller, newAuthority ledger.AccountID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	if newAuthority.IsZero() {
		return ErrInvalidAuthority
	}

	e.registry.Authority = newAuthority
	if e.store != nil {
		if err := e.store.SaveRegistry(*e.registry); err != nil {
			return err
		}
	}

	e.log.Infow("authority_transferred", "authority", newAuthority.Hex())
	return nil
}

// SetExecutor delegates process/execute rights. The zero id revokes the
// delegation.
func (e *Engine) SetExecutor(caller, executor ledger.AccountID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAuthority(caller); err != nil {
		return err
	}

	e.registry.Executor = executor
	if e.store != nil {
		if err := e.store.SaveRegistry(*e.registry); err != nil {
			return err
		}
	}

	e.log.Infow("executor_updated", "executor", executor.Hex())
	return nil
}

// CreateTicker registers a symbol and creates its token mint at the derived
// address, with the registry authority as mint authority. Authority only;
// one ticker per symbol, immutable thereafter.
func (e *Engine) CreateTicker(caller ledger.AccountID, symbol string, decimals uint8) (Ticker, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAuthority(caller); err != nil {
		return Ticker{}, err
	}
	if len(symbol) == 0 || len(symbol) > MaxSymbolLen {
		return Ticker{}, fmt.Errorf("symbol %q: %w", symbol, ErrSymbolTooLong)
	}
	if _, exists := e.tickers[symbol]; exists {
		return Ticker{}, fmt.Errorf("symbol %q: %w", symbol, ErrDuplicateTicker)
	}

	mint := MintAddress(symbol)
	if err := e.l.CreateMint(mint, decimals, RegistryAddress()); err != nil {
		if errors.Is(err, ledger.ErrMintExists) {
			return Ticker{}, fmt.Errorf("symbol %q: %w", symbol, ErrDuplicateTicker)
		}
		return Ticker{}, err
	}

	t := Ticker{Symbol: symbol, Mint: mint, Decimals: decimals}
	e.tickers[symbol] = t
	if e.store != nil {
		if err := e.store.SaveTicker(t); err != nil {
			return Ticker{}, err
		}
	}

	e.log.Infow("ticker_created", "symbol", symbol, "mint", mint.Hex(), "decimals", decimals)
	return t, nil
}

// Ticker looks up a symbol's directory entry
func (e *Engine) Ticker(symbol string) (Ticker, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, ok := e.tickers[symbol]
	return t, ok
}

// Tickers returns all directory entries
func (e *Engine) Tickers() []Ticker {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Ticker, 0, len(e.tickers))
	for _, t := range e.tickers {
		out = append(out, t)
	}
	return out
}

// requireAuthority gates administrative operations to the current authority
func (e *Engine) requireAuthority(caller ledger.AccountID) error {
	if e.registry == nil {
		return ErrNotInitialized
	}
	if caller != e.registry.Authority {
		return fmt.Errorf("caller %s: %w", caller.Hex(), ErrUnauthorized)
	}
	return nil
}
