package engine

import "errors"

// Rejection reasons surfaced to callers. Every validation failure aborts the
// whole transition atomically; nothing is retried internally.
var (
	ErrInvalidSignature   = errors.New("invalid oracle signature")
	ErrExpired            = errors.New("payload has expired")
	ErrDuplicateOrder     = errors.New("order with same id already exists")
	ErrInvalidState       = errors.New("invalid order state for transition")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrAlreadyInitialized = errors.New("registry already initialized")
	ErrNotFound           = errors.New("not found")

	ErrNotInitialized   = errors.New("registry not initialized")
	ErrInvalidOracle    = errors.New("oracle public key is not set")
	ErrInvalidAuthority = errors.New("new authority must not be zero")
	ErrDuplicateTicker  = errors.New("ticker already exists")
	ErrSymbolTooLong    = errors.New("ticker symbol too long")
	ErrUnknownMint      = errors.New("unknown mint")
	ErrOverflow         = errors.New("math overflow")
)
