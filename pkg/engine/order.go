package engine

import (
	"encoding/binary"

	"github.com/tickerlabs/ticksettle/pkg/ledger"
	"github.com/tickerlabs/ticksettle/pkg/oracle"
)

// OrderStatus is the live state of an order. Executed and Cancelled are
// terminal and keep no record: the order is destroyed on that transition.
type OrderStatus int8

const (
	StatusCreated OrderStatus = iota
	StatusProcessing
)

func (s OrderStatus) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// OrderKey identifies an order: ids are only unique per maker
type OrderKey struct {
	Maker ledger.AccountID
	ID    uint64
}

// Order is one settlement order awaiting execution or cancellation
type Order struct {
	ID    uint64           `json:"id"`
	Maker ledger.AccountID `json:"maker"`

	Side oracle.Side      `json:"side"`
	Type oracle.OrderType `json:"orderType"`

	TickerMint ledger.AccountID `json:"tickerMint"`
	Amount     uint64           `json:"amount"`

	PaymentMint ledger.AccountID `json:"paymentMint"`
	Price       uint64           `json:"price"`
	Fee         uint64           `json:"fee"`

	Status    OrderStatus `json:"status"`
	ExpiresAt uint64      `json:"expiresAt"`
	CreatedAt int64       `json:"createdAt"`
}

// Key returns the order's (maker, id) key
func (o *Order) Key() OrderKey { return OrderKey{Maker: o.Maker, ID: o.ID} }

// lockedMint is the mint held in the order's escrow: payment for a buy,
// ticker for a sell
func (o *Order) lockedMint() ledger.AccountID {
	if o.Side == oracle.Buy {
		return o.PaymentMint
	}
	return o.TickerMint
}

// lockedAmount recomputes the escrow balance from the order's own fields.
// The escrow holds exactly this between creation and its one resolving
// transition.
func (o *Order) lockedAmount() (uint64, error) {
	if o.Side == oracle.Buy {
		return totalCost(o.Amount, o.Price, o.Fee)
	}
	return o.Amount, nil
}

// totalCost computes amount*price+fee with overflow checks
func totalCost(amount, price, fee uint64) (uint64, error) {
	notional := amount * price
	if amount != 0 && notional/amount != price {
		return 0, ErrOverflow
	}
	total := notional + fee
	if total < notional {
		return 0, ErrOverflow
	}
	return total, nil
}

// EscrowAddress derives the single-use custody account for an order. Pure
// function of (maker, id, locked mint): any verifier can re-derive it with
// no extra state.
func EscrowAddress(maker ledger.AccountID, id uint64, lockedMint ledger.AccountID) ledger.AccountID {
	var idBytes [8]byte
	binary.LittleEndian.PutUint64(idBytes[:], id)
	return ledger.Derive("escrow", maker[:], idBytes[:], lockedMint[:])
}

// PoolAddress derives the long-lived settlement pool for a trading pair
func PoolAddress(tickerMint, paymentMint ledger.AccountID) ledger.AccountID {
	return ledger.Derive("pool", tickerMint[:], paymentMint[:])
}

// MintAddress derives a ticker's token mint from its symbol
func MintAddress(symbol string) ledger.AccountID {
	return ledger.Derive("mint", []byte(symbol))
}

// RegistryAddress derives the registry's own account. It is the mint
// authority for every ticker mint, so authority transfers never strand
// minting.
func RegistryAddress() ledger.AccountID {
	return ledger.Derive("registry")
}
