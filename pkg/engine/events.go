package engine

import (
	"github.com/tickerlabs/ticksettle/pkg/ledger"
	"github.com/tickerlabs/ticksettle/pkg/oracle"
)

// Event is a settlement event consumed by external indexers and tests
type Event interface {
	EventName() string
}

// Emitter receives engine events. The API server's websocket hub implements
// this; tests use a recording emitter.
type Emitter interface {
	Emit(e Event)
}

type OrderCreated struct {
	ID          uint64           `json:"id"`
	Maker       ledger.AccountID `json:"maker"`
	Side        oracle.Side      `json:"side"`
	TickerMint  ledger.AccountID `json:"tickerMint"`
	PaymentMint ledger.AccountID `json:"paymentMint"`
	Amount      uint64           `json:"amount"`
	Price       uint64           `json:"price"`
	Fee         uint64           `json:"fee"`
}

func (OrderCreated) EventName() string { return "order.created" }

type OrderProcessing struct {
	ID        uint64           `json:"id"`
	Maker     ledger.AccountID `json:"maker"`
	Timestamp int64            `json:"timestamp"`
}

func (OrderProcessing) EventName() string { return "order.processing" }

type OrderExecuted struct {
	ID          uint64           `json:"id"`
	Maker       ledger.AccountID `json:"maker"`
	Side        oracle.Side      `json:"side"`
	TickerMint  ledger.AccountID `json:"tickerMint"`
	PaymentMint ledger.AccountID `json:"paymentMint"`
	Amount      uint64           `json:"amount"`
	Price       uint64           `json:"price"`
	Fee         uint64           `json:"fee"`
	ProofRef    oracle.ProofRef  `json:"proofRef"`
	Timestamp   int64            `json:"timestamp"`
}

func (OrderExecuted) EventName() string { return "order.executed" }

type OrderCancelled struct {
	ID        uint64           `json:"id"`
	Maker     ledger.AccountID `json:"maker"`
	Timestamp int64            `json:"timestamp"`
}

func (OrderCancelled) EventName() string { return "order.cancelled" }
