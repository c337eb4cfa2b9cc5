package api

// API request/response types for REST endpoints and WebSocket messages

// ==============================
// Requests
// ==============================

// InitRegistryRequest creates the registry singleton
type InitRegistryRequest struct {
	Authority string `json:"authority"` // hex account id
	Oracle    string `json:"oracle"`    // hex ed25519 public key
}

// SetOracleRequest rotates the trusted oracle key
type SetOracleRequest struct {
	Caller string `json:"caller"`
	Oracle string `json:"oracle"`
}

// TransferAuthorityRequest hands the registry to a new authority
type TransferAuthorityRequest struct {
	Caller       string `json:"caller"`
	NewAuthority string `json:"newAuthority"`
}

// SetExecutorRequest delegates process/execute rights
type SetExecutorRequest struct {
	Caller   string `json:"caller"`
	Executor string `json:"executor"`
}

// CreateTickerRequest registers a symbol and creates its mint
type CreateTickerRequest struct {
	Caller   string `json:"caller"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// CreateOrderRequest submits a signed oracle attestation
type CreateOrderRequest struct {
	Maker   string         `json:"maker"`
	Payload PayloadRequest `json:"payload"`
	Digest  string         `json:"digest"`    // hex, 32 bytes
	Sig     string         `json:"signature"` // hex, 64 bytes
}

// PayloadRequest mirrors oracle.Payload with hex identities
type PayloadRequest struct {
	ID          uint64 `json:"id"`
	Side        string `json:"side"`      // "buy" | "sell"
	Type        string `json:"orderType"` // "market" | "limit"
	TickerMint  string `json:"tickerMint"`
	Amount      uint64 `json:"amount"`
	PaymentMint string `json:"paymentMint"`
	Price       uint64 `json:"price"`
	Fee         uint64 `json:"fee"`
	ExpiresAt   uint64 `json:"expiresAt"`
}

// ProcessOrderRequest fences an order for execution
type ProcessOrderRequest struct {
	Caller string `json:"caller"`
	Maker  string `json:"maker"`
	ID     uint64 `json:"id"`
}

// ExecuteOrderRequest settles a processing order
type ExecuteOrderRequest struct {
	Caller   string `json:"caller"`
	Maker    string `json:"maker"`
	ID       uint64 `json:"id"`
	Spent    uint64 `json:"spent"`
	ProofRef string `json:"proofRef"` // hex, 32 bytes
}

// CancelOrderRequest refunds an unprocessed order
type CancelOrderRequest struct {
	Caller string `json:"caller"`
	Maker  string `json:"maker"`
	ID     uint64 `json:"id"`
}

// ==============================
// Responses
// ==============================

// RegistryInfo is the registry singleton
type RegistryInfo struct {
	Authority string `json:"authority"`
	Executor  string `json:"executor,omitempty"`
	Oracle    string `json:"oracle"`
}

// TickerInfo is one ticker directory entry
type TickerInfo struct {
	Symbol   string `json:"symbol"`
	Mint     string `json:"mint"`
	Decimals uint8  `json:"decimals"`
}

// OrderInfo is a live order
type OrderInfo struct {
	ID          uint64 `json:"id"`
	Maker       string `json:"maker"`
	Side        string `json:"side"`
	Type        string `json:"orderType"`
	TickerMint  string `json:"tickerMint"`
	Amount      uint64 `json:"amount"`
	PaymentMint string `json:"paymentMint"`
	Price       uint64 `json:"price"`
	Fee         uint64 `json:"fee"`
	Status      string `json:"status"`
	ExpiresAt   uint64 `json:"expiresAt"`
	CreatedAt   int64  `json:"createdAt"`
}

// PoolInfo is a trading pair's pool holdings
type PoolInfo struct {
	Address        string `json:"address"`
	TickerMint     string `json:"tickerMint"`
	PaymentMint    string `json:"paymentMint"`
	TickerBalance  uint64 `json:"tickerBalance"`
	PaymentBalance uint64 `json:"paymentBalance"`
}

// BalanceInfo is one (account, mint) balance
type BalanceInfo struct {
	Account string `json:"account"`
	Mint    string `json:"mint"`
	Balance uint64 `json:"balance"`
}

// ErrorResponse is the uniform rejection shape
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Types
// ==============================

// WSSubscribeRequest subscribes or unsubscribes channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" | "unsubscribe"
	Channels []string `json:"channels"`
}

// WSEvent wraps an engine event for the wire
type WSEvent struct {
	Channel string      `json:"channel"`
	Event   string      `json:"event"`
	Data    interface{} `json:"data"`
}
