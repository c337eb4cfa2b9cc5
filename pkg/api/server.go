package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/tickerlabs/ticksettle/pkg/crypto"
	"github.com/tickerlabs/ticksettle/pkg/engine"
	"github.com/tickerlabs/ticksettle/pkg/ledger"
	"github.com/tickerlabs/ticksettle/pkg/oracle"
)

// Server handles REST API and WebSocket connections
type Server struct {
	engine *engine.Engine
	router *mux.Router
	hub    *Hub
}

// NewServer creates a new API server. The returned server's Hub should be
// passed to the engine as its event emitter.
func NewServer(eng *engine.Engine, hub *Hub) *Server {
	s := &Server{
		engine: eng,
		router: mux.NewRouter(),
		hub:    hub,
	}
	s.setupRoutes()
	return s
}

// Hub returns the server's WebSocket hub
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Registry administration
	api.HandleFunc("/registry", s.handleGetRegistry).Methods("GET")
	api.HandleFunc("/registry/init", s.handleInitRegistry).Methods("POST")
	api.HandleFunc("/registry/oracle", s.handleSetOracle).Methods("POST")
	api.HandleFunc("/registry/authority", s.handleTransferAuthority).Methods("POST")
	api.HandleFunc("/registry/executor", s.handleSetExecutor).Methods("POST")

	// Ticker directory
	api.HandleFunc("/tickers", s.handleGetTickers).Methods("GET")
	api.HandleFunc("/tickers", s.handleCreateTicker).Methods("POST")
	api.HandleFunc("/tickers/{symbol}", s.handleGetTicker).Methods("GET")

	// Order lifecycle
	api.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	api.HandleFunc("/orders/process", s.handleProcessOrder).Methods("POST")
	api.HandleFunc("/orders/execute", s.handleExecuteOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/{maker}", s.handleGetOrders).Methods("GET")

	// Custody queries
	api.HandleFunc("/pools/{ticker}/{payment}", s.handleGetPool).Methods("GET")
	api.HandleFunc("/accounts/{account}/balances/{mint}", s.handleGetBalance).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})

	handler := c.Handler(s.router)

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// ==============================
// Registry Handlers
// ==============================

func (s *Server) handleGetRegistry(w http.ResponseWriter, r *http.Request) {
	reg, ok := s.engine.Registry()
	if !ok {
		respondError(w, http.StatusNotFound, "registry not initialized", "")
		return
	}

	resp := RegistryInfo{
		Authority: reg.Authority.Hex(),
		Oracle:    reg.Oracle.Hex(),
	}
	if !reg.Executor.IsZero() {
		resp.Executor = reg.Executor.Hex()
	}
	respondJSON(w, resp)
}

func (s *Server) handleInitRegistry(w http.ResponseWriter, r *http.Request) {
	var req InitRegistryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	authority, err := ledger.AccountIDFromHex(req.Authority)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid authority", err.Error())
		return
	}
	oraclePub, err := crypto.PubKeyFromHex(req.Oracle)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid oracle key", err.Error())
		return
	}

	if err := s.engine.Init(authority, oraclePub); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleSetOracle(w http.ResponseWriter, r *http.Request) {
	var req SetOracleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, err := ledger.AccountIDFromHex(req.Caller)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid caller", err.Error())
		return
	}
	oraclePub, err := crypto.PubKeyFromHex(req.Oracle)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid oracle key", err.Error())
		return
	}

	if err := s.engine.SetOracle(caller, oraclePub); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleTransferAuthority(w http.ResponseWriter, r *http.Request) {
	var req TransferAuthorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, err := ledger.AccountIDFromHex(req.Caller)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid caller", err.Error())
		return
	}
	newAuthority, err := ledger.AccountIDFromHex(req.NewAuthority)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid new authority", err.Error())
		return
	}

	if err := s.engine.TransferAuthority(caller, newAuthority); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleSetExecutor(w http.ResponseWriter, r *http.Request) {
	var req SetExecutorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, err := ledger.AccountIDFromHex(req.Caller)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid caller", err.Error())
		return
	}
	executor, err := ledger.AccountIDFromHex(req.Executor)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid executor", err.Error())
		return
	}

	if err := s.engine.SetExecutor(caller, executor); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]bool{"ok": true})
}

// ==============================
// Ticker Handlers
// ==============================

func (s *Server) handleGetTickers(w http.ResponseWriter, r *http.Request) {
	tickers := s.engine.Tickers()
	resp := make([]TickerInfo, len(tickers))
	for i, t := range tickers {
		resp[i] = TickerInfo{Symbol: t.Symbol, Mint: t.Mint.Hex(), Decimals: t.Decimals}
	}
	respondJSON(w, resp)
}

func (s *Server) handleGetTicker(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	t, ok := s.engine.Ticker(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "ticker not found", "")
		return
	}
	respondJSON(w, TickerInfo{Symbol: t.Symbol, Mint: t.Mint.Hex(), Decimals: t.Decimals})
}

func (s *Server) handleCreateTicker(w http.ResponseWriter, r *http.Request) {
	var req CreateTickerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, err := ledger.AccountIDFromHex(req.Caller)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid caller", err.Error())
		return
	}

	t, err := s.engine.CreateTicker(caller, req.Symbol, req.Decimals)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, TickerInfo{Symbol: t.Symbol, Mint: t.Mint.Hex(), Decimals: t.Decimals})
}

// ==============================
// Order Handlers
// ==============================

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	maker, err := ledger.AccountIDFromHex(req.Maker)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid maker", err.Error())
		return
	}
	payload, err := payloadFromRequest(req.Payload)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}

	digestBytes, err := hex.DecodeString(req.Digest)
	if err != nil || len(digestBytes) != crypto.DigestSize {
		respondError(w, http.StatusBadRequest, "invalid digest", "")
		return
	}
	var digest [crypto.DigestSize]byte
	copy(digest[:], digestBytes)

	sig, err := hex.DecodeString(req.Sig)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature encoding", "")
		return
	}

	order, err := s.engine.CreateOrder(maker, payload, digest, sig)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, orderInfo(*order))
}

func (s *Server) handleProcessOrder(w http.ResponseWriter, r *http.Request) {
	var req ProcessOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, maker, err := callerMaker(req.Caller, req.Maker)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account id", err.Error())
		return
	}

	if err := s.engine.ProcessOrder(caller, maker, req.ID); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleExecuteOrder(w http.ResponseWriter, r *http.Request) {
	var req ExecuteOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, maker, err := callerMaker(req.Caller, req.Maker)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account id", err.Error())
		return
	}
	proofRef, err := oracle.ProofRefFromHex(req.ProofRef)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid proof ref", err.Error())
		return
	}

	if err := s.engine.ExecuteOrder(caller, maker, req.ID, req.Spent, proofRef); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, maker, err := callerMaker(req.Caller, req.Maker)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account id", err.Error())
		return
	}

	if err := s.engine.CancelOrder(caller, maker, req.ID); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	maker, err := ledger.AccountIDFromHex(mux.Vars(r)["maker"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid maker", err.Error())
		return
	}

	orders := s.engine.Orders(maker)
	resp := make([]OrderInfo, len(orders))
	for i, o := range orders {
		resp[i] = orderInfo(o)
	}
	respondJSON(w, resp)
}

// ==============================
// Custody Handlers
// ==============================

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tickerMint, err := ledger.AccountIDFromHex(vars["ticker"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid ticker mint", err.Error())
		return
	}
	paymentMint, err := ledger.AccountIDFromHex(vars["payment"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid payment mint", err.Error())
		return
	}

	tickerBal, paymentBal := s.engine.PoolBalances(tickerMint, paymentMint)
	respondJSON(w, PoolInfo{
		Address:        engine.PoolAddress(tickerMint, paymentMint).Hex(),
		TickerMint:     tickerMint.Hex(),
		PaymentMint:    paymentMint.Hex(),
		TickerBalance:  tickerBal,
		PaymentBalance: paymentBal,
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	account, err := ledger.AccountIDFromHex(vars["account"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account", err.Error())
		return
	}
	mint, err := ledger.AccountIDFromHex(vars["mint"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid mint", err.Error())
		return
	}

	respondJSON(w, BalanceInfo{
		Account: account.Hex(),
		Mint:    mint.Hex(),
		Balance: s.engine.Ledger().Balance(account, mint),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func payloadFromRequest(req PayloadRequest) (oracle.Payload, error) {
	var p oracle.Payload

	side, err := oracle.ParseSide(req.Side)
	if err != nil {
		return p, err
	}
	typ := oracle.Market
	if req.Type == "limit" {
		typ = oracle.Limit
	}

	tickerMint, err := ledger.AccountIDFromHex(req.TickerMint)
	if err != nil {
		return p, err
	}
	paymentMint, err := ledger.AccountIDFromHex(req.PaymentMint)
	if err != nil {
		return p, err
	}

	return oracle.Payload{
		ID:          req.ID,
		Side:        side,
		Type:        typ,
		TickerMint:  tickerMint,
		Amount:      req.Amount,
		PaymentMint: paymentMint,
		Price:       req.Price,
		Fee:         req.Fee,
		ExpiresAt:   req.ExpiresAt,
	}, nil
}

func callerMaker(callerHex, makerHex string) (ledger.AccountID, ledger.AccountID, error) {
	caller, err := ledger.AccountIDFromHex(callerHex)
	if err != nil {
		return ledger.AccountID{}, ledger.AccountID{}, err
	}
	maker, err := ledger.AccountIDFromHex(makerHex)
	if err != nil {
		return ledger.AccountID{}, ledger.AccountID{}, err
	}
	return caller, maker, nil
}

func orderInfo(o engine.Order) OrderInfo {
	return OrderInfo{
		ID:          o.ID,
		Maker:       o.Maker.Hex(),
		Side:        o.Side.String(),
		Type:        o.Type.String(),
		TickerMint:  o.TickerMint.Hex(),
		Amount:      o.Amount,
		PaymentMint: o.PaymentMint.Hex(),
		Price:       o.Price,
		Fee:         o.Fee,
		Status:      o.Status.String(),
		ExpiresAt:   o.ExpiresAt,
		CreatedAt:   o.CreatedAt,
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

// respondEngineError maps the engine's rejection taxonomy to HTTP statuses
func respondEngineError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, engine.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrDuplicateOrder),
		errors.Is(err, engine.ErrDuplicateTicker),
		errors.Is(err, engine.ErrAlreadyInitialized),
		errors.Is(err, engine.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrNotInitialized):
		status = http.StatusServiceUnavailable
	}
	respondError(w, status, err.Error(), "")
}
