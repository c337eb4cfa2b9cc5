package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/tickerlabs/ticksettle/params"
	"github.com/tickerlabs/ticksettle/pkg/api"
	"github.com/tickerlabs/ticksettle/pkg/crypto"
	"github.com/tickerlabs/ticksettle/pkg/engine"
	"github.com/tickerlabs/ticksettle/pkg/ledger"
	"github.com/tickerlabs/ticksettle/pkg/storage"
	"github.com/tickerlabs/ticksettle/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (console, or tee to file when LOG_FILE is set)
	logger, err := newLogger(cfg.Server.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// ---- Storage ----
	l, err := ledger.OpenLedger(cfg.Storage.LedgerDB)
	if err != nil {
		sugar.Fatalw("ledger_open_failed", "path", cfg.Storage.LedgerDB, "err", err)
	}
	defer l.Close()

	store, err := storage.NewPebbleStore(cfg.Storage.EngineDB)
	if err != nil {
		sugar.Fatalw("engine_store_open_failed", "path", cfg.Storage.EngineDB, "err", err)
	}
	defer store.Close()

	// ---- Engine ----
	hub := api.NewHub()
	eng, err := engine.New(l, util.RealClock{}, sugar, hub, store)
	if err != nil {
		sugar.Fatalw("engine_init_failed", "err", err)
	}

	// Auto-initialize the registry on first boot when both keys are
	// configured. A registry persisted by a previous run wins.
	if _, ok := eng.Registry(); !ok && cfg.Registry.AuthorityHex != "" && cfg.Registry.OracleHex != "" {
		authority, err := ledger.AccountIDFromHex(cfg.Registry.AuthorityHex)
		if err != nil {
			sugar.Fatalw("bad_registry_authority", "err", err)
		}
		oraclePub, err := crypto.PubKeyFromHex(cfg.Registry.OracleHex)
		if err != nil {
			sugar.Fatalw("bad_registry_oracle", "err", err)
		}
		if err := eng.Init(authority, oraclePub); err != nil {
			sugar.Fatalw("registry_init_failed", "err", err)
		}
	}

	// ---- API Server ----
	server := api.NewServer(eng, hub)

	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.Server.ListenAddr)
		if err := server.Start(cfg.Server.ListenAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	sugar.Infow("shutting_down", "signal", sig.String())
}

func newLogger(logFile string) (*zap.Logger, error) {
	if logFile != "" {
		return util.NewLoggerWithFile(logFile)
	}
	return util.NewLogger()
}
