package params

import (
	"os"

	"github.com/joho/godotenv"
)

type Server struct {
	ListenAddr string
	LogFile    string
}

type Storage struct {
	// LedgerDB holds balances and mints, EngineDB holds registry, tickers,
	// live orders and consumed order ids. Kept separate so the ledger can be
	// wiped independently of the order history.
	LedgerDB string
	EngineDB string
}

type Registry struct {
	// AuthorityHex and OracleHex, when both set, auto-initialize the registry
	// on first boot. Left empty, the registry is initialized over the API.
	AuthorityHex string
	OracleHex    string
}

type Config struct {
	Server   Server
	Storage  Storage
	Registry Registry
}

func Default() Config {
	return Config{
		Server: Server{
			ListenAddr: ":8080",
			LogFile:    "",
		},
		Storage: Storage{
			LedgerDB: "data/ledger",
			EngineDB: "data/engine",
		},
		Registry: Registry{},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Server.ListenAddr = getEnv("LISTEN_ADDR", cfg.Server.ListenAddr)
	cfg.Server.LogFile = getEnv("LOG_FILE", cfg.Server.LogFile)

	cfg.Storage.LedgerDB = getEnv("LEDGER_DB", cfg.Storage.LedgerDB)
	cfg.Storage.EngineDB = getEnv("ENGINE_DB", cfg.Storage.EngineDB)

	cfg.Registry.AuthorityHex = getEnv("REGISTRY_AUTHORITY", cfg.Registry.AuthorityHex)
	cfg.Registry.OracleHex = getEnv("REGISTRY_ORACLE", cfg.Registry.OracleHex)

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
