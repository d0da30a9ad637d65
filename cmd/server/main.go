/*
main.go - Application entry point

PURPOSE:
  Builds the logger, configuration and document store, then runs the
  requested command.

COMMANDS:
  serve   Start the HTTP API (default)
  seed    Upsert a small demo product catalog

CONFIGURATION:
  Read from .env and the environment (see config/config.go). Flags
  override: --env, --port, --store, --db, --log-level, --log-format.

EXAMPLES:
  # Run with a file database
  ./server serve --db ./data/ledger.db

  # Run on bbolt
  ./server serve --store bolt --db ./data/ledger.bolt

  # In-memory, seeded on start
  ./server serve --store memory --seed
*/
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/warp/stock-ledger/config"
	"github.com/warp/stock-ledger/ledger"
	ledgerstore "github.com/warp/stock-ledger/ledger/store"
	"github.com/warp/stock-ledger/store/bolt"
	"github.com/warp/stock-ledger/store/sqlite"
)

var (
	envFile   string
	port      int
	driver    string
	dbPath    string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Stock ledger API server",
	Long: `server runs the stock ledger HTTP API: expense and income records,
with product sales that decrement clothing stock atomically.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&envFile, "env", "", "path to a .env file (default ./.env if present)")
	pf.IntVar(&port, "port", 0, "HTTP port (overrides PORT)")
	pf.StringVar(&driver, "store", "", "store driver: sqlite, bolt or memory (overrides STORE_DRIVER)")
	pf.StringVar(&dbPath, "db", "", "database path (overrides DB_PATH)")
	pf.StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	pf.StringVar(&logFormat, "log-format", "", "console or json (overrides LOG_FORMAT)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig applies flag overrides on top of the environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if port != 0 {
		cfg.Port = port
	}
	if driver != "" {
		cfg.StoreDriver = driver
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var logger zerolog.Logger
	if cfg.LogFormat == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger(), nil
}

func openStore(cfg *config.Config) (ledger.DocumentStore, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		return sqlite.New(cfg.DBPath, sqlite.WithMaxAttempts(cfg.TxMaxAttempts))
	case config.DriverBolt:
		return bolt.New(cfg.DBPath, bolt.WithMaxAttempts(cfg.TxMaxAttempts))
	case config.DriverMemory:
		return ledgerstore.NewMemory(ledgerstore.WithMaxAttempts(cfg.TxMaxAttempts)), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
