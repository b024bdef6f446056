// Package cli holds the start-up steps shared by cmd/tracker,
// cmd/tracker-worker and cmd/trackerctl, plus the trackerctl commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"timetracker/internal/auth"
	"timetracker/internal/backend"
	"timetracker/internal/config"
	"timetracker/internal/core"
	"timetracker/internal/log"
	"timetracker/internal/store"
	"timetracker/internal/tables"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// makes it the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	lc.Component = component
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadConfig reads the environment, sets up logging and runs validate. It
// exits the process when validation fails.
func LoadConfig(component string, validate func(*config.Config) error) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if validate != nil {
		if err := validate(cfg); err != nil {
			logger.Error("Configuration validation failed", log.FieldError, err)
			os.Exit(1)
		}
	}
	return cfg, logger
}

// OpenBackend creates the table client selected by DATA_BACKEND.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bc)
}

// NewStores wraps client in the entry and category stores named by cfg.
func NewStores(cfg *config.Config, client tables.Client, logger *log.Logger) (*store.EntryStore, *store.CategoryStore) {
	entries := store.NewEntryStore(client, cfg.EntriesTable,
		store.WithEntryLogger(logger),
		store.WithNormalizer(core.DateNormalizer{}))
	categories := store.NewCategoryStore(client, cfg.CategoriesTable, logger)
	return entries, categories
}

// NewAuthProvider returns the sign-in provider selected by AUTH_PROVIDER.
func NewAuthProvider(cfg *config.Config) (auth.Provider, error) {
	switch cfg.AuthProvider {
	case "local":
		users, err := auth.ParseUsers(cfg.AuthUsers)
		if err != nil {
			return nil, fmt.Errorf("parse AUTH_USERS: %w", err)
		}
		p, err := auth.NewLocalProvider(users)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "rest", "":
		p, err := auth.NewRESTProvider(cfg.BackendURL, cfg.BackendPublicKey, nil)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.AuthProvider)
	}
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
