package backend

import (
	"context"

	"timetracker/internal/tables"
)

// ErrMissingConfig is returned when the selected backend lacks its
// connection settings.
var ErrMissingConfig = tables.ErrMissingConfig

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the tables client and optional hooks.
type BackendResult struct {
	Client tables.Client
	// Ready reports whether the backend can serve requests; nil means always.
	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// REST
	BackendURL       string
	BackendPublicKey string

	// SQL
	DatabaseURL  string
	SQLiteDBPath string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Memory backend seed directory
	DataDirectory string
	SeedTables    []string
}

// BackendType represents the type of backend
type BackendType string

const (
	RESTBackend     BackendType = "rest"
	PostgresBackend BackendType = "postgres"
	SQLiteBackend   BackendType = "sqlite"
	SheetsBackend   BackendType = "sheets"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case RESTBackend, PostgresBackend, SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
