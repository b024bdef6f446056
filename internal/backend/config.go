package backend

import (
	"fmt"

	"timetracker/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		BackendURL:       appConfig.BackendURL,
		BackendPublicKey: appConfig.BackendPublicKey,

		DatabaseURL:  appConfig.DatabaseURL,
		SQLiteDBPath: appConfig.SQLiteDBPath,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,

		DataDirectory: appConfig.DataDirectory,
		SeedTables:    []string{appConfig.EntriesTable, appConfig.CategoriesTable},
	}, nil
}

// Validate reports the first missing setting for the selected backend,
// wrapped in ErrMissingConfig.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case RESTBackend:
		if c.BackendURL == "" || c.BackendPublicKey == "" {
			return fmt.Errorf("%w: rest backend needs BACKEND_URL and BACKEND_PUBLIC_KEY", ErrMissingConfig)
		}
	case PostgresBackend:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: postgres backend needs DATABASE_URL", ErrMissingConfig)
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("%w: sqlite backend needs SQLITE_DB_PATH", ErrMissingConfig)
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("%w: sheets backend needs GOOGLE_SPREADSHEET_ID", ErrMissingConfig)
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			return fmt.Errorf("%w: sheets backend needs service account credentials", ErrMissingConfig)
		}
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{RESTBackend, PostgresBackend, SQLiteBackend, SheetsBackend, MemoryBackend}
}
