package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Backends accepted by DATA_BACKEND.
var Backends = []string{"rest", "postgres", "sqlite", "sheets", "memory"}

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend     string
	EntriesTable    string
	CategoriesTable string

	// REST backend
	BackendURL       string
	BackendPublicKey string

	// SQL backends
	DatabaseURL  string
	SQLiteDBPath string

	// Memory backend
	DataDirectory string

	// Google Sheets (backend and mirror target)
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	MirrorEntriesSheet       string
	// Zero disables the periodic reconcile in the mirror worker.
	MirrorReconcileInterval time.Duration

	// AMQP change events, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Authentication
	AuthProvider  string
	AuthUsers     string
	SessionSecret string
	SessionTTL    time.Duration

	// Entry editor
	EditorSessionTTL  time.Duration
	EditorMaxSessions int

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8080"),

		DataBackend:     getEnv("DATA_BACKEND", "rest"),
		EntriesTable:    getEnv("ENTRIES_TABLE", "time_tracker"),
		CategoriesTable: getEnv("CATEGORIES_TABLE", "categories"),

		BackendURL:       getEnv("BACKEND_URL", ""),
		BackendPublicKey: getEnv("BACKEND_PUBLIC_KEY", ""),

		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/timetracker.db"),

		DataDirectory: getEnv("DATA_DIRECTORY", "data"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
		MirrorEntriesSheet:       getEnv("MIRROR_ENTRIES_SHEET", "time_tracker"),
		MirrorReconcileInterval:  getEnvDuration("MIRROR_RECONCILE_INTERVAL", time.Hour),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "timetracker"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "mirror_entries"),

		AuthProvider:  getEnv("AUTH_PROVIDER", "rest"),
		AuthUsers:     getEnv("AUTH_USERS", ""),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getEnvDuration("SESSION_TTL", 12*time.Hour),

		EditorSessionTTL:  getEnvDuration("EDITOR_SESSION_TTL", 30*time.Minute),
		EditorMaxSessions: getEnvInt("EDITOR_MAX_SESSIONS", 1000),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(Backends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, Backends))
	}
	if strings.TrimSpace(c.EntriesTable) == "" {
		errors = append(errors, "entries table name cannot be empty")
	}
	if strings.TrimSpace(c.CategoriesTable) == "" {
		errors = append(errors, "categories table name cannot be empty")
	}

	switch c.DataBackend {
	case "rest":
		if c.BackendURL == "" {
			errors = append(errors, "BACKEND_URL is required when using rest backend")
		} else if u, err := url.Parse(c.BackendURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid BACKEND_URL '%s': must be an http(s) URL", c.BackendURL))
		}
		if c.BackendPublicKey == "" {
			errors = append(errors, "BACKEND_PUBLIC_KEY is required when using rest backend")
		}

	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		}

	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}

	case "sheets":
		errors = append(errors, c.validateGoogle("sheets backend")...)
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch c.AuthProvider {
	case "rest":
		if c.BackendURL == "" || c.BackendPublicKey == "" {
			errors = append(errors, "rest auth provider needs BACKEND_URL and BACKEND_PUBLIC_KEY")
		}
	case "local":
		if strings.TrimSpace(c.AuthUsers) == "" {
			errors = append(errors, "AUTH_USERS is required when using local auth provider")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid auth provider '%s': must be one of [rest local]", c.AuthProvider))
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.EditorSessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid editor session TTL %v: must be at least 1 minute", c.EditorSessionTTL))
	}
	if c.EditorMaxSessions < 1 {
		errors = append(errors, fmt.Sprintf("invalid editor max sessions %d: must be at least 1", c.EditorMaxSessions))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateMirror checks only what the mirror worker needs; it never serves
// HTTP or signs anyone in.
func (c *Config) ValidateMirror() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the mirror worker")
	}
	if c.AMQPQueue == "" {
		errors = append(errors, "AMQP queue name cannot be empty")
	}
	if strings.TrimSpace(c.MirrorEntriesSheet) == "" {
		errors = append(errors, "MIRROR_ENTRIES_SHEET cannot be empty")
	}
	errors = append(errors, c.validateGoogle("mirror worker")...)
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) validateGoogle(user string) []string {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, fmt.Sprintf("Google Spreadsheet ID is required for %s", user))
	}
	hasFile := c.GoogleServiceAccountFile != ""
	if !hasFile && c.GoogleServiceAccountJSON == "" {
		errors = append(errors, fmt.Sprintf("either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for %s", user))
	}
	if hasFile {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	return errors
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
