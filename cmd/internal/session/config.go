package session

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names a TokenStore implementation.
type Backend string

const (
	BackendFile     Backend = "file"
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
)

// Config selects and configures the persisted token store.
type Config struct {
	Backend Backend

	// FilePath is the token file for BackendFile. Empty means DefaultTokenFile().
	FilePath string

	// Postgres settings for BackendPostgres.
	DatabaseURL string
	DBSchema    string
	DBNamespace string
	DBMaxConns  int32
	DBMinConns  int32

	// DBPingTimeout bounds the connectivity check made when the pool opens.
	DBPingTimeout time.Duration
}

// DefaultConfig returns the configuration used when no env overrides are set.
func DefaultConfig() Config {
	return Config{
		Backend:     BackendFile,
		DBSchema:    defaultPGSchema,
		DBNamespace: defaultPGNamespace,
		DBMaxConns:  4,
		DBMinConns:  0,

		DBPingTimeout: 3 * time.Second,
	}
}

// LoadConfigFromEnv loads token store configuration from environment variables.
//
// Optional:
//   - COYOTE_TOKEN_STORE (file|memory|postgres)
//   - COYOTE_TOKEN_FILE
//   - COYOTE_DATABASE_URL (required when COYOTE_TOKEN_STORE=postgres)
//   - COYOTE_DB_SCHEMA
//   - COYOTE_DB_NAMESPACE
//   - COYOTE_DB_MAX_CONNS
//   - COYOTE_DB_MIN_CONNS
//   - COYOTE_DB_PING_TIMEOUT (Go duration)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("COYOTE_TOKEN_STORE")); v != "" {
		b, err := ParseBackend(v)
		if err != nil {
			return Config{}, err
		}
		cfg.Backend = b
	}

	cfg.FilePath = strings.TrimSpace(os.Getenv("COYOTE_TOKEN_FILE"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("COYOTE_DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("COYOTE_DB_SCHEMA")); v != "" {
		cfg.DBSchema = v
	}
	if v := strings.TrimSpace(os.Getenv("COYOTE_DB_NAMESPACE")); v != "" {
		cfg.DBNamespace = v
	}

	if v := os.Getenv("COYOTE_DB_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return Config{}, ErrConfig
		}
		cfg.DBMaxConns = int32(n)
	}
	if v := os.Getenv("COYOTE_DB_MIN_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return Config{}, ErrConfig
		}
		cfg.DBMinConns = int32(n)
	}
	if v := strings.TrimSpace(os.Getenv("COYOTE_DB_PING_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.DBPingTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return ErrConfig
		}
		if !pgIdentRE.MatchString(c.DBSchema) || c.DBNamespace == "" {
			return ErrConfig
		}
		if c.DBMinConns > c.DBMaxConns {
			return ErrConfig
		}
	default:
		return ErrConfig
	}
	return nil
}

// ParseBackend maps a config string to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendFile, BackendMemory, BackendPostgres:
		return b, nil
	default:
		return "", ErrConfig
	}
}
