package app

import (
	"errors"
	"fmt"
	"strings"

	coyoteapi "coyote/cmd/internal/api"
	"coyote/cmd/internal/session"
)

// ErrConfig marks invalid runtime configuration.
var ErrConfig = errors.New("invalid config")

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	LogLevel  string
	LogFormat string

	// MetricsTextfile, when set, receives the client metrics in the
	// node-exporter textfile format after every command.
	MetricsTextfile string

	// If true, COYOTE_TOKEN_FINGERPRINT_KEY MUST be set (>= 32 bytes) so token
	// fingerprints in logs are keyed.
	RequireFingerprintKey bool

	API    coyoteapi.Config
	Tokens session.Config
}

// LoadConfig loads Config from environment variables with defaults.
// Call LoadDotEnv first so a .env file can contribute values.
func LoadConfig() (Config, error) {
	apiCfg, err := coyoteapi.LoadConfigFromEnv()
	if err != nil {
		return Config{}, err
	}
	tokCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		LogLevel:  EnvString("COYOTE_LOG_LEVEL", "info"),
		LogFormat: EnvString("COYOTE_LOG_FORMAT", "json"),

		MetricsTextfile: EnvString("COYOTE_METRICS_TEXTFILE", ""),

		RequireFingerprintKey: EnvBool("COYOTE_REQUIRE_TOKEN_FINGERPRINT_KEY", false),

		API:    apiCfg,
		Tokens: tokCfg,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the app-level settings and the nested client and token store config.
func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "json", "pretty", "text":
	default:
		return fmt.Errorf("%w: log format %q", ErrConfig, c.LogFormat)
	}
	if err := c.API.Validate(); err != nil {
		return err
	}
	return c.Tokens.Validate()
}
