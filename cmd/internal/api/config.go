package coyoteapi

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL          = "http://127.0.0.1:3002/api"
	DefaultMaxResponseBytes = 8 << 20 // 8 MiB
	DefaultUserAgent        = "coyote-cli/1.0"
)

// Config controls how the client reaches the backend.
type Config struct {
	// BaseURL is the backend origin plus the /api prefix.
	BaseURL string

	// Timeout bounds each request. Zero leaves it to the transport.
	Timeout time.Duration

	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes int64

	UserAgent string
}

// DefaultConfig returns the configuration used when no env overrides are set.
func DefaultConfig() Config {
	return Config{
		BaseURL:          DefaultBaseURL,
		MaxResponseBytes: DefaultMaxResponseBytes,
		UserAgent:        DefaultUserAgent,
	}
}

// LoadConfigFromEnv loads client config from environment variables.
//
// Optional:
//   - COYOTE_API_BASE_URL
//   - COYOTE_API_TIMEOUT (Go duration, 0 disables)
//   - COYOTE_API_MAX_RESPONSE_BYTES
//   - COYOTE_API_USER_AGENT
//
// Returns ErrConfig if a value is present but invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("COYOTE_API_BASE_URL")); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("COYOTE_API_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("%w: COYOTE_API_TIMEOUT=%q", ErrConfig, v)
		}
		cfg.Timeout = d
	}
	if v := strings.TrimSpace(os.Getenv("COYOTE_API_MAX_RESPONSE_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("%w: COYOTE_API_MAX_RESPONSE_BYTES=%q", ErrConfig, v)
		}
		cfg.MaxResponseBytes = n
	}
	if v := strings.TrimSpace(os.Getenv("COYOTE_API_USER_AGENT")); v != "" {
		cfg.UserAgent = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the base URL and limits.
func (c Config) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: base url %q", ErrConfig, c.BaseURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("%w: base url must not carry a query or fragment", ErrConfig)
	}
	if c.Timeout < 0 || c.MaxResponseBytes < 0 {
		return ErrConfig
	}
	return nil
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}
