package coyoteapi

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("COYOTE_API_BASE_URL", "")
	t.Setenv("COYOTE_API_TIMEOUT", "")
	t.Setenv("COYOTE_API_MAX_RESPONSE_BYTES", "")
	t.Setenv("COYOTE_API_USER_AGENT", "")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("COYOTE_API_BASE_URL", "https://coyote.example.com/api/")
	t.Setenv("COYOTE_API_TIMEOUT", "15s")
	t.Setenv("COYOTE_API_MAX_RESPONSE_BYTES", "1024")
	t.Setenv("COYOTE_API_USER_AGENT", "coyote-admin/2")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Timeout != 15*time.Second || cfg.MaxResponseBytes != 1024 || cfg.UserAgent != "coyote-admin/2" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if got := cfg.withDefaults().BaseURL; got != "https://coyote.example.com/api" {
		t.Fatalf("BaseURL=%q", got)
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"bad timeout":      {"COYOTE_API_TIMEOUT", "soon"},
		"negative timeout": {"COYOTE_API_TIMEOUT", "-1s"},
		"bad max bytes":    {"COYOTE_API_MAX_RESPONSE_BYTES", "lots"},
		"zero max bytes":   {"COYOTE_API_MAX_RESPONSE_BYTES", "0"},
		"bad scheme":       {"COYOTE_API_BASE_URL", "ftp://coyote.example.com"},
		"no host":          {"COYOTE_API_BASE_URL", "http://"},
		"query":            {"COYOTE_API_BASE_URL", "http://coyote.example.com/api?x=1"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}
