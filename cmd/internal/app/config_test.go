package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"coyote/cmd/internal/session"
)

// unsetEnv removes key for the duration of the test; t.Setenv restores it.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unset %s: %v", key, err)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{
		"COYOTE_LOG_LEVEL", "COYOTE_LOG_FORMAT", "COYOTE_METRICS_TEXTFILE",
		"COYOTE_REQUIRE_TOKEN_FINGERPRINT_KEY", "COYOTE_API_BASE_URL", "COYOTE_TOKEN_STORE",
	} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" || cfg.MetricsTextfile != "" || cfg.RequireFingerprintKey {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Tokens.Backend != session.BackendFile {
		t.Fatalf("Tokens.Backend=%q want file", cfg.Tokens.Backend)
	}
}

func TestLoadConfig_InvalidLogFormat(t *testing.T) {
	t.Setenv("COYOTE_LOG_FORMAT", "xml")
	if _, err := LoadConfig(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestLoadConfig_PostgresNeedsURL(t *testing.T) {
	t.Setenv("COYOTE_TOKEN_STORE", "postgres")
	t.Setenv("COYOTE_DATABASE_URL", "")
	if _, err := LoadConfig(); !errors.Is(err, session.ErrConfig) {
		t.Fatalf("expected session.ErrConfig, got %v", err)
	}
}

func TestLoadDotEnv_RealEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coyote.env")
	content := "COYOTE_API_BASE_URL=https://from-file.example.com/api\nCOYOTE_LOG_LEVEL=debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	unsetEnv(t, "COYOTE_API_BASE_URL")
	t.Setenv("COYOTE_LOG_LEVEL", "error")
	t.Setenv("COYOTE_ENV_FILE", path)

	got, err := LoadDotEnv("")
	if err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got != path {
		t.Fatalf("loaded %q want %q", got, path)
	}
	if v := os.Getenv("COYOTE_API_BASE_URL"); v != "https://from-file.example.com/api" {
		t.Fatalf("COYOTE_API_BASE_URL=%q", v)
	}
	if v := os.Getenv("COYOTE_LOG_LEVEL"); v != "error" {
		t.Fatalf("real env must win, COYOTE_LOG_LEVEL=%q", v)
	}
}

func TestLoadDotEnv_MissingFiles(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("COYOTE_ENV_FILE", "")

	if got, err := LoadDotEnv(""); err != nil || got != "" {
		t.Fatalf("missing default .env must be ignored, got %q %v", got, err)
	}
	if _, err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); !errors.Is(err, ErrConfig) {
		t.Fatalf("missing explicit file: expected ErrConfig, got %v", err)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("COYOTE_TEST_STR", "  value ")
	t.Setenv("COYOTE_TEST_BOOL", "true")
	t.Setenv("COYOTE_TEST_BAD_BOOL", "maybe")

	if got := EnvString("COYOTE_TEST_STR", "def"); got != "value" {
		t.Fatalf("EnvString=%q", got)
	}
	if got := EnvString("COYOTE_TEST_MISSING", "def"); got != "def" {
		t.Fatalf("EnvString default=%q", got)
	}
	if !EnvBool("COYOTE_TEST_BOOL", false) || !EnvBool("COYOTE_TEST_BAD_BOOL", true) {
		t.Fatalf("EnvBool mismatch")
	}
}

func TestValidateSecurityConfig(t *testing.T) {
	if err := ValidateSecurityConfig(Config{}); err != nil {
		t.Fatalf("policy off: %v", err)
	}

	cfg := Config{RequireFingerprintKey: true}
	t.Setenv("COYOTE_TOKEN_FINGERPRINT_KEY", "")
	if err := ValidateSecurityConfig(cfg); err == nil {
		t.Fatalf("expected error for missing key")
	}
	t.Setenv("COYOTE_TOKEN_FINGERPRINT_KEY", "short")
	if err := ValidateSecurityConfig(cfg); err == nil {
		t.Fatalf("expected error for short key")
	}
	t.Setenv("COYOTE_TOKEN_FINGERPRINT_KEY", "0123456789abcdef0123456789abcdef")
	if err := ValidateSecurityConfig(cfg); err != nil {
		t.Fatalf("valid key: %v", err)
	}
}
