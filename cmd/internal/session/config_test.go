package session

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("COYOTE_TOKEN_STORE", "")
	t.Setenv("COYOTE_TOKEN_FILE", "")
	t.Setenv("COYOTE_DATABASE_URL", "")
	t.Setenv("COYOTE_DB_SCHEMA", "")
	t.Setenv("COYOTE_DB_NAMESPACE", "")
	t.Setenv("COYOTE_DB_MAX_CONNS", "")
	t.Setenv("COYOTE_DB_MIN_CONNS", "")
	t.Setenv("COYOTE_DB_PING_TIMEOUT", "")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPingTimeout != 3*time.Second {
		t.Fatalf("ping timeout=%v want 3s", cfg.DBPingTimeout)
	}
	if cfg.Backend != BackendFile {
		t.Fatalf("backend=%q want file", cfg.Backend)
	}
	if cfg.DBSchema != "coyote" || cfg.DBNamespace != "default" {
		t.Fatalf("unexpected db defaults: %+v", cfg)
	}
}

func TestLoadConfigFromEnv_UnknownBackend(t *testing.T) {
	t.Setenv("COYOTE_TOKEN_STORE", "redis")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestLoadConfigFromEnv_PostgresRequiresURL(t *testing.T) {
	t.Setenv("COYOTE_TOKEN_STORE", "postgres")
	t.Setenv("COYOTE_DATABASE_URL", "")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig without database url, got %v", err)
	}
}

func TestLoadConfigFromEnv_InvalidSchema(t *testing.T) {
	t.Setenv("COYOTE_TOKEN_STORE", "postgres")
	t.Setenv("COYOTE_DATABASE_URL", "postgres://localhost/coyote")
	t.Setenv("COYOTE_DB_SCHEMA", "bad-schema;drop")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig for schema, got %v", err)
	}
}

func TestLoadConfigFromEnv_InvalidConns(t *testing.T) {
	t.Setenv("COYOTE_TOKEN_STORE", "postgres")
	t.Setenv("COYOTE_DATABASE_URL", "postgres://localhost/coyote")
	t.Setenv("COYOTE_DB_SCHEMA", "")
	t.Setenv("COYOTE_DB_MAX_CONNS", "2")
	t.Setenv("COYOTE_DB_MIN_CONNS", "3")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig for min>max, got %v", err)
	}
}

func TestLoadConfigFromEnv_Postgres(t *testing.T) {
	t.Setenv("COYOTE_TOKEN_STORE", "Postgres")
	t.Setenv("COYOTE_DATABASE_URL", "postgres://localhost/coyote")
	t.Setenv("COYOTE_DB_SCHEMA", "client_state")
	t.Setenv("COYOTE_DB_NAMESPACE", "lab-3")
	t.Setenv("COYOTE_DB_MAX_CONNS", "8")
	t.Setenv("COYOTE_DB_MIN_CONNS", "1")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != BackendPostgres {
		t.Fatalf("backend=%q", cfg.Backend)
	}
	if cfg.DBSchema != "client_state" || cfg.DBNamespace != "lab-3" {
		t.Fatalf("db settings mismatch: %+v", cfg)
	}
	if cfg.DBMaxConns != 8 || cfg.DBMinConns != 1 {
		t.Fatalf("conns mismatch: %d/%d", cfg.DBMaxConns, cfg.DBMinConns)
	}
}

func TestLoadConfigFromEnv_PingTimeout(t *testing.T) {
	t.Setenv("COYOTE_TOKEN_STORE", "")

	t.Setenv("COYOTE_DB_PING_TIMEOUT", "750ms")
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPingTimeout != 750*time.Millisecond {
		t.Fatalf("ping timeout=%v want 750ms", cfg.DBPingTimeout)
	}

	for _, v := range []string{"soon", "0s", "-1s"} {
		t.Setenv("COYOTE_DB_PING_TIMEOUT", v)
		if _, err := LoadConfigFromEnv(); err != ErrConfig {
			t.Fatalf("%q: expected ErrConfig, got %v", v, err)
		}
	}
}
