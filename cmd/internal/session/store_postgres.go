package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"coyote/cmd/security/token"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultPGSchema    = "coyote"
	defaultPGNamespace = "default"
	kvTable            = "client_kv"
)

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresTokenStore implements TokenStore on a Postgres key-value table.
//
// Ownership model:
// - PostgresTokenStore does NOT own the pgx pool. The caller must close the pool.
//
// Several CLI profiles may share one database; each uses its own namespace.
//
// Expected table:
//
//	CREATE TABLE <schema>.client_kv (
//	    namespace  text        NOT NULL,
//	    key        text        NOT NULL,
//	    value      text        NOT NULL,
//	    updated_at timestamptz NOT NULL,
//	    PRIMARY KEY (namespace, key)
//	);
type PostgresTokenStore struct {
	pool      *pgxpool.Pool
	schema    string
	namespace string
	now       func() time.Time
}

// PostgresOption configures PostgresTokenStore behavior.
type PostgresOption func(*PostgresTokenStore) error

// WithSchema sets the DB schema (default: "coyote").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresTokenStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" || !pgIdentRE.MatchString(schema) {
			return fmt.Errorf("%w: invalid schema identifier %q", ErrConfig, schema)
		}
		s.schema = schema
		return nil
	}
}

// WithNamespace sets the key namespace (default: "default").
func WithNamespace(ns string) PostgresOption {
	return func(s *PostgresTokenStore) error {
		ns = strings.TrimSpace(ns)
		if ns == "" || len(ns) > 128 {
			return fmt.Errorf("%w: invalid namespace", ErrConfig)
		}
		s.namespace = ns
		return nil
	}
}

// NewPostgresTokenStore constructs a Postgres-backed TokenStore.
func NewPostgresTokenStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresTokenStore, error) {
	s := &PostgresTokenStore{
		pool:      pool,
		schema:    defaultPGSchema,
		namespace: defaultPGNamespace,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.pool == nil {
		return nil, errors.New("session: nil pool")
	}
	return s, nil
}

// EnsureSchema creates the schema and key-value table when missing.
func (s *PostgresTokenStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE SCHEMA IF NOT EXISTS %s;
		CREATE TABLE IF NOT EXISTS %s (
			namespace  text        NOT NULL,
			key        text        NOT NULL,
			value      text        NOT NULL,
			updated_at timestamptz NOT NULL,
			PRIMARY KEY (namespace, key)
		)
	`, pgx.Identifier{s.schema}.Sanitize(), s.table()))
	return err
}

// Load returns the token stored for this namespace.
func (s *PostgresTokenStore) Load(ctx context.Context) (string, bool, error) {
	var tok string
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT value
		FROM %s
		WHERE namespace = $1 AND key = $2
	`, s.table()), s.namespace, TokenKey).Scan(&tok)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != "", nil
}

// Save upserts the token row.
func (s *PostgresTokenStore) Save(ctx context.Context, tok string) error {
	tok, err := token.Normalize(tok)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (namespace, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, s.table()), s.namespace, TokenKey, tok, s.now())
	return err
}

// Delete removes the token row (idempotent).
func (s *PostgresTokenStore) Delete(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE namespace = $1 AND key = $2
	`, s.table()), s.namespace, TokenKey)
	return err
}

func (s *PostgresTokenStore) table() string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{s.schema, kvTable}.Sanitize()
}
