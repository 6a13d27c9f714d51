// Package app wires the coyote CLI runtime: config, logging, the persisted
// token store, the API client, the session store and command dispatch.
package app

import (
	"bufio"
	"context"
	"fmt"
	"io"

	coyoteapi "coyote/cmd/internal/api"
	"coyote/cmd/internal/session"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// App owns the resources a single command needs.
type App struct {
	cfg Config
	log Logger

	out io.Writer
	in  *bufio.Reader

	tokens session.TokenStore
	dbPool *pgxpool.Pool

	registry *prometheus.Registry
	client   *coyoteapi.Client
	session  *session.Store
}

// New constructs a fully wired App from config and logger.
// out receives command results; in supplies interactive input such as passwords.
func New(ctx context.Context, cfg Config, log Logger, out io.Writer, in io.Reader) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, io.Discard)
	}

	tokens, pool, err := newTokenStore(ctx, cfg.Tokens, log)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	metrics, err := coyoteapi.NewMetrics(reg)
	if err != nil {
		closePool(pool)
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		out:      out,
		in:       bufio.NewReader(in),
		tokens:   tokens,
		dbPool:   pool,
		registry: reg,
	}

	// The hook closes over a.session, which is assigned right below: a 401/403
	// on any request drops the in-memory session together with the token.
	client, err := coyoteapi.NewClient(cfg.API, tokens,
		coyoteapi.WithLogger(log),
		coyoteapi.WithMetrics(metrics),
		coyoteapi.WithUnauthorizedHook(func() { a.session.Clear() }),
	)
	if err != nil {
		closePool(pool)
		return nil, err
	}
	a.client = client
	a.session = session.NewStore(tokens, client, session.WithLogger(log))

	return a, nil
}

// Close flushes metrics and releases the database pool, if any.
func (a *App) Close() error {
	defer closePool(a.dbPool)

	if a.cfg.MetricsTextfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.cfg.MetricsTextfile, a.registry); err != nil {
		a.log.Error("metrics.textfile.fail", "path", a.cfg.MetricsTextfile, "err", err)
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	a.log.Debug("metrics.textfile.written", "path", a.cfg.MetricsTextfile)
	return nil
}

// newTokenStore opens the configured persisted token store.
func newTokenStore(ctx context.Context, cfg session.Config, log Logger) (session.TokenStore, *pgxpool.Pool, error) {
	switch cfg.Backend {
	case session.BackendMemory:
		log.Debug("tokens.store.memory")
		return session.NewMemoryTokenStore(), nil, nil

	case session.BackendPostgres:
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("token store database: %w", err)
		}

		// Ownership model:
		// - app owns pool lifecycle
		// - PostgresTokenStore never closes it
		st, err := session.NewPostgresTokenStore(pool,
			session.WithSchema(cfg.DBSchema),
			session.WithNamespace(cfg.DBNamespace),
		)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := st.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("token store schema: %w", err)
		}
		log.Debug("tokens.store.postgres", "schema", cfg.DBSchema, "namespace", cfg.DBNamespace)
		return st, pool, nil

	default:
		st, err := session.NewFileTokenStore(cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		log.Debug("tokens.store.file", "path", st.Path())
		return st, nil, nil
	}
}

func closePool(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}
