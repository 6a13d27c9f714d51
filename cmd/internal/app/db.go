package app

import (
	"context"
	"fmt"
	"time"

	"coyote/cmd/internal/session"

	"github.com/jackc/pgx/v5/pgxpool"
)

// poolConfig maps the token store settings onto a pgxpool config. The CLI is
// short-lived, so idle connections are not kept around between commands.
func poolConfig(cfg session.Config) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: COYOTE_DATABASE_URL: %v", ErrConfig, err)
	}
	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	pcfg.MinConns = max(cfg.DBMinConns, 0)
	pcfg.MaxConnIdleTime = time.Minute
	if pcfg.ConnConfig.RuntimeParams == nil {
		pcfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	if _, ok := pcfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		pcfg.ConnConfig.RuntimeParams["application_name"] = "coyote-cli"
	}
	return pcfg, nil
}

// NewDBPool opens the pool backing the Postgres token store and checks that a
// connection can be acquired within cfg.DBPingTimeout.
func NewDBPool(ctx context.Context, cfg session.Config) (*pgxpool.Pool, error) {
	pcfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := PingDB(ctx, pool, cfg.DBPingTimeout); err != nil {
		pool.Close()
		return nil, fmt.Errorf("token store database unreachable: %w", err)
	}
	return pool, nil
}

// PingDB acquires and releases one connection. A non-positive timeout leaves
// the deadline to parent.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx := parent
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}
