// Package postgres implements the event log, checkpoint, listing and sale
// stores on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	applicationName = "gift-market-tracker"

	// Shared by the consumer, the market-data refresh and every venue's feed and walker.
	defaultMaxConns = 8

	uniqueViolation = "23505"
)

// Pool is the pgx pool shared by every Postgres store.
type Pool struct {
	*pgxpool.Pool
}

// NewPool opens a pool for dsn and pings the server. Settings the DSN leaves
// unset get tracker defaults: application_name and pool_max_conns.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.ConnConfig.RuntimeParams["application_name"] == "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	if !strings.Contains(dsn, "pool_max_conns") {
		cfg.MaxConns = defaultMaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres at %s: %w", cfg.ConnConfig.Host, err)
	}
	return &Pool{Pool: pool}, nil
}

// isDuplicateKeyError reports a unique violation, i.e. an event hash that is already logged.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
