package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresExecer is implemented by pgxpool.Pool, pgx.Conn and pgx.Tx.
type PostgresExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ApplyPostgres runs every Postgres migration in name order. Each file goes in
// one Exec; without arguments pgx uses the simple protocol, which accepts
// several statements. All DDL is IF NOT EXISTS, so startup reruns are no-ops.
func ApplyPostgres(ctx context.Context, db PostgresExecer) error {
	ms, err := Postgres()
	if err != nil {
		return err
	}
	for _, m := range ms {
		if _, err := db.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply postgres migration %s: %w", m.Name, err)
		}
	}
	return nil
}
