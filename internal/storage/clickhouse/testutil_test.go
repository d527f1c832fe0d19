package clickhouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"gift-market-tracker/internal/storage/migrations"
)

// setupTestDB starts a ClickHouse server, creates the archive database and
// applies the embedded schema. The container is removed when t finishes.
func setupTestDB(t *testing.T) *Conn {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping clickhouse integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "clickhouse/clickhouse-server:24.1-alpine",
			ExposedPorts: []string{"9000/tcp"},
			Env:          map[string]string{"CLICKHOUSE_USER": "default", "CLICKHOUSE_PASSWORD": ""},
			WaitingFor:   wait.ForListeningPort("9000/tcp").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "start clickhouse container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate clickhouse container: %v", err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	require.NoError(t, err)
	dsn := fmt.Sprintf("clickhouse://default@%s/market_test", endpoint)

	require.NoError(t, EnsureDatabase(ctx, dsn))
	conn, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, migrations.ApplyClickhouse(ctx, conn))
	return conn
}
