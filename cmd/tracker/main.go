// Package main runs the gift market tracker service:
// - Producers (continuous): venue live feeds, push feeds, snapshot walks
// - Consumer (continuous): event log -> current-listing projection
// - Enrichment: new-listing notices to the downstream service
// - HTTP: health, metrics, status, listings, admin triggers
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gift-market-tracker/internal/config"
	"gift-market-tracker/internal/storage"
	chstore "gift-market-tracker/internal/storage/clickhouse"
	"gift-market-tracker/internal/storage/memory"
	"gift-market-tracker/internal/storage/migrations"
	pgstore "gift-market-tracker/internal/storage/postgres"
)

// allStores holds the store implementations shared by all components.
type allStores struct {
	events      storage.EventLog
	checkpoints storage.CheckpointStore
	listings    storage.ListingStore
	sales       storage.SaleStore
}

func main() {
	configPath := flag.String("config", os.Getenv("TRACKER_CONFIG"), "Path to YAML config file")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (overrides config)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse sale archive connection string (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	migrate := flag.Bool("migrate", false, "Apply embedded schema migrations on startup")
	httpAddr := flag.String("http-addr", "", "HTTP listen address (overrides config)")

	flag.Parse()

	logger := log.New(os.Stdout, "[tracker] ", log.LstdFlags|log.Lshortfile)

	if *configPath == "" {
		logger.Fatal("--config is required")
	}

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, *postgresDSN, *clickhouseDSN, *useMemory, *migrate, *httpAddr)
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	tracker := NewTracker(cfg, stores)

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	logger.Printf("Starting %s: backend=%s venues=%d http=%s",
		cfg.Instance.ID, cfg.Storage.Backend, len(cfg.Venues), cfg.HTTP.Addr)

	err = tracker.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Tracker error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// applyFlags lets command-line flags override the config file.
func applyFlags(cfg *config.Config, postgresDSN, clickhouseDSN string, useMemory, migrate bool, httpAddr string) {
	if postgresDSN != "" {
		cfg.Storage.Backend = "postgres"
		cfg.Storage.PostgresDSN = postgresDSN
	}
	if useMemory {
		cfg.Storage.Backend = "memory"
	}
	if clickhouseDSN != "" {
		cfg.Storage.ClickHouseDSN = clickhouseDSN
	}
	if migrate {
		cfg.Storage.Migrate = true
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
}

// createStores creates the configured stores.
// With a ClickHouse DSN the sale history is written to the ClickHouse archive.
func createStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (*allStores, func(), error) {
	var stores *allStores
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Storage.Backend == "memory" {
		logger.Println("Using in-memory storage; state is lost on restart")
		stores = &allStores{
			events:      memory.NewEventLog(),
			checkpoints: memory.NewCheckpointStore(),
			listings:    memory.NewListingStore(),
			sales:       memory.NewSaleStore(),
		}
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)

		if cfg.Storage.Migrate {
			if err := migrations.ApplyPostgres(ctx, pool); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("postgres migrations: %w", err)
			}
			logger.Println("PostgreSQL migrations applied")
		}

		stores = &allStores{
			events:      pgstore.NewEventLog(pool),
			checkpoints: pgstore.NewCheckpointStore(pool),
			listings:    pgstore.NewListingStore(pool),
			sales:       pgstore.NewSaleStore(pool),
		}
	}

	if cfg.Storage.ClickHouseDSN != "" {
		dsn := cfg.Storage.ClickHouseDSN
		if cfg.Storage.Migrate {
			if err := chstore.EnsureDatabase(ctx, dsn); err != nil {
				cleanup()
				return nil, nil, err
			}
		}
		conn, err := chstore.Open(ctx, dsn)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		if cfg.Storage.Migrate {
			if err := migrations.ApplyClickhouse(ctx, conn); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
			}
			logger.Println("ClickHouse migrations applied")
		}
		stores.sales = chstore.NewSaleStore(conn)
		logger.Println("Sale history archived to ClickHouse")
	}

	return stores, cleanup, nil
}
