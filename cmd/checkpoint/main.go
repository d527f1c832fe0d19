// Package main provides an operator tool for inspecting and resetting
// consumer checkpoints and live feed cursors.
//
// Usage:
//
//	checkpoint -postgres-dsn ... list
//	checkpoint -postgres-dsn ... show -id market-processor:getgems:live
//	checkpoint -postgres-dsn ... reset -id market-processor:getgems:live [-ts 1700000000000]
//
// Resetting without -ts deletes the checkpoint, so the consumer replays the
// whole event log on its next poll. With -ts the consumer resumes after that
// timestamp.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/storage"
	pgstore "gift-market-tracker/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	id := flag.String("id", "", "Checkpoint id (consumer id or <venue>:live-feed)")
	ts := flag.Int64("ts", -1, "Reset position in Unix milliseconds (default: delete)")

	flag.Parse()

	logger := log.New(os.Stderr, "[checkpoint] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}
	if flag.NArg() != 1 {
		logger.Fatal("expected one command: list, show or reset")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	store := pgstore.NewCheckpointStore(pool)

	if err := run(ctx, store, flag.Arg(0), *id, *ts); err != nil {
		logger.Fatalf("%s: %v", flag.Arg(0), err)
	}
}

func run(ctx context.Context, store storage.CheckpointStore, command, id string, ts int64) error {
	switch command {
	case "list":
		checkpoints, err := store.List(ctx)
		if err != nil {
			return err
		}
		for _, cp := range checkpoints {
			printCheckpoint(cp)
		}
		return nil

	case "show":
		if id == "" {
			return errors.New("-id is required")
		}
		cp, err := store.Get(ctx, id)
		if err != nil {
			return err
		}
		printCheckpoint(cp)
		return nil

	case "reset":
		if id == "" {
			return errors.New("-id is required")
		}
		if ts < 0 {
			if err := store.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", id)
			return nil
		}
		cp := domain.NewCheckpoint(id)
		cp.LastTimestamp = ts
		cp.UpdatedAt = time.Now().UnixMilli()
		if err := store.Save(ctx, &cp); err != nil {
			return err
		}
		printCheckpoint(&cp)
		return nil

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func printCheckpoint(cp *domain.Checkpoint) {
	lastID := "-"
	if cp.LastID != nil {
		lastID = fmt.Sprintf("%d", *cp.LastID)
	} else if cp.LastKey != "" {
		lastID = cp.LastKey
	}
	fmt.Printf("%-32s ts=%d (%s) id=%s updated=%s\n",
		cp.ConsumerID,
		cp.LastTimestamp,
		time.UnixMilli(cp.LastTimestamp).UTC().Format(time.RFC3339),
		lastID,
		time.UnixMilli(cp.UpdatedAt).UTC().Format(time.RFC3339),
	)
}
