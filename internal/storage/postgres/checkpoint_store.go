package postgres

import (
	"context"
	"fmt"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/storage"
)

// CheckpointStore implements storage.CheckpointStore using PostgreSQL.
// Table consumer_checkpoints holds one row per consumer id.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new PostgreSQL checkpoint store.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Get returns the checkpoint for a consumer.
func (s *CheckpointStore) Get(ctx context.Context, consumerID string) (*domain.Checkpoint, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT consumer_id, last_timestamp, last_id, last_key, updated_at
		FROM consumer_checkpoints
		WHERE consumer_id = $1
	`, consumerID)

	var cp domain.Checkpoint
	if err := row.Scan(&cp.ConsumerID, &cp.LastTimestamp, &cp.LastID, &cp.LastKey, &cp.UpdatedAt); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return &cp, nil
}

// Save upserts the checkpoint for cp.ConsumerID.
func (s *CheckpointStore) Save(ctx context.Context, cp *domain.Checkpoint) error {
	if cp == nil || cp.ConsumerID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO consumer_checkpoints (consumer_id, last_timestamp, last_id, last_key, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (consumer_id) DO UPDATE
		SET last_timestamp = EXCLUDED.last_timestamp,
		    last_id = EXCLUDED.last_id,
		    last_key = EXCLUDED.last_key,
		    updated_at = EXCLUDED.updated_at
	`, cp.ConsumerID, cp.LastTimestamp, cp.LastID, cp.LastKey, cp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Delete removes the checkpoint for a consumer.
func (s *CheckpointStore) Delete(ctx context.Context, consumerID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM consumer_checkpoints WHERE consumer_id = $1
	`, consumerID)
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List returns all checkpoints ordered by consumer id.
func (s *CheckpointStore) List(ctx context.Context) ([]*domain.Checkpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT consumer_id, last_timestamp, last_id, last_key, updated_at
		FROM consumer_checkpoints
		ORDER BY consumer_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var result []*domain.Checkpoint
	for rows.Next() {
		var cp domain.Checkpoint
		if err := rows.Scan(&cp.ConsumerID, &cp.LastTimestamp, &cp.LastID, &cp.LastKey, &cp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		result = append(result, &cp)
	}
	return result, rows.Err()
}
