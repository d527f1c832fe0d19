package memory

import (
	"context"
	"sort"
	"sync"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
type CheckpointStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Checkpoint // keyed by consumer id
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		data: make(map[string]*domain.Checkpoint),
	}
}

// Get returns the checkpoint for a consumer.
func (s *CheckpointStore) Get(_ context.Context, consumerID string) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.data[consumerID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneCheckpoint(cp), nil
}

// Save upserts the checkpoint for cp.ConsumerID.
func (s *CheckpointStore) Save(_ context.Context, cp *domain.Checkpoint) error {
	if cp == nil || cp.ConsumerID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[cp.ConsumerID] = cloneCheckpoint(cp)
	return nil
}

// Delete removes the checkpoint for a consumer.
func (s *CheckpointStore) Delete(_ context.Context, consumerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[consumerID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.data, consumerID)
	return nil
}

// List returns all checkpoints ordered by consumer id.
func (s *CheckpointStore) List(_ context.Context) ([]*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Checkpoint, 0, len(s.data))
	for _, cp := range s.data {
		result = append(result, cloneCheckpoint(cp))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ConsumerID < result[j].ConsumerID
	})
	return result, nil
}

func cloneCheckpoint(cp *domain.Checkpoint) *domain.Checkpoint {
	copy := *cp
	if cp.LastID != nil {
		id := *cp.LastID
		copy.LastID = &id
	}
	return &copy
}

// Compile-time interface check
var _ storage.CheckpointStore = (*CheckpointStore)(nil)
