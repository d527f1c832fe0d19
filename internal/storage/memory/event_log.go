package memory

import (
	"context"
	"sort"
	"sync"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/storage"
)

// EventLog is an in-memory implementation of storage.EventLog.
type EventLog struct {
	mu     sync.RWMutex
	nextID int64
	events []*domain.Event          // append order == id order
	byHash map[string]*domain.Event // dedup index
}

// NewEventLog creates a new in-memory event log.
func NewEventLog() *EventLog {
	return &EventLog{
		byHash: make(map[string]*domain.Event),
	}
}

// Append adds a new event and assigns its ID. Returns ErrDuplicateKey if hash exists.
func (l *EventLog) Append(_ context.Context, e *domain.Event) error {
	if e == nil || e.Hash == "" {
		return storage.ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byHash[e.Hash]; exists {
		return storage.ErrDuplicateKey
	}

	l.nextID++
	e.ID = l.nextID

	stored := cloneEvent(e)
	l.events = append(l.events, stored)
	l.byHash[stored.Hash] = stored
	return nil
}

// ExistsByHash reports whether an event with the given hash has been appended.
func (l *EventLog) ExistsByHash(_ context.Context, hash string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, exists := l.byHash[hash]
	return exists, nil
}

// GetByHash retrieves an event by its hash.
func (l *EventLog) GetByHash(_ context.Context, hash string) (*domain.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.byHash[hash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneEvent(e), nil
}

// FetchAfter retrieves up to limit events matching f and admitted by the checkpoint, ordered by (timestamp, id) ASC.
func (l *EventLog) FetchAfter(_ context.Context, f storage.EventFilter, cp domain.Checkpoint, limit int) ([]*domain.Event, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []*domain.Event
	for _, e := range l.events {
		if !f.Matches(e) || !cp.Admits(e.Position()) {
			continue
		}
		result = append(result, cloneEvent(e))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Position().Compare(result[j].Position()) < 0
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Len returns the number of appended events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

func cloneEvent(e *domain.Event) *domain.Event {
	copy := *e
	copy.SnapshotID = cloneString(e.SnapshotID)
	copy.EventPayload = cloneString(e.EventPayload)
	return &copy
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Compile-time interface check
var _ storage.EventLog = (*EventLog)(nil)
