// Package cache provides read-mostly lookup tables that are replaced whole on refresh.
package cache

import (
	"context"
	"sync/atomic"
	"time"
)

// Snapshot holds an immutable map that is swapped atomically on refresh.
// Readers never observe a partially rebuilt map; the published map is
// never mutated after Store.
type Snapshot[K comparable, V any] struct {
	current atomic.Pointer[table[K, V]]
}

type table[K comparable, V any] struct {
	data      map[K]V
	updatedAt time.Time
}

// NewSnapshot creates an empty Snapshot.
func NewSnapshot[K comparable, V any]() *Snapshot[K, V] {
	s := &Snapshot[K, V]{}
	s.current.Store(&table[K, V]{data: map[K]V{}})
	return s
}

// Get returns the value for key in the current table.
func (s *Snapshot[K, V]) Get(key K) (V, bool) {
	v, ok := s.current.Load().data[key]
	return v, ok
}

// Len returns the size of the current table.
func (s *Snapshot[K, V]) Len() int {
	return len(s.current.Load().data)
}

// UpdatedAt returns when the current table was published (zero if never).
func (s *Snapshot[K, V]) UpdatedAt() time.Time {
	return s.current.Load().updatedAt
}

// Store publishes data as the new table. The caller must not modify data afterwards.
func (s *Snapshot[K, V]) Store(data map[K]V) {
	if data == nil {
		data = map[K]V{}
	}
	s.current.Store(&table[K, V]{data: data, updatedAt: time.Now()})
}

// Range calls fn for each entry of the current table until fn returns false.
func (s *Snapshot[K, V]) Range(fn func(K, V) bool) {
	for k, v := range s.current.Load().data {
		if !fn(k, v) {
			return
		}
	}
}

// Loader builds a complete replacement table.
type Loader[K comparable, V any] func(ctx context.Context) (map[K]V, error)

// Refresh loads a new table and publishes it. On error the current table is kept.
func (s *Snapshot[K, V]) Refresh(ctx context.Context, load Loader[K, V]) error {
	data, err := load(ctx)
	if err != nil {
		return err
	}
	s.Store(data)
	return nil
}
