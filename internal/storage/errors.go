package storage

import "errors"

var (
	// ErrNotFound: no listing for the item address, no sale for the event
	// hash, no checkpoint for the consumer id, or no market event for the hash.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey means a market event with the same content hash is
	// already in the log. Producers treat it as a replay and skip the event.
	ErrDuplicateKey = errors.New("market event already logged")

	// ErrInvalidInput covers events that fail domain validation, listings or
	// sales missing their key, checkpoints without a consumer id, stale
	// sweeps without a snapshot id and non-positive fetch limits.
	ErrInvalidInput = errors.New("invalid input")
)
