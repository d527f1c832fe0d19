// Package domain defines marketplace events, checkpoints and the listing projection.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// SystemAddress is the item address carried by SNAPSHOT_FINISH events.
const SystemAddress = "SYSTEM"

// Event represents a normalized marketplace event in the event log.
// Immutable once written. Corresponds to market_events table in PostgreSQL.
type Event struct {
	ID                int64     // assigned by the event log on insert, tie-break for ordering
	Hash              string    // natural key, unique
	SourceID          string    // venue's own event id; empty for snapshot events
	Venue             string    // marketplace the event came from
	ItemAddress       string    // subject item
	CollectionAddress string    // subject collection
	Name              string    // item display name
	Timestamp         int64     // event time, Unix milliseconds
	EventType         EventType // LIST | UNLIST | SOLD | SNAPSHOT_LIST | SNAPSHOT_FINISH | UNKNOWN
	IsOffchain        bool
	Price             string // display price as reported by the venue
	PriceNano         string // integer minor-unit price, raw (may be unparseable)
	Currency          string
	OldOwner          string  // seller for LIST / SNAPSHOT_LIST / SOLD
	NewOwner          string  // buyer for SOLD
	SnapshotID        *string // set only on snapshot events
	EventPayload      *string // SNAPSHOT_FINISH: walk start time in ms, decimal string
}

// Stream returns the producer family the event belongs to.
func (e *Event) Stream() Stream {
	return e.EventType.Stream()
}

// Position returns the (timestamp, id) ordering position of the event.
func (e *Event) Position() Position {
	return Position{Timestamp: e.Timestamp, ID: e.ID}
}

// SnapshotStart parses the walk start time carried by a SNAPSHOT_FINISH event.
func (e *Event) SnapshotStart() (int64, error) {
	if e.EventPayload == nil {
		return 0, fmt.Errorf("snapshot finish %s: missing payload", e.Hash)
	}
	start, err := strconv.ParseInt(strings.TrimSpace(*e.EventPayload), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("snapshot finish %s: parse start time: %w", e.Hash, err)
	}
	return start, nil
}

// Validate checks required fields before the event is written to the log.
func (e *Event) Validate() error {
	if e.Hash == "" {
		return fmt.Errorf("event hash is required")
	}
	if e.ItemAddress == "" {
		return fmt.Errorf("event %s: item address is required", e.Hash)
	}
	if !e.EventType.IsValid() {
		return fmt.Errorf("event %s: invalid event type %q", e.Hash, e.EventType)
	}
	if e.EventType.IsSnapshot() && (e.SnapshotID == nil || *e.SnapshotID == "") {
		return fmt.Errorf("event %s: snapshot id is required for %s", e.Hash, e.EventType)
	}
	return nil
}
