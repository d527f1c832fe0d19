package domain

// Position is a point in the (timestamp, id) total order of the event log.
type Position struct {
	Timestamp int64
	ID        int64
}

// Compare returns:
//   - negative if p < o
//   - zero if p == o
//   - positive if p > o
//
// Order: (timestamp ASC, id ASC)
func (p Position) Compare(o Position) int {
	if p.Timestamp != o.Timestamp {
		if p.Timestamp < o.Timestamp {
			return -1
		}
		return 1
	}
	if p.ID != o.ID {
		if p.ID < o.ID {
			return -1
		}
		return 1
	}
	return 0
}

// Checkpoint is the durable cursor of one logical consumer.
// Corresponds to consumer_checkpoints table in PostgreSQL.
type Checkpoint struct {
	ConsumerID    string
	LastTimestamp int64  // timestamp of the last applied event (ms)
	LastID        *int64 // id of the last applied event (nullable)
	LastKey       string // feed cursors only: venue event id of the last event at LastTimestamp
	UpdatedAt     int64  // processing time of the last save (ms)
}

// NewCheckpoint returns the initial checkpoint for a consumer.
func NewCheckpoint(consumerID string) Checkpoint {
	return Checkpoint{ConsumerID: consumerID}
}

// Admits reports whether an event at pos lies strictly after the checkpoint:
// timestamp > LastTimestamp, or timestamp == LastTimestamp and id > LastID when LastID is set.
func (c Checkpoint) Admits(pos Position) bool {
	if pos.Timestamp > c.LastTimestamp {
		return true
	}
	return pos.Timestamp == c.LastTimestamp && c.LastID != nil && pos.ID > *c.LastID
}

// AdvanceTo returns a copy of the checkpoint moved to pos.
func (c Checkpoint) AdvanceTo(pos Position) Checkpoint {
	id := pos.ID
	c.LastTimestamp = pos.Timestamp
	c.LastID = &id
	return c
}

// Position returns the checkpoint as a Position. An unset LastID reads as 0.
func (c Checkpoint) Position() Position {
	var id int64
	if c.LastID != nil {
		id = *c.LastID
	}
	return Position{Timestamp: c.LastTimestamp, ID: id}
}

// FeedCursor is a position in a venue activity feed, which is ordered by
// (timestamp, venue event id). A fetch returns events with timestamp > Since,
// plus events at Since whose id sorts after AfterID. An empty AfterID
// includes every event at Since.
type FeedCursor struct {
	Since   int64 // ms
	AfterID string
}

// Admits reports whether an event at (ts, id) lies after the cursor.
func (c FeedCursor) Admits(ts int64, id string) bool {
	if ts != c.Since {
		return ts > c.Since
	}
	return c.AfterID == "" || id > c.AfterID
}
