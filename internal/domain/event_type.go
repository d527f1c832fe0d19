package domain

import "strings"

// EventType represents a normalized marketplace event type.
type EventType string

const (
	EventTypeList           EventType = "LIST"
	EventTypeUnlist         EventType = "UNLIST"
	EventTypeSold           EventType = "SOLD"
	EventTypeSnapshotList   EventType = "SNAPSHOT_LIST"
	EventTypeSnapshotFinish EventType = "SNAPSHOT_FINISH"
	EventTypeUnknown        EventType = "UNKNOWN"
)

// eventTypeAliases maps upper-cased venue vocabulary to normalized types.
var eventTypeAliases = map[string]EventType{
	"LIST":            EventTypeList,
	"PUTUPFORSALE":    EventTypeList,
	"LISTING":         EventTypeList,
	"PRICE_UPDATE":    EventTypeList,
	"UNLIST":          EventTypeUnlist,
	"CANCELSALE":      EventTypeUnlist,
	"DELIST":          EventTypeUnlist,
	"SOLD":            EventTypeSold,
	"BUY":             EventTypeSold,
	"SNAPSHOT_LIST":   EventTypeSnapshotList,
	"SNAPSHOT_FINISH": EventTypeSnapshotFinish,
}

// ParseEventType normalizes a raw venue event type (case-insensitive).
// Unrecognized values map to EventTypeUnknown.
func ParseEventType(raw string) EventType {
	if t, ok := eventTypeAliases[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return t
	}
	return EventTypeUnknown
}

// String returns the string representation of EventType.
func (t EventType) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the known values.
func (t EventType) IsValid() bool {
	switch t {
	case EventTypeList, EventTypeUnlist, EventTypeSold,
		EventTypeSnapshotList, EventTypeSnapshotFinish, EventTypeUnknown:
		return true
	}
	return false
}

// IsSnapshot reports whether the type belongs to the snapshot protocol.
func (t EventType) IsSnapshot() bool {
	return t == EventTypeSnapshotList || t == EventTypeSnapshotFinish
}

// Stream groups events whose timestamps come from the same clock. Live
// events carry venue time; snapshot events carry the walker's wall clock.
// A checkpoint only ever orders events of one stream.
type Stream string

const (
	StreamLive     Stream = "live"
	StreamSnapshot Stream = "snapshot"
)

// Stream returns the stream an event of this type is appended to.
func (t EventType) Stream() Stream {
	if t.IsSnapshot() {
		return StreamSnapshot
	}
	return StreamLive
}
