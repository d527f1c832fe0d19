package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeVenueEventHash computes the natural key of a live venue event.
// Formula: SHA256(venue|venue_event_id)
// Returns hex-encoded hash (64 characters).
func ComputeVenueEventHash(venue, venueEventID string) string {
	return sum(fmt.Sprintf("%s|%s", venue, venueEventID))
}

// ComputeSnapshotListHash computes the key of a SNAPSHOT_LIST event.
// Formula: SHA256(snapshot_id|item_address)
// An item revisited by overlapping pages within one walk hashes identically.
func ComputeSnapshotListHash(snapshotID, itemAddress string) string {
	return sum(fmt.Sprintf("%s|%s", snapshotID, itemAddress))
}

// ComputeSnapshotFinishHash computes the key of a SNAPSHOT_FINISH event.
// Formula: SHA256(FINISH|venue|snapshot_id)
func ComputeSnapshotFinishHash(venue, snapshotID string) string {
	return sum(fmt.Sprintf("FINISH|%s|%s", venue, snapshotID))
}

func sum(data string) string {
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
