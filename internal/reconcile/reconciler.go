// Package reconcile purges listings that a completed snapshot walk failed to reconfirm.
package reconcile

import (
	"context"
	"fmt"
	"log"

	"gift-market-tracker/internal/observability"
	"gift-market-tracker/internal/storage"
)

// Reconciler performs the sweep half of snapshot mark-and-sweep.
type Reconciler struct {
	listings storage.ListingStore
	logger   *log.Logger
}

// NewReconciler creates a new Reconciler.
func NewReconciler(listings storage.ListingStore, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{listings: listings, logger: logger}
}

// Finish sweeps listings of venue after walk snapshotID (started at startedAt, ms) completed.
// A listing is removed only if the walk did not stamp it and nothing refreshed it
// since the walk began: last_snapshot_id != snapshotID (or NULL) and updated_at < startedAt.
// An empty venue sweeps all venues.
func (r *Reconciler) Finish(ctx context.Context, venue, snapshotID string, startedAt int64) (int64, error) {
	if snapshotID == "" {
		return 0, fmt.Errorf("finish snapshot: %w", storage.ErrInvalidInput)
	}

	removed, err := r.listings.DeleteStale(ctx, venue, snapshotID, startedAt)
	if err != nil {
		return 0, fmt.Errorf("finish snapshot %s: %w", snapshotID, err)
	}

	r.logger.Printf("snapshot %s finished for venue %q: purged %d stale listings (cutoff %d)",
		snapshotID, venue, removed, startedAt)
	observability.RecordListingsPurged(venue, removed)

	if n, err := r.listings.Count(ctx, venue); err == nil {
		observability.UpdateCurrentListings(venue, n)
	}

	return removed, nil
}
