package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/idhash"
	"gift-market-tracker/internal/observability"
	"gift-market-tracker/internal/storage"
)

// ErrEmptyWalk is returned when a walk enumerates no items and empty walks are not allowed.
// An empty result is far more often a venue outage than an empty market.
var ErrEmptyWalk = errors.New("snapshot walk returned no items")

// SnapshotResult describes one snapshot run.
type SnapshotResult struct {
	SnapshotID string
	StartedAt  int64 // ms, carried by SNAPSHOT_FINISH
	Items      int   // SNAPSHOT_LIST events appended (excluding page-overlap duplicates)
	Finished   bool  // SNAPSHOT_FINISH appended
}

// SnapshotRunner performs a full listing walk for one venue and writes the
// snapshot protocol into the event log: one SNAPSHOT_LIST per item, then one
// SNAPSHOT_FINISH only if the whole walk succeeded.
type SnapshotRunner struct {
	walker     ListingWalker
	events     storage.EventLog
	allowEmpty bool
	newID      func() string
	now        func() time.Time
	logger     *log.Logger
}

// SnapshotRunnerOptions contains configuration for creating a SnapshotRunner.
type SnapshotRunnerOptions struct {
	Walker     ListingWalker
	Events     storage.EventLog
	AllowEmpty bool
	NewID      func() string // Default: uuid.NewString
	Now        func() time.Time
	Logger     *log.Logger
}

// NewSnapshotRunner creates a new SnapshotRunner.
func NewSnapshotRunner(opts SnapshotRunnerOptions) *SnapshotRunner {
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &SnapshotRunner{
		walker:     opts.Walker,
		events:     opts.Events,
		allowEmpty: opts.AllowEmpty,
		newID:      newID,
		now:        now,
		logger:     logger,
	}
}

// Run performs one walk. On any error the SNAPSHOT_FINISH is not written,
// so listings the walk did not reach are left untouched.
func (r *SnapshotRunner) Run(ctx context.Context) (SnapshotResult, error) {
	venue := r.walker.Venue()
	started := r.now()
	result := SnapshotResult{
		SnapshotID: r.newID(),
		StartedAt:  started.UnixMilli(),
	}
	snapshotID := result.SnapshotID

	r.logger.Printf("%s snapshot %s: walk started", venue, snapshotID)

	walkErr := r.walker.Walk(ctx, func(item domain.ListingItem) error {
		e := &domain.Event{
			Hash:              idhash.ComputeSnapshotListHash(snapshotID, item.ItemAddress),
			Venue:             venue,
			ItemAddress:       item.ItemAddress,
			CollectionAddress: item.CollectionAddress,
			Name:              item.Name,
			Timestamp:         r.now().UnixMilli(),
			EventType:         domain.EventTypeSnapshotList,
			IsOffchain:        item.IsOffchain,
			Price:             item.Price,
			PriceNano:         item.PriceNano,
			Currency:          item.Currency,
			OldOwner:          item.Seller,
			SnapshotID:        &snapshotID,
		}
		ok, err := AppendEvent(ctx, r.events, e)
		if errors.Is(err, storage.ErrInvalidInput) {
			r.logger.Printf("%s snapshot %s: skipping item: %v", venue, snapshotID, err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("snapshot item %s: %w", item.ItemAddress, err)
		}
		if ok {
			result.Items++
		}
		return nil
	})

	duration := time.Since(started).Seconds()

	if walkErr != nil {
		r.logger.Printf("%s snapshot %s: aborted after %d items, finish suppressed: %v",
			venue, snapshotID, result.Items, walkErr)
		observability.RecordSnapshotRun(venue, "aborted", result.Items, duration)
		return result, fmt.Errorf("snapshot %s walk: %w", snapshotID, walkErr)
	}

	if result.Items == 0 && !r.allowEmpty {
		r.logger.Printf("%s snapshot %s: walk found no items, finish suppressed", venue, snapshotID)
		observability.RecordSnapshotRun(venue, "empty", 0, duration)
		return result, ErrEmptyWalk
	}

	payload := strconv.FormatInt(result.StartedAt, 10)
	finish := &domain.Event{
		Hash:         idhash.ComputeSnapshotFinishHash(venue, snapshotID),
		Venue:        venue,
		ItemAddress:  domain.SystemAddress,
		Timestamp:    r.now().UnixMilli(),
		EventType:    domain.EventTypeSnapshotFinish,
		SnapshotID:   &snapshotID,
		EventPayload: &payload,
	}
	if err := r.events.Append(ctx, finish); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		observability.RecordSnapshotRun(venue, "failed", result.Items, duration)
		return result, fmt.Errorf("append snapshot finish %s: %w", snapshotID, err)
	}
	result.Finished = true

	r.logger.Printf("%s snapshot %s: walk finished, %d items in %.1fs", venue, snapshotID, result.Items, duration)
	observability.RecordSnapshotRun(venue, "finished", result.Items, duration)
	return result, nil
}
