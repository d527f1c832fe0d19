package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/observability"
	"gift-market-tracker/internal/storage"
)

// Batch size bounds for one fetch from the event log.
const (
	MinBatchSize     = 100
	MaxBatchSize     = 1000
	DefaultBatchSize = 1000
)

// Consumer reads the event log in (timestamp, id) order from its checkpoint
// and applies each event. One Consumer per consumer id; Poll must not be
// called concurrently for the same id.
//
// A checkpoint orders events by timestamp, so a consumer that must not skip
// events reads a single stream: all its events share one clock.
type Consumer struct {
	id          string
	filter      storage.EventFilter
	events      storage.EventLog
	checkpoints storage.CheckpointStore
	applier     EventApplier
	batchSize   int
	now         func() time.Time
	logger      *log.Logger
}

// ConsumerOptions contains configuration for creating a Consumer.
type ConsumerOptions struct {
	ID          string        // checkpoint key
	Venue       string        // empty = all venues
	Stream      domain.Stream // empty = all streams
	Events      storage.EventLog
	Checkpoints storage.CheckpointStore
	Applier     EventApplier
	BatchSize   int // Default: 1000, clamped to [100, 1000]
	Now         func() time.Time
	Logger      *log.Logger
}

// NewConsumer creates a new Consumer.
func NewConsumer(opts ConsumerOptions) *Consumer {
	batchSize := opts.BatchSize
	switch {
	case batchSize == 0:
		batchSize = DefaultBatchSize
	case batchSize < MinBatchSize:
		batchSize = MinBatchSize
	case batchSize > MaxBatchSize:
		batchSize = MaxBatchSize
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Consumer{
		id:          opts.ID,
		filter:      storage.EventFilter{Venue: opts.Venue, Stream: opts.Stream},
		events:      opts.Events,
		checkpoints: opts.Checkpoints,
		applier:     opts.Applier,
		batchSize:   batchSize,
		now:         now,
		logger:      logger,
	}
}

// ID returns the consumer id.
func (c *Consumer) ID() string { return c.id }

// Venue returns the venue the consumer reads, empty for all.
func (c *Consumer) Venue() string { return c.filter.Venue }

// Stream returns the stream the consumer reads, empty for all.
func (c *Consumer) Stream() domain.Stream { return c.filter.Stream }

// StreamConsumerID names the checkpoint of the consumer reading one venue stream,
// e.g. "market-processor:getgems:live".
func StreamConsumerID(base, venue string, stream domain.Stream) string {
	return base + ":" + venue + ":" + string(stream)
}

// BatchSize returns the effective batch size.
func (c *Consumer) BatchSize() int { return c.batchSize }

// PollAndApply fetches the next batch after cp and applies it in order.
// It stops at the first failing event and returns the checkpoint of the
// last successfully applied event together with the error. The returned
// checkpoint never moves backwards.
func (c *Consumer) PollAndApply(ctx context.Context, cp domain.Checkpoint) (domain.Checkpoint, int, error) {
	batch, err := c.events.FetchAfter(ctx, c.filter, cp, c.batchSize)
	if err != nil {
		return cp, 0, fmt.Errorf("fetch batch after (%d, %s): %w", cp.LastTimestamp, formatID(cp.LastID), err)
	}
	if err := ValidateEventOrdering(cp, batch); err != nil {
		return cp, 0, err
	}

	applied := 0
	for _, e := range batch {
		if err := ctx.Err(); err != nil {
			return cp, applied, err
		}
		if err := c.applier.Apply(ctx, e); err != nil {
			observability.RecordApplyError(c.id, e.EventType.String())
			return cp, applied, fmt.Errorf("apply event %s (id=%d, type=%s): %w", e.Hash, e.ID, e.EventType, err)
		}
		observability.RecordEventApplied(c.id, e.EventType.String())
		cp = cp.AdvanceTo(e.Position())
		applied++
	}

	return cp, applied, nil
}

// Poll runs one cycle: load the checkpoint, apply one batch, persist the
// checkpoint up to the last applied event. Returns the number of events applied
// and whether the batch was full (more events are likely pending).
func (c *Consumer) Poll(ctx context.Context) (int, bool, error) {
	start := time.Now()

	cp, err := c.loadCheckpoint(ctx)
	if err != nil {
		return 0, false, err
	}

	next, applied, applyErr := c.PollAndApply(ctx, cp)
	if applied > 0 {
		next.UpdatedAt = c.now().UnixMilli()
		if err := c.checkpoints.Save(ctx, &next); err != nil {
			return applied, false, errors.Join(applyErr, fmt.Errorf("save checkpoint %s: %w", c.id, err))
		}
	}

	observability.RecordPoll(c.id, applied, time.Since(start).Seconds(), next.LastTimestamp)

	if applyErr != nil {
		c.logger.Printf("consumer %s: batch aborted after %d events, checkpoint held at (%d, %s): %v",
			c.id, applied, next.LastTimestamp, formatID(next.LastID), applyErr)
		return applied, false, applyErr
	}

	if applied > 0 {
		c.logger.Printf("consumer %s: applied %d events, checkpoint (%d, %s)",
			c.id, applied, next.LastTimestamp, formatID(next.LastID))
	}
	return applied, applied == c.batchSize, nil
}

// Drain polls until a batch comes back short or a poll fails.
// This is the unit of work scheduled on the fixed-delay loop.
func (c *Consumer) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		applied, full, err := c.Poll(ctx)
		total += applied
		if err != nil || !full {
			return total, err
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

// Checkpoint returns the persisted checkpoint (initial if none saved).
func (c *Consumer) Checkpoint(ctx context.Context) (domain.Checkpoint, error) {
	return c.loadCheckpoint(ctx)
}

func (c *Consumer) loadCheckpoint(ctx context.Context) (domain.Checkpoint, error) {
	cp, err := c.checkpoints.Get(ctx, c.id)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.NewCheckpoint(c.id), nil
	}
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("load checkpoint %s: %w", c.id, err)
	}
	return *cp, nil
}

func formatID(id *int64) string {
	if id == nil {
		return "nil"
	}
	return fmt.Sprintf("%d", *id)
}
