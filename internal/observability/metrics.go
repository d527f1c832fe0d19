// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Event log metrics
	EventsAppended   *prometheus.CounterVec
	EventsDuplicate  *prometheus.CounterVec
	FeedFetchErrors  *prometheus.CounterVec
	FeedCursorMillis *prometheus.GaugeVec

	// Consumer metrics
	EventsApplied       *prometheus.CounterVec
	ApplyErrors         *prometheus.CounterVec
	CheckpointTimestamp *prometheus.GaugeVec
	PollDuration        *prometheus.HistogramVec
	BatchSize           *prometheus.HistogramVec

	// Snapshot metrics
	SnapshotRuns     *prometheus.CounterVec
	SnapshotItems    *prometheus.CounterVec
	SnapshotDuration *prometheus.HistogramVec
	ListingsPurged   *prometheus.CounterVec

	// Projection metrics
	CurrentListings *prometheus.GaugeVec
	SalesRecorded   *prometheus.CounterVec

	// Enrichment metrics
	EnrichmentSent    prometheus.Counter
	EnrichmentDropped prometheus.Counter
	EnrichmentErrors  prometheus.Counter

	// Venue HTTP metrics
	VenueCallLatency *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "gift_market"
	}

	return &Metrics{
		EventsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventlog",
			Name:      "events_appended_total",
			Help:      "Total number of events appended to the event log",
		}, []string{"venue", "event_type"}),
		EventsDuplicate: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventlog",
			Name:      "events_duplicate_total",
			Help:      "Total number of events skipped because the hash was already logged",
		}, []string{"venue"}),
		FeedFetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventlog",
			Name:      "feed_fetch_errors_total",
			Help:      "Total number of failed venue feed fetches",
		}, []string{"venue"}),
		FeedCursorMillis: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "eventlog",
			Name:      "feed_cursor_timestamp_ms",
			Help:      "Live feed cursor position in Unix milliseconds",
		}, []string{"venue"}),

		EventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "events_applied_total",
			Help:      "Total number of events applied to the projection by type",
		}, []string{"consumer", "event_type"}),
		ApplyErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "apply_errors_total",
			Help:      "Total number of aborted batches",
		}, []string{"consumer", "event_type"}),
		CheckpointTimestamp: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "checkpoint_timestamp_ms",
			Help:      "Checkpoint position in Unix milliseconds",
		}, []string{"consumer"}),
		PollDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "poll_duration_seconds",
			Help:      "Duration of one poll-and-apply cycle",
			Buckets:   prometheus.DefBuckets,
		}, []string{"consumer"}),
		BatchSize: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "batch_size",
			Help:      "Number of events fetched per poll",
			Buckets:   []float64{0, 1, 10, 50, 100, 250, 500, 1000},
		}, []string{"consumer"}),

		SnapshotRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "runs_total",
			Help:      "Total number of snapshot walks by status",
		}, []string{"venue", "status"}),
		SnapshotItems: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "items_total",
			Help:      "Total number of items stamped by snapshot walks",
		}, []string{"venue"}),
		SnapshotDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "duration_seconds",
			Help:      "Snapshot walk duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"venue"}),
		ListingsPurged: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "listings_purged_total",
			Help:      "Total number of stale listings removed by reconciliation",
		}, []string{"venue"}),

		CurrentListings: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "current_listings",
			Help:      "Number of items currently listed",
		}, []string{"venue"}),
		SalesRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "sales_recorded_total",
			Help:      "Total number of sale records written",
		}, []string{"venue"}),

		EnrichmentSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "notices_sent_total",
			Help:      "Total number of new-listing notices delivered downstream",
		}),
		EnrichmentDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "notices_dropped_total",
			Help:      "Total number of new-listing notices dropped on a full queue",
		}),
		EnrichmentErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "notice_errors_total",
			Help:      "Total number of failed new-listing deliveries",
		}),

		VenueCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "venue",
			Name:      "call_latency_seconds",
			Help:      "Venue API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"venue", "endpoint"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventAppended counts an event written to the log.
func RecordEventAppended(venue, eventType string) {
	DefaultMetrics.EventsAppended.WithLabelValues(venue, eventType).Inc()
}

// RecordEventDuplicate counts an event skipped on hash dedup.
func RecordEventDuplicate(venue string) {
	DefaultMetrics.EventsDuplicate.WithLabelValues(venue).Inc()
}

// RecordFeedFetchError counts a failed venue feed fetch.
func RecordFeedFetchError(venue string) {
	DefaultMetrics.FeedFetchErrors.WithLabelValues(venue).Inc()
}

// UpdateFeedCursor sets the live feed cursor gauge.
func UpdateFeedCursor(venue string, ts int64) {
	DefaultMetrics.FeedCursorMillis.WithLabelValues(venue).Set(float64(ts))
}

// RecordEventApplied counts an event applied by a consumer.
func RecordEventApplied(consumer, eventType string) {
	DefaultMetrics.EventsApplied.WithLabelValues(consumer, eventType).Inc()
}

// RecordApplyError counts an aborted batch.
func RecordApplyError(consumer, eventType string) {
	DefaultMetrics.ApplyErrors.WithLabelValues(consumer, eventType).Inc()
}

// RecordPoll records one poll cycle.
func RecordPoll(consumer string, fetched int, seconds float64, checkpointTs int64) {
	DefaultMetrics.PollDuration.WithLabelValues(consumer).Observe(seconds)
	DefaultMetrics.BatchSize.WithLabelValues(consumer).Observe(float64(fetched))
	DefaultMetrics.CheckpointTimestamp.WithLabelValues(consumer).Set(float64(checkpointTs))
}

// RecordSnapshotRun records a finished or aborted snapshot walk.
func RecordSnapshotRun(venue, status string, items int, durationSeconds float64) {
	DefaultMetrics.SnapshotRuns.WithLabelValues(venue, status).Inc()
	DefaultMetrics.SnapshotItems.WithLabelValues(venue).Add(float64(items))
	DefaultMetrics.SnapshotDuration.WithLabelValues(venue).Observe(durationSeconds)
}

// RecordListingsPurged counts listings removed by reconciliation.
func RecordListingsPurged(venue string, n int64) {
	DefaultMetrics.ListingsPurged.WithLabelValues(venue).Add(float64(n))
}

// UpdateCurrentListings sets the current listing gauge for a venue.
func UpdateCurrentListings(venue string, n int64) {
	DefaultMetrics.CurrentListings.WithLabelValues(venue).Set(float64(n))
}

// RecordSale counts a sale record write.
func RecordSale(venue string) {
	DefaultMetrics.SalesRecorded.WithLabelValues(venue).Inc()
}

// RecordEnrichment records the outcome of one new-listing notice.
func RecordEnrichment(sent bool, err error) {
	switch {
	case err != nil:
		DefaultMetrics.EnrichmentErrors.Inc()
	case sent:
		DefaultMetrics.EnrichmentSent.Inc()
	default:
		DefaultMetrics.EnrichmentDropped.Inc()
	}
}

// RecordVenueCall records a venue API call latency.
func RecordVenueCall(venue, endpoint string, seconds float64) {
	DefaultMetrics.VenueCallLatency.WithLabelValues(venue, endpoint).Observe(seconds)
}
