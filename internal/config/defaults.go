package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID       = "gift-market-tracker"
	DefaultBackend          = "memory"
	DefaultConsumerID       = "market-processor"
	DefaultBatchSize        = 1000
	DefaultPollDelay        = 1 * time.Second
	DefaultLivePollDelay    = 5 * time.Second
	DefaultSnapshotInterval = 30 * time.Minute
	DefaultPageSize         = 100
	DefaultPagesPerSecond   = 2.0
	DefaultMaxRetries       = 3
	DefaultQueueSize        = 1024
	DefaultNotifyTimeout    = 5 * time.Second
	DefaultCacheRefresh     = 1 * time.Minute
	DefaultHTTPAddr         = ":8080"
)

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultBackend
	}

	if c.Consumer.ID == "" {
		c.Consumer.ID = DefaultConsumerID
	}
	if c.Consumer.BatchSize == 0 {
		c.Consumer.BatchSize = DefaultBatchSize
	}
	if c.Consumer.PollDelay == 0 {
		c.Consumer.PollDelay = DefaultPollDelay
	}

	for i := range c.Venues {
		applyVenueDefaults(&c.Venues[i])
	}

	if c.Enrichment.QueueSize == 0 {
		c.Enrichment.QueueSize = DefaultQueueSize
	}
	if c.Enrichment.Timeout == 0 {
		c.Enrichment.Timeout = DefaultNotifyTimeout
	}
	if c.Enrichment.CacheRefresh == 0 {
		c.Enrichment.CacheRefresh = DefaultCacheRefresh
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
}

func applyVenueDefaults(v *VenueConfig) {
	if v.LivePollDelay == 0 {
		v.LivePollDelay = DefaultLivePollDelay
	}
	if v.SnapshotInterval == 0 {
		v.SnapshotInterval = DefaultSnapshotInterval
	}
	if v.PageSize == 0 {
		v.PageSize = DefaultPageSize
	}
	if v.PagesPerSecond == 0 {
		v.PagesPerSecond = DefaultPagesPerSecond
	}
	if v.MaxRetries == 0 {
		v.MaxRetries = DefaultMaxRetries
	}
}
