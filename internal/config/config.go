// Package config loads the tracker's YAML configuration.
package config

import "time"

// Config is the root configuration of a tracker instance.
type Config struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Storage    StorageConfig    `yaml:"storage"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
	Venues     []VenueConfig    `yaml:"venues"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	HTTP       HTTPConfig       `yaml:"http"`
}

// InstanceConfig identifies this tracker.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// StorageConfig selects the store backend.
type StorageConfig struct {
	Backend       string `yaml:"backend"` // "memory" or "postgres"
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"` // optional sale archive
	Migrate       bool   `yaml:"migrate"`
}

// ConsumerConfig holds event log consumer settings.
type ConsumerConfig struct {
	ID        string        `yaml:"id"`
	BatchSize int           `yaml:"batch_size"`
	PollDelay time.Duration `yaml:"poll_delay"`
}

// VenueConfig holds one venue's producers.
// BaseURL enables the polling live feed and snapshots; WSURL enables the push feed.
type VenueConfig struct {
	Name               string        `yaml:"name"`
	BaseURL            string        `yaml:"base_url"`
	WSURL              string        `yaml:"ws_url"`
	LivePollDelay      time.Duration `yaml:"live_poll_delay"`
	SnapshotInterval   time.Duration `yaml:"snapshot_interval"`
	PageSize           int           `yaml:"page_size"`
	PagesPerSecond     float64       `yaml:"pages_per_second"`
	MaxRetries         int           `yaml:"max_retries"`
	AllowEmptySnapshot bool          `yaml:"allow_empty_snapshot"`
}

// EnrichmentConfig holds new-listing notifier settings.
// An empty endpoint disables delivery.
type EnrichmentConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	QueueSize    int           `yaml:"queue_size"`
	Timeout      time.Duration `yaml:"timeout"`
	CacheRefresh time.Duration `yaml:"cache_refresh"`
}

// HTTPConfig holds the status/admin server settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Venue returns the venue with the given name.
func (c *Config) Venue(name string) (VenueConfig, bool) {
	for _, v := range c.Venues {
		if v.Name == name {
			return v, true
		}
	}
	return VenueConfig{}, false
}
