package config

import (
	"errors"
	"fmt"
	"strings"

	"gift-market-tracker/internal/ingestion"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend must be memory or postgres, got %q", c.Storage.Backend)
	}

	if c.Consumer.ID == "" {
		return errors.New("consumer.id is required")
	}
	if c.Consumer.BatchSize < ingestion.MinBatchSize || c.Consumer.BatchSize > ingestion.MaxBatchSize {
		return fmt.Errorf("consumer.batch_size must be between %d and %d, got %d",
			ingestion.MinBatchSize, ingestion.MaxBatchSize, c.Consumer.BatchSize)
	}
	if c.Consumer.PollDelay < 0 {
		return errors.New("consumer.poll_delay must be >= 0")
	}

	if len(c.Venues) == 0 {
		return errors.New("at least one venue is required")
	}
	seen := make(map[string]bool, len(c.Venues))
	for i, v := range c.Venues {
		prefix := fmt.Sprintf("venues[%d]", i)
		if err := v.validate(prefix); err != nil {
			return err
		}
		if seen[v.Name] {
			return fmt.Errorf("%s.name %q is duplicated", prefix, v.Name)
		}
		seen[v.Name] = true
	}

	if c.Enrichment.QueueSize < 1 {
		return errors.New("enrichment.queue_size must be >= 1")
	}

	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}

	return nil
}

func (v *VenueConfig) validate(prefix string) error {
	if v.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if strings.Contains(v.Name, ":") {
		return fmt.Errorf("%s.name must not contain ':'", prefix)
	}
	if v.BaseURL == "" && v.WSURL == "" {
		return fmt.Errorf("%s: base_url or ws_url is required", prefix)
	}
	if v.PageSize < 1 {
		return fmt.Errorf("%s.page_size must be >= 1", prefix)
	}
	if v.PagesPerSecond < 0 {
		return fmt.Errorf("%s.pages_per_second must be >= 0", prefix)
	}
	if v.MaxRetries < 0 {
		return fmt.Errorf("%s.max_retries must be >= 0", prefix)
	}
	return nil
}
