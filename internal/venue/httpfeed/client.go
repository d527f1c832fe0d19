// Package httpfeed polls a venue gateway over HTTP.
package httpfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/ingestion"
	"gift-market-tracker/internal/observability"
	"gift-market-tracker/internal/venue"
)

// Default configuration values.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = 1 * time.Second
	DefaultMaxDelay       = 10 * time.Second
	DefaultBackoffMult    = 2.0
	DefaultPageSize       = 100
	DefaultPagesPerSecond = 2.0
	maxWalkPages          = 10000
)

// Client implements ingestion.EventSource and ingestion.ListingWalker
// against a venue gateway.
type Client struct {
	venue       string
	baseURL     string
	client      *http.Client
	limiter     *rate.Limiter
	pageSize    int
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	logger      *log.Logger
}

// Compile-time interface checks.
var (
	_ ingestion.EventSource   = (*Client)(nil)
	_ ingestion.ListingWalker = (*Client)(nil)
)

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithPageSize sets the page size for event and listing requests.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithRateLimit caps requests per second. Zero or less disables the limit.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a gateway client for venue rooted at baseURL.
func NewClient(venueName, baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		venue:       venueName,
		baseURL:     baseURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(DefaultPagesPerSecond), 1),
		pageSize:    DefaultPageSize,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Venue returns the venue name.
func (c *Client) Venue() string {
	return c.venue
}

// FetchEvents returns one page of events after cursor. The gateway serves
// GET /events?since=&after=&limit= in (timestamp, id) order.
// Entries that cannot be normalized are logged and skipped.
func (c *Client) FetchEvents(ctx context.Context, cursor domain.FeedCursor) ([]*domain.Event, error) {
	params := url.Values{}
	params.Set("since", strconv.FormatInt(cursor.Since, 10))
	if cursor.AfterID != "" {
		params.Set("after", cursor.AfterID)
	}
	params.Set("limit", strconv.Itoa(c.pageSize))

	var page venue.EventsPage
	if err := c.get(ctx, "/events", params, &page); err != nil {
		return nil, err
	}

	events := make([]*domain.Event, 0, len(page.Events))
	for _, raw := range page.Events {
		e, err := venue.Normalize(c.venue, raw)
		if err != nil {
			c.logger.Printf("%s: skipping event: %v", c.venue, err)
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// Walk pages through /listings until the gateway returns an empty cursor.
func (c *Client) Walk(ctx context.Context, fn func(domain.ListingItem) error) error {
	cursor := ""
	for pages := 0; ; pages++ {
		if pages >= maxWalkPages {
			return fmt.Errorf("listing walk exceeded %d pages", maxWalkPages)
		}

		params := url.Values{}
		params.Set("limit", strconv.Itoa(c.pageSize))
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var page venue.ListingsPage
		if err := c.get(ctx, "/listings", params, &page); err != nil {
			return fmt.Errorf("listings page %d: %w", pages, err)
		}

		for _, raw := range page.Items {
			if raw.ItemAddress == "" {
				continue
			}
			if err := fn(raw.Item()); err != nil {
				return err
			}
		}

		if page.NextCursor == "" || page.NextCursor == cursor {
			return nil
		}
		cursor = page.NextCursor
	}
}

// get performs a GET with retries and exponential backoff.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	endpoint := c.baseURL + path + "?" + params.Encode()

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.client.Do(req)
		observability.RecordVenueCall(c.venue, path, time.Since(start).Seconds())
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			// Client errors are not retried
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal %s: %w", path, err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
