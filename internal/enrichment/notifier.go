package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/observability"
)

// Notice is the payload posted downstream for each newly detected listing.
type Notice struct {
	ItemAddress       string `json:"item_address"`
	CollectionAddress string `json:"collection_address"`
	Venue             string `json:"venue"`
	Name              string `json:"name"`
	Price             string `json:"price"`
	PriceNano         int64  `json:"price_nano"`
	FloorNano         int64  `json:"floor_nano,omitempty"`
	Currency          string `json:"currency"`
	Seller            string `json:"seller"`
	IsOffchain        bool   `json:"is_offchain"`
	ListedAt          int64  `json:"listed_at"`
}

// Notifier delivers new-listing notices on a bounded queue.
// Delivery is fire-and-forget: a full queue drops the notice and a failed
// POST is logged, never retried. The projection does not depend on it.
type Notifier struct {
	endpoint string
	client   *http.Client
	data     *MarketData
	queue    chan Notice
	logger   *log.Logger
}

// NotifierOptions contains configuration for creating a Notifier.
type NotifierOptions struct {
	Endpoint  string        // downstream URL; empty disables delivery
	QueueSize int           // Default: 1024
	Timeout   time.Duration // per POST; Default: 5s
	Data      *MarketData   // optional collection/floor lookups
	Logger    *log.Logger
}

// NewNotifier creates a new Notifier.
func NewNotifier(opts NotifierOptions) *Notifier {
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Notifier{
		endpoint: opts.Endpoint,
		client:   &http.Client{Timeout: timeout},
		data:     opts.Data,
		queue:    make(chan Notice, queueSize),
		logger:   logger,
	}
}

// OnNewListing enqueues a notice for l without blocking.
func (n *Notifier) OnNewListing(_ context.Context, l *domain.CurrentListing) {
	if n.endpoint == "" {
		return
	}

	notice := n.build(l)
	select {
	case n.queue <- notice:
	default:
		observability.RecordEnrichment(false, nil)
		n.logger.Printf("notice queue full, dropping %s", l.ItemAddress)
	}
}

// Pending returns the number of queued notices.
func (n *Notifier) Pending() int {
	return len(n.queue)
}

// Run delivers queued notices until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notice := <-n.queue:
			err := n.post(ctx, notice)
			observability.RecordEnrichment(err == nil, err)
			if err != nil && ctx.Err() == nil {
				n.logger.Printf("notice for %s failed: %v", notice.ItemAddress, err)
			}
		}
	}
}

func (n *Notifier) build(l *domain.CurrentListing) Notice {
	notice := Notice{
		ItemAddress:       l.ItemAddress,
		CollectionAddress: l.CollectionAddress,
		Venue:             l.Venue,
		Name:              l.Name,
		Price:             l.Price,
		PriceNano:         l.PriceNano,
		Currency:          l.Currency,
		Seller:            l.Seller,
		IsOffchain:        l.IsOffchain,
		ListedAt:          l.ListedAt,
	}

	if n.data == nil {
		return notice
	}
	if notice.CollectionAddress == "" {
		if addr, ok := n.data.ResolveCollection(l.Name); ok {
			notice.CollectionAddress = addr
		}
	}
	if floor, ok := n.data.FloorPrice(notice.CollectionAddress); ok {
		notice.FloorNano = floor
	}
	return notice
}

func (n *Notifier) post(ctx context.Context, notice Notice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notice: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post notice: status %d", resp.StatusCode)
	}
	return nil
}
