package main

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/observability"
	"gift-market-tracker/internal/schedule"
	"gift-market-tracker/internal/venue/wsfeed"
)

// Handler returns the HTTP surface: health, metrics, status, listings and admin triggers.
func (t *Tracker) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /status", t.handleStatus)
	mux.HandleFunc("GET /listings", t.handleListings)
	mux.HandleFunc("POST /admin/poll", t.handlePoll)
	mux.HandleFunc("POST /admin/snapshot", t.handleSnapshot)

	return mux
}

type checkpointView struct {
	ConsumerID    string        `json:"consumer_id"`
	Venue         string        `json:"venue"`
	Stream        domain.Stream `json:"stream"`
	LastTimestamp int64         `json:"last_timestamp"`
	LastID        *int64        `json:"last_id,omitempty"`
}

type enrichmentView struct {
	Enabled     bool `json:"enabled"`
	Pending     int  `json:"pending"`
	Collections int  `json:"collections"`
	FloorPrices int  `json:"floor_prices"`
}

type statusResponse struct {
	Instance    string                  `json:"instance"`
	Uptime      string                  `json:"uptime"`
	Checkpoints []checkpointView        `json:"checkpoints"`
	Listings    int64                   `json:"listings"`
	Loops       []schedule.Status       `json:"loops"`
	PushFeeds   map[string]wsfeed.Stats `json:"push_feeds,omitempty"`
	Enrichment  enrichmentView          `json:"enrichment"`
}

func (t *Tracker) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	count, err := t.stores.listings.Count(ctx, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := statusResponse{
		Instance: t.cfg.Instance.ID,
		Uptime:   time.Since(t.started).Round(time.Second).String(),
		Listings: count,
	}

	for _, c := range t.consumers {
		cp, err := c.Checkpoint(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Checkpoints = append(resp.Checkpoints, checkpointView{
			ConsumerID:    cp.ConsumerID,
			Venue:         c.Venue(),
			Stream:        c.Stream(),
			LastTimestamp: cp.LastTimestamp,
			LastID:        cp.LastID,
		})
	}

	for _, loop := range t.loops {
		resp.Loops = append(resp.Loops, loop.Status())
	}
	for name, runners := range t.venues {
		if runners.push == nil {
			continue
		}
		if resp.PushFeeds == nil {
			resp.PushFeeds = make(map[string]wsfeed.Stats)
		}
		resp.PushFeeds[name] = runners.push.Stats()
	}

	collections, floors := t.marketData.Sizes()
	resp.Enrichment = enrichmentView{
		Enabled:     t.cfg.Enrichment.Endpoint != "",
		Pending:     t.notifier.Pending(),
		Collections: collections,
		FloorPrices: floors,
	}

	writeJSON(w, http.StatusOK, resp)
}

type listingView struct {
	ItemAddress       string  `json:"item_address"`
	CollectionAddress string  `json:"collection_address,omitempty"`
	Venue             string  `json:"venue"`
	Name              string  `json:"name"`
	Price             string  `json:"price"`
	PriceNano         int64   `json:"price_nano"`
	Currency          string  `json:"currency,omitempty"`
	Seller            string  `json:"seller,omitempty"`
	IsOffchain        bool    `json:"is_offchain"`
	ListedAt          int64   `json:"listed_at"`
	UpdatedAt         int64   `json:"updated_at"`
	LastSnapshotID    *string `json:"last_snapshot_id,omitempty"`
}

func newListingView(l *domain.CurrentListing) listingView {
	return listingView{
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
		UpdatedAt:         l.UpdatedAt,
		LastSnapshotID:    l.LastSnapshotID,
	}
}

func (t *Tracker) handleListings(w http.ResponseWriter, r *http.Request) {
	q := domain.ListingQuery{
		Venue:             r.URL.Query().Get("venue"),
		CollectionAddress: r.URL.Query().Get("collection"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		q.Limit = limit
	}

	listings, err := t.stores.listings.List(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]listingView, 0, len(listings))
	for _, l := range listings {
		views = append(views, newListingView(l))
	}
	writeJSON(w, http.StatusOK, views)
}

type triggerResponse struct {
	Triggered []string `json:"triggered"`
}

// handlePoll forces an immediate consumer run and, with ?venue=, a live feed poll of that venue.
func (t *Tracker) handlePoll(w http.ResponseWriter, r *http.Request) {
	resp := triggerResponse{Triggered: []string{}}

	if name := r.URL.Query().Get("venue"); name != "" {
		runners, ok := t.venues[name]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown venue "+name)
			return
		}
		if runners.live != nil && runners.live.Trigger() {
			resp.Triggered = append(resp.Triggered, runners.live.Name())
		}
	}

	if t.consumerLoop.Trigger() {
		resp.Triggered = append(resp.Triggered, t.consumerLoop.Name())
	}
	sort.Strings(resp.Triggered)
	writeJSON(w, http.StatusAccepted, resp)
}

// handleSnapshot forces an immediate snapshot walk of ?venue=.
func (t *Tracker) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("venue")
	if name == "" {
		writeError(w, http.StatusBadRequest, "venue is required")
		return
	}
	runners, ok := t.venues[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown venue "+name)
		return
	}
	if runners.snapshot == nil {
		writeError(w, http.StatusConflict, "venue "+name+" has no listing endpoint")
		return
	}

	resp := triggerResponse{Triggered: []string{}}
	if runners.snapshot.Trigger() {
		resp.Triggered = append(resp.Triggered, runners.snapshot.Name())
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
