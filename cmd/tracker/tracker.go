package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"gift-market-tracker/internal/config"
	"gift-market-tracker/internal/domain"
	"gift-market-tracker/internal/enrichment"
	"gift-market-tracker/internal/ingestion"
	"gift-market-tracker/internal/market"
	"gift-market-tracker/internal/reconcile"
	"gift-market-tracker/internal/schedule"
	"gift-market-tracker/internal/venue/httpfeed"
	"gift-market-tracker/internal/venue/wsfeed"
)

// venueRunners holds the producers of one venue. Any of them may be nil.
type venueRunners struct {
	live     *schedule.Loop
	snapshot *schedule.Loop
	push     *wsfeed.Feed
}

// Tracker wires producers, the consumers and the enrichment hook together.
type Tracker struct {
	cfg    *config.Config
	stores *allStores

	machine      *market.Machine
	consumers    []*ingestion.Consumer
	consumerLoop *schedule.Loop
	loops        []*schedule.Loop
	venues       map[string]*venueRunners

	marketData *enrichment.MarketData
	notifier   *enrichment.Notifier

	started time.Time
	logger  *log.Logger
}

func componentLogger(name string) *log.Logger {
	return log.New(os.Stdout, "["+name+"] ", log.LstdFlags|log.Lshortfile)
}

// NewTracker builds all components from cfg.
func NewTracker(cfg *config.Config, stores *allStores) *Tracker {
	t := &Tracker{
		cfg:     cfg,
		stores:  stores,
		venues:  make(map[string]*venueRunners),
		started: time.Now(),
		logger:  componentLogger("tracker"),
	}

	t.marketData = enrichment.NewMarketData(stores.listings)
	t.notifier = enrichment.NewNotifier(enrichment.NotifierOptions{
		Endpoint:  cfg.Enrichment.Endpoint,
		QueueSize: cfg.Enrichment.QueueSize,
		Timeout:   cfg.Enrichment.Timeout,
		Data:      t.marketData,
		Logger:    componentLogger("enrichment"),
	})

	t.machine = market.NewMachine(market.MachineOptions{
		Listings: stores.listings,
		Sales:    stores.sales,
		Finisher: reconcile.NewReconciler(stores.listings, componentLogger("reconcile")),
		Hook:     t.notifier,
		Logger:   componentLogger("market"),
	})

	for _, v := range cfg.Venues {
		t.venues[v.Name] = t.buildVenue(v)
	}

	// Snapshot streams drain before live ones so a sale seen live after a walk
	// started is applied after that walk's stamp of the item.
	for _, stream := range []domain.Stream{domain.StreamSnapshot, domain.StreamLive} {
		for _, v := range cfg.Venues {
			if stream == domain.StreamSnapshot && v.BaseURL == "" {
				continue
			}
			t.consumers = append(t.consumers, t.newConsumer(v.Name, stream))
		}
	}
	t.consumerLoop = schedule.NewLoop("consumer", cfg.Consumer.PollDelay, t.drainConsumers, componentLogger("consumer"))
	t.loops = append([]*schedule.Loop{t.consumerLoop}, t.loops...)

	t.loops = append(t.loops, schedule.NewLoop("market-data", cfg.Enrichment.CacheRefresh,
		t.marketData.Refresh, componentLogger("enrichment")))

	return t
}

// newConsumer reads one stream of one venue. Every event it sees is on the
// same clock, so its (timestamp, id) checkpoint never passes an unread event.
func (t *Tracker) newConsumer(venueName string, stream domain.Stream) *ingestion.Consumer {
	return ingestion.NewConsumer(ingestion.ConsumerOptions{
		ID:          ingestion.StreamConsumerID(t.cfg.Consumer.ID, venueName, stream),
		Venue:       venueName,
		Stream:      stream,
		Events:      t.stores.events,
		Checkpoints: t.stores.checkpoints,
		Applier:     t.machine,
		BatchSize:   t.cfg.Consumer.BatchSize,
		Logger:      componentLogger("consumer"),
	})
}

// drainConsumers drains every consumer in turn, so the projection keeps a
// single writer. A failing consumer does not hold back the others.
func (t *Tracker) drainConsumers(ctx context.Context) error {
	var errs []error
	for _, c := range t.consumers {
		if _, err := c.Drain(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.ID(), err))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

func (t *Tracker) buildVenue(v config.VenueConfig) *venueRunners {
	runners := &venueRunners{}
	logger := componentLogger(v.Name)

	if v.BaseURL != "" {
		client := httpfeed.NewClient(v.Name, v.BaseURL,
			httpfeed.WithPageSize(v.PageSize),
			httpfeed.WithRateLimit(v.PagesPerSecond),
			httpfeed.WithMaxRetries(v.MaxRetries),
			httpfeed.WithLogger(logger),
		)

		live := ingestion.NewLiveFeed(ingestion.LiveFeedOptions{
			Source:      client,
			Events:      t.stores.events,
			Checkpoints: t.stores.checkpoints,
			Logger:      logger,
		})
		runners.live = schedule.NewLoop(v.Name+":live", v.LivePollDelay, func(ctx context.Context) error {
			n, err := live.Poll(ctx)
			if n > 0 {
				t.consumerLoop.Trigger()
			}
			return err
		}, logger)

		snapshots := ingestion.NewSnapshotRunner(ingestion.SnapshotRunnerOptions{
			Walker:     client,
			Events:     t.stores.events,
			AllowEmpty: v.AllowEmptySnapshot,
			Logger:     logger,
		})
		runners.snapshot = schedule.NewLoop(v.Name+":snapshot", v.SnapshotInterval, func(ctx context.Context) error {
			res, err := snapshots.Run(ctx)
			if res.Finished {
				t.consumerLoop.Trigger()
			}
			return err
		}, logger)

		t.loops = append(t.loops, runners.live, runners.snapshot)
	}

	if v.WSURL != "" {
		runners.push = wsfeed.NewFeed(v.Name, v.WSURL, t.stores.events, nil, logger)
	}

	return runners
}

// Run starts every component and the HTTP server, and blocks until ctx is
// cancelled or a component fails.
func (t *Tracker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, loop := range t.loops {
		g.Go(func() error { return loop.Run(ctx) })
	}
	for _, runners := range t.venues {
		if runners.push != nil {
			g.Go(func() error { return runners.push.Run(ctx) })
		}
	}
	if t.cfg.Enrichment.Endpoint != "" {
		g.Go(func() error { return t.notifier.Run(ctx) })
	}

	server := &http.Server{
		Addr:              t.cfg.HTTP.Addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		t.logger.Printf("HTTP server listening on %s", t.cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
