// Package schedule runs work on fixed-delay loops.
package schedule

import (
	"context"
	"log"
	"sync"
	"time"
)

// Func is one unit of scheduled work.
type Func func(ctx context.Context) error

// Status is a point-in-time view of a loop.
type Status struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	Runs      int64     `json:"runs"`
	Failures  int64     `json:"failures"`
	LastStart time.Time `json:"last_start,omitempty"`
	LastEnd   time.Time `json:"last_end,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Loop calls its Func, waits a fixed delay after it returns, and repeats.
// Runs never overlap: the delay starts only once the previous run is complete.
// Trigger cuts the current wait short for an extra run.
type Loop struct {
	name    string
	delay   time.Duration
	fn      Func
	trigger chan struct{}
	logger  *log.Logger

	mu     sync.Mutex
	status Status
}

// NewLoop creates a new Loop.
func NewLoop(name string, delay time.Duration, fn Func, logger *log.Logger) *Loop {
	if logger == nil {
		logger = log.Default()
	}
	return &Loop{
		name:    name,
		delay:   delay,
		fn:      fn,
		trigger: make(chan struct{}, 1),
		logger:  logger,
		status:  Status{Name: name},
	}
}

// Name returns the loop name.
func (l *Loop) Name() string { return l.name }

// Trigger requests an extra run as soon as the current one (if any) completes.
// Returns false if a triggered run is already pending.
func (l *Loop) Trigger() bool {
	select {
	case l.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Status returns a snapshot of the loop state.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Run blocks until ctx is cancelled. The first run starts immediately.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.runOnce(ctx)

		timer := time.NewTimer(l.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-l.trigger:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (l *Loop) runOnce(ctx context.Context) {
	l.mu.Lock()
	l.status.Running = true
	l.status.LastStart = time.Now()
	l.mu.Unlock()

	err := l.fn(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.Running = false
	l.status.LastEnd = time.Now()
	l.status.Runs++
	if err != nil && ctx.Err() == nil {
		l.status.Failures++
		l.status.LastError = err.Error()
		l.logger.Printf("%s: run failed: %v", l.name, err)
	} else {
		l.status.LastError = ""
	}
}
