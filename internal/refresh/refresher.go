// Package refresh drives the pipeline periodically and holds the latest
// snapshot for readers.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"CapIot.powerfeed/internal/metrics"
	"CapIot.powerfeed/internal/models"
	"CapIot.powerfeed/internal/timecodec"
)

var (
	// ErrRefreshInProgress is returned by RefreshNow when the guard is held.
	ErrRefreshInProgress = errors.New("refresh already in progress")

	// ErrStopped is returned by RefreshNow after Stop.
	ErrStopped = errors.New("refresher stopped")
)

// Runner produces a fresh snapshot. *service.DataService satisfies it.
type Runner interface {
	Run(ctx context.Context) (*models.Measurements, error)
}

// Snapshot is one successful pipeline result.
type Snapshot struct {
	Measurements *models.Measurements `json:"measurements"`
	Version      uint64               `json:"version"`
	RefreshedAt  time.Time            `json:"refreshedAt"`
}

// Refresher runs the pipeline every interval and publishes each successful
// result. Failed runs keep the previous snapshot.
type Refresher struct {
	runner   Runner
	guard    Guard
	interval time.Duration
	clock    timecodec.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics

	latest  atomic.Pointer[Snapshot]
	version atomic.Uint64
	stopped atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Refresher)

// WithGuard replaces the default in-process guard.
func WithGuard(g Guard) Option {
	return func(r *Refresher) {
		r.guard = g
	}
}

func WithClock(c timecodec.Clock) Option {
	return func(r *Refresher) {
		r.clock = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Refresher) {
		r.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Refresher) {
		r.metrics = m
	}
}

// New creates a Refresher. It does nothing until Start or RefreshNow.
func New(runner Runner, interval time.Duration, opts ...Option) *Refresher {
	r := &Refresher{
		runner:   runner,
		guard:    &LocalGuard{},
		interval: interval,
		clock:    timecodec.SystemClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Latest returns the most recent snapshot, or nil before the first success.
func (r *Refresher) Latest() *Snapshot {
	return r.latest.Load()
}

// RefreshNow runs the pipeline once if no other refresh holds the guard.
func (r *Refresher) RefreshNow(ctx context.Context) (*Snapshot, error) {
	if r.stopped.Load() {
		return nil, ErrStopped
	}

	release, ok, err := r.guard.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		r.metrics.RefreshSkipped()
		return nil, ErrRefreshInProgress
	}
	defer release()

	m, err := r.runner.Run(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.stopped.Load() {
		return nil, ErrStopped
	}

	snap := &Snapshot{
		Measurements: m,
		Version:      r.version.Add(1),
		RefreshedAt:  r.clock.Now(),
	}
	r.latest.Store(snap)
	return snap, nil
}

// Start refreshes immediately and then on every tick until ctx is done or
// Stop is called. Calling Start twice is a no-op.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil || r.stopped.Load() {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.tick(ctx)
			}
		}
	}()
}

func (r *Refresher) tick(ctx context.Context) {
	// Pipeline failures are logged and notified by the runner.
	snap, err := r.RefreshNow(ctx)
	switch {
	case err == nil:
		r.logger.Debug("snapshot refreshed", "version", snap.Version)
	case errors.Is(err, ErrRefreshInProgress):
		r.logger.Debug("refresh skipped, another refresh is running")
	}
}

// Stop cancels the loop and waits for an in-flight refresh to return.
// Results arriving after Stop are discarded.
func (r *Refresher) Stop() {
	r.stopped.Store(true)

	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
