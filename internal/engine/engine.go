// Package engine runs the request lifecycle: polling the feed,
// coordinating drafting and moderation, publishing approved answers,
// and sweeping stuck publishes back for retry.
package engine

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scribeops/scribe/internal/collab"
	"github.com/scribeops/scribe/internal/store"
)

// Config holds the engine's runtime settings.
type Config struct {
	Topic     string
	PollEvery time.Duration
	PollLimit int

	// OrphanAfter is how long a seen item without a request must sit
	// before the poller re-admits it.
	OrphanAfter time.Duration

	LeaseFor           time.Duration
	PublishEvery       time.Duration
	SweepEvery         time.Duration
	MaxPublishAttempts int
	BaseBackoff        time.Duration
	MaxBackoff         time.Duration
	PublishConcurrency int

	DraftTimeout   time.Duration
	PublishTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.PollEvery <= 0 {
		c.PollEvery = time.Minute
	}
	if c.PollLimit <= 0 {
		c.PollLimit = 25
	}
	if c.OrphanAfter <= 0 {
		c.OrphanAfter = time.Hour
	}
	if c.LeaseFor <= 0 {
		c.LeaseFor = 2 * time.Minute
	}
	if c.PublishEvery <= 0 {
		c.PublishEvery = 5 * time.Second
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 30 * time.Second
	}
	if c.MaxPublishAttempts <= 0 {
		c.MaxPublishAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 2 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Minute
	}
	if c.PublishConcurrency <= 0 {
		c.PublishConcurrency = 2
	}
	if c.DraftTimeout <= 0 {
		c.DraftTimeout = 60 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 30 * time.Second
	}
}

// Engine wires the store to the external collaborators and runs the
// lifecycle actors.
type Engine struct {
	cfg    Config
	store  *store.Store
	logger *slog.Logger

	feed      collab.Feed
	drafter   collab.Drafter
	moderator collab.Moderator
	platform  collab.Platform

	now func() time.Time

	pollMu   sync.Mutex
	lastPoll time.Time

	randMu sync.Mutex
	rnd    *rand.Rand

	// cooldowns holds the earliest next publish attempt per request
	// after a transient failure.
	cooldownMu sync.Mutex
	cooldowns  map[string]time.Time
}

// Option adjusts engine construction; used by tests.
type Option func(*Engine)

// WithNow substitutes the engine's time source.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRandSource substitutes the jitter source for deterministic
// backoff tests.
func WithRandSource(src rand.Source) Option {
	return func(e *Engine) { e.rnd = rand.New(src) }
}

func New(cfg Config, st *store.Store, feed collab.Feed, drafter collab.Drafter, moderator collab.Moderator, platform collab.Platform, logger *slog.Logger, opts ...Option) *Engine {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:       cfg,
		store:     st,
		logger:    logger,
		feed:      feed,
		drafter:   drafter,
		moderator: moderator,
		platform:  platform,
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		cooldowns: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run starts the poller, publisher, and sweeper loops and blocks until
// ctx is cancelled. Loops only ever stop on cancellation; collaborator
// failures are logged and retried.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.pollLoop(ctx) })
	g.Go(func() error { return e.publishLoop(ctx) })
	g.Go(func() error { return e.sweepLoop(ctx) })
	return g.Wait()
}

// tickUntilCancelled runs fn immediately and then on every tick of
// interval, stopping when ctx is cancelled.
func (e *Engine) tickUntilCancelled(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	fn(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn(ctx)
		}
	}
}
