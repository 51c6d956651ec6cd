package limitkit

import (
	"context"
	"sync"
	"time"

	"github.com/nhalm/limitkit/store"
)

// Limiter makes rate limit decisions against a shared backing store.
// It is safe for concurrent use; each Limit call is independent.
type Limiter struct {
	store store.Store
	cfg   Config
	clock Clock

	// scriptMu guards the lazily loaded sliding-window script handle.
	scriptMu  sync.Mutex
	scriptSHA string
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the wall-clock source. Useful for deterministic tests;
// production code should rely on the default (time.Now).
func WithClock(c Clock) Option {
	return func(l *Limiter) {
		if c != nil {
			l.clock = c
		}
	}
}

// New creates a Limiter over the given store and configuration.
// The configuration is validated eagerly: a non-positive limit or window,
// or an unknown algorithm, yields a *ConfigError and no limiter.
func New(st store.Store, cfg Config, opts ...Option) (*Limiter, error) {
	if st == nil {
		return nil, &ConfigError{Reason: "store must not be nil"}
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	l := &Limiter{
		store: st,
		cfg:   cfg,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Config returns a copy of the limiter's configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}

// Limit records one event for id and reports whether it is admitted.
//
// The identifier is any non-empty byte string chosen by the caller; it
// participates verbatim in the counter key. Calls with distinct identifiers
// never affect each other.
//
// Any store failure is returned as a *StoreError wrapping the driver cause.
// The store may have observed an increment before the failure; counters
// self-expire, so no cleanup is required.
func (l *Limiter) Limit(ctx context.Context, id string) (Result, error) {
	if l.cfg.Algorithm == FixedWindow {
		return l.fixedWindow(ctx, id)
	}
	return l.slidingWindow(ctx, id)
}
