package limitkit

import (
	"context"
	"time"
)

// fixedWindow implements the fixed-window decision with primitive
// INCR/EXPIRE/TTL commands. INCR is atomic, so concurrent callers never
// observe the same count and the decision is simply count <= limit.
//
// If the process dies between INCR and EXPIRE the counter key stays
// persistent and the identifier is starved until the key is cleared; the
// window for that to happen is a single round trip and is accepted.
func (l *Limiter) fixedWindow(ctx context.Context, id string) (Result, error) {
	now := l.clock().UnixMilli()
	windowMS := int64(l.cfg.Window) * 1000
	index := windowIndex(now, windowMS)
	windowEnd := time.UnixMilli((index + 1) * windowMS)

	key := counterKey(l.cfg.Prefix, id, index)

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return Result{}, &StoreError{Cause: err}
	}

	// First increment in this window creates the key; give it a lifetime of
	// one window from now. The next window uses a different key, so this one
	// is no longer consulted after the boundary and expires at most one
	// window later.
	if count == 1 {
		if err := l.store.Expire(ctx, key, time.Duration(l.cfg.Window)*time.Second); err != nil {
			return Result{}, &StoreError{Cause: err}
		}
	}

	if count > int64(l.cfg.Limit) {
		ttl, err := l.store.TTL(ctx, key)
		if err != nil {
			return Result{}, &StoreError{Cause: err}
		}
		return Result{
			Allowed:    false,
			Limit:      l.cfg.Limit,
			Remaining:  0,
			RetryAfter: max(ttl, 0),
			Reset:      windowEnd,
		}, nil
	}

	return Result{
		Allowed:   true,
		Limit:     l.cfg.Limit,
		Remaining: l.cfg.Limit - int(count),
		Reset:     windowEnd,
	}, nil
}
