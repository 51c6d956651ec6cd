package limitkit

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/nhalm/limitkit/store"
)

//go:embed slide_window.lua
var slideWindowScript string

// slidingWindow implements the weighted sliding-window decision. The read of
// both counters, the weighted computation, the admit/deny decision, the
// conditional increment, and the TTL refresh execute as one server-side
// script in a single round trip, so no caller ever observes the keys in a
// mid-operation state.
func (l *Limiter) slidingWindow(ctx context.Context, id string) (Result, error) {
	now := l.clock().UnixMilli()
	windowMS := int64(l.cfg.Window) * 1000
	current := windowIndex(now, windowMS)

	keys := []string{
		counterKey(l.cfg.Prefix, id, current),
		counterKey(l.cfg.Prefix, id, current-1),
	}

	raw, err := l.evalSliding(ctx, keys, int64(l.cfg.Limit), now, windowMS, int64(1))
	if err != nil {
		return Result{}, &StoreError{Cause: err}
	}

	remaining, retryAfter, err := parseSlidingReply(raw)
	if err != nil {
		return Result{}, &StoreError{Cause: err}
	}

	// Both counters will have fully aged out of the weighting two windows
	// from now, whatever their indices.
	reset := time.UnixMilli(now + 2*windowMS)

	if remaining < 0 {
		return Result{
			Allowed:    false,
			Limit:      l.cfg.Limit,
			Remaining:  0,
			RetryAfter: time.Duration(retryAfter) * time.Millisecond,
			Reset:      reset,
		}, nil
	}

	return Result{
		Allowed:   true,
		Limit:     l.cfg.Limit,
		Remaining: int(remaining),
		Reset:     reset,
	}, nil
}

// evalSliding runs the sliding-window script by hash, loading it on first
// use. A NOSCRIPT reply (script cache flushed, server restarted) triggers
// one reload and retry.
func (l *Limiter) evalSliding(ctx context.Context, keys []string, args ...any) (any, error) {
	sha, err := l.loadScript(ctx, false)
	if err != nil {
		return nil, err
	}

	raw, err := l.store.EvalSha(ctx, sha, keys, args...)
	if err != nil && store.IsNoScript(err) {
		sha, err = l.loadScript(ctx, true)
		if err != nil {
			return nil, err
		}
		raw, err = l.store.EvalSha(ctx, sha, keys, args...)
	}
	return raw, err
}

// loadScript returns the cached script handle, loading the script bytes into
// the store when the cache is empty or force is set.
func (l *Limiter) loadScript(ctx context.Context, force bool) (string, error) {
	l.scriptMu.Lock()
	defer l.scriptMu.Unlock()

	if l.scriptSHA != "" && !force {
		return l.scriptSHA, nil
	}

	sha, err := l.store.ScriptLoad(ctx, slideWindowScript)
	if err != nil {
		return "", err
	}
	l.scriptSHA = sha
	return sha, nil
}

// parseSlidingReply decodes the script's two-element integer array.
func parseSlidingReply(raw any) (remaining, retryAfter int64, err error) {
	values, ok := raw.([]any)
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected sliding window script reply: %v", raw)
	}

	remaining, ok = replyInt(values[0])
	if !ok {
		return 0, 0, fmt.Errorf("unexpected sliding window script reply element: %v", values[0])
	}
	retryAfter, ok = replyInt(values[1])
	if !ok {
		return 0, 0, fmt.Errorf("unexpected sliding window script reply element: %v", values[1])
	}
	return remaining, retryAfter, nil
}

func replyInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
