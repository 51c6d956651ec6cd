package limitkit

import (
	"context"
	"testing"
	"time"
)

func newFixedLimiter(t *testing.T, cfg Config, clock *fakeClock) (*Limiter, *fakeStore) {
	t.Helper()

	st := newFakeStore(clock.Now)
	l, err := New(st, cfg, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l, st
}

func TestFixedWindow_Sequence(t *testing.T) {
	clock := newFakeClock(base)
	l, _ := newFixedLimiter(t, NewFixedWindow(5, 10), clock)
	ctx := context.Background()

	windowEnd := base.Add(10 * time.Second)

	for i, wantRemaining := range []int{4, 3, 2, 1, 0} {
		res, err := l.Limit(ctx, "a")
		if err != nil {
			t.Fatalf("call %d: Limit() error = %v", i+1, err)
		}
		if !res.Allowed {
			t.Fatalf("call %d: denied, want allowed", i+1)
		}
		if res.Remaining != wantRemaining {
			t.Errorf("call %d: remaining = %d, want %d", i+1, res.Remaining, wantRemaining)
		}
		if res.RetryAfter != 0 {
			t.Errorf("call %d: retry after = %v, want 0", i+1, res.RetryAfter)
		}
		if !res.Reset.Equal(windowEnd) {
			t.Errorf("call %d: reset = %v, want %v", i+1, res.Reset, windowEnd)
		}
		if res.Limit != 5 {
			t.Errorf("call %d: limit = %d, want 5", i+1, res.Limit)
		}
	}

	res, err := l.Limit(ctx, "a")
	if err != nil {
		t.Fatalf("Limit() error = %v", err)
	}
	if res.Allowed {
		t.Fatal("sixth call allowed, want denied")
	}
	if res.Remaining != 0 {
		t.Errorf("denied remaining = %d, want 0", res.Remaining)
	}
	if res.RetryAfter <= 0 || res.RetryAfter > 10*time.Second {
		t.Errorf("denied retry after = %v, want in (0s, 10s]", res.RetryAfter)
	}
	if !res.Reset.Equal(windowEnd) {
		t.Errorf("denied reset = %v, want %v", res.Reset, windowEnd)
	}
	if !res.Reset.After(clock.Now()) {
		t.Errorf("reset %v is not after now %v", res.Reset, clock.Now())
	}
}

func TestFixedWindow_Rollover(t *testing.T) {
	clock := newFakeClock(base)
	l, _ := newFixedLimiter(t, NewFixedWindow(5, 1), clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := l.Limit(ctx, "a")
		if err != nil || !res.Allowed {
			t.Fatalf("call %d: res = %+v, err = %v", i+1, res, err)
		}
	}

	res, err := l.Limit(ctx, "a")
	if err != nil {
		t.Fatalf("Limit() error = %v", err)
	}
	if res.Allowed {
		t.Fatal("call over limit allowed")
	}

	clock.Advance(1100 * time.Millisecond)

	res, err = l.Limit(ctx, "a")
	if err != nil {
		t.Fatalf("Limit() after rollover error = %v", err)
	}
	if !res.Allowed {
		t.Fatal("call in fresh window denied")
	}
	if res.Remaining != 4 {
		t.Errorf("fresh window remaining = %d, want 4", res.Remaining)
	}
}

func TestFixedWindow_RetryAfterTracksTTL(t *testing.T) {
	clock := newFakeClock(base)
	l, _ := newFixedLimiter(t, NewFixedWindow(1, 10), clock)
	ctx := context.Background()

	if _, err := l.Limit(ctx, "a"); err != nil {
		t.Fatalf("Limit() error = %v", err)
	}

	clock.Advance(4 * time.Second)

	res, err := l.Limit(ctx, "a")
	if err != nil {
		t.Fatalf("Limit() error = %v", err)
	}
	if res.Allowed {
		t.Fatal("second call allowed, want denied")
	}
	if res.RetryAfter != 6*time.Second {
		t.Errorf("retry after = %v, want 6s", res.RetryAfter)
	}
}

func TestFixedWindow_NegativeTTLClamped(t *testing.T) {
	clock := newFakeClock(base)
	l, st := newFixedLimiter(t, NewFixedWindow(5, 10), clock)
	ctx := context.Background()

	// A counter that lost its expiration reports a negative TTL; the
	// retry hint clamps to zero rather than going negative.
	key := counterKey(DefaultPrefix, "a", windowIndex(base.UnixMilli(), 10_000))
	if err := st.Set(ctx, key, 5, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	res, err := l.Limit(ctx, "a")
	if err != nil {
		t.Fatalf("Limit() error = %v", err)
	}
	if res.Allowed {
		t.Fatal("call over limit allowed")
	}
	if res.RetryAfter != 0 {
		t.Errorf("retry after = %v, want 0 for persistent counter", res.RetryAfter)
	}
}

func TestFixedWindow_ExpireOnlyOnFirstIncrement(t *testing.T) {
	clock := newFakeClock(base)
	l, st := newFixedLimiter(t, NewFixedWindow(5, 10), clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := l.Limit(ctx, "a"); err != nil {
			t.Fatalf("Limit() error = %v", err)
		}
	}

	if st.expireCalls != 1 {
		t.Errorf("expire calls = %d, want 1", st.expireCalls)
	}
}

func TestFixedWindow_KeyLayout(t *testing.T) {
	clock := newFakeClock(base)

	cfg := NewFixedWindow(5, 10)
	cfg.Prefix = "myapp"
	l, st := newFixedLimiter(t, cfg, clock)

	if _, err := l.Limit(context.Background(), "user:42"); err != nil {
		t.Fatalf("Limit() error = %v", err)
	}

	want := counterKey("myapp", "user:42", windowIndex(base.UnixMilli(), 10_000))
	if got, _ := st.Get(context.Background(), want); got != 1 {
		t.Errorf("counter at %q = %d, want 1", want, got)
	}
}

func TestFixedWindow_IdentifierIsolation(t *testing.T) {
	clock := newFakeClock(base)
	l, _ := newFixedLimiter(t, NewFixedWindow(2, 10), clock)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if res, err := l.Limit(ctx, "a"); err != nil || !res.Allowed {
			t.Fatalf("id a call %d: res = %+v, err = %v", i+1, res, err)
		}
	}
	if res, _ := l.Limit(ctx, "a"); res.Allowed {
		t.Fatal("id a over limit allowed")
	}

	res, err := l.Limit(ctx, "b")
	if err != nil {
		t.Fatalf("Limit() error = %v", err)
	}
	if !res.Allowed || res.Remaining != 1 {
		t.Errorf("id b first call res = %+v, want allowed with remaining 1", res)
	}
}

func TestFixedWindow_PrefixIsolation(t *testing.T) {
	clock := newFakeClock(base)
	st := newFakeStore(clock.Now)

	cfgA := NewFixedWindow(1, 10)
	cfgA.Prefix = "svc-a"
	cfgB := NewFixedWindow(1, 10)
	cfgB.Prefix = "svc-b"

	la, err := New(st, cfgA, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	lb, err := New(st, cfgB, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	if res, _ := la.Limit(ctx, "shared"); !res.Allowed {
		t.Fatal("limiter a first call denied")
	}
	if res, _ := la.Limit(ctx, "shared"); res.Allowed {
		t.Fatal("limiter a second call allowed over limit")
	}

	res, err := lb.Limit(ctx, "shared")
	if err != nil {
		t.Fatalf("Limit() error = %v", err)
	}
	if !res.Allowed {
		t.Error("limiter b affected by limiter a's counter")
	}
}

func TestWindowIndex(t *testing.T) {
	tests := []struct {
		nowMS    int64
		windowMS int64
		want     int64
	}{
		{0, 1000, 0},
		{999, 1000, 0},
		{1000, 1000, 1},
		{-1, 1000, -1},
		{-1000, 1000, -1},
		{-1001, 1000, -2},
	}

	for _, tt := range tests {
		if got := windowIndex(tt.nowMS, tt.windowMS); got != tt.want {
			t.Errorf("windowIndex(%d, %d) = %d, want %d", tt.nowMS, tt.windowMS, got, tt.want)
		}
	}
}
