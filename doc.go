// Package limitkit provides distributed request rate limiting backed by a
// Redis-protocol-compatible store (Redis or Valkey).
//
// Callers associate each inbound event with a string identifier (user id,
// IP address, API key) and ask the limiter whether the event is admitted.
// The limiter enforces a ceiling of Limit events per rolling Window seconds,
// shared across every process connected to the same backing store.
//
// Two algorithms are available:
//
//   - Fixed window: wall time is partitioned into non-overlapping windows
//     aligned to the epoch; each admission counts against the window
//     containing its timestamp. Implemented with INCR/EXPIRE, so admission
//     is race-free but traffic can burst across a window boundary.
//   - Sliding window: blends the current and immediately preceding windows
//     using a linear weight proportional to how much of the current window
//     has elapsed. The read/compute/conditional-write cycle runs as a single
//     server-side Lua script, so concurrent callers across many processes
//     never over-admit.
//
// Basic usage:
//
//	st, err := store.NewRedis(store.RedisConfig{URL: "localhost:6379"})
//	if err != nil {
//		return err
//	}
//	defer st.Close()
//
//	limiter, err := limitkit.New(st, limitkit.NewSlidingWindow(100, 60))
//	if err != nil {
//		return err
//	}
//
//	res, err := limiter.Limit(ctx, "user:123")
//	if err != nil {
//		return err
//	}
//	if !res.Allowed {
//		// Deny the request; res.RetryAfter hints when to retry.
//	}
//
// # Error Policy
//
// The limiter performs no local recovery. Rate limiting is a decision gate:
// silently admitting on store failure is a security hole and silently
// rejecting is a liveness hole, so every failure surfaces to the caller as a
// *StoreError wrapping the driver cause. Configuration problems are reported
// once, from New, as a *ConfigError; Limit never raises them.
//
// # Concurrency
//
// A Limiter is safe for concurrent use. The only mutable shared state is the
// counter keyspace on the external store, mediated by that store's atomicity
// guarantees; the configuration is immutable and the cached sliding-window
// script handle is mutex-guarded.
//
// For HTTP integration with standard rate limit headers, see the middleware
// subpackage. For the store command surface and the bundled Redis and
// in-memory implementations, see the store subpackage.
package limitkit
