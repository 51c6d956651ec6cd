// Package middleware integrates limitkit with net/http and Chi routers.
//
// The middleware extracts a rate limiting key from each request, asks the
// limiter for a decision, and sets standard rate limit headers
// (RateLimit-Limit, RateLimit-Remaining, RateLimit-Reset) following the
// IETF draft-ietf-httpapi-ratelimit-headers specification. Denied requests
// receive 429 (Too Many Requests), with a Retry-After header unless the
// header mode is HeadersNever; store failures receive 500 (Internal Server
// Error).
//
// Basic usage:
//
//	limiter, _ := limitkit.New(st, limitkit.NewSlidingWindow(100, 60))
//	r.Use(middleware.New(limiter, middleware.WithIP()))
//
// Multi-dimensional keys combine with ":" as a separator:
//
//	r.Use(middleware.New(limiter,
//		middleware.WithName("api"),
//		middleware.WithIP(),
//		middleware.WithHeader("X-Tenant-ID"),
//	))
//
// If a non-required dimension is missing, rate limiting is skipped for that
// request. Required dimension variants reject the request with 400 instead.
package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nhalm/canonlog"

	"github.com/nhalm/limitkit"
)

// HeaderMode controls when rate limit headers are included in responses.
type HeaderMode int

const (
	// HeadersAlways includes rate limit headers on all responses (default).
	HeadersAlways HeaderMode = iota

	// HeadersOnLimitExceeded includes rate limit headers only on 429 responses.
	HeadersOnLimitExceeded

	// HeadersNever never includes rate limit headers in any response.
	// Use this when you want rate limiting without exposing limits to clients.
	HeadersNever
)

// KeyFunc extracts a rate limiting key component from an HTTP request.
// Returning an empty string indicates the value is missing.
type KeyFunc func(*http.Request) string

// dimension holds a key function with validation metadata.
type dimension struct {
	fn       KeyFunc
	required bool
	name     string // for error messages (e.g., "header X-API-Key")
}

type handler struct {
	limiter    *limitkit.Limiter
	name       string
	keyDims    []dimension
	headerMode HeaderMode
	canonlog   bool
}

// Option configures the rate limiting middleware.
type Option func(*handler)

// WithHeaderMode configures when rate limit headers are included in responses.
func WithHeaderMode(mode HeaderMode) Option {
	return func(h *handler) {
		h.headerMode = mode
	}
}

// WithName sets a prefix for rate limit keys.
// Use to prevent key collisions when layering multiple rate limiters.
func WithName(name string) Option {
	return func(h *handler) {
		h.name = name
	}
}

// WithCanonlog adds rate limit fields and store failures to the request's
// canonical log line. A canonlog context must have been created by an outer
// middleware; without one the calls are no-ops.
func WithCanonlog() Option {
	return func(h *handler) {
		h.canonlog = true
	}
}

// WithIP adds the client IP address (from RemoteAddr) to the rate limiting key.
// Use this for direct connections without a proxy. RemoteAddr is always present.
func WithIP() Option {
	return func(h *handler) {
		h.keyDims = append(h.keyDims, dimension{
			fn: func(r *http.Request) string {
				ip, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					return r.RemoteAddr
				}
				return ip
			},
			name: "IP",
		})
	}
}

// WithRealIP adds the client IP from X-Forwarded-For or X-Real-IP headers.
// Use this when behind a proxy/load balancer.
// If neither header is present, rate limiting is skipped for that request.
//
// SECURITY: Only use this behind a trusted reverse proxy that sets these
// headers. Without a proxy, clients can spoof X-Forwarded-For to bypass
// rate limits.
func WithRealIP() Option {
	return withRealIP(false)
}

// WithRealIPRequired is WithRealIP, rejecting requests with 400 Bad Request
// when neither header is present.
func WithRealIPRequired() Option {
	return withRealIP(true)
}

func withRealIP(required bool) Option {
	return func(h *handler) {
		h.keyDims = append(h.keyDims, dimension{
			fn: func(r *http.Request) string {
				if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
					if idx := strings.Index(xff, ","); idx != -1 {
						return strings.TrimSpace(xff[:idx])
					}
					return strings.TrimSpace(xff)
				}
				if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
					return strings.TrimSpace(realIP)
				}
				return ""
			},
			required: required,
			name:     "X-Forwarded-For or X-Real-IP header",
		})
	}
}

// WithEndpoint adds the HTTP method and route to the rate limiting key.
// Mounted as route-level middleware in a Chi router (r.With(...)), the
// matched route pattern is used, so "/users/123" and "/users/456" share the
// "/users/{id}" budget. Mounted before routing (r.Use) or outside Chi, the
// raw request path is used instead.
func WithEndpoint() Option {
	return func(h *handler) {
		h.keyDims = append(h.keyDims, dimension{
			fn: func(r *http.Request) string {
				route := r.URL.Path
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					if pattern := rctx.RoutePattern(); pattern != "" {
						route = pattern
					}
				}
				var sb strings.Builder
				sb.Grow(len(r.Method) + 1 + len(route))
				sb.WriteString(r.Method)
				sb.WriteByte(':')
				sb.WriteString(route)
				return sb.String()
			},
			name: "endpoint",
		})
	}
}

// WithHeader adds a header value to the rate limiting key.
// If the header is missing, rate limiting is skipped for that request.
func WithHeader(header string) Option {
	return withHeader(header, false)
}

// WithHeaderRequired adds a header value to the rate limiting key,
// rejecting requests with 400 Bad Request when the header is missing.
func WithHeaderRequired(header string) Option {
	return withHeader(header, true)
}

func withHeader(header string, required bool) Option {
	return func(h *handler) {
		h.keyDims = append(h.keyDims, dimension{
			fn: func(r *http.Request) string {
				return r.Header.Get(header)
			},
			required: required,
			name:     fmt.Sprintf("header %s", header),
		})
	}
}

// WithKeyFunc adds a custom key function to the rate limiting key.
// The function should return an empty string to skip rate limiting
// for a request.
func WithKeyFunc(fn KeyFunc) Option {
	return func(h *handler) {
		h.keyDims = append(h.keyDims, dimension{fn: fn, name: "custom key"})
	}
}

// New returns rate limiting middleware over the given limiter.
// Use With* options to configure key dimensions and behavior; at least one
// key dimension is required. Panics if no key dimensions are configured.
func New(l *limitkit.Limiter, opts ...Option) func(http.Handler) http.Handler {
	h := &handler{
		limiter:    l,
		headerMode: HeadersAlways,
	}
	for _, opt := range opts {
		opt(h)
	}
	if len(h.keyDims) == 0 {
		panic("middleware: must configure at least one key dimension option (WithIP, WithRealIP, WithEndpoint, WithHeader, or WithKeyFunc)")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.serve(w, r, next)
		})
	}
}

func (h *handler) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := r.Context()

	key, missingDim := h.buildKey(r)
	if missingDim != "" {
		http.Error(w, fmt.Sprintf("Missing required %s", missingDim), http.StatusBadRequest)
		return
	}
	if key == "" {
		next.ServeHTTP(w, r)
		return
	}

	res, err := h.limiter.Limit(ctx, key)
	if err != nil {
		if h.canonlog {
			canonlog.ErrorAdd(ctx, err)
		}
		http.Error(w, "Rate limit check failed", http.StatusInternalServerError)
		return
	}

	if h.canonlog {
		canonlog.InfoAddMany(ctx, map[string]any{
			"ratelimit_key":       key,
			"ratelimit_allowed":   res.Allowed,
			"ratelimit_remaining": res.Remaining,
		})
	}

	setHeaders := h.headerMode == HeadersAlways ||
		(h.headerMode == HeadersOnLimitExceeded && !res.Allowed)

	if setHeaders {
		w.Header().Set("RateLimit-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("RateLimit-Remaining", strconv.Itoa(res.Remaining))
		w.Header().Set("RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))
	}

	if !res.Allowed {
		if setHeaders {
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(res.RetryAfter), 10))
		}
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	next.ServeHTTP(w, r)
}

// buildKey combines all dimensions with ":" as a separator. The second
// return value names a missing required dimension, if any.
func (h *handler) buildKey(r *http.Request) (string, string) {
	var sb strings.Builder
	sb.Grow(20 + len(h.keyDims)*30)
	hasContent := false

	if h.name != "" {
		sb.WriteString(h.name)
		hasContent = true
	}

	for _, dim := range h.keyDims {
		part := dim.fn(r)
		if part == "" {
			if dim.required {
				return "", dim.name
			}
			return "", ""
		}
		if hasContent {
			sb.WriteByte(':')
		}
		sb.WriteString(part)
		hasContent = true
	}

	if !hasContent {
		return "", ""
	}
	return sb.String(), ""
}

// retryAfterSeconds rounds up so a client honoring the header never retries
// before the window frees a slot.
func retryAfterSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
