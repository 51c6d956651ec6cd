package limitkit

import "time"

// Result reports the outcome of a single rate limit decision. Fields are
// intended to be directly consumable by application code, for example when
// setting rate limit response headers.
type Result struct {
	// Allowed reports whether the event was admitted.
	Allowed bool

	// Limit is the configured ceiling for the window.
	Limit int

	// Remaining is the number of admissions left in the window after this
	// decision. Zero when the event was denied.
	Remaining int

	// RetryAfter is zero when the event was admitted; when denied it is the
	// estimated duration until a slot frees up.
	RetryAfter time.Duration

	// Reset is the latest instant by which the limiter will have returned
	// to a blank slate for this identifier. It is always after the moment
	// the decision was made; it is not the next admission time.
	Reset time.Time
}
