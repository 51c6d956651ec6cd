package limitkit

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Algorithm selects the rate limiting algorithm.
type Algorithm string

const (
	// FixedWindow partitions wall time into non-overlapping windows aligned
	// to the epoch. Cheap (one INCR per call) but allows bursts of up to
	// 2x the limit across a window boundary.
	FixedWindow Algorithm = "fixed-window"

	// SlidingWindow weights the previous window's count against the current
	// one, smoothing admission across boundaries. Executed as a single
	// atomic server-side script.
	SlidingWindow Algorithm = "sliding-window"
)

// DefaultPrefix is the key namespace used when Config.Prefix is empty.
const DefaultPrefix = "ratelimit"

// Config holds an immutable limiter configuration. Build one with
// NewFixedWindow or NewSlidingWindow; New validates it eagerly and the
// limiter copies it, so a Config is never mutated after construction.
type Config struct {
	// Algorithm is the rate limiting algorithm to apply.
	Algorithm Algorithm `validate:"oneof=fixed-window sliding-window"`

	// Limit is the maximum number of admissions per window.
	Limit int `validate:"gt=0"`

	// Window is the window length in seconds.
	Window int `validate:"gt=0"`

	// Prefix namespaces every counter key. Defaults to DefaultPrefix.
	Prefix string `validate:"-"`
}

// NewFixedWindow returns a fixed-window configuration admitting limit
// events per window seconds.
func NewFixedWindow(limit, window int) Config {
	return Config{Algorithm: FixedWindow, Limit: limit, Window: window}
}

// NewSlidingWindow returns a sliding-window configuration admitting limit
// events per rolling window seconds.
func NewSlidingWindow(limit, window int) Config {
	return Config{Algorithm: SlidingWindow, Limit: limit, Window: window}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateConfig checks cfg and converts validator failures into a
// ConfigError with readable text.
func validateConfig(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ConfigError{Reason: err.Error()}
	}

	return &ConfigError{Reason: describeFieldError(verrs[0])}
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.StructField() {
	case "Algorithm":
		return fmt.Sprintf("algorithm must be %q or %q, got %q", FixedWindow, SlidingWindow, fe.Value())
	case "Limit":
		return fmt.Sprintf("limit must be a positive integer, got %v", fe.Value())
	case "Window":
		return fmt.Sprintf("window must be a positive number of seconds, got %v", fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.StructField(), fe.Tag())
	}
}
