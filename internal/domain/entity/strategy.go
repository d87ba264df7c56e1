package entity

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfiguration is returned when strategy parameters are
// nonsensical. It is always surfaced before any backend call.
var ErrInvalidConfiguration = errors.New("invalid rate limit configuration")

// StrategyKind identifies the admission algorithm
type StrategyKind string

const (
	// StrategyFixedWindow aligns windows to epoch-based time buckets.
	StrategyFixedWindow StrategyKind = "fixed_window"
	// StrategySlidingWindow counts requests over a continuously moving interval.
	StrategySlidingWindow StrategyKind = "sliding_window"
	// StrategyTokenBucket drains a continuously refilling capacity.
	StrategyTokenBucket StrategyKind = "token_bucket"
)

// DefaultBucketIdleTTL is how long an untouched token bucket survives in
// the store before being reclaimed.
const DefaultBucketIdleTTL = time.Hour

// Strategy is a tagged configuration variant: Kind selects the algorithm
// and determines which parameter fields are meaningful.
//
// Fixed and sliding window use Limit + Window. Token bucket uses Capacity +
// RefillRatePerSecond (and optionally BucketIdleTTL). Parameters are
// validated eagerly via Validate before any evaluation happens.
type Strategy struct {
	Kind StrategyKind

	// Window strategies
	Limit  int
	Window time.Duration

	// Token bucket
	Capacity            float64
	RefillRatePerSecond float64
	BucketIdleTTL       time.Duration
}

// FixedWindow builds a fixed window strategy (limit requests per
// epoch-aligned window)
func FixedWindow(limit int, window time.Duration) Strategy {
	return Strategy{Kind: StrategyFixedWindow, Limit: limit, Window: window}
}

// SlidingWindow builds a sliding window strategy (limit requests per any
// rolling window)
func SlidingWindow(limit int, window time.Duration) Strategy {
	return Strategy{Kind: StrategySlidingWindow, Limit: limit, Window: window}
}

// TokenBucket builds a token bucket strategy (capacity tokens, refilled at
// refillRatePerSecond, one token consumed per admission)
func TokenBucket(capacity, refillRatePerSecond float64) Strategy {
	return Strategy{
		Kind:                StrategyTokenBucket,
		Capacity:            capacity,
		RefillRatePerSecond: refillRatePerSecond,
		BucketIdleTTL:       DefaultBucketIdleTTL,
	}
}

// Validate checks the parameters required by the selected Kind.
// All failures wrap ErrInvalidConfiguration so callers can classify them
// with errors.Is.
func (s Strategy) Validate() error {
	switch s.Kind {
	case StrategyFixedWindow, StrategySlidingWindow:
		if s.Limit <= 0 {
			return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidConfiguration, s.Limit)
		}
		if s.Window < time.Second {
			return fmt.Errorf("%w: window must be at least one second, got %v", ErrInvalidConfiguration, s.Window)
		}
	case StrategyTokenBucket:
		if s.Capacity < 1 {
			return fmt.Errorf("%w: capacity must be at least 1, got %v", ErrInvalidConfiguration, s.Capacity)
		}
		if s.RefillRatePerSecond <= 0 {
			return fmt.Errorf("%w: refill rate must be positive, got %v", ErrInvalidConfiguration, s.RefillRatePerSecond)
		}
		if s.BucketIdleTTL < 0 {
			return fmt.Errorf("%w: bucket idle TTL cannot be negative, got %v", ErrInvalidConfiguration, s.BucketIdleTTL)
		}
	default:
		return fmt.Errorf("%w: unknown strategy kind %q", ErrInvalidConfiguration, s.Kind)
	}
	return nil
}

// IdleTTL returns the bucket idle expiry, falling back to the default when
// the caller left it unset.
func (s Strategy) IdleTTL() time.Duration {
	if s.BucketIdleTTL > 0 {
		return s.BucketIdleTTL
	}
	return DefaultBucketIdleTTL
}
