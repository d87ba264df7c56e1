package entity

import "time"

// Decision is the outcome of one admission evaluation. It is ephemeral:
// returned to the caller, never persisted.
//
// A denial is a normal Decision with Allowed=false, never an error.
type Decision struct {
	// Allowed indicates whether the unit of work may proceed right now
	Allowed bool

	// Remaining is an estimate of how many further admissions the caller
	// has left. On a denial it is 0 for window strategies and the floor of
	// the fractional token count for the bucket strategy.
	Remaining int

	// ResetAt is when capacity next becomes available: the end of the
	// current window (fixed), the expiry of the oldest counted request
	// (sliding), or the refill instant of the next whole token (bucket).
	ResetAt time.Time
}

// RetryAfter returns how long the caller should wait before retrying,
// measured from now. Never negative.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}
