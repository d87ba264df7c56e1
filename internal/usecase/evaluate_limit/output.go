package evaluate_limit

import "time"

// Output represents the result of one admission evaluation
type Output struct {
	// Allowed indicates whether the request should be permitted to proceed.
	// A denial is a normal output, never an error.
	Allowed bool

	// Remaining is the estimated number of further admissions left for
	// this key under the current strategy.
	Remaining int

	// ResetAt is when capacity next becomes available for this key.
	ResetAt time.Time

	// Limit echoes the configured capacity so callers can report it
	// (e.g. in X-RateLimit-Limit headers).
	Limit int

	// Message contains a human-readable explanation when the request
	// was denied, empty otherwise.
	Message string
}
