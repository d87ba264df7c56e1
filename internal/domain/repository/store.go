package repository

import (
	"context"
	"errors"
	"time"

	"github.com/EuricoCruz/throttler/internal/domain/entity"
)

// ErrBackendUnavailable is returned when the remote store cannot be reached,
// times out, or fails during an evaluation. Callers decide whether
// unavailability fails open or closed; the store never maps it to an
// allow/deny decision on its own.
var ErrBackendUnavailable = errors.New("rate limit backend unavailable")

// WindowAlignment selects how a counting window relates to the clock
type WindowAlignment int

const (
	// AlignEpoch anchors window boundaries to the epoch
	// (floor(now/window)*window), the fixed window behavior.
	AlignEpoch WindowAlignment = iota
	// AlignContinuous slides the window back from the current instant
	// (now - window), the sliding window behavior.
	AlignContinuous
)

// Store defines the contract for the shared admission state kept in the
// remote atomic store. Each method is one atomic compare-and-update: the
// whole prune/read -> compare -> append/consume -> write sequence executes
// server-side as a single unit, so concurrent evaluations from independent
// processes can never both observe the last free slot.
//
// Implementations must not partially update state and return success: if
// the atomic operation fails, no state changed and an error (wrapping
// ErrBackendUnavailable) is returned.
type Store interface {
	// ConsumeWindowSlot prunes timestamps that fell out of the window,
	// counts the remainder and, if the count is below limit, records the
	// current instant as one admission. The record's expiry is pushed to at
	// least twice the window so in-flight counts survive a boundary.
	ConsumeWindowSlot(
		ctx context.Context,
		key entity.LimitKey,
		alignment WindowAlignment,
		limit int,
		window time.Duration,
	) (*entity.Decision, error)

	// ConsumeBucketToken refills the bucket for the elapsed time (capped at
	// capacity), then consumes one token if at least one whole token is
	// available. The record expires after idleTTL without evaluations.
	ConsumeBucketToken(
		ctx context.Context,
		key entity.LimitKey,
		capacity float64,
		refillRatePerSecond float64,
		idleTTL time.Duration,
	) (*entity.Decision, error)

	// Close releases any connections held by the implementation
	Close() error
}
