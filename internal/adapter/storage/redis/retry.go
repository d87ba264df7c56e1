package redis

import (
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

// RetryPolicy bounds how often a failed evaluation may be retried.
// MaxAttempts counts retries, not total attempts: 2 means up to 3 script
// executions.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

// DefaultRetryPolicy retries twice with linear backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, BaseBackoff: 20 * time.Millisecond}
}

// NoRetry disables retries entirely
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// Backoff returns the wait before the given retry attempt (0-based)
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return p.BaseBackoff * time.Duration(attempt+1)
}

// isPreWriteFailure reports whether an error is known to have occurred
// before the command reached the server, meaning no state can have changed
// and a retry cannot double-consume a slot.
//
// Timeouts and reply-read failures are deliberately excluded: once the
// command may have been written, the outcome is indeterminate and the error
// must propagate as BackendUnavailable instead.
func isPreWriteFailure(err error) bool {
	if errors.Is(err, redis.ErrClosed) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	// An EOF on write means the connection died before the request left
	if errors.Is(err, io.ErrClosedPipe) {
		return true
	}

	return false
}
