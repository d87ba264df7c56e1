package redis

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/EuricoCruz/throttler/internal/domain/entity"
	"github.com/EuricoCruz/throttler/internal/domain/repository"
)

// Clock supplies the current time for evaluations. Injected so tests can
// drive the algorithms deterministically; production uses time.Now.
type Clock func() time.Time

// RedisStore implements repository.Store against a redis backend. All three
// evaluation methods run as single server-side scripts (see lua_scripts.go),
// which is where the atomicity guarantee of the Store contract comes from.
type RedisStore struct {
	client *redis.Client
	clock  Clock
	retry  RetryPolicy
}

// Option configures a RedisStore
type Option func(*RedisStore)

// WithClock overrides the time source used for evaluations
func WithClock(clock Clock) Option {
	return func(s *RedisStore) {
		s.clock = clock
	}
}

// WithRetryPolicy overrides the bounded retry applied to failures that are
// known to have happened before any state change
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(s *RedisStore) {
		s.retry = policy
	}
}

// NewRedisStore creates a RedisStore around an existing client
func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	store := &RedisStore{
		client: client,
		clock:  time.Now,
		retry:  DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Close releases the underlying redis connection pool
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// ConsumeWindowSlot implements repository.Store using a sorted set scored
// by admission timestamp, pruned and counted atomically.
func (s *RedisStore) ConsumeWindowSlot(
	ctx context.Context,
	key entity.LimitKey,
	alignment repository.WindowAlignment,
	limit int,
	window time.Duration,
) (*entity.Decision, error) {
	script := fixedWindowScript
	if alignment == repository.AlignContinuous {
		script = slidingWindowScript
	}

	now := s.clock()
	// Two admissions in the same millisecond must not collapse into one
	// sorted-set member, so each gets a unique suffix.
	member := strconv.FormatInt(now.UnixMilli(), 10) + "-" + uuid.NewString()

	result, err := s.runScript(ctx, script,
		[]string{key.String()},
		limit, window.Milliseconds(), now.UnixMilli(), member,
	)
	if err != nil {
		return nil, fmt.Errorf("window evaluation for key %s: %w", key.String(), err)
	}

	return parseDecision(result)
}

// ConsumeBucketToken implements repository.Store using a hash holding the
// fractional token count and the last refill timestamp.
func (s *RedisStore) ConsumeBucketToken(
	ctx context.Context,
	key entity.LimitKey,
	capacity float64,
	refillRatePerSecond float64,
	idleTTL time.Duration,
) (*entity.Decision, error) {
	now := s.clock()

	result, err := s.runScript(ctx, tokenBucketScript,
		[]string{key.String()},
		formatFloat(capacity), formatFloat(refillRatePerSecond),
		now.UnixMilli(), idleTTL.Milliseconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("bucket evaluation for key %s: %w", key.String(), err)
	}

	return parseDecision(result)
}

// runScript executes a script with the configured retry policy. A retry is
// attempted only when the previous failure is known to have happened before
// the command was written to the connection, because evaluation is not
// idempotent: retrying after a commit would double-consume a slot.
func (s *RedisStore) runScript(
	ctx context.Context,
	script *redis.Script,
	keys []string,
	args ...interface{},
) (interface{}, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		result, err := script.Run(ctx, s.client, keys, args...).Result()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt >= s.retry.MaxAttempts || !isPreWriteFailure(err) {
			break
		}
		if err := sleepContext(ctx, s.retry.Backoff(attempt)); err != nil {
			break
		}
	}

	return nil, fmt.Errorf("%w: %v", repository.ErrBackendUnavailable, lastErr)
}

// parseDecision converts the script reply {allowed, remaining, reset_ms}
// into a Decision. Lua numbers arrive as int64; fractional values arrive as
// strings, so both are accepted for the numeric slots.
func parseDecision(result interface{}) (*entity.Decision, error) {
	reply, ok := result.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected array reply, got %T", result)
	}
	if len(reply) != 3 {
		return nil, fmt.Errorf("expected 3 elements in reply, got %d", len(reply))
	}

	allowed, ok := reply[0].(int64)
	if !ok {
		return nil, fmt.Errorf("expected int64 allowed flag, got %T", reply[0])
	}

	remaining, err := parseNumber(reply[1])
	if err != nil {
		return nil, fmt.Errorf("parsing remaining: %w", err)
	}

	resetMillis, err := parseNumber(reply[2])
	if err != nil {
		return nil, fmt.Errorf("parsing reset time: %w", err)
	}

	return &entity.Decision{
		Allowed:   allowed == 1,
		Remaining: int(math.Floor(remaining)),
		ResetAt:   time.UnixMilli(int64(math.Ceil(resetMillis))).UTC(),
	}, nil
}

// parseNumber accepts the types a Lua number can come back as
func parseNumber(value interface{}) (float64, error) {
	switch v := value.(type) {
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("unparseable numeric reply %q: %w", v, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unexpected numeric reply type %T (%v)", v, v)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// sleepContext waits for the backoff or until the context is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
