package evaluate_limit

import (
	"context"
	"fmt"
	"math"

	"github.com/EuricoCruz/throttler/internal/domain/entity"
	"github.com/EuricoCruz/throttler/internal/domain/repository"
)

// LimitExceededMessage is the standardized message returned when the rate
// limit is exceeded
const LimitExceededMessage = "you have reached the maximum number of requests or actions allowed within a certain time frame"

// UseCase implements the admission decision: given a key and a strategy, it
// asks the store for one atomic evaluate-and-update and maps the result.
//
// The use case holds no per-key state and runs no background loops; all
// shared mutable state lives behind repository.Store.
type UseCase struct {
	store repository.Store
}

// NewUseCase creates a new instance using dependency injection
func NewUseCase(store repository.Store) *UseCase {
	return &UseCase{store: store}
}

// Execute evaluates whether the next unit of work for input.Key is
// admissible right now.
//
// The execution flow:
//  1. Validate the key and strategy parameters (ErrInvalidConfiguration,
//     no backend call happens for bad input)
//  2. Run the strategy's atomic evaluate-and-update against the store
//  3. Map the store decision to an Output; a denial is a normal Output
//
// Backend failures propagate wrapping repository.ErrBackendUnavailable so
// the caller's policy layer can decide between failing open and closed.
func (uc *UseCase) Execute(ctx context.Context, input Input) (*Output, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	decision, err := uc.evaluate(ctx, input)
	if err != nil {
		return nil, err
	}

	output := &Output{
		Allowed:   decision.Allowed,
		Remaining: decision.Remaining,
		ResetAt:   decision.ResetAt,
		Limit:     configuredLimit(input.Strategy),
	}
	if !decision.Allowed {
		output.Message = LimitExceededMessage
	}
	return output, nil
}

// evaluate dispatches to the store operation matching the strategy kind
func (uc *UseCase) evaluate(ctx context.Context, input Input) (*entity.Decision, error) {
	s := input.Strategy

	switch s.Kind {
	case entity.StrategyFixedWindow:
		return uc.store.ConsumeWindowSlot(ctx, input.Key, repository.AlignEpoch, s.Limit, s.Window)
	case entity.StrategySlidingWindow:
		return uc.store.ConsumeWindowSlot(ctx, input.Key, repository.AlignContinuous, s.Limit, s.Window)
	case entity.StrategyTokenBucket:
		return uc.store.ConsumeBucketToken(ctx, input.Key, s.Capacity, s.RefillRatePerSecond, s.IdleTTL())
	default:
		// Validate has already rejected unknown kinds
		return nil, fmt.Errorf("%w: unknown strategy kind %q", entity.ErrInvalidConfiguration, s.Kind)
	}
}

// configuredLimit normalizes the capacity figure across strategies
func configuredLimit(s entity.Strategy) int {
	if s.Kind == entity.StrategyTokenBucket {
		return int(math.Floor(s.Capacity))
	}
	return s.Limit
}
