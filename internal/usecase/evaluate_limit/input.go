package evaluate_limit

import (
	"fmt"

	"github.com/EuricoCruz/throttler/internal/domain/entity"
)

// Input represents the input data for one admission evaluation (DTO)
type Input struct {
	Key      entity.LimitKey
	Strategy entity.Strategy
}

// Validate validates the input data. Failures wrap
// entity.ErrInvalidConfiguration and are surfaced before any backend call.
func (i Input) Validate() error {
	if !i.Key.IsValid() {
		return fmt.Errorf("%w: limit key needs both caller and resource", entity.ErrInvalidConfiguration)
	}
	return i.Strategy.Validate()
}
