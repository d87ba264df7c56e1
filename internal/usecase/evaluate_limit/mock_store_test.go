package evaluate_limit

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/EuricoCruz/throttler/internal/domain/entity"
	"github.com/EuricoCruz/throttler/internal/domain/repository"
)

// MockStore is a mock implementation of the Store interface for testing purposes
type MockStore struct {
	mock.Mock
}

// ConsumeWindowSlot mocks the ConsumeWindowSlot method from Store interface
func (m *MockStore) ConsumeWindowSlot(
	ctx context.Context,
	key entity.LimitKey,
	alignment repository.WindowAlignment,
	limit int,
	window time.Duration,
) (*entity.Decision, error) {
	args := m.Called(ctx, key, alignment, limit, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Decision), args.Error(1)
}

// ConsumeBucketToken mocks the ConsumeBucketToken method from Store interface
func (m *MockStore) ConsumeBucketToken(
	ctx context.Context,
	key entity.LimitKey,
	capacity float64,
	refillRatePerSecond float64,
	idleTTL time.Duration,
) (*entity.Decision, error) {
	args := m.Called(ctx, key, capacity, refillRatePerSecond, idleTTL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Decision), args.Error(1)
}

// Close mocks the Close method from Store interface
func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
