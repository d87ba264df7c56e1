package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/EuricoCruz/throttler/internal/domain/entity"
	"github.com/EuricoCruz/throttler/internal/domain/repository"
	"github.com/EuricoCruz/throttler/internal/usecase/evaluate_limit"
)

// MockUseCase simula o use case para testes
type MockUseCase struct {
	mock.Mock
}

func (m *MockUseCase) Execute(ctx context.Context, input evaluate_limit.Input) (*evaluate_limit.Output, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*evaluate_limit.Output), args.Error(1)
}

// MockConfig simula a configuração para testes
type MockConfig struct {
	Default       entity.Strategy
	Overrides     map[string]entity.Strategy
	FailurePolicy string
	Timeout       time.Duration
}

func (m *MockConfig) GetDefaultStrategy() entity.Strategy {
	return m.Default
}

func (m *MockConfig) GetKeyStrategy(apiKey string) (entity.Strategy, bool) {
	s, exists := m.Overrides[apiKey]
	return s, exists
}

func (m *MockConfig) GetFailurePolicy() string {
	if m.FailurePolicy == "" {
		return "closed"
	}
	return m.FailurePolicy
}

func (m *MockConfig) GetBackendTimeout() time.Duration {
	if m.Timeout == 0 {
		return time.Second
	}
	return m.Timeout
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nextHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestHandle_AllowedRequest_PassesThroughWithHeaders(t *testing.T) {
	// Arrange
	mockUC := new(MockUseCase)
	cfg := &MockConfig{Default: entity.FixedWindow(10, time.Minute)}
	mw := NewAdmissionMiddleware(mockUC, cfg, testLogger())

	resetAt := time.Now().Add(time.Minute)
	mockUC.On("Execute", mock.Anything, mock.Anything).Return(&evaluate_limit.Output{
		Allowed:   true,
		Remaining: 9,
		Limit:     10,
		ResetAt:   resetAt,
	}, nil)

	nextCalled := false
	handler := mw.Handle(nextHandler(&nextCalled))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rec := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(rec, req)

	// Assert
	assert.True(t, nextCalled)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestHandle_DeniedRequest_Returns429WithRetryAfter(t *testing.T) {
	// Arrange
	mockUC := new(MockUseCase)
	cfg := &MockConfig{Default: entity.FixedWindow(5, time.Minute)}
	mw := NewAdmissionMiddleware(mockUC, cfg, testLogger())

	mockUC.On("Execute", mock.Anything, mock.Anything).Return(&evaluate_limit.Output{
		Allowed:   false,
		Remaining: 0,
		Limit:     5,
		ResetAt:   time.Now().Add(30 * time.Second),
		Message:   evaluate_limit.LimitExceededMessage,
	}, nil)

	nextCalled := false
	handler := mw.Handle(nextHandler(&nextCalled))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rec := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(rec, req)

	// Assert
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	var body map[string]string
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, evaluate_limit.LimitExceededMessage, body["message"])
}

func TestHandle_BackendUnavailable_FailOpenForwardsRequest(t *testing.T) {
	// Arrange
	mockUC := new(MockUseCase)
	cfg := &MockConfig{
		Default:       entity.TokenBucket(5, 1),
		FailurePolicy: "open",
	}
	mw := NewAdmissionMiddleware(mockUC, cfg, testLogger())

	mockUC.On("Execute", mock.Anything, mock.Anything).Return(nil, repository.ErrBackendUnavailable)

	nextCalled := false
	handler := mw.Handle(nextHandler(&nextCalled))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rec := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(rec, req)

	// Assert
	assert.True(t, nextCalled)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("X-RateLimit-Degraded"))
}

func TestHandle_BackendUnavailable_FailClosedRejectsRequest(t *testing.T) {
	// Arrange
	mockUC := new(MockUseCase)
	cfg := &MockConfig{
		Default:       entity.TokenBucket(5, 1),
		FailurePolicy: "closed",
	}
	mw := NewAdmissionMiddleware(mockUC, cfg, testLogger())

	mockUC.On("Execute", mock.Anything, mock.Anything).Return(nil, repository.ErrBackendUnavailable)

	nextCalled := false
	handler := mw.Handle(nextHandler(&nextCalled))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rec := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(rec, req)

	// Assert
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandle_ConfigurationError_Returns500(t *testing.T) {
	// Arrange
	mockUC := new(MockUseCase)
	cfg := &MockConfig{Default: entity.FixedWindow(5, time.Minute)}
	mw := NewAdmissionMiddleware(mockUC, cfg, testLogger())

	mockUC.On("Execute", mock.Anything, mock.Anything).Return(nil, errors.New("unexpected failure"))

	nextCalled := false
	handler := mw.Handle(nextHandler(&nextCalled))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rec := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(rec, req)

	// Assert
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandle_APIKeyOverride_TakesPriorityOverIP(t *testing.T) {
	// Arrange
	mockUC := new(MockUseCase)
	override := entity.TokenBucket(100, 10)
	cfg := &MockConfig{
		Default:   entity.FixedWindow(5, time.Minute),
		Overrides: map[string]entity.Strategy{"premium-key": override},
	}
	mw := NewAdmissionMiddleware(mockUC, cfg, testLogger())

	mockUC.On("Execute", mock.Anything, mock.MatchedBy(func(input evaluate_limit.Input) bool {
		return input.Key.Caller == "premium-key" && input.Strategy.Kind == entity.StrategyTokenBucket
	})).Return(&evaluate_limit.Output{Allowed: true, Remaining: 99, Limit: 100}, nil)

	nextCalled := false
	handler := mw.Handle(nextHandler(&nextCalled))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req.Header.Set("API_KEY", "premium-key")
	rec := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(rec, req)

	// Assert
	assert.True(t, nextCalled)
	mockUC.AssertExpectations(t)
}

func TestHandle_UnknownAPIKey_FallsBackToIPStrategy(t *testing.T) {
	// Arrange
	mockUC := new(MockUseCase)
	cfg := &MockConfig{Default: entity.FixedWindow(5, time.Minute)}
	mw := NewAdmissionMiddleware(mockUC, cfg, testLogger())

	mockUC.On("Execute", mock.Anything, mock.MatchedBy(func(input evaluate_limit.Input) bool {
		return input.Key.Caller == "10.0.0.7" && input.Strategy.Kind == entity.StrategyFixedWindow
	})).Return(&evaluate_limit.Output{Allowed: true, Remaining: 4, Limit: 5}, nil)

	nextCalled := false
	handler := mw.Handle(nextHandler(&nextCalled))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.RemoteAddr = "10.0.0.7:9999"
	req.Header.Set("API_KEY", "nobody-configured-this")
	rec := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(rec, req)

	// Assert
	assert.True(t, nextCalled)
	mockUC.AssertExpectations(t)
}

func TestExtractIP_PrefersForwardedForHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.2")

	assert.Equal(t, "203.0.113.5", extractIP(req))
}

func TestExtractIP_FallsBackToRealIPThenRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Real-IP", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", extractIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", extractIP(req))
}
