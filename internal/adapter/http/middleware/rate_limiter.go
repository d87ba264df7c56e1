package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/EuricoCruz/throttler/internal/domain/entity"
	"github.com/EuricoCruz/throttler/internal/domain/repository"
	"github.com/EuricoCruz/throttler/internal/usecase/evaluate_limit"
)

// Config interface para permitir mock em testes
type Config interface {
	GetDefaultStrategy() entity.Strategy
	GetKeyStrategy(apiKey string) (entity.Strategy, bool)
	GetFailurePolicy() string
	GetBackendTimeout() time.Duration
}

// UseCase interface para permitir mock em testes
type UseCase interface {
	Execute(ctx context.Context, input evaluate_limit.Input) (*evaluate_limit.Output, error)
}

// AdmissionMiddleware evaluates every request against the configured
// admission strategy before it reaches the next handler.
//
// The fail-open/fail-closed choice under backend failure lives here, in the
// caller's policy layer, never inside the controller itself.
type AdmissionMiddleware struct {
	useCase UseCase
	config  Config
	logger  *slog.Logger
}

func NewAdmissionMiddleware(useCase UseCase, config Config, logger *slog.Logger) *AdmissionMiddleware {
	return &AdmissionMiddleware{
		useCase: useCase,
		config:  config,
		logger:  logger,
	}
}

func (m *AdmissionMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()

		// 1. Identifica o caller: API key (se configurada) tem prioridade
		// sobre o IP
		input := m.buildInput(extractIP(r), r.Header.Get("API_KEY"), r.URL.Path)

		// 2. Aplica o timeout de backend do caller
		ctx, cancel := context.WithTimeout(r.Context(), m.config.GetBackendTimeout())
		defer cancel()

		// 3. Executa a avaliação atômica
		output, err := m.useCase.Execute(ctx, input)
		if err != nil {
			m.handleEvaluationError(w, r, next, err, input, requestID)
			return
		}

		setRateLimitHeaders(w, output)

		// 4. Negado: responde 429 com orientação de retry
		if !output.Allowed {
			m.logger.Info("request denied",
				"request_id", requestID,
				"caller", input.Key.Caller,
				"resource", input.Key.Resource,
				"strategy", string(input.Strategy.Kind),
				"reset_at", output.ResetAt,
			)
			retryAfter := int(time.Until(output.ResetAt).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			sendJSON(w, http.StatusTooManyRequests, map[string]string{
				"message": output.Message,
			})
			return
		}

		// 5. Permitido: continua para o próximo handler
		m.logger.Debug("request admitted",
			"request_id", requestID,
			"caller", input.Key.Caller,
			"resource", input.Key.Resource,
			"remaining", output.Remaining,
		)
		next.ServeHTTP(w, r)
	})
}

// handleEvaluationError aplica a política fail-open/fail-closed para falhas
// de backend; qualquer outro erro é um problema de configuração e vira 500
func (m *AdmissionMiddleware) handleEvaluationError(
	w http.ResponseWriter,
	r *http.Request,
	next http.Handler,
	err error,
	input evaluate_limit.Input,
	requestID string,
) {
	if errors.Is(err, repository.ErrBackendUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		// O resultado é indeterminado: o backend pode ou não ter contado a
		// requisição. A política do caller decide o comportamento visível.
		if m.config.GetFailurePolicy() == "open" {
			m.logger.Warn("backend unavailable, failing open",
				"request_id", requestID,
				"caller", input.Key.Caller,
				"error", err,
			)
			w.Header().Set("X-RateLimit-Degraded", "true")
			next.ServeHTTP(w, r)
			return
		}

		m.logger.Warn("backend unavailable, failing closed",
			"request_id", requestID,
			"caller", input.Key.Caller,
			"error", err,
		)
		sendJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "rate limit backend unavailable",
		})
		return
	}

	m.logger.Error("admission evaluation failed",
		"request_id", requestID,
		"caller", input.Key.Caller,
		"error", err,
	)
	sendJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "Internal Server Error",
	})
}

// buildInput constrói o input com prioridade API key > IP
func (m *AdmissionMiddleware) buildInput(ip, apiKey, resource string) evaluate_limit.Input {
	if apiKey != "" {
		if strategy, exists := m.config.GetKeyStrategy(apiKey); exists {
			return evaluate_limit.Input{
				Key:      entity.NewLimitKey(apiKey, resource),
				Strategy: strategy,
			}
		}
	}

	return evaluate_limit.Input{
		Key:      entity.NewLimitKey(ip, resource),
		Strategy: m.config.GetDefaultStrategy(),
	}
}

// setRateLimitHeaders expõe o estado do limite para o cliente
func setRateLimitHeaders(w http.ResponseWriter, output *evaluate_limit.Output) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(output.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(output.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(output.ResetAt.Unix(), 10))
}

// sendJSON escreve uma resposta JSON com o status dado
func sendJSON(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// extractIP extrai o IP real do cliente considerando proxies
func extractIP(r *http.Request) string {
	// 1. Tenta X-Forwarded-For (proxy, load balancer)
	if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
		// Pega o primeiro IP da lista (cliente original)
		ips := strings.Split(forwardedFor, ",")
		return strings.TrimSpace(ips[0])
	}

	// 2. Tenta X-Real-IP (nginx, cloudflare)
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	// 3. Usa RemoteAddr (conexão direta)
	// Remove porta: "192.168.1.1:12345" → "192.168.1.1"
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}

	return ip
}
