package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/EuricoCruz/throttler/internal/domain/entity"
)

// FailurePolicy decides what the service does when the backend store is
// unreachable during an evaluation
type FailurePolicy string

const (
	// FailOpen admits the request when the backend is unavailable
	FailOpen FailurePolicy = "open"
	// FailClosed rejects the request when the backend is unavailable
	FailClosed FailurePolicy = "closed"
)

type Config struct {
	// Server
	ServerPort int

	// Redis
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Default admission strategy applied to unauthenticated callers (by IP)
	Default entity.Strategy

	// Behavior under backend failure
	FailurePolicy  FailurePolicy
	BackendTimeout time.Duration

	// Bounded retry for failures known to be uncommitted
	RetryMaxAttempts int
	RetryBackoff     time.Duration

	// Per-API-key strategy overrides (key value -> strategy)
	KeyOverrides map[string]entity.Strategy
}

// GetDefaultStrategy implementa interface do middleware
func (c *Config) GetDefaultStrategy() entity.Strategy {
	return c.Default
}

func (c *Config) GetFailurePolicy() string {
	return string(c.FailurePolicy)
}

func (c *Config) GetKeyStrategy(apiKey string) (entity.Strategy, bool) {
	s, exists := c.KeyOverrides[apiKey]
	return s, exists
}

func (c *Config) GetBackendTimeout() time.Duration {
	return c.BackendTimeout
}

func Load() (*Config, error) {
	// Limpa configurações anteriores do viper
	viper.Reset()

	// Configura viper
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.SetEnvPrefix("")

	// Tenta ler .env (ignora erro se não existir, usa env vars)
	_ = viper.ReadInConfig()

	viper.SetDefault("RATE_STRATEGY", string(entity.StrategyTokenBucket))
	viper.SetDefault("FAILURE_POLICY", string(FailClosed))
	viper.SetDefault("BACKEND_TIMEOUT", "300ms")
	viper.SetDefault("RETRY_MAX_ATTEMPTS", 2)
	viper.SetDefault("RETRY_BACKOFF", "20ms")

	cfg := &Config{
		ServerPort:       viper.GetInt("SERVER_PORT"),
		RedisHost:        viper.GetString("REDIS_HOST"),
		RedisPort:        viper.GetInt("REDIS_PORT"),
		RedisPassword:    viper.GetString("REDIS_PASSWORD"),
		RedisDB:          viper.GetInt("REDIS_DB"),
		FailurePolicy:    FailurePolicy(viper.GetString("FAILURE_POLICY")),
		BackendTimeout:   viper.GetDuration("BACKEND_TIMEOUT"),
		RetryMaxAttempts: viper.GetInt("RETRY_MAX_ATTEMPTS"),
		RetryBackoff:     viper.GetDuration("RETRY_BACKOFF"),
		KeyOverrides:     make(map[string]entity.Strategy),
	}

	defaultStrategy, err := strategyFromValues(
		viper.GetString("RATE_STRATEGY"),
		viper.GetInt("RATE_LIMIT"),
		viper.GetDuration("RATE_WINDOW"),
		viper.GetFloat64("RATE_CAPACITY"),
		viper.GetFloat64("RATE_REFILL_PER_SECOND"),
	)
	if err != nil {
		return nil, fmt.Errorf("default strategy: %w", err)
	}
	cfg.Default = defaultStrategy

	// Valida campos obrigatórios
	if cfg.ServerPort <= 0 {
		return nil, fmt.Errorf("SERVER_PORT is required and must be positive")
	}
	if cfg.RedisHost == "" {
		return nil, fmt.Errorf("REDIS_HOST is required")
	}
	if cfg.FailurePolicy != FailOpen && cfg.FailurePolicy != FailClosed {
		return nil, fmt.Errorf("FAILURE_POLICY must be %q or %q, got %q", FailOpen, FailClosed, cfg.FailurePolicy)
	}
	if cfg.BackendTimeout <= 0 {
		return nil, fmt.Errorf("BACKEND_TIMEOUT must be positive")
	}
	if cfg.RetryMaxAttempts < 0 {
		return nil, fmt.Errorf("RETRY_MAX_ATTEMPTS cannot be negative")
	}

	if err := loadKeyOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadKeyOverrides carrega overrides por API key dinamicamente.
// Formato: TOKEN_{nome}={valor da key}, TOKEN_{nome}_STRATEGY,
// TOKEN_{nome}_LIMIT, TOKEN_{nome}_WINDOW, TOKEN_{nome}_CAPACITY,
// TOKEN_{nome}_REFILL_PER_SECOND
func loadKeyOverrides(cfg *Config) error {
	tokenNames := make(map[string]bool)

	// Busca todas as variáveis de ambiente que começam com TOKEN_
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := parts[0]

		if strings.HasPrefix(key, "TOKEN_") {
			keyParts := strings.Split(key, "_")
			if len(keyParts) >= 2 && keyParts[1] != "" {
				tokenNames[strings.ToLower(keyParts[1])] = true
			}
		}
	}

	// Para cada token descoberto, carrega sua configuração
	for tokenName := range tokenNames {
		prefix := fmt.Sprintf("TOKEN_%s", strings.ToUpper(tokenName))

		strategyName := envOrViper(prefix + "_STRATEGY")
		if strategyName == "" {
			strategyName = string(cfg.Default.Kind)
		}

		strategy, err := strategyFromValues(
			strategyName,
			parseInt(envOrViper(prefix+"_LIMIT")),
			parseDuration(envOrViper(prefix+"_WINDOW")),
			parseFloat(envOrViper(prefix+"_CAPACITY")),
			parseFloat(envOrViper(prefix+"_REFILL_PER_SECOND")),
		)
		if err != nil {
			// Ignora tokens mal configurados
			continue
		}

		// Busca o valor real da key (ex: TOKEN_abc123=abc123)
		tokenValue := envOrViper(prefix)
		if tokenValue == "" {
			tokenValue = tokenName
		}

		cfg.KeyOverrides[tokenValue] = strategy
	}

	return nil
}

// strategyFromValues monta e valida uma entity.Strategy a partir dos
// valores crus de configuração
func strategyFromValues(kind string, limit int, window time.Duration, capacity, refillRate float64) (entity.Strategy, error) {
	var s entity.Strategy

	switch entity.StrategyKind(kind) {
	case entity.StrategyFixedWindow:
		s = entity.FixedWindow(limit, window)
	case entity.StrategySlidingWindow:
		s = entity.SlidingWindow(limit, window)
	case entity.StrategyTokenBucket:
		s = entity.TokenBucket(capacity, refillRate)
	default:
		return entity.Strategy{}, fmt.Errorf("%w: unknown strategy %q", entity.ErrInvalidConfiguration, kind)
	}

	if err := s.Validate(); err != nil {
		return entity.Strategy{}, err
	}
	return s, nil
}

// envOrViper busca primeiro em os.Getenv (funciona melhor em produção e com
// t.Setenv() dos testes), com fallback para viper
func envOrViper(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return viper.GetString(key)
}

// parseInt converte string para int, retorna 0 se falhar
func parseInt(s string) int {
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return 0
}

// parseFloat converte string para float64, retorna 0 se falhar
func parseFloat(s string) float64 {
	if val, err := strconv.ParseFloat(s, 64); err == nil {
		return val
	}
	return 0
}

// parseDuration converte string para duration, retorna 0 se falhar
func parseDuration(s string) time.Duration {
	if duration, err := time.ParseDuration(s); err == nil {
		return duration
	}
	return 0
}
