package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/EuricoCruz/throttler/internal/adapter/http/middleware"
	redisAdapter "github.com/EuricoCruz/throttler/internal/adapter/storage/redis"
	"github.com/EuricoCruz/throttler/internal/infrastructure/config"
	"github.com/EuricoCruz/throttler/internal/infrastructure/logger"
	infraRedis "github.com/EuricoCruz/throttler/internal/infrastructure/redis"
	"github.com/EuricoCruz/throttler/internal/usecase/evaluate_limit"
)

func main() {
	// 1. Setup logger
	logger := logger.New()
	logger.Info("Starting Throttler")

	// 2. Carrega configuração
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Info("Configuration loaded",
		"port", cfg.ServerPort,
		"redis", fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		"strategy", string(cfg.Default.Kind),
		"failure_policy", string(cfg.FailurePolicy),
		"key_overrides", len(cfg.KeyOverrides),
	)

	// 3. Conecta Redis
	redisClient, err := infraRedis.NewClient(cfg)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	// 4. Monta camadas (Dependency Injection)

	// Storage layer
	store := redisAdapter.NewRedisStore(redisClient,
		redisAdapter.WithRetryPolicy(redisAdapter.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseBackoff: cfg.RetryBackoff,
		}),
	)
	logger.Info("Storage layer initialized")

	// Use case layer
	evaluateUC := evaluate_limit.NewUseCase(store)
	logger.Info("Use case layer initialized")

	// Middleware layer
	admissionMW := middleware.NewAdmissionMiddleware(evaluateUC, cfg, logger)
	logger.Info("Middleware layer initialized")

	// 5. Setup HTTP Router
	r := chi.NewRouter()

	// Aplica admission control globalmente
	r.Use(admissionMW.Handle)

	// Rotas
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Throttler is running"))
	})

	// 6. HTTP Server
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.ServerPort),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 7. Start server em goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// 8. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Throttler stopped")
}
