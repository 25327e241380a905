// Package main is the entry point for the Papyrus CMS API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papyrus/internal/core/entity"
	"papyrus/internal/domain/account"
	"papyrus/internal/domain/auth"
	"papyrus/internal/domain/content"
	"papyrus/internal/infrastructure/cache"
	v1 "papyrus/internal/infrastructure/http/v1"
	"papyrus/internal/infrastructure/storage/postgres"
	"papyrus/pkg/logger"
)

func main() {
	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting papyrus server")

	// --- Database connection ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	// --- Entity registry and soft-delete filters ---
	registry := entity.NewRegistry()
	content.RegisterAll(registry)
	account.RegisterAll(registry)

	filters, err := postgres.InstallSoftDeleteFilters(registry)
	if err != nil {
		log.Fatalw("failed to install soft-delete filters", "error", err)
	}
	log.Infow("entity registry initialized", "entities", len(registry.All()))

	// --- Cache and invalidation dispatcher ---
	entityCache := cache.NewEntityCache(cache.DefaultEntityCacheConfig())
	recorder := cache.NewRecorder()
	dispatcher := cache.NewDispatcher(entityCache, log,
		cache.WithQueueSize(getEnvInt("INVALIDATION_QUEUE_SIZE", 256)),
		cache.WithRecorder(recorder),
	)
	defer dispatcher.Close()

	// --- Audit trail ---
	trail, err := postgres.NewAuditTrail()
	if err != nil {
		log.Fatalw("failed to create audit trail", "error", err)
	}

	// --- Session factory ---
	factory := postgres.NewSessionFactory(pool.Pool, filters,
		postgres.WithNotifier(dispatcher),
		postgres.WithAuditTrail(trail),
		postgres.WithLogger(log),
	)

	// --- JWT and auth services ---
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(mustEnv("JWT_SECRET")))
	authService := auth.NewService(factory, registry, jwtService, auth.DefaultServiceConfig())

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:         pool.Pool,
		Factory:      factory,
		Registry:     registry,
		Logger:       log,
		JWTValidator: jwtService,
		AuthService:  authService,
		EntityCache:  entityCache,
		Recorder:     recorder,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	// Deferred dispatcher.Close drains queued invalidations before exit.
	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
