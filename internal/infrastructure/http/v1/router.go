// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"papyrus/internal/core/entity"
	"papyrus/internal/domain/auth"
	"papyrus/internal/infrastructure/cache"
	"papyrus/internal/infrastructure/http/v1/handlers"
	"papyrus/internal/infrastructure/http/v1/middleware"
	"papyrus/internal/infrastructure/storage/postgres"
	"papyrus/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the store connection pool (used by health checks).
	Pool *pgxpool.Pool

	// Factory builds unit-of-work sessions for request handling.
	Factory *postgres.SessionFactory

	// Registry holds the entity definitions.
	Registry *entity.Registry

	// Logger for request logging.
	Logger *logger.Logger

	// JWTValidator for token validation.
	JWTValidator middleware.JWTValidator

	// AuthService for authentication endpoints.
	AuthService *auth.Service

	// EntityCache backs cached single-entity reads.
	EntityCache *cache.EntityCache

	// Recorder exposes invalidation stats on the ops endpoints.
	Recorder *cache.Recorder
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()

	api := router.Group("/api/v1")
	{
		// Auth endpoints
		if cfg.AuthService != nil {
			authHandler := handlers.NewAuthHandler(baseHandler, cfg.AuthService)
			publicAuth := api.Group("/auth")
			protectedAuth := api.Group("/auth")
			protectedAuth.Use(middleware.Auth(cfg.JWTValidator))
			protectedAuth.Use(middleware.RequireAdmin())
			authHandler.RegisterRoutes(publicAuth, protectedAuth)
		}

		// Protected endpoints
		protected := api.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))
		protected.Use(middleware.UserContext())

		admin := middleware.RequireAdmin()

		handlers.NewFolderHandler(baseHandler, cfg.Factory, cfg.Registry, cfg.EntityCache).
			RegisterRoutes(protected.Group("/folders"))
		handlers.NewFileHandler(baseHandler, cfg.Factory, cfg.Registry, cfg.EntityCache).
			RegisterRoutes(protected.Group("/files"))
		handlers.NewPageHandler(baseHandler, cfg.Factory, cfg.Registry, cfg.EntityCache).
			RegisterRoutes(protected.Group("/pages"), admin)
		handlers.NewProductHandler(baseHandler, cfg.Factory, cfg.Registry, cfg.EntityCache).
			RegisterRoutes(protected.Group("/products"))

		if cfg.Recorder != nil {
			opsHandler := handlers.NewOpsHandler(baseHandler, cfg.Recorder)
			protected.GET("/ops/cache-invalidations", admin, opsHandler.InvalidationStats)
		}
	}

	return router
}
