// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"retailledger/internal/domain/ledger"
	"retailledger/internal/domain/restock"
	"retailledger/internal/domain/settlement"
	"retailledger/internal/infrastructure/http/v1/handlers"
	"retailledger/internal/infrastructure/http/v1/middleware"
	"retailledger/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	Ledger     *ledger.Service
	Restock    *restock.Service
	Settlement *settlement.Service

	// Readiness backs /health/ready. Nil means always ready.
	Readiness handlers.ReadinessChecker

	// Storage names the active backend for /health/info.
	Storage string
	Version string

	// Debug switches gin to debug mode.
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!). Recovery sits inside ErrorHandler
	// so a recovered panic is still rendered as a JSON error.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.Readiness, cfg.Storage, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))
	v1.Use(middleware.IdempotencyKey())

	base := handlers.NewBaseHandler()
	if cfg.Ledger != nil {
		handlers.NewLedgerHandler(base, cfg.Ledger).RegisterRoutes(v1)
	}
	if cfg.Restock != nil {
		handlers.NewRestockHandler(base, cfg.Restock).RegisterRoutes(v1)
	}
	if cfg.Settlement != nil {
		handlers.NewSettlementHandler(base, cfg.Settlement).RegisterRoutes(v1)
	}

	return router
}
