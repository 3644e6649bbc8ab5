// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"mise/internal/domain/catalogs/ingredient"
	"mise/internal/domain/inventory"
	"mise/internal/domain/ledger"
	"mise/internal/infrastructure/http/v1/handlers"
	"mise/internal/infrastructure/http/v1/middleware"
	"mise/internal/infrastructure/storage/postgres"
	"mise/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Pool is the postgres pool for readiness checks; nil in memory mode.
	Pool *postgres.Pool

	// Wired domain services
	Ingredients *ingredient.Service
	Ledger      *ledger.Engine
	Inventory   *inventory.Service
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
	}

	// API v1
	v1 := router.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(middleware.Auth(cfg.JWTValidator))
	protected.Use(middleware.UserContext())

	baseHandler := handlers.NewBaseHandler()

	// --- INGREDIENT CATALOG ---
	{
		handler := handlers.NewIngredientHandler(baseHandler, cfg.Ingredients)
		ingredients := protected.Group("/ingredients")
		ingredients.POST("", handler.Create)
		ingredients.GET("", handler.List)
		ingredients.GET("/:id", handler.Get)
		ingredients.PATCH("/:id", handler.Update)
		ingredients.DELETE("/:id", handler.Hide)
	}

	// --- STOCK LEDGER ---
	{
		handler := handlers.NewStockHandler(baseHandler, cfg.Ledger)
		stock := protected.Group("/stock")
		stock.POST("/in", handler.StockIn)
		stock.POST("/out", handler.StockOut)
		stock.GET("/transactions", handler.List)
		stock.GET("/transactions/:id", handler.Get)
		// Retroactive edits rewrite history; managers only.
		stock.PUT("/transactions/:id", middleware.RequireRole("manager"), handler.Edit)
		stock.GET("/transactions/:id/audit", handler.Audit)
	}

	// --- INVENTORY VIEW ---
	{
		handler := handlers.NewInventoryHandler(baseHandler, cfg.Inventory)
		inv := protected.Group("/inventory")
		inv.GET("", handler.List)
		inv.GET("/:ingredientId", handler.Get)
	}

	return router
}
