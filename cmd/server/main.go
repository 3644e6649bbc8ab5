// Package main is the entry point for the stock ledger API server.
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

	"mise/internal/core/keylock"
	"mise/internal/core/tx"
	"mise/internal/domain/auth"
	"mise/internal/domain/batch"
	"mise/internal/domain/catalogs/ingredient"
	"mise/internal/domain/inventory"
	"mise/internal/domain/ledger"
	v1 "mise/internal/infrastructure/http/v1"
	"mise/internal/infrastructure/storage/memory"
	"mise/internal/infrastructure/storage/postgres"
	"mise/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting stock ledger server")

	// --- Storage ---
	var (
		ingredientRepo ingredient.Repository
		ledgerRepo     ledger.Repository
		batchRepo      batch.Repository
		auditRepo      ledger.EditAudit
		txManager      tx.ReadOnlyManager
		pool           *postgres.Pool
	)

	switch store := getEnv("STORE", "postgres"); store {
	case "memory":
		// Dev mode: everything in process, nothing survives a restart.
		mem := memory.NewStore()
		ingredientRepo = mem.Ingredients()
		ledgerRepo = mem.Ledger()
		batchRepo = mem.Batches()
		auditRepo = mem.Audit()
		txManager = mem
		log.Info("using in-memory store")

	case "postgres":
		dsn := mustEnv("DATABASE_URL")
		poolCfg := postgres.DefaultPoolConfig(dsn)
		poolCfg.MaxConns = int32(getEnvInt("DB_MAX_CONNS", int(poolCfg.MaxConns)))
		pool, err = postgres.NewPool(ctx, poolCfg)
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()

		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("failed to apply schema", "error", err)
		}
		log.Info("database connection established")

		txm := postgres.NewTxManager(pool)
		ingredientRepo = postgres.NewIngredientRepo(txm)
		ledgerRepo = postgres.NewLedgerRepo(txm)
		batchRepo = postgres.NewBatchRepo(txm)
		auditRepo, err = postgres.NewEditAuditRepo(txm)
		if err != nil {
			log.Fatalw("failed to create audit store", "error", err)
		}
		txManager = txm

	default:
		log.Fatalw("unknown STORE value", "store", store)
	}

	// --- Domain services ---
	batchStore := batch.NewStore(batchRepo)
	ingredientService := ingredient.NewService(ingredientRepo, txManager)
	engine := ledger.NewEngine(
		ledgerRepo,
		ingredientRepo,
		batchStore,
		keylock.New(),
		txManager,
		auditRepo,
	)
	inventoryService := inventory.NewService(ingredientRepo, batchStore, txManager)

	// --- JWT Service ---
	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		JWTValidator: jwtService,
		Pool:         pool,
		Ingredients:  ingredientService,
		Ledger:       engine,
		Inventory:    inventoryService,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
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
