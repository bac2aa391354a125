package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dorkfun/backend/internal/api"
	"github.com/dorkfun/backend/internal/chain"
	"github.com/dorkfun/backend/internal/config"
	"github.com/dorkfun/backend/internal/database"
	"github.com/dorkfun/backend/internal/game"
	"github.com/dorkfun/backend/internal/middleware"
	"github.com/dorkfun/backend/internal/migrations"
	"github.com/dorkfun/backend/internal/modules"
	"github.com/dorkfun/backend/internal/modules/connectfour"
	"github.com/dorkfun/backend/internal/modules/tictactoe"
	"github.com/dorkfun/backend/internal/redis"
	"github.com/dorkfun/backend/internal/ws"
)

func main() {
	// Initialize configuration (loads .env if present)
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.Run(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Chain client (nil when RPC_URL is unset: unstaked play only)
	chainClient, err := chain.Dial(ctx, cfg, rdb)
	if err != nil {
		log.Fatalf("Failed to connect to chain RPC: %v", err)
	}
	defer chainClient.Close()

	ens, err := chain.NewENSResolver(ctx, cfg, rdb)
	if err != nil {
		log.Fatalf("Failed to connect to ENS RPC: %v", err)
	}
	defer ens.Close()

	// Register game modules
	registry := modules.NewRegistry()
	for _, m := range []modules.Module{tictactoe.New(), connectfour.New()} {
		if err := registry.Register(m); err != nil {
			log.Fatalf("Failed to register module: %v", err)
		}
	}
	log.Printf("[MODULES] %d game modules registered", len(registry.List()))

	// Match Service and session transport
	hub := ws.NewHub()
	svc := game.NewService(db, rdb, cfg, registry, hub, chainClient)
	ws.Init(hub, svc, rdb, cfg)

	// Background workers: deposit watcher, stale sweep, eviction
	if chainClient != nil {
		go chainClient.WatchDeposits(ctx, svc.HandleDeposit)
	}
	svc.StartWorkers(ctx)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(middleware.CORSMiddleware(cfg))

	api.SetupRoutes(router, db, rdb, svc, ens, cfg)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting dork.fun server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received, draining...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
