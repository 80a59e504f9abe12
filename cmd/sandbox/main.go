package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kraken-sandbox-go/internal/auth"
	"kraken-sandbox-go/internal/catalog"
	"kraken-sandbox-go/internal/config"
	"kraken-sandbox-go/internal/database"
	"kraken-sandbox-go/internal/engine"
	"kraken-sandbox-go/internal/ledger"
	"kraken-sandbox-go/internal/logger"
	"kraken-sandbox-go/internal/marketdata"
	"kraken-sandbox-go/internal/pricing"
	"kraken-sandbox-go/internal/server"

	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format, "kraken-sandbox")
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.", zap.String("driver", cfg.Database.Driver))

	seeds, err := ledger.SeedsFromConfig(cfg.Sandbox.SeedBalances)
	if err != nil {
		log.Fatal("Invalid seed balances", zap.Error(err))
	}
	l := ledger.New(db, log, cfg.Ledger.StrictSolvency)
	store := auth.NewStore(db, l, seeds, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cred, created, err := store.Bootstrap(ctx)
	if err != nil {
		log.Fatal("Failed to bootstrap API credentials", zap.Error(err))
	}
	if created {
		fmt.Printf("Generated sandbox credentials\n  API key:    %s\n  API secret: %s\n", cred.Key, cred.Secret)
	} else {
		log.Info("Using existing API credentials", zap.String("key", cred.Key))
	}

	prices, err := pricing.New(&cfg.Pricing, log)
	if err != nil {
		log.Fatal("Failed to initialize price source", zap.Error(err))
	}

	cat := catalog.New(db)
	eng, err := engine.NewEngine(db, cat, l, prices, &cfg.Engine, log)
	if err != nil {
		log.Fatal("Failed to initialize order engine", zap.Error(err))
	}

	authenticator, err := auth.New(cfg.Auth.Mode, store)
	if err != nil {
		log.Fatal("Failed to initialize authenticator", zap.Error(err))
	}
	log.Info("Authenticator ready", zap.String("mode", cfg.Auth.Mode))

	srv := server.NewServer(&cfg.Server, server.Deps{
		Engine:        eng,
		Catalog:       cat,
		Ledger:        l,
		Authenticator: authenticator,
		Market:        marketdata.New(prices),
	}, log)
	srv.Start()

	// Wait for shutdown signal
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	<-sigchan
	log.Info("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, stop := context.WithTimeout(ctx, 10*time.Second)
	defer stop()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server", zap.Error(err))
	}

	log.Info("Sandbox has been shut down.")
}
