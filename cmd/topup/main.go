package main

import (
	"context"
	"fmt"
	"os"

	"kraken-sandbox-go/internal/auth"
	"kraken-sandbox-go/internal/config"
	"kraken-sandbox-go/internal/database"
	"kraken-sandbox-go/internal/ledger"
	"kraken-sandbox-go/internal/logger"

	"go.uber.org/zap"
)

// topup resets the balances of every credential to the configured seed.
func main() {
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format, "kraken-sandbox-topup")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	seeds, err := ledger.SeedsFromConfig(cfg.Sandbox.SeedBalances)
	if err != nil {
		log.Fatal("Invalid seed balances", zap.Error(err))
	}
	l := ledger.New(db, log, cfg.Ledger.StrictSolvency)
	store := auth.NewStore(db, l, seeds, log)

	ctx := context.Background()
	creds, err := store.All(ctx)
	if err != nil {
		log.Fatal("Failed to list credentials", zap.Error(err))
	}
	if len(creds) == 0 {
		log.Warn("No API credentials found; start the sandbox once to create one")
		return
	}
	for _, c := range creds {
		if err := l.Reset(ctx, c.Key, seeds); err != nil {
			log.Fatal("Failed to reset balances", zap.Error(err))
		}
	}
	log.Info("All balances reset", zap.Int("credentials", len(creds)))
}
