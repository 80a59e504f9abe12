package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"kraken-sandbox-go/internal/config"
	"kraken-sandbox-go/internal/database"
	"kraken-sandbox-go/internal/logger"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format, "kraken-sandbox-admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Connect to the database
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	apiHandler := NewAPIHandler(log.Named("admin"), db)
	handler := cors.New(cors.Options{AllowedOrigins: cfg.Server.AllowedOrigins}).Handler(newMux(apiHandler))

	addr := fmt.Sprintf(":%d", cfg.Server.AdminPort)
	log.Info("Starting admin server", zap.String("address", addr))

	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal("Admin server failed", zap.Error(err))
	}
}

func newMux(h *APIHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", h.StatusHandler)
	mux.HandleFunc("/api/credentials", h.CredentialsHandler)
	mux.HandleFunc("/api/balances", h.BalancesHandler)
	mux.HandleFunc("/api/orders", h.OrdersHandler)
	mux.HandleFunc("/api/trades", h.TradesHandler)
	mux.HandleFunc("/api/statistics", h.StatisticsHandler)
	return mux
}
