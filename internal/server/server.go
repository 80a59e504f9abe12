// Package server exposes the Kraken-style REST surface over the engine.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"kraken-sandbox-go/internal/apperr"
	"kraken-sandbox-go/internal/auth"
	"kraken-sandbox-go/internal/catalog"
	"kraken-sandbox-go/internal/config"
	"kraken-sandbox-go/internal/engine"
	"kraken-sandbox-go/internal/ledger"
	"kraken-sandbox-go/internal/marketdata"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Deps are the collaborators the HTTP surface serves.
type Deps struct {
	Engine        *engine.Engine
	Catalog       *catalog.Catalog
	Ledger        *ledger.Ledger
	Authenticator auth.Authenticator
	Market        *marketdata.Synthesizer
}

// Server provides the public and private REST endpoints.
type Server struct {
	deps    Deps
	router  *mux.Router
	handler http.Handler
	server  *http.Server
	limiter *keyLimiter
	logger  *zap.Logger
	started time.Time
}

// NewServer creates a new Server.
func NewServer(cfg *config.Server, deps Deps, logger *zap.Logger) *Server {
	s := &Server{
		deps:    deps,
		router:  mux.NewRouter(),
		limiter: newKeyLimiter(cfg.RateLimit, cfg.RateLimitBurst),
		logger:  logger.Named("api-server"),
		started: time.Now(),
	}
	s.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "API-Key", "API-Sign"},
	})
	s.handler = c.Handler(s.router)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests, s.recoverPanics)

	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	public := s.router.PathPrefix("/0/public").Subrouter()
	public.HandleFunc("/Time", s.handleTime).Methods(http.MethodGet, http.MethodPost)
	public.HandleFunc("/SystemStatus", s.handleSystemStatus).Methods(http.MethodGet, http.MethodPost)
	public.HandleFunc("/Assets", s.handleAssets).Methods(http.MethodGet, http.MethodPost)
	public.HandleFunc("/AssetPairs", s.handleAssetPairs).Methods(http.MethodGet, http.MethodPost)
	public.HandleFunc("/Ticker", s.handleTicker).Methods(http.MethodGet, http.MethodPost)
	public.HandleFunc("/Depth", s.handleDepth).Methods(http.MethodGet, http.MethodPost)
	public.HandleFunc("/OHLC", s.handleOHLC).Methods(http.MethodGet, http.MethodPost)
	public.HandleFunc("/Trades", s.handleRecentTrades).Methods(http.MethodGet, http.MethodPost)
	public.HandleFunc("/Spread", s.handleSpread).Methods(http.MethodGet, http.MethodPost)

	private := s.router.PathPrefix("/0/private").Subrouter()
	private.Use(s.authenticate)
	private.HandleFunc("/Balance", s.handleBalance).Methods(http.MethodPost)
	private.HandleFunc("/OpenOrders", s.handleOpenOrders).Methods(http.MethodPost)
	private.HandleFunc("/ClosedOrders", s.handleClosedOrders).Methods(http.MethodPost)
	private.HandleFunc("/QueryOrders", s.handleQueryOrders).Methods(http.MethodPost)
	private.HandleFunc("/QueryTrades", s.handleQueryTrades).Methods(http.MethodPost)
	private.HandleFunc("/TradesHistory", s.handleTradesHistory).Methods(http.MethodPost)
	private.HandleFunc("/OrderAmends", s.handleOrderAmends).Methods(http.MethodPost)
	private.HandleFunc("/AddOrder", s.handleAddOrder).Methods(http.MethodPost)
	private.HandleFunc("/CancelOrder", s.handleCancelOrder).Methods(http.MethodPost)
	private.HandleFunc("/CancelAll", s.handleCancelAll).Methods(http.MethodPost)
	private.HandleFunc("/EditOrder", s.handleEditOrder).Methods(http.MethodPost)
	private.HandleFunc("/AmendOrder", s.handleAmendOrder).Methods(http.MethodPost)

	unknown := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeEnvelope(w, http.StatusNotFound, []string{apperr.CodeUnknownMethod}, emptyResult)
	})
	s.router.NotFoundHandler = s.logRequests(unknown)
	s.router.MethodNotAllowedHandler = s.logRequests(unknown)
}

// Handler returns the complete HTTP handler including CORS.
func (s *Server) Handler() http.Handler { return s.handler }

// Start runs the HTTP server in a new goroutine.
func (s *Server) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.respond(w, map[string]interface{}{
		"name":    "kraken-sandbox",
		"status":  "online",
		"started": s.started.UTC().Format(time.RFC3339),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}
