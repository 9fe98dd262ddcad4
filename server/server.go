// Package server exposes a Trader over an HTTP JSON API and serves a thin web
// page on top of it.
package server

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/etnz/tradesim"
	"github.com/etnz/tradesim/quote"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

//go:embed static
var static embed.FS

// TransactionReader reads the transaction history.
type TransactionReader interface {
	Read() ([]tradesim.Transaction, error)
}

// SnapshotReader reads the snapshot history.
type SnapshotReader interface {
	Read() ([]tradesim.Snapshot, error)
}

// Config holds server configuration.
type Config struct {
	Addr         string
	Log          zerolog.Logger
	Trader       *tradesim.Trader
	Transactions TransactionReader // nil serves an empty history
	Snapshots    SnapshotReader    // nil serves an empty history
	Method       tradesim.CostBasisMethod
	Markets      quote.Markets
	CORSOrigins  []string
	// SnapshotSchedule is a standard cron expression; empty disables periodic snapshots.
	SnapshotSchedule string
	// Timeout bounds each request, including quote fetches.
	Timeout time.Duration
}

// Server is the HTTP front end of a Trader.
//
// The Trader is not safe for concurrent use: every call on it, from handlers
// and from scheduled snapshots, holds mu.
type Server struct {
	router *chi.Mux
	server *http.Server
	cron   *cron.Cron
	log    zerolog.Logger

	mu     sync.Mutex
	trader *tradesim.Trader

	txs     TransactionReader
	snaps   SnapshotReader
	method  tradesim.CostBasisMethod
	markets quote.Markets
}

// New creates a new HTTP server.
func New(cfg Config) (*Server, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	s := &Server{
		router:  chi.NewRouter(),
		log:     cfg.Log.With().Str("component", "server").Logger(),
		trader:  cfg.Trader,
		txs:     cfg.Transactions,
		snaps:   cfg.Snapshots,
		method:  cfg.Method,
		markets: cfg.Markets,
	}

	s.setupMiddleware(cfg)
	s.setupRoutes()

	if cfg.SnapshotSchedule != "" {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(cfg.SnapshotSchedule, s.snapshotJob); err != nil {
			return nil, err
		}
		s.log.Info().Str("schedule", cfg.SnapshotSchedule).Msg("periodic snapshots registered")
	}

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.router }

// setupMiddleware configures middleware.
func (s *Server) setupMiddleware(cfg Config) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(cfg.Timeout))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/markets", s.handleMarkets)
		r.Get("/quote/{ticker}", s.handleQuote)
		r.Get("/portfolio", s.handlePortfolio)
		r.Post("/trade", s.handleTrade)
		r.Get("/transactions", s.handleTransactions)
		r.Get("/snapshots", s.handleSnapshots)
		r.Get("/pl", s.handlePL)
	})

	page, _ := fs.Sub(static, "static")
	s.router.Handle("/*", http.FileServer(http.FS(page)))
}

// Start starts the scheduler and the HTTP server. It blocks until the server
// stops and returns nil after a Shutdown.
func (s *Server) Start() error {
	if s.cron != nil {
		s.cron.Start()
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the scheduler and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	return s.server.Shutdown(ctx)
}

// snapshotJob appends a mark-to-market snapshot.
func (s *Server) snapshotJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*quote.MaxTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.trader.TakeSnapshot(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("periodic snapshot failed")
		return
	}
	s.log.Debug().Stringer("total_value", snap.TotalValue).Msg("periodic snapshot")
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
