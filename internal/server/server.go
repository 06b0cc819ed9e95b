// Package server exposes the bot's read-mostly HTTP API: health, status,
// orderbook and indicator snapshots, order history, and the risk counters.
// Order cancel and manual close are the only mutating endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/quantbot/internal/server/handler"
	"github.com/alanyoungcy/quantbot/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string  // empty disables authentication
	RateRPS     float64 // per-client request rate; 0 disables limiting
	RateBurst   int
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Status *handler.StatusHandler
	Orders *handler.OrderHandler
	Risk   *handler.RiskHandler
	Book   *handler.BookHandler
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and builds the middleware chain
// (rate limit, auth, logging, CORS).
func NewServer(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	mux.HandleFunc("GET /api/book/{symbol}", handlers.Book.GetBook)
	mux.HandleFunc("GET /api/indicators/{symbol}", handlers.Book.GetIndicators)

	// Order and risk endpoints are absent in monitor mode.
	if handlers.Orders != nil {
		mux.HandleFunc("GET /api/orders", handlers.Orders.ListOrders)
		mux.HandleFunc("GET /api/orders/{id}", handlers.Orders.GetOrder)
		mux.HandleFunc("DELETE /api/orders/{id}", handlers.Orders.CancelOrder)
		mux.HandleFunc("POST /api/orders/{id}/close", handlers.Orders.CloseOrder)
	}
	if handlers.Risk != nil {
		mux.HandleFunc("GET /api/risk", handlers.Risk.GetCounters)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	if cfg.RateRPS > 0 {
		h = middleware.RateLimit(cfg.RateRPS, cfg.RateBurst)(h)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Start blocks serving HTTP until the server errors or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
