package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/usecase"
)

type Server struct {
	router   *http.ServeMux
	server   *http.Server
	ledger   *usecase.Ledger
	history  domain.HistoryStore
	signals  domain.SignalStore
	pipeline *usecase.Pipeline
	hub      *Hub
	metrics  http.Handler
	logger   *zap.Logger
	started  time.Time
}

type ServerDeps struct {
	Ledger   *usecase.Ledger
	History  domain.HistoryStore
	Signals  domain.SignalStore
	Pipeline *usecase.Pipeline
	Hub      *Hub
	Metrics  http.Handler
}

func NewServer(port int, deps ServerDeps, logger *zap.Logger) *Server {
	s := &Server{
		router:   http.NewServeMux(),
		ledger:   deps.Ledger,
		history:  deps.History,
		signals:  deps.Signals,
		pipeline: deps.Pipeline,
		hub:      deps.Hub,
		metrics:  deps.Metrics,
		logger:   logger,
		started:  time.Now(),
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	// Positions
	s.router.HandleFunc("GET /api/positions", s.handlePositions)
	s.router.HandleFunc("GET /api/positions/open", s.handleOpenPositions)
	s.router.HandleFunc("GET /api/positions/closed", s.handleClosedPositions)
	s.router.HandleFunc("GET /api/positions/{symbol}", s.handlePosition)

	// History
	s.router.HandleFunc("GET /api/history", s.handleHistory)
	s.router.HandleFunc("GET /api/signals", s.handleSignals)
	s.router.HandleFunc("GET /api/signals/summary", s.handleSignalSummary)
	s.router.HandleFunc("GET /api/summary", s.handleSummary)

	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)

	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics)
	}
	if s.hub != nil {
		s.router.HandleFunc("GET /ws", s.handleWS)
	}
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
