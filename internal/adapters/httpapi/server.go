package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mikey/llm-phish-guard/internal/config"
	"github.com/mikey/llm-phish-guard/internal/ports"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the analysis service as a JSON API
type Server struct {
	service ports.AnalysisService
	cfg     config.ServerConfig
	logger  *zap.Logger
	srv     *http.Server
}

// NewServer creates a new API server
func NewServer(service ports.AnalysisService, cfg config.ServerConfig, logger *zap.Logger) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		logger:  logger,
	}
	s.srv = &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// Analyses can take a while; writes are bounded by analysis.timeout
		IdleTimeout: 120 * time.Second,
	}
	return s
}

// Routes builds the router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", s.wrap(s.handleAnalyze))
		r.Post("/input", s.wrap(s.handleInput))
		r.Get("/state", s.wrap(s.handleState))
		r.Get("/history", s.wrap(s.handleHistory))
		r.Get("/history/{id}", s.wrap(s.handleSelectHistory))
		r.Delete("/history", s.wrap(s.handleClearHistory))
		r.Get("/chat", s.wrap(s.handleTranscript))
		r.Post("/chat", s.wrap(s.handleChat))
	})

	return r
}

// Start starts listening in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}

	s.logger.Info("Starting HTTP API", zap.String("address", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP API error", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down gracefully
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Stopping HTTP API")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP API: %w", err)
	}
	return nil
}

var _ ports.Intake = (*Server)(nil)
