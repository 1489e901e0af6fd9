package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fmcunha/folioview/internal/pkg/config"
	"github.com/fmcunha/folioview/internal/pkg/statestore"
)

// Server holds the dependencies for the HTTP server
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	state     statestore.Store
	router    http.Handler
	closeOnce sync.Once
}

// New creates a new Server instance with all dependencies
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}

	state, err := s.setupStateStore(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to setup state store: %w", err)
	}
	s.state = state

	return s, nil
}

// setupStateStore opens the shared state backend other folioview
// processes on this machine synchronize through.
func (s *Server) setupStateStore(ctx context.Context) (statestore.Store, error) {
	switch s.cfg.State.Backend {
	case config.StateBackendRedis:
		s.logger.Info("Using redis state store", zap.String("addr", s.cfg.State.RedisAddr))
		return statestore.OpenRedis(ctx, s.cfg.State.RedisAddr, s.cfg.State.RedisDB, s.logger)
	case config.StateBackendMemory:
		s.logger.Info("Using in-memory state store; sessions will not survive restarts")
		return statestore.NewMemory(), nil
	default:
		s.logger.Info("Using file state store", zap.String("path", s.cfg.State.FilePath))
		return statestore.OpenFile(s.cfg.State.FilePath, s.logger)
	}
}

// HTTPServer creates and configures the HTTP server
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         ":" + s.cfg.ServerPort,
		Handler:      s.router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// SetRouter sets the HTTP router/handler
func (s *Server) SetRouter(router http.Handler) {
	s.router = router
}

// GetStateStore returns the shared state store
func (s *Server) GetStateStore() statestore.Store {
	return s.state
}

// GetLogger returns the logger instance
func (s *Server) GetLogger() *zap.Logger {
	return s.logger
}

// GetConfig returns the configuration
func (s *Server) GetConfig() *config.Config {
	return s.cfg
}

// Close closes all server resources. Safe to call more than once; the
// shutdown path and main's defer both reach it.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.state != nil {
			if err := s.state.Close(); err != nil {
				s.logger.Warn("State store close failed", zap.Error(err))
			}
		}
	})
}
