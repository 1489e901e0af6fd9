package server

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// GracefulShutdown waits for SIGINT or SIGTERM, drains the HTTP server,
// then releases the rest of the process: the cross-process watcher is
// cancelled and the shared state store closed, so the identity marker
// backend is left clean for other folioview processes.
func (s *Server) GracefulShutdown(httpSrv *http.Server, stopWatcher context.CancelFunc, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	s.logger.Info("Shutting down gracefully, press Ctrl+C again to force")

	stop() // Allow Ctrl+C to force shutdown

	// In-flight requests get 5 seconds to finish.
	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(drainCtx); err != nil {
		s.logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Handlers are drained; nothing reads the state store past this point.
	stopWatcher()
	s.Close()

	s.logger.Info("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}
