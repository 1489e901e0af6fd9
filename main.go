package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fmcunha/folioview/internal/api"
	"github.com/fmcunha/folioview/internal/app/domain/crosstab"
	"github.com/fmcunha/folioview/internal/pkg/cache"
	"github.com/fmcunha/folioview/internal/pkg/config"
	"github.com/fmcunha/folioview/internal/routes"
	"github.com/fmcunha/folioview/internal/server"
	applog "github.com/fmcunha/folioview/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file, using environment variables")
	}

	// Initialize logger
	if err := applog.Init(zapcore.InfoLevel, zap.String("service", "folioview")); err != nil {
		return err
	}
	logger := applog.Log
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize observability
	otelShutdown, err := server.InitObservability("folioview", ":"+cfg.MetricsPort, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}()

	// Create server (opens the shared state store)
	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	// Wire the domain layer
	apiClient := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout, logger)
	caches := cache.NewRegistry(logger)
	app := routes.SetupDependencies(cfg, apiClient, srv.GetStateStore(), caches, logger)

	// Restore the previous session before serving the first request
	app.Sessions.RefreshSession(context.Background())

	// React to sign-ins and sign-outs from other folioview processes
	syncCtx, cancelSync := context.WithCancel(context.Background())
	defer cancelSync()
	sync := crosstab.New(srv.GetStateStore(), app.Sessions, logger)
	go func() {
		if err := sync.Run(syncCtx); err != nil {
			logger.Warn("Cross-process sync stopped", zap.Error(err))
		}
	}()

	// Setup router
	router := server.SetupRouter(app, logger)
	srv.SetRouter(router)

	// Start pprof server (on separate port, not exposed publicly)
	server.StartPprofServer(":"+cfg.PprofPort, logger)

	// Create HTTP server
	httpServer := srv.HTTPServer()

	// Setup graceful shutdown; it also stops the cross-process watcher
	// and closes the state store once handlers are drained
	done := make(chan bool, 1)
	go srv.GracefulShutdown(httpServer, cancelSync, done)

	// Start server
	logger.Info("Server starting", zap.String("port", cfg.ServerPort))
	if err := httpServer.ListenAndServe(); err != nil {
		logger.Error("Server error", zap.Error(err))
	}

	// Wait for graceful shutdown to complete
	<-done
	logger.Info("Graceful shutdown complete")

	return nil
}
