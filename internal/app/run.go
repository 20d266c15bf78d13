package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/RkayG/Cxperia-sub002/internal/common/logging"
	"github.com/RkayG/Cxperia-sub002/internal/config"
)

const shutdownTimeout = 30 * time.Second

// Run is the main entry point for the application
func Run() error {
	// Load environment variables
	_ = godotenv.Load()

	cfg := config.Load()

	// Initialize logging
	if err := logging.InitGlobalLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		return err
	}
	defer logging.MustSync()

	logging.Info("Starting admission control service", logging.Field{Key: "version", Value: "1.0.0"})

	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}

	srv, err := app.RunServer()
	if err != nil {
		logging.Error("Failed to build routes", err)
		_ = app.Shutdown(context.Background())
		return err
	}
	if err := srv.Start(); err != nil {
		logging.Error("Server failed to start", err)
		_ = app.Shutdown(context.Background())
		return err
	}
	logging.Info("Server listening", logging.Field{Key: "address", Value: srv.Addr()})

	// Wait for interrupt signal or a fatal serve error
	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-srv.Errors():
		logging.Error("Server stopped unexpectedly", serveErr)
	}

	logging.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop accepting requests before the store goes away
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server forced to shutdown", err)
		serveErr = err
	}

	if err := app.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Error during app shutdown", logging.Field{Key: "error", Value: err})
	}

	logging.Info("Server exited")
	return serveErr
}
