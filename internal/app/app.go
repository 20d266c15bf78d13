package app

import (
	"context"

	"github.com/RkayG/Cxperia-sub002/internal/common/logging"
	"github.com/RkayG/Cxperia-sub002/internal/config"
	"github.com/RkayG/Cxperia-sub002/internal/metrics"
	"github.com/RkayG/Cxperia-sub002/internal/ratelimit"
	"github.com/RkayG/Cxperia-sub002/internal/redis"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Logger      logging.Logger
	RedisClient *redis.Client
	Registry    *ratelimit.Registry
	// Metrics is nil when METRICS_ENABLED is false.
	Metrics  *metrics.Prometheus
	recorder metrics.Recorder
}

// New creates a new application instance with all dependencies
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
		recorder: metrics.Noop{},
	}

	if err := app.initializeRedis(); err != nil {
		// Redis is optional, counting stays in memory
		app.Logger.Warn("Redis initialization failed, continuing with the in-memory store",
			logging.Field{Key: "error", Value: err.Error()})
	}

	app.initializeMetrics()
	app.initializeRateLimiting(ctx)

	return app, nil
}

func (app *App) initializeMetrics() {
	if !app.Config.MetricsEnabled {
		app.Logger.Info("Metrics: Disabled")
		return
	}
	app.Metrics = metrics.NewPrometheus()
	app.recorder = app.Metrics
	app.Logger.Info("Metrics: Enabled", logging.Field{Key: "path", Value: "/metrics"})
}

// Shutdown releases the rate limit store and the Redis connection.
func (app *App) Shutdown(ctx context.Context) error {
	var firstErr error
	if app.Registry != nil {
		if err := app.Registry.Close(); err != nil {
			firstErr = err
		}
	}
	if app.RedisClient != nil {
		if err := app.RedisClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
