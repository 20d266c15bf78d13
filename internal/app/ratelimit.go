package app

import (
	"context"

	"github.com/RkayG/Cxperia-sub002/internal/circuitbreaker"
	"github.com/RkayG/Cxperia-sub002/internal/common/logging"
	"github.com/RkayG/Cxperia-sub002/internal/common/utils"
	"github.com/RkayG/Cxperia-sub002/internal/config"
	"github.com/RkayG/Cxperia-sub002/internal/ratelimit"
)

// initializeRateLimiting builds the shared counter store and the limiter registry.
func (app *App) initializeRateLimiting(ctx context.Context) {
	var counter ratelimit.WindowCounter
	if app.RedisClient != nil {
		counter = app.RedisClient
	}

	breaker := circuitbreaker.DefaultConfig()
	breaker.MaxFailures = app.Config.BreakerFailures()
	breaker.Timeout = app.Config.BreakerCooldown()

	store := ratelimit.BuildStore(ctx, ratelimit.NewStoreOptions{
		Counter:       counter,
		Timeout:       app.Config.StoreTimeout(),
		SweepInterval: app.Config.SweepInterval(),
		Breaker:       breaker,
		Logger:        app.Logger,
		Recorder:      app.recorder,
	})

	app.Registry = ratelimit.NewRegistry(store, app.registryOptions()...)

	if !app.Config.RateLimitEnabled {
		app.Logger.Warn("Rate Limiting: Disabled, every request is admitted")
		return
	}
	app.Logger.Info("Rate Limiting: Enabled",
		logging.Field{Key: "store", Value: app.Registry.Health(ctx).Backend},
		logging.Field{Key: "trust_proxy", Value: app.Config.RateLimitTrustProxy},
	)
}

// registryOptions applies RATE_LIMIT_* settings and preset overrides.
func (app *App) registryOptions() []ratelimit.RegistryOption {
	cfg, logger := app.Config, app.Logger
	opts := []ratelimit.RegistryOption{
		ratelimit.WithLimiterOptions(
			ratelimit.WithLogger(logger),
			ratelimit.WithRecorder(app.recorder),
		),
		ratelimit.WithLimitingDisabled(!cfg.RateLimitEnabled),
	}
	if !cfg.RateLimitTrustProxy {
		opts = append(opts, ratelimit.WithDefaultKeyGenerator(ratelimit.RemoteAddrKeyGenerator))
	}

	presets := ratelimit.DefaultPresets()
	for _, name := range config.PresetNames {
		maxRequests, window := cfg.PresetLimit(name)
		if maxRequests == 0 && window == 0 {
			continue
		}
		preset := presets[name]
		if maxRequests > 0 {
			preset.MaxRequests = maxRequests
		}
		if window > 0 {
			preset.Window = window
		}
		logger.Info("Rate limit preset overridden",
			logging.Field{Key: "preset", Value: name},
			logging.Field{Key: "max", Value: preset.MaxRequests},
			logging.Field{Key: "window", Value: utils.FormatDuration(preset.Window)},
		)
		opts = append(opts, ratelimit.WithPreset(preset))
	}
	return opts
}
