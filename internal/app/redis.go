package app

import (
	"github.com/RkayG/Cxperia-sub002/internal/common/logging"
	"github.com/RkayG/Cxperia-sub002/internal/redis"
)

// initializeRedis creates the client without waiting for the server: the
// counter store checks it and falls back to memory while it is unreachable.
func (app *App) initializeRedis() error {
	if !app.Config.HasRedis() {
		app.Logger.Info("Redis: Not configured (rate limit counters are kept in memory)")
		return nil
	}

	redisClient, err := redis.New(&redis.Config{
		URL:      app.Config.RedisURL,
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDBNumber(),
		PoolSize: app.Config.RedisPool(),
	})
	if err != nil {
		return err
	}

	app.RedisClient = redisClient
	app.Logger.Info("Redis: Configured", logging.Field{Key: "address", Value: redisClient.Addr()})
	return nil
}
