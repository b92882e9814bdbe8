package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/solvetrace/solvetrace/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cache",
	fx.Provide(NewRedisClient),
	fx.Provide(NewSessionMetadataCache),
)

// NewRedisClient builds the shared Redis connection for session metadata.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) redis.UniversalClient {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				// Session metadata is a best-effort surface. Log and continue.
				log.Warn("redis unavailable at startup", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return client
}
