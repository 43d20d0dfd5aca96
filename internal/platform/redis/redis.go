package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/renewal/pkg/config"
)

// NewClient builds the client backing the ephemeral scheduling state.
// The connection is verified on start so a missing Redis fails fast.
func NewClient(lc fx.Lifecycle, l *zap.SugaredLogger, cfg *cfgpkg.Config) goredis.UniversalClient {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
			}
			l.Infow("connected to redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			l.Infow("closing redis client")
			return client.Close()
		},
	})
	return client
}

var Module = fx.Options(
	fx.Provide(NewClient),
)
