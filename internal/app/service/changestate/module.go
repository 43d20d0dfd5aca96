package changestate

import "go.uber.org/fx"

// Module exposes the Redis-backed scheduling state via Fx.
var Module = fx.Options(
	fx.Provide(
		NewRedisStore,
		func(s *RedisStore) Store { return s },
	),
)
