package alert

import (
	"context"

	"go.uber.org/fx"
)

// Module exposes the alert service via Fx and drains pending alerts on stop.
var Module = fx.Options(
	fx.Provide(
		New,
		func(s *Service) Notifier { return s },
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Service) {
		lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return s.Wait(ctx) }})
	}),
)
