package planchange

import "go.uber.org/fx"

// Module exposes the plan-change scheduler and its backoff policy via Fx.
var Module = fx.Options(
	fx.Provide(
		NewBackoffPolicy,
		NewService,
	),
)
