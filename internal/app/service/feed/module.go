package feed

import "go.uber.org/fx"

// Module exposes the executor work feeds via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
