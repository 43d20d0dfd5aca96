package intake

import "go.uber.org/fx"

// Module exposes the executor report intake via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
