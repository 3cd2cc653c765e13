package framework

import "go.uber.org/fx"

var Module = fx.Module("framework.module",
	fx.Provide(NewService),
)
