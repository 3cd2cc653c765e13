package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"validata-backend/pkg/config"
	"validata-backend/pkg/db"
	"validata-backend/pkg/gen"
	genaifx "validata-backend/pkg/genai"
	"validata-backend/pkg/logger"
	"validata-backend/pkg/redis"
	"validata-backend/pkg/task"
	"validata-backend/services/framework"
	"validata-backend/services/research"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		gen.Module,
		genaifx.Module,
		task.Client,
		task.Server,
		framework.Module,
		research.WorkerModule,
		fxLogger,
	)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
