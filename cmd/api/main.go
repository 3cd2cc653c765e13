package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"validata-backend/internal/httpapi"
	"validata-backend/internal/server"
	"validata-backend/pkg/config"
	"validata-backend/pkg/db"
	"validata-backend/pkg/gen"
	"validata-backend/pkg/health"
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
		health.Module,
		task.Client,
		framework.Module,
		research.Module,
		httpapi.Module,
		server.Module,
		fx.Invoke(migrate),
		fxLogger,
	)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&framework.ValidationFramework{},
		&framework.ValidationTask{},
		&research.ResearchJob{},
		&research.ResearchReport{},
	)
}
