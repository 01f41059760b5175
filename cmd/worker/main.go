package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/conamormarket-lgtm/sistema-sub001/internal/app"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/flows"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/inventory"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/orders"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/pipeline"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/platform/cache"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/platform/db"
	"github.com/conamormarket-lgtm/sistema-sub001/internal/shared"
	"github.com/conamormarket-lgtm/sistema-sub001/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	locker := shared.NewLocker(redisClient, cfg.LockTTL)

	flowsRepo := flows.NewRepository(pool)
	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, inventory.ServiceConfig{
		DefaultInventoryID: cfg.EngineDefaultInventory,
	})
	ordersRepo := orders.NewRepository(pool)

	evaluator := pipeline.NewEvaluator(inventoryService, logger, cfg.EngineInstallments)
	engine := pipeline.NewEngine(ordersRepo, flowsRepo, inventoryService, evaluator, locker, auditLogger, logger, pipeline.EngineConfig{
		FlowID: cfg.EngineFlowID,
	})

	recheckTask, err := jobs.NewStockRecheckTask("cron", time.Now().UTC())
	if err != nil {
		logger.Error("build stock recheck task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStockRecheck, Handler: jobs.NewStockRecheckHandler(engine, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.StockRecheckCron, Task: recheckTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
