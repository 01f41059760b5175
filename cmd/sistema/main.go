package main

import (
	"context"
	"log/slog"
	"net/http"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	auditLogger := shared.NewAuditLogger(dbpool)
	locker := shared.NewLocker(redisClient, cfg.LockTTL)

	flowsRepo := flows.NewRepository(dbpool)
	if err := flowsRepo.SeedDefaultFlow(ctx); err != nil {
		logger.Error("seed default flow", slog.Any("error", err))
		os.Exit(1)
	}

	inventoryRepo := inventory.NewRepository(dbpool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, inventory.ServiceConfig{
		DefaultInventoryID: cfg.EngineDefaultInventory,
	})

	ordersRepo := orders.NewRepository(dbpool)
	ordersService := orders.NewService(ordersRepo, auditLogger, logger, orders.ServiceConfig{
		Installments: cfg.EngineInstallments,
	})

	evaluator := pipeline.NewEvaluator(inventoryService, logger, cfg.EngineInstallments)
	engine := pipeline.NewEngine(ordersRepo, flowsRepo, inventoryService, evaluator, locker, auditLogger, logger, pipeline.EngineConfig{
		FlowID: cfg.EngineFlowID,
	})

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	// Restocking may release held orders; sweep right away instead of
	// waiting for the cron run.
	afterIntake := func() {
		if _, err := jobsClient.EnqueueStockRecheck(context.Background(), "intake"); err != nil {
			logger.Warn("enqueue stock recheck", slog.Any("error", err))
		}
	}

	ordersHandler := orders.NewHandler(logger, ordersService)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, afterIntake)
	pipelineHandler := pipeline.NewHandler(logger, engine)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		OrdersHandler:    ordersHandler,
		InventoryHandler: inventoryHandler,
		PipelineHandler:  pipelineHandler,
		JobHandler:       jobHandler,
		Pool:             dbpool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
