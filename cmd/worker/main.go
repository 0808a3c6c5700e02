package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/atlas-dms/atlas-dms/internal/app"
	"github.com/atlas-dms/atlas-dms/internal/outbox"
	"github.com/atlas-dms/atlas-dms/internal/platform/db"
	"github.com/atlas-dms/atlas-dms/internal/shared"
	"github.com/atlas-dms/atlas-dms/internal/telematics"
	"github.com/atlas-dms/atlas-dms/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

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

	telematicsClient := telematics.NewClient(cfg.TelematicsBaseURL, cfg.TelematicsUsername, cfg.TelematicsPassword)
	telematicsService := telematics.NewService(logger, telematicsClient, telematics.NewRepository(pool))
	syncJob := jobs.NewTelematicsSyncJob(telematicsService, logger)
	historyJob := jobs.NewTelematicsHistoryJob(telematicsService, logger)

	dispatcher := outbox.NewDispatcher(logger, outbox.NewRepository(pool), cfg.AutomationHookURL)
	outboxJob := jobs.NewOutboxDispatchJob(dispatcher, logger)

	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), logger)

	syncTask, err := jobs.NewTelematicsSyncTask("cron")
	if err != nil {
		logger.Error("build sync task", slog.Any("error", err))
		os.Exit(1)
	}
	historyTask, err := jobs.NewTelematicsHistoryTask()
	if err != nil {
		logger.Error("build history task", slog.Any("error", err))
		os.Exit(1)
	}
	dispatchTask, err := jobs.NewOutboxDispatchTask()
	if err != nil {
		logger.Error("build dispatch task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask()
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTelematicsSync, Handler: syncJob.Handle},
			{Type: jobs.TaskTelematicsHistory, Handler: historyJob.Handle},
			{Type: jobs.TaskOutboxDispatch, Handler: outboxJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/30 * * * *", Task: syncTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
			{Spec: "*/10 * * * *", Task: historyTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
			{Spec: "*/5 * * * *", Task: dispatchTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
			{Spec: "0 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
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
