package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/aegis/internal/app"
	"github.com/noah-isme/aegis/internal/audit"
	"github.com/noah-isme/aegis/internal/platform/cache"
	"github.com/noah-isme/aegis/internal/platform/db"
	"github.com/noah-isme/aegis/internal/policy"
	"github.com/noah-isme/aegis/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := cache.New(ctx, cfg.RedisAddr, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditRepo := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditRepo)
	decisionLogJob := jobs.NewDecisionLogJob(auditService, logger)

	policyRepo := policy.NewRepository(dbpool)
	policyCache := policy.NewRedisCache(redisClient, cfg.PolicyCacheTTL)
	policyStore := policy.NewStore(policyRepo, policyCache, logger)
	warmupJob := jobs.NewPolicyWarmupJob(policyStore, policyCache, dbpool, logger)

	var cron []jobs.CronRegistration
	if cfg.PolicyWarmupCron != "" {
		warmupTask, err := jobs.NewPolicyWarmupTask(jobs.PolicyWarmupPayload{})
		if err != nil {
			logger.Error("build warmup task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: cfg.PolicyWarmupCron, Task: warmupTask})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDecisionLogged, Handler: decisionLogJob.Handle},
			{Type: jobs.TaskPolicyWarmup, Handler: warmupJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
