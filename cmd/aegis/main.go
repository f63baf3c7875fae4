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

	"github.com/noah-isme/aegis/internal/app"
	"github.com/noah-isme/aegis/internal/auth"
	"github.com/noah-isme/aegis/internal/authz"
	"github.com/noah-isme/aegis/internal/observability"
	"github.com/noah-isme/aegis/internal/permission"
	"github.com/noah-isme/aegis/internal/platform/cache"
	"github.com/noah-isme/aegis/internal/platform/db"
	"github.com/noah-isme/aegis/internal/policy"
	"github.com/noah-isme/aegis/internal/role"
	"github.com/noah-isme/aegis/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authMiddleware := auth.Middleware{Service: authService, Logger: logger}

	permissionRepo := permission.NewRepository(dbpool)
	permissionService := permission.NewService(permissionRepo)
	permissionHandler := permission.NewHandler(logger, permissionService)

	roleRepo := role.NewRepository(dbpool)
	roleCache := role.NewRedisCache(redisClient, cfg.RoleCacheTTL)
	roleResolver := role.NewResolver(roleRepo, roleCache, logger)
	roleService := role.NewService(roleRepo)
	roleHandler := role.NewHandler(logger, roleService, roleResolver)

	policyRepo := policy.NewRepository(dbpool)
	policyCache := policy.NewRedisCache(redisClient, cfg.PolicyCacheTTL)
	policyStore := policy.NewStore(policyRepo, policyCache, logger)
	policyService := policy.NewService(policyRepo, policyCache, logger)
	policyHandler := policy.NewHandler(logger, policyService)

	var recorder authz.DecisionRecorder
	if cfg.DecisionLogEnabled {
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := asynqClient.Close(); err != nil {
				logger.Warn("asynq client close", slog.Any("error", err))
			}
		}()
		recorder = jobs.NewRecorder(asynqClient)
	}

	evaluator := policy.NewEvaluator(nil)
	authzMetrics := authz.NewMetrics(metrics.Registerer())
	authzService := authz.NewService(roleResolver, policyStore, evaluator, recorder, authzMetrics, logger)
	authzHandler := authz.NewHandler(logger, authzService)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AuthMiddleware:    authMiddleware,
		AuthzHandler:      authzHandler,
		PermissionHandler: permissionHandler,
		RoleHandler:       roleHandler,
		PolicyHandler:     policyHandler,
		Metrics:           metrics,
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
