package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/grouprole-condition/internal/app"
	"github.com/odyssey-erp/grouprole-condition/internal/audit"
	audithttp "github.com/odyssey-erp/grouprole-condition/internal/audit/http"
	"github.com/odyssey-erp/grouprole-condition/internal/auth"
	"github.com/odyssey-erp/grouprole-condition/internal/condition"
	"github.com/odyssey-erp/grouprole-condition/internal/grouprole"
	"github.com/odyssey-erp/grouprole-condition/internal/observability"
	"github.com/odyssey-erp/grouprole-condition/internal/platform/cache"
	"github.com/odyssey-erp/grouprole-condition/internal/platform/db"
	"github.com/odyssey-erp/grouprole-condition/internal/rbac"
	"github.com/odyssey-erp/grouprole-condition/internal/shared"
	"github.com/odyssey-erp/grouprole-condition/internal/view"
	"github.com/odyssey-erp/grouprole-condition/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "grouprole_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	rbacService := rbac.NewService(dbpool)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}
	for _, perm := range rbac.Scopes() {
		if _, err := rbacService.EnsurePermission(ctx, perm, ""); err != nil {
			logger.Warn("ensure permission", slog.String("permission", perm), slog.Any("error", err))
		}
	}

	roleCache := grouprole.NewCache(redisClient, cfg.RoleCacheTTL)
	groupRoles := grouprole.NewService(grouprole.NewRepository(dbpool), roleCache)

	conditions := condition.NewService(condition.ServiceDeps{
		Repo:     condition.NewRepository(dbpool),
		Groups:   groupRoles,
		Lookup:   groupRoles,
		Audit:    auditLogger,
		Observer: metrics,
		Logger:   logger,
	})

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      auth.NewHandler(logger, auth.NewService(auth.NewRepository(dbpool)), templates, sessionManager, csrfManager),
		AuditHandler:     audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), rbacMiddleware),
		ConditionHandler: condition.NewHandler(logger, conditions, groupRoles, templates, csrfManager, rbacMiddleware, cfg.Language()),
		GroupRoleHandler: grouprole.NewHandler(logger, groupRoles, jobClient, rbacMiddleware, rbac.PermGroupRolesView, rbac.PermCacheManage),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
