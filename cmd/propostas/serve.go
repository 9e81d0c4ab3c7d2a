package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/constructa/propostas/internal/app"
	"github.com/constructa/propostas/internal/audit"
	"github.com/constructa/propostas/internal/auth"
	"github.com/constructa/propostas/internal/dashboard"
	"github.com/constructa/propostas/internal/freight"
	"github.com/constructa/propostas/internal/mail"
	"github.com/constructa/propostas/internal/observability"
	"github.com/constructa/propostas/internal/platform/cache"
	"github.com/constructa/propostas/internal/platform/db"
	"github.com/constructa/propostas/internal/products"
	"github.com/constructa/propostas/internal/proposals"
	"github.com/constructa/propostas/internal/quotes"
	"github.com/constructa/propostas/internal/rbac"
	"github.com/constructa/propostas/internal/reports"
	"github.com/constructa/propostas/internal/shared"
	"github.com/constructa/propostas/internal/users"
	"github.com/constructa/propostas/jobs"
	"github.com/constructa/propostas/report"
)

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.InTestMode() {
				slog.Default().Info("test mode detected, skipping runtime startup")
				return nil
			}
			e, err := loadEnv()
			if err != nil {
				return err
			}
			return serve(commandContext(cmd), e, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(parent context.Context, e env, migrate bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg, logger := e.cfg, e.logger

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	if migrate {
		applied, err := db.Migrate(ctx, pool, logger)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", slog.Int("count", len(applied)))
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	var dispatcher proposals.Dispatcher
	if cfg.MailAsync {
		client := jobs.NewClient(redisOpts)
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("asynq client close", slog.Any("error", err))
			}
		}()
		dispatcher = client
	}

	svc, err := app.NewServices(app.ServiceDeps{
		Config:     cfg,
		Logger:     logger,
		Pool:       pool,
		Redis:      redisClient,
		Dispatcher: dispatcher,
	})
	if err != nil {
		return err
	}

	sessions := shared.NewSessionManager(redisClient, shared.DefaultSessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)
	rbacMW := rbac.Middleware{Service: svc.RBAC, Logger: logger}
	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthMiddleware:     auth.Middleware{Service: svc.Auth, Sessions: sessions, CSRF: csrf, Logger: logger},
		AuthHandler:        auth.NewHandler(logger, svc.Auth, sessions, csrf),
		ProductsHandler:    products.NewHandler(logger, svc.Products, rbacMW),
		FreightHandler:     freight.NewHandler(logger, svc.Freight, rbacMW),
		QuotesHandler:      quotes.NewHandler(logger, svc.Quotes, rbacMW),
		ProposalsHandler:   proposals.NewHandler(logger, svc.Proposals, rbacMW),
		DashboardHandler:   dashboard.NewHandler(logger, svc.Dashboard, rbacMW),
		ReportsHandler:     reports.NewHandler(logger, svc.Reports, rbacMW),
		UsersHandler:       users.NewHandler(logger, svc.Users, rbacMW),
		PermissionsHandler: rbac.NewPermissionsHandler(svc.RBAC),
		AuditHandler:       audit.NewHandler(logger, svc.Audit, rbacMW),
		MailHandler:        mail.NewHandler(logger, svc.Composer, svc.Sender, svc.Idempotency),
		ReportHandler:      report.NewHandler(svc.Gotenberg, logger),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
		Ready: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
			return redisClient.Ping(ctx).Err()
		},
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("version", app.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
