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

	"github.com/atlas-dms/atlas-dms/internal/app"
	"github.com/atlas-dms/atlas-dms/internal/approvals"
	"github.com/atlas-dms/atlas-dms/internal/audit"
	"github.com/atlas-dms/atlas-dms/internal/auth"
	"github.com/atlas-dms/atlas-dms/internal/catalog"
	"github.com/atlas-dms/atlas-dms/internal/deals"
	"github.com/atlas-dms/atlas-dms/internal/inventory"
	"github.com/atlas-dms/atlas-dms/internal/kyc"
	"github.com/atlas-dms/atlas-dms/internal/leads"
	"github.com/atlas-dms/atlas-dms/internal/oem"
	"github.com/atlas-dms/atlas-dms/internal/orders"
	"github.com/atlas-dms/atlas-dms/internal/platform/cache"
	"github.com/atlas-dms/atlas-dms/internal/platform/db"
	"github.com/atlas-dms/atlas-dms/internal/provisioning"
	"github.com/atlas-dms/atlas-dms/internal/rbac"
	"github.com/atlas-dms/atlas-dms/internal/shared"
	"github.com/atlas-dms/atlas-dms/internal/telematics"
	"github.com/atlas-dms/atlas-dms/internal/webhookin"
	"github.com/atlas-dms/atlas-dms/jobs"
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

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionTTL)
	auditLogger := shared.NewAuditLogger(dbpool)
	idemStore := shared.NewIdempotencyStore(dbpool)
	rbacMiddleware := rbac.Middleware{Logger: logger}

	authService := auth.NewService(auth.NewRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	leadsService := leads.NewService(leads.NewRepository(dbpool), auditLogger)
	leadsHandler := leads.NewHandler(logger, leadsService, rbacMiddleware)

	kycService := kyc.NewService(kyc.NewRepository(dbpool))
	kycHandler := kyc.NewHandler(logger, kycService, rbacMiddleware)

	dealsService := deals.NewService(deals.NewRepository(dbpool))
	dealsHandler := deals.NewHandler(logger, dealsService, rbacMiddleware)

	approvalsService := approvals.NewService(approvals.NewRepository(dbpool), redisClient, logger)
	approvalsHandler := approvals.NewHandler(logger, approvalsService, rbacMiddleware)

	oemService := oem.NewService(oem.NewRepository(dbpool))
	oemHandler := oem.NewHandler(logger, oemService, rbacMiddleware)

	catalogService := catalog.NewService(catalog.NewRepository(dbpool))
	catalogHandler := catalog.NewHandler(logger, catalogService, rbacMiddleware)

	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), auditLogger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, rbacMiddleware)

	provisionService := provisioning.NewService(logger, provisioning.NewRepository(dbpool))
	provisionHandler := provisioning.NewHandler(logger, provisionService, rbacMiddleware)

	ordersService := orders.NewService(orders.NewRepository(dbpool), idemStore)
	ordersHandler := orders.NewHandler(logger, ordersService, rbacMiddleware)

	telematicsClient := telematics.NewClient(cfg.TelematicsBaseURL, cfg.TelematicsUsername, cfg.TelematicsPassword)
	telematicsService := telematics.NewService(logger, telematicsClient, telematics.NewRepository(dbpool))
	telematicsHandler := telematics.NewHandler(logger, telematicsService, rbacMiddleware)

	auditHandler := audit.NewHandler(audit.NewRepository(dbpool), rbacMiddleware)

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
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		AuthHandler:       authHandler,
		LeadsHandler:      leadsHandler,
		KYCHandler:        kycHandler,
		DealsHandler:      dealsHandler,
		ApprovalsHandler:  approvalsHandler,
		OEMHandler:        oemHandler,
		CatalogHandler:    catalogHandler,
		InventoryHandler:  inventoryHandler,
		ProvisionHandler:  provisionHandler,
		OrdersHandler:     ordersHandler,
		TelematicsHandler: telematicsHandler,
		AuditHandler:      auditHandler,
		JobHandler:        jobHandler,
		WebhookMiddleware: webhookin.NewMiddleware(logger, cfg.WebhookSecret),
		JobsClient:        jobsClient,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("http server", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
