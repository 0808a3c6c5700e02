package app

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"

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
	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
	"github.com/atlas-dms/atlas-dms/internal/provisioning"
	"github.com/atlas-dms/atlas-dms/internal/shared"
	"github.com/atlas-dms/atlas-dms/internal/telematics"
	"github.com/atlas-dms/atlas-dms/internal/webhookin"
	"github.com/atlas-dms/atlas-dms/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager

	AuthHandler        *auth.Handler
	LeadsHandler       *leads.Handler
	KYCHandler         *kyc.Handler
	DealsHandler       *deals.Handler
	ApprovalsHandler   *approvals.Handler
	OEMHandler         *oem.Handler
	CatalogHandler     *catalog.Handler
	InventoryHandler   *inventory.Handler
	ProvisionHandler   *provisioning.Handler
	OrdersHandler      *orders.Handler
	TelematicsHandler  *telematics.Handler
	AuditHandler       *audit.Handler
	JobHandler         *jobs.Handler
	WebhookMiddleware  webhookin.Middleware
	JobsClient         *jobs.Client
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Route("/leads", func(r chi.Router) {
			params.LeadsHandler.MountRoutes(r)
			r.Route("/{leadID}/kyc", params.KYCHandler.MountRoutes)
		})
		r.Route("/deals", params.DealsHandler.MountRoutes)
		r.Route("/approvals", params.ApprovalsHandler.MountRoutes)
		r.Route("/oems", params.OEMHandler.MountRoutes)
		r.Route("/catalog", params.CatalogHandler.MountRoutes)
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
		r.Route("/provisions", params.ProvisionHandler.MountRoutes)
		r.Route("/orders", params.OrdersHandler.MountRoutes)
		r.Route("/telematics", params.TelematicsHandler.MountRoutes)
		r.Route("/audit", params.AuditHandler.MountRoutes)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Use(params.WebhookMiddleware.Require)
		params.ProvisionHandler.MountWebhookRoutes(r)
	})

	r.Route("/cron", func(r chi.Router) {
		r.Use(cronAuth(params.Config, params.Logger))
		r.Post("/telematics-sync", enqueueCron(params, func() (*asynq.Task, error) {
			return jobs.NewTelematicsSyncTask("cron")
		}))
		r.Post("/telematics-history", enqueueCron(params, jobs.NewTelematicsHistoryTask))
		r.Post("/outbox-dispatch", enqueueCron(params, jobs.NewOutboxDispatchTask))
	})

	return r
}

// cronAuth guards the cron routes with the shared bearer secret. Outside
// production the check is skipped so local runs stay simple.
func cronAuth(cfg *Config, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.IsProduction() {
				token := shared.BearerToken(r)
				if cfg.CronSecret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.CronSecret)) != 1 {
					logger.Warn("cron auth rejected", slog.String("path", r.URL.Path))
					httpx.Fail(w, http.StatusUnauthorized, "invalid cron secret")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func enqueueCron(params RouterParams, build func() (*asynq.Task, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := build()
		if err != nil {
			httpx.Fail(w, http.StatusInternalServerError, "build task")
			return
		}
		if params.JobsClient == nil {
			httpx.Fail(w, http.StatusServiceUnavailable, "job queue unavailable")
			return
		}
		info, err := params.JobsClient.Enqueue(r.Context(), task)
		if err != nil {
			params.Logger.Error("enqueue cron task", slog.String("type", task.Type()), slog.Any("error", err))
			httpx.Fail(w, http.StatusInternalServerError, "enqueue task")
			return
		}
		httpx.OK(w, map[string]any{"task_id": info.ID, "type": task.Type()})
	}
}
