package telematics

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
	"github.com/atlas-dms/atlas-dms/internal/rbac"
)

// Handler manages telematics endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: mw, validate: validator.New()}
}

// MountRoutes registers the authenticated telematics routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionSyncTrigger))
		r.Post("/sync", h.syncLive)
		r.Post("/history/run", h.runHistory)
		r.Patch("/history/status", h.setHistoryStatus)
		r.Get("/history/summary", h.historySummary)
	})
}

func (h *Handler) syncLive(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.SyncLive(r.Context())
	if err != nil {
		h.logger.Error("live telematics sync", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"vehicles": count})
}

func (h *Handler) runHistory(w http.ResponseWriter, r *http.Request) {
	processed, err := h.service.RunHistoryOnce(r.Context())
	if err != nil {
		h.logger.Error("history batch", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"processed": processed})
}

type historyStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=running paused"`
}

func (h *Handler) setHistoryStatus(w http.ResponseWriter, r *http.Request) {
	var req historyStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.SetHistoryStatus(r.Context(), HistoryStatus(req.Status)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"status": req.Status})
}

func (h *Handler) historySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.HistorySummary(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, summary)
}
