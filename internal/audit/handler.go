package audit

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
	"github.com/atlas-dms/atlas-dms/internal/rbac"
)

// Handler exposes the audit trail to privileged readers.
type Handler struct {
	repo RepositoryPort
	rbac rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(repo RepositoryPort, mw rbac.Middleware) *Handler {
	return &Handler{repo: repo, rbac: mw}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionAuditView))
		r.Get("/", h.list)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	actorID, _ := strconv.ParseInt(q.Get("actor_id"), 10, 64)
	entries, err := h.repo.List(r.Context(), Filter{
		Entity:   q.Get("entity"),
		EntityID: q.Get("entity_id"),
		Action:   q.Get("action"),
		ActorID:  actorID,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, entries)
}
