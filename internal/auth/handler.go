package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
	"github.com/atlas-dms/atlas-dms/internal/rbac"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *shared.SessionManager
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		sessions: sessions,
		validate: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Fail(w, http.StatusUnauthorized, ErrInvalidCredentials.Error())
		return
	}

	role := string(rbac.Normalize(user.Role))
	token, err := h.sessions.Issue(r.Context(), shared.Identity{UserID: user.ID, Email: user.Email, Role: role})
	if err != nil {
		h.logger.Error("issue session", slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	httpx.OK(w, loginResponse{Token: token, Email: user.Email, Role: role})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := shared.BearerToken(r)
	if token != "" {
		if err := h.sessions.Revoke(r.Context(), token); err != nil {
			h.logger.Warn("revoke session", slog.Any("error", err))
		}
	}
	httpx.OK(w, map[string]string{"status": "logged_out"})
}

// handleMe returns the resolved identity, primarily as a session probe for
// clients.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.OK(w, map[string]any{
		"user_id": identity.UserID,
		"email":   identity.Email,
		"role":    identity.Role,
	})
}
