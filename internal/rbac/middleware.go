package rbac

import (
	"log/slog"
	"net/http"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// Require ensures the request carries an identity whose role is allowed to
// perform the action. Missing identity maps to 401, denied role to 403.
func (m Middleware) Require(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			role := Normalize(identity.Role)
			if !Authorize(role, action) {
				if m.Logger != nil {
					m.Logger.Warn("authorization denied",
						slog.String("role", string(role)),
						slog.String("action", string(action)),
						slog.String("path", r.URL.Path))
				}
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
