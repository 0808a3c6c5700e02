package webhookin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
)

// HeaderName carries the shared secret on inbound automation webhooks.
const HeaderName = "x-webhook-secret"

// Middleware authenticates inbound webhooks with a shared secret.
type Middleware struct {
	logger *slog.Logger
	secret string
}

// NewMiddleware builds the webhook auth middleware.
func NewMiddleware(logger *slog.Logger, secret string) Middleware {
	return Middleware{logger: logger, secret: secret}
}

// Require rejects requests whose secret header does not match. An empty
// configured secret is a deployment mistake and answers 500 rather than
// silently letting everything through.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.secret == "" {
			m.logger.Error("webhook secret not configured")
			httpx.Fail(w, http.StatusInternalServerError, "webhook receiver misconfigured")
			return
		}
		got := r.Header.Get(HeaderName)
		if subtle.ConstantTimeCompare([]byte(got), []byte(m.secret)) != 1 {
			httpx.Fail(w, http.StatusUnauthorized, "invalid webhook secret")
			return
		}
		next.ServeHTTP(w, r)
	})
}
