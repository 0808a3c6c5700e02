package webhookin

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func protected(secret string) http.Handler {
	mw := NewMiddleware(slog.New(slog.DiscardHandler), secret)
	return mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestRequireMatchingSecret(t *testing.T) {
	handler := protected("s3cret")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/oem-reply", nil)
	req.Header.Set(HeaderName, "s3cret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireRejectsMismatch(t *testing.T) {
	handler := protected("s3cret")

	for _, got := range []string{"", "wrong", "s3cret "} {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/oem-reply", nil)
		if got != "" {
			req.Header.Set(HeaderName, got)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestRequireUnsetSecretIsServerError(t *testing.T) {
	handler := protected("")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/oem-reply", nil)
	req.Header.Set(HeaderName, "anything")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
