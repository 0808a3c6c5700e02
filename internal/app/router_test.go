package app

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func cronGuard(cfg *Config) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return cronAuth(cfg, slog.New(slog.DiscardHandler))(next)
}

func hitCron(guard http.Handler, token string) int {
	req := httptest.NewRequest(http.MethodPost, "/cron/telematics-sync", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, req)
	return rec.Code
}

func TestCronAuthEnforcedInProduction(t *testing.T) {
	guard := cronGuard(&Config{AppEnv: "production", CronSecret: "sweep-secret"})

	require.Equal(t, http.StatusNoContent, hitCron(guard, "sweep-secret"))
	require.Equal(t, http.StatusUnauthorized, hitCron(guard, "wrong"))
	require.Equal(t, http.StatusUnauthorized, hitCron(guard, ""))
}

func TestCronAuthRejectsWhenSecretUnsetInProduction(t *testing.T) {
	guard := cronGuard(&Config{AppEnv: "production"})

	require.Equal(t, http.StatusUnauthorized, hitCron(guard, ""))
	require.Equal(t, http.StatusUnauthorized, hitCron(guard, "anything"))
}

func TestCronAuthSkippedOutsideProduction(t *testing.T) {
	guard := cronGuard(&Config{AppEnv: "development"})

	require.Equal(t, http.StatusNoContent, hitCron(guard, ""))
}
