package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dtr/config"
	"dtr/internal/auth"
	"dtr/server"
)

func newApp(t *testing.T) (*server.App, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("AUTH_JWT_SECRET", "server-test-secret")
	t.Setenv("SERVER_CORS_ORIGINS", "https://app.example.com")
	t.Setenv("LOGS_LEVEL", "error")

	cfg, err := config.Load()
	require.NoError(t, err)
	app := &server.App{}
	app.Initialize(cfg)
	return app, cfg
}

func TestAppServesHealthAndAPI(t *testing.T) {
	app, cfg := newApp(t)
	h := app.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"storage":"memory"`)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	tok, err := auth.NewVerifier(cfg.Auth.JWTSecret, "").Issue(auth.Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)
	body, _ := json.Marshal(map[string]string{"name": "Acme"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/organizations", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestAppAnswersPreflight(t *testing.T) {
	app, _ := newApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/organizations", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
