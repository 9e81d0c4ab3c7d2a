package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constructa/propostas/internal/auth"
	"github.com/constructa/propostas/internal/dashboard"
	"github.com/constructa/propostas/internal/freight"
	"github.com/constructa/propostas/internal/mail"
	"github.com/constructa/propostas/internal/observability"
	"github.com/constructa/propostas/internal/products"
	"github.com/constructa/propostas/internal/proposals"
	"github.com/constructa/propostas/internal/quotes"
	"github.com/constructa/propostas/internal/rbac"
	"github.com/constructa/propostas/internal/reports"
	"github.com/constructa/propostas/internal/shared"
	"github.com/constructa/propostas/internal/users"
	"github.com/constructa/propostas/jobs"
	"github.com/constructa/propostas/report"
)

func newTestRouter(t *testing.T, ready func(context.Context) error) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := shared.NewSessionManager(client, "", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	authService := auth.NewService(nil, nil, nil, nil)
	rbacMW := rbac.Middleware{Service: rbac.NewService(), Logger: logger}
	cfg := &Config{AppEnv: "test", CORSAllowedOrigins: []string{"https://app.constructa.com.br"}}

	return NewRouter(RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthMiddleware:     auth.Middleware{Service: authService, Sessions: sessions, CSRF: csrf, Logger: logger},
		AuthHandler:        auth.NewHandler(logger, authService, sessions, csrf),
		ProductsHandler:    products.NewHandler(logger, nil, rbacMW),
		FreightHandler:     freight.NewHandler(logger, nil, rbacMW),
		QuotesHandler:      quotes.NewHandler(logger, nil, rbacMW),
		ProposalsHandler:   proposals.NewHandler(logger, nil, rbacMW),
		DashboardHandler:   dashboard.NewHandler(logger, nil, rbacMW),
		ReportsHandler:     reports.NewHandler(logger, nil, rbacMW),
		UsersHandler:       users.NewHandler(logger, nil, rbacMW),
		PermissionsHandler: rbac.NewPermissionsHandler(rbac.NewService()),
		MailHandler:        mail.NewHandler(logger, nil, nil, nil),
		ReportHandler:      report.NewHandler(report.NewClient("http://127.0.0.1:0"), logger),
		JobHandler:         jobs.NewHandler(nil, logger),
		Metrics:            observability.NewMetrics(),
		Ready:              ready,
	})
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	down := func(context.Context) error { return errors.New("pg down") }
	newTestRouter(t, down).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPIRequiresAuthentication(t *testing.T) {
	r := newTestRouter(t, nil)
	for _, path := range []string{"/api/quotes", "/api/dashboard/summary", "/api/reports/quotes.csv", "/api/products"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/functions/send-proposal-email", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t, nil)
	for _, path := range []string{"/api/quotes", "/public/proposals/abc/accept", "/functions/send-proposal-email"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "https://app.constructa.com.br")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Less(t, rec.Code, 300, path)
		assert.Equal(t, "https://app.constructa.com.br", rec.Header().Get("Access-Control-Allow-Origin"), path)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"queue":"mail"`)
}
