package proposals

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constructa/propostas/internal/rbac"
	"github.com/constructa/propostas/internal/shared"
)

func newRouter(f *fixture, p shared.Principal) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc, rbac.Middleware{Service: rbac.NewService()})
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(shared.ContextWithPrincipal(req.Context(), p)))
			})
		})
		h.MountRoutes(r)
	})
	r.Route("/public", h.MountPublicRoutes)
	return r
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateAndFetch(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f, vendor)

	rec := do(t, router, http.MethodPost, "/api/quotes/10/proposals", map[string]any{"expires_in_days": 10})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Proposal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "JS-0001/2026", created.Number)
	assert.NotEmpty(t, created.AcceptURL)
	assert.NotContains(t, rec.Body.String(), "pdf_path")

	rec = do(t, router, http.MethodGet, "/api/proposals/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/quotes/10/proposals", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "JS-0001/2026")

	rec = do(t, router, http.MethodGet, "/api/proposals/1/pdf", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "proposta-JS-0001-2026.pdf")

	rec = do(t, router, http.MethodPost, "/api/proposals/1/resend", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/proposals/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/quotes/10/proposals", map[string]any{"expires_in_days": 500})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/quotes/12/proposals", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerPublicFlow(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(context.Background(), vendor, 10, CreateRequest{})
	require.NoError(t, err)
	token := tokenFrom(t, p)
	router := newRouter(f, shared.Principal{})

	rec := do(t, router, http.MethodGet, "/public/proposals/"+token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"number":"JS-0001/2026"`)

	rec = do(t, router, http.MethodGet, "/public/proposals/"+token+"/pdf", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/public/proposals/"+token+"/accept", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/public/proposals/"+token+"/accept", map[string]any{"name": "Maria"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/public/proposals/"+token+"/reject", map[string]any{"name": "Maria"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodGet, "/public/proposals/"+strings.Repeat("x", 20), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExpiredLinkIsGone(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(context.Background(), vendor, 10, CreateRequest{ExpiresInDays: 1})
	require.NoError(t, err)
	f.now = f.now.Add(36 * time.Hour)

	rec := do(t, newRouter(f, shared.Principal{}), http.MethodPost, "/public/proposals/"+tokenFrom(t, p)+"/accept", map[string]any{"name": "Maria"})
	assert.Equal(t, http.StatusGone, rec.Code)
}
