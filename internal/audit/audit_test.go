package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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

	"github.com/constructa/propostas/internal/platform/httpx"
	"github.com/constructa/propostas/internal/rbac"
	"github.com/constructa/propostas/internal/shared"
)

type stubRepo struct {
	rows   []TimelineRow
	err    error
	filter TimelineFilters
	offset int
	limit  int
}

func (s *stubRepo) Window(ctx context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.filter, s.offset, s.limit = f, offset, limit
	if s.err != nil {
		return nil, s.err
	}
	end := offset + limit
	if offset > len(s.rows) {
		return nil, nil
	}
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], nil
}

func makeRows(n int) []TimelineRow {
	base := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	rows := make([]TimelineRow, n)
	for i := range rows {
		actor := int64(7)
		rows[i] = TimelineRow{
			At: base.Add(-time.Duration(i) * time.Hour), ActorID: &actor, ActorName: "Ana Souza",
			Action: "quote.update", Entity: "quote", EntityID: "42",
		}
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubRepo{rows: makeRows(5)}
	svc := NewService(repo)

	res, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
	assert.Equal(t, PagingInfo{Page: 1, PageSize: 2, HasNext: true, NextPage: 2}, res.Paging)
	assert.Equal(t, 0, repo.offset)
	assert.Equal(t, 3, repo.limit)

	res, err = svc.Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
	assert.Equal(t, PagingInfo{Page: 3, PageSize: 2, PrevPage: 2}, res.Paging)
	assert.Equal(t, 4, repo.offset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{}
	res, err := NewService(repo).Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize+1, repo.limit)
	assert.NotNil(t, res.Rows)
}

func TestTimelineRejectsBadRanges(t *testing.T) {
	svc := NewService(&stubRepo{})
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Timeline(context.Background(), TimelineFilters{From: day, To: day})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Timeline(context.Background(), TimelineFilters{From: day, To: day.AddDate(0, 4, 0)})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestExportTruncates(t *testing.T) {
	repo := &stubRepo{rows: makeRows(MaxExportRows + 3)}
	rows, truncated, err := NewService(repo).Export(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Len(t, rows, MaxExportRows)

	repo.err = errors.New("boom")
	_, _, err = NewService(repo).Export(context.Background(), TimelineFilters{})
	assert.EqualError(t, err, "boom")
}

func TestWriteCSV(t *testing.T) {
	rows := makeRows(1)
	rows[0].Meta = map[string]any{"status": "sent"}
	rows = append(rows, TimelineRow{At: rows[0].At, Action: "proposal.expire", Entity: "proposal", EntityID: "3"})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Data/hora;Usuário;Ação;Entidade;ID;Detalhes", lines[0])
	assert.Equal(t, `10/03/2026 12:00;Ana Souza;quote.update;quote;42;"{""status"":""sent""}"`, lines[1])
	assert.Equal(t, "10/03/2026 12:00;sistema;proposal.expire;proposal;3;", lines[2])
}

func newRouter(repo Repository, p shared.Principal, now time.Time) chi.Router {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(repo), rbac.Middleware{Service: rbac.NewService()})
	h.now = func() time.Time { return now }
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithPrincipal(req.Context(), p)))
		})
	})
	h.MountRoutes(r)
	return r
}

func TestTimelineHandler(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	repo := &stubRepo{rows: makeRows(3)}
	r := newRouter(repo, shared.Principal{UserID: 1, Role: shared.RoleAdmin}, now)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit?entity=quote&entity_id=42&actor_id=7", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Len(t, res.Rows, 3)
	assert.Equal(t, "quote", repo.filter.Entity)
	assert.Equal(t, "42", repo.filter.EntityID)
	assert.Equal(t, int64(7), repo.filter.ActorID)
	assert.Equal(t, now, repo.filter.To)
	assert.Equal(t, now.Add(-defaultWindow), repo.filter.From)
}

func TestTimelineHandlerDates(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	repo := &stubRepo{}
	r := newRouter(repo, shared.Principal{UserID: 1, Role: shared.RoleManager}, now)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit?from=2026-03-01&to=2026-03-05", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	// Days are BRT (UTC-3), the end day is inclusive.
	assert.Equal(t, time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC), repo.filter.From.UTC())
	assert.Equal(t, time.Date(2026, 3, 6, 3, 0, 0, 0, time.UTC), repo.filter.To.UTC())

	for _, q := range []string{"from=01/03/2026", "actor_id=abc", "from=2026-03-10&to=2026-03-01"} {
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestAuditRequiresPermission(t *testing.T) {
	r := newRouter(&stubRepo{}, shared.Principal{UserID: 5, Role: shared.RoleVendor}, time.Now())
	for _, path := range []string{"/audit", "/audit/export.csv"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

func TestExportHandler(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	r := newRouter(&stubRepo{rows: makeRows(2)}, shared.Principal{UserID: 1, Role: shared.RoleAdmin}, now)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/export.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="auditoria-20260320-0900.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "2", rec.Header().Get("X-Report-Rows"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\ufeffData/hora;"))
}
