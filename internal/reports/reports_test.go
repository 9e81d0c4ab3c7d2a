package reports

import (
	"bytes"
	"context"
	"encoding/csv"
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
	"github.com/xuri/excelize/v2"

	"github.com/constructa/propostas/internal/quotes"
	"github.com/constructa/propostas/internal/rbac"
	"github.com/constructa/propostas/internal/shared"
)

type fakeLister struct {
	rows  []quotes.Quote
	calls int
	seen  []quotes.ListFilters
	err   error
}

func (f *fakeLister) List(_ context.Context, actor shared.Principal, filters quotes.ListFilters) ([]quotes.Quote, int, error) {
	f.calls++
	if f.err != nil {
		return nil, 0, f.err
	}
	if actor.IsVendor() {
		filters.VendorID = actor.UserID
	}
	f.seen = append(f.seen, filters)
	var matched []quotes.Quote
	for _, q := range f.rows {
		if filters.VendorID == 0 || q.VendorID == filters.VendorID {
			matched = append(matched, q)
		}
	}
	start := (filters.Page - 1) * filters.Limit
	if start >= len(matched) {
		return nil, len(matched), nil
	}
	end := min(start+filters.Limit, len(matched))
	return matched[start:end], len(matched), nil
}

func makeQuotes(n int) []quotes.Quote {
	created := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	out := make([]quotes.Quote, n)
	for i := range out {
		status := quotes.StatusSent
		if i%5 == 4 {
			status = quotes.StatusCancelled
		}
		out[i] = quotes.Quote{
			ID:             int64(i + 1),
			Number:         "JS-2026-" + strings.Repeat("0", 3) + string(rune('1'+i%9)),
			VendorID:       int64(1 + i%2),
			VendorName:     "João Silva",
			ClientName:     "Construtora Horizonte",
			ClientDocument: "12.345.678/0001-90",
			DeliveryCity:   "Campinas",
			DeliveryState:  "SP",
			Status:         status,
			ValidUntil:     time.Date(2026, 3, 25, 0, 0, 0, 0, time.UTC),
			Totals:         quotes.Totals{Subtotal: 1000, DiscountAmount: 50, FreightAmount: 234.5, TotalAmount: 1184.5},
			CreatedAt:      created,
		}
	}
	return out
}

func TestCollectPagesUntilExhausted(t *testing.T) {
	lister := &fakeLister{rows: makeQuotes(450)}
	svc := NewService(lister)

	rep, err := svc.Collect(context.Background(), shared.Principal{Role: shared.RoleManager}, quotes.ListFilters{})
	require.NoError(t, err)
	assert.Len(t, rep.Rows, 450)
	assert.Equal(t, 450, rep.Total)
	assert.False(t, rep.Truncated)
	assert.Equal(t, 3, lister.calls)
	for _, f := range lister.seen {
		assert.Equal(t, pageSize, f.Limit)
	}
}

func TestCollectTruncates(t *testing.T) {
	lister := &fakeLister{rows: makeQuotes(30)}
	svc := NewService(lister)
	svc.max = 25

	rep, err := svc.Collect(context.Background(), shared.Principal{Role: shared.RoleAdmin}, quotes.ListFilters{})
	require.NoError(t, err)
	assert.Len(t, rep.Rows, 25)
	assert.True(t, rep.Truncated)
	assert.Equal(t, 30, rep.Total)
}

func TestCollectPropagatesErrors(t *testing.T) {
	boom := errors.New("db down")
	_, err := NewService(&fakeLister{err: boom}).Collect(context.Background(), shared.Principal{}, quotes.ListFilters{})
	assert.ErrorIs(t, err, boom)
}

func TestReportSumSkipsCancelled(t *testing.T) {
	rep := Report{Rows: makeQuotes(5)}
	assert.InDelta(t, 4*1184.5, rep.Sum(), 0.001)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Report{Rows: makeQuotes(2)}))

	r := csv.NewReader(&buf)
	r.Comma = ';'
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, columns, records[0])
	assert.Equal(t, "10/03/2026", records[1][1])
	assert.Equal(t, "Enviado", records[1][7])
	assert.Equal(t, "25/03/2026", records[1][8])
	assert.Equal(t, "1.184,50", records[1][12])
}

func TestWriteXLSX(t *testing.T) {
	data, err := WriteXLSX(Report{Title: "Relatório de orçamentos", Rows: makeQuotes(3), GeneratedAt: time.Now()})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue(sheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Relatório de orçamentos", title)

	header, err := f.GetCellValue(sheetName, "A4")
	require.NoError(t, err)
	assert.Equal(t, "Número", header)

	client, err := f.GetCellValue(sheetName, "C5")
	require.NoError(t, err)
	assert.Equal(t, "Construtora Horizonte", client)

	label, err := f.GetCellValue(sheetName, "L8")
	require.NoError(t, err)
	assert.Equal(t, "Total", label)
}

func TestWritePDF(t *testing.T) {
	data, err := WritePDF(Report{Title: "Relatório de orçamentos", Rows: makeQuotes(40), Total: 40, GeneratedAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func newRouter(t *testing.T, lister Lister, p shared.Principal) chi.Router {
	t.Helper()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(lister), rbac.Middleware{Service: rbac.NewService()})
	h.RequestsPerMinute = 0
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithPrincipal(req.Context(), p)))
		})
	})
	h.MountRoutes(r)
	return r
}

func TestExportHandlers(t *testing.T) {
	manager := shared.Principal{UserID: 9, Role: shared.RoleManager}
	r := newRouter(t, &fakeLister{rows: makeQuotes(4)}, manager)

	cases := []struct {
		path        string
		contentType string
		prefix      []byte
	}{
		{"/reports/quotes.csv?from=2026-03-01&to=2026-03-31", contentCSV, []byte("\ufeffNúmero;")},
		{"/reports/quotes.xlsx", contentXLSX, []byte("PK")},
		{"/reports/quotes.pdf", contentPDF, []byte("%PDF-")},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tc.contentType, rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=\"orcamentos-")
			assert.Equal(t, "4", rec.Header().Get("X-Report-Rows"))
			assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), tc.prefix))
		})
	}
}

func TestExportRejectsBadFilters(t *testing.T) {
	r := newRouter(t, &fakeLister{}, shared.Principal{UserID: 9, Role: shared.RoleManager})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/quotes.csv?from=31-03-2026", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportRequiresPermission(t *testing.T) {
	r := newRouter(t, &fakeLister{rows: makeQuotes(1)}, shared.Principal{UserID: 1, Role: shared.RoleVendor})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/quotes.csv", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPeriod(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Período: 01/03/2026 a 31/03/2026", period(quotes.ListFilters{From: &from, To: &to}))
	assert.Equal(t, "", period(quotes.ListFilters{}))
}
