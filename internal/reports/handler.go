package reports

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/constructa/propostas/internal/format"
	"github.com/constructa/propostas/internal/platform/httpx"
	"github.com/constructa/propostas/internal/quotes"
	"github.com/constructa/propostas/internal/rbac"
	"github.com/constructa/propostas/internal/shared"
)

const (
	contentCSV  = "text/csv; charset=utf-8"
	contentXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentPDF  = "application/pdf"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	// RequestsPerMinute bounds exports per user; zero disables the limiter.
	RequestsPerMinute int
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, RequestsPerMinute: 10}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermReportsExport))
		if h.RequestsPerMinute > 0 {
			r.Use(httprate.Limit(h.RequestsPerMinute, time.Minute,
				httprate.WithKeyFuncs(rateLimitKey),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "too many exports, try again in a minute")
				}),
			))
		}
		r.Get("/reports/quotes.csv", h.export("csv"))
		r.Get("/reports/quotes.xlsx", h.export("xlsx"))
		r.Get("/reports/quotes.pdf", h.export("pdf"))
	})
}

func (h *Handler) export(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := quotes.ParseListFilters(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		p, _ := shared.PrincipalFromContext(r.Context())
		rep, err := h.service.Collect(r.Context(), p, f)
		if err != nil {
			if httpx.IsServerError(err) {
				h.logger.Error("collect quote report", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		rep.Period = period(f)

		var (
			body        []byte
			contentType string
		)
		switch kind {
		case "csv":
			var buf bytes.Buffer
			// BOM so spreadsheet apps detect UTF-8.
			buf.WriteString("\ufeff")
			err = WriteCSV(&buf, rep)
			body, contentType = buf.Bytes(), contentCSV
		case "xlsx":
			body, err = WriteXLSX(rep)
			contentType = contentXLSX
		case "pdf":
			body, err = WritePDF(rep)
			contentType = contentPDF
		}
		if err != nil {
			h.logger.Error("render quote report", slog.String("format", kind), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}

		name := fmt.Sprintf("orcamentos-%s.%s", format.Local(rep.GeneratedAt).Format("20060102-1504"), kind)
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("X-Report-Rows", strconv.Itoa(len(rep.Rows)))
		if rep.Truncated {
			w.Header().Set("X-Report-Truncated", "true")
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

// period describes the filter window; To is exclusive so the last day is To-1.
func period(f quotes.ListFilters) string {
	switch {
	case f.From != nil && f.To != nil:
		return "Período: " + format.Day(*f.From) + " a " + format.Day(f.To.AddDate(0, 0, -1))
	case f.From != nil:
		return "A partir de " + format.Day(*f.From)
	case f.To != nil:
		return "Até " + format.Day(f.To.AddDate(0, 0, -1))
	}
	return ""
}

func rateLimitKey(r *http.Request) (string, error) {
	if p, ok := shared.PrincipalFromContext(r.Context()); ok && p.UserID > 0 {
		return "user:" + strconv.FormatInt(p.UserID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + strings.TrimSpace(key), nil
}
