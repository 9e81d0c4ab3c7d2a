package audit

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
	"github.com/constructa/propostas/internal/rbac"
	"github.com/constructa/propostas/internal/shared"
)

const defaultWindow = 7 * 24 * time.Hour

// Handler exposes the activity timeline to admins and managers.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	now     func() time.Time
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, now: time.Now}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermAuditView))
		r.Get("/audit", h.timeline)
		r.With(httprate.Limit(10, time.Minute,
			httprate.WithKeyFuncs(rateLimitKey),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "too many exports, try again in a minute")
			}),
		)).Get("/audit/export.csv", h.export)
	})
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	f, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Timeline(r.Context(), f)
	if err != nil {
		if httpx.IsServerError(err) {
			h.logger.Error("load audit timeline", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	f, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, truncated, err := h.service.Export(r.Context(), f)
	if err != nil {
		if httpx.IsServerError(err) {
			h.logger.Error("export audit timeline", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	var buf bytes.Buffer
	buf.WriteString("\ufeff")
	if err := WriteCSV(&buf, rows); err != nil {
		h.logger.Error("write audit csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	name := fmt.Sprintf("auditoria-%s.csv", format.Local(h.now()).Format("20060102-1504"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("X-Report-Rows", strconv.Itoa(len(rows)))
	if truncated {
		w.Header().Set("X-Report-Truncated", "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// parseFilters reads from/to as BRT days; to is inclusive on the wire and
// exclusive internally. Without dates the last seven days are shown.
func (h *Handler) parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	page, perPage := shared.PageParams(r)
	f := TimelineFilters{
		Entity:   strings.TrimSpace(q.Get("entity")),
		EntityID: strings.TrimSpace(q.Get("entity_id")),
		Action:   strings.TrimSpace(q.Get("action")),
		Page:     page,
		PageSize: perPage,
	}
	if v := q.Get("actor_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return f, fmt.Errorf("%w: invalid actor_id", httpx.ErrValidation)
		}
		f.ActorID = id
	}
	loc := format.Local(h.now()).Location()
	parse := func(key string) (time.Time, error) {
		v := q.Get(key)
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.ParseInLocation("2006-01-02", v, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", httpx.ErrValidation, key)
		}
		return t, nil
	}
	from, err := parse("from")
	if err != nil {
		return f, err
	}
	to, err := parse("to")
	if err != nil {
		return f, err
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}
	switch {
	case from.IsZero() && to.IsZero():
		to = h.now()
		from = to.Add(-defaultWindow)
	case from.IsZero():
		from = to.Add(-defaultWindow)
	case to.IsZero():
		to = h.now()
	}
	f.From, f.To = from, to
	return f, nil
}

func rateLimitKey(r *http.Request) (string, error) {
	if p, ok := shared.PrincipalFromContext(r.Context()); ok && p.UserID > 0 {
		return "user:" + strconv.FormatInt(p.UserID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
