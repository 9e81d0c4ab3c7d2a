package quotes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/constructa/propostas/internal/format"
	"github.com/constructa/propostas/internal/platform/httpx"
	"github.com/constructa/propostas/internal/rbac"
	"github.com/constructa/propostas/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermQuotesManage))
		r.Get("/quotes", h.list)
		r.Post("/quotes", h.create)
		r.Get("/quotes/{id}", h.show)
		r.Put("/quotes/{id}", h.update)
		r.Delete("/quotes/{id}", h.delete)
		r.Post("/quotes/{id}/cancel", h.cancel)
		r.Post("/quotes/{id}/status", h.status)
		r.Post("/quotes/{id}/duplicate", h.duplicate)
		r.Put("/quotes/{id}/freight", h.attachFreight)
		r.Delete("/quotes/{id}/freight", h.detachFreight)
	})
}

// ParseListFilters reads quote list filters from the query string. Dates are
// YYYY-MM-DD in local time; "to" is inclusive.
func ParseListFilters(r *http.Request) (ListFilters, error) {
	page, limit := shared.PageParams(r)
	q := r.URL.Query()
	f := ListFilters{
		Page:   page,
		Limit:  limit,
		Status: Status(q.Get("status")),
		Search: q.Get("search"),
	}
	if v := q.Get("vendor_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, fmt.Errorf("%w: invalid vendor_id", httpx.ErrValidation)
		}
		f.VendorID = id
	}
	from, err := parseDay(q.Get("from"))
	if err != nil {
		return f, err
	}
	f.From = from
	to, err := parseDay(q.Get("to"))
	if err != nil {
		return f, err
	}
	if to != nil {
		end := to.AddDate(0, 0, 1)
		f.To = &end
	}
	return f, nil
}

func parseDay(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, format.Local(time.Now()).Location())
	if err != nil {
		return nil, fmt.Errorf("%w: dates must be YYYY-MM-DD", httpx.ErrValidation)
	}
	return &t, nil
}

func principal(r *http.Request) shared.Principal {
	p, _ := shared.PrincipalFromContext(r.Context())
	return p
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters, err := ParseListFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, total, err := h.service.List(r.Context(), principal(r), filters)
	if err != nil {
		h.logger.Error("list quotes failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Quote{}
	}
	httpx.JSON(w, http.StatusOK, shared.Page[Quote]{Items: items, Pagination: shared.NewPagination(filters.Page, filters.Limit, total)})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Create(r.Context(), principal(r), req)
	if err != nil {
		h.logger.Warn("create quote failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int64) (*Quote, error) {
		return h.service.Get(r.Context(), principal(r), id)
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.withID(w, r, func(id int64) (*Quote, error) {
		return h.service.Update(r.Context(), principal(r), id, req)
	})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), principal(r), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int64) (*Quote, error) {
		return h.service.Cancel(r.Context(), principal(r), id)
	})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status Status `json:"status"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !req.Status.Valid() {
		httpx.RespondError(w, httpx.ValidationErrors{"status": "must be one of draft sent accepted rejected expired cancelled"})
		return
	}
	h.withID(w, r, func(id int64) (*Quote, error) {
		return h.service.Transition(r.Context(), principal(r), id, req.Status)
	})
}

func (h *Handler) duplicate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Duplicate(r.Context(), principal(r), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) attachFreight(w http.ResponseWriter, r *http.Request) {
	var req FreightRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.withID(w, r, func(id int64) (*Quote, error) {
		return h.service.AttachFreight(r.Context(), principal(r), id, req)
	})
}

func (h *Handler) detachFreight(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int64) (*Quote, error) {
		return h.service.DetachFreight(r.Context(), principal(r), id)
	})
}

func (h *Handler) withID(w http.ResponseWriter, r *http.Request, fn func(id int64) (*Quote, error)) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := fn(id)
	if err != nil {
		if httpx.IsServerError(err) {
			h.logger.Error("quote request failed", slog.Any("error", err), slog.Int64("quote_id", id))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}
