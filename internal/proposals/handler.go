package proposals

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

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

// MountRoutes registers the authenticated proposal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermQuotesManage))
		r.Get("/quotes/{id}/proposals", h.listByQuote)
		r.Post("/quotes/{id}/proposals", h.create)
		r.Get("/proposals/{id}", h.show)
		r.Get("/proposals/{id}/pdf", h.pdf)
		r.Post("/proposals/{id}/resend", h.resend)
	})
}

// MountPublicRoutes registers the anonymous acceptance routes.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/proposals/{token}", h.summary)
	r.Get("/proposals/{token}/pdf", h.publicPDF)
	r.Post("/proposals/{token}/accept", h.accept)
	r.Post("/proposals/{token}/reject", h.reject)
}

func principal(r *http.Request) shared.Principal {
	p, _ := shared.PrincipalFromContext(r.Context())
	return p
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error, attrs ...any) {
	if httpx.IsServerError(err) {
		h.logger.Error(msg, append(attrs, slog.Any("error", err))...)
	}
	httpx.RespondError(w, err)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	quoteID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CreateRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	p, err := h.service.Create(r.Context(), principal(r), quoteID, req)
	if err != nil {
		h.fail(w, "create proposal failed", err, slog.Int64("quote_id", quoteID))
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) listByQuote(w http.ResponseWriter, r *http.Request) {
	quoteID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListByQuote(r.Context(), principal(r), quoteID)
	if err != nil {
		h.fail(w, "list proposals failed", err, slog.Int64("quote_id", quoteID))
		return
	}
	if items == nil {
		items = []Proposal{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, "get proposal failed", err, slog.Int64("proposal_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) pdf(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	data, name, err := h.service.PDF(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, "proposal pdf failed", err, slog.Int64("proposal_id", id))
		return
	}
	writePDF(w, name, data)
}

func (h *Handler) resend(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Resend(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, "resend proposal failed", err, slog.Int64("proposal_id", id))
		return
	}
	httpx.JSON(w, http.StatusAccepted, p)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.Summary(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, "proposal summary failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func (h *Handler) publicPDF(w http.ResponseWriter, r *http.Request) {
	data, name, err := h.service.PublicPDF(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, "public proposal pdf failed", err)
		return
	}
	writePDF(w, name, data)
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	var req AcceptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sum, err := h.service.Accept(r.Context(), chi.URLParam(r, "token"), req)
	if err != nil {
		h.fail(w, "accept proposal failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sum, err := h.service.Reject(r.Context(), chi.URLParam(r, "token"), req)
	if err != nil {
		h.fail(w, "reject proposal failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func writePDF(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=\""+name+"\"")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
