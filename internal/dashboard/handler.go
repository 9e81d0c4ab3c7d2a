package dashboard

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/constructa/propostas/internal/platform/httpx"
	"github.com/constructa/propostas/internal/quotes"
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
	r.With(h.rbac.RequireAll(rbac.PermDashboardView)).Get("/dashboard/summary", h.summary)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	sum, err := h.service.Summary(r.Context(), p, f)
	if err != nil {
		h.logger.Error("dashboard summary failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

// parseFilters reuses the quote list query syntax: from/to as local
// YYYY-MM-DD days (to inclusive) and vendor_id.
func parseFilters(r *http.Request) (Filters, error) {
	lf, err := quotes.ParseListFilters(r)
	if err != nil {
		return Filters{}, err
	}
	if lf.From != nil && lf.To != nil && !lf.From.Before(*lf.To) {
		return Filters{}, fmt.Errorf("%w: from must not be after to", httpx.ErrValidation)
	}
	return Filters{From: lf.From, To: lf.To, VendorID: lf.VendorID}, nil
}
