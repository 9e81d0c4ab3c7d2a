package freight

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

// MountRoutes registers freight routes under /freight.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/freight", func(r chi.Router) {
		r.Post("/calculate", h.calculate)
		r.Get("/vehicles", h.listVehicles)
		r.Get("/rates", h.listRates)
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAll(rbac.PermFreightManage))
			r.Post("/vehicles", h.createVehicle)
			r.Put("/vehicles/{id}", h.updateVehicle)
			r.Delete("/vehicles/{id}", h.deleteVehicle)
			r.Post("/rates", h.createRate)
			r.Put("/rates/{id}", h.updateRate)
			r.Delete("/rates/{id}", h.deleteRate)
		})
	})
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Quote(r.Context(), req.Input())
	if err != nil {
		h.logger.Debug("freight calculation failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) listVehicles(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListVehicles(r.Context(), r.URL.Query().Get("all") != "true")
	if err != nil {
		h.logger.Error("list vehicles failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []VehicleType{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) createVehicle(w http.ResponseWriter, r *http.Request) {
	var form VehicleForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.CreateVehicle(r.Context(), actor(r), form)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, v)
}

func (h *Handler) updateVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var form VehicleForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.UpdateVehicle(r.Context(), actor(r), id, form)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) deleteVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteVehicle(r.Context(), actor(r), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRates(w http.ResponseWriter, r *http.Request) {
	page, limit := shared.PageParams(r)
	q := r.URL.Query()
	filters := RateFilters{
		Page:       page,
		Limit:      limit,
		City:       q.Get("city"),
		State:      q.Get("state"),
		Modality:   Modality(q.Get("modality")),
		ActiveOnly: q.Get("all") != "true",
	}
	if v := q.Get("vehicle_type_id"); v != "" {
		filters.VehicleTypeID, _ = strconv.ParseInt(v, 10, 64)
	}
	items, total, err := h.service.ListRates(r.Context(), filters)
	if err != nil {
		h.logger.Error("list freight rates failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Rate{}
	}
	httpx.JSON(w, http.StatusOK, shared.Page[Rate]{Items: items, Pagination: shared.NewPagination(page, limit, total)})
}

func (h *Handler) createRate(w http.ResponseWriter, r *http.Request) {
	var form RateForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rt, err := h.service.CreateRate(r.Context(), actor(r), form)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rt)
}

func (h *Handler) updateRate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var form RateForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rt, err := h.service.UpdateRate(r.Context(), actor(r), id, form)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rt)
}

func (h *Handler) deleteRate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteRate(r.Context(), actor(r), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func actor(r *http.Request) int64 {
	p, _ := shared.PrincipalFromContext(r.Context())
	return p.UserID
}
