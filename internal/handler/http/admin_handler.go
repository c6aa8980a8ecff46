package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bhavik262/pizza-delivery/internal/admin"
	"github.com/bhavik262/pizza-delivery/internal/order"
)

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed preparing ready out-for-delivery delivered cancelled"`
	Notes  string `json:"notes" validate:"max=500"`
}

type AdminHandler struct {
	base
	dashboard admin.Service
	orders    order.Service
}

func NewAdminHandler(dashboard admin.Service, orders order.Service, production bool) *AdminHandler {
	return &AdminHandler{base: newBase(production), dashboard: dashboard, orders: orders}
}

func (h *AdminHandler) RegisterRoutes(router chi.Router, g Guards) {
	router.Group(func(r chi.Router) {
		r.Use(g.Authenticated, g.Admin)
		r.Get("/dashboard", h.handleDashboard)
		r.Get("/orders", h.handleListOrders)
		r.Put("/orders/{id}/status", h.handleUpdateStatus)
	})
}

func (h *AdminHandler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboard.Dashboard(r.Context())
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "", d)
}

func (h *AdminHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	f := order.ListFilter{Status: order.Status(r.URL.Query().Get("status")), Page: page, Limit: limit}

	orders, total, err := h.orders.ListOrders(r.Context(), f)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondPage(w, orders, page, limit, total)
}

func (h *AdminHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	var req UpdateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), identityFrom(r), id, order.Status(req.Status), req.Notes)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Order status updated successfully", o)
}
