package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bhavik262/pizza-delivery/internal/inventory"
)

type SupplierRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

type InventoryItemRequest struct {
	Name          string          `json:"name" validate:"required,max=100"`
	Category      string          `json:"category" validate:"required,oneof=base sauce cheese vegetable meat other"`
	CurrentStock  float64         `json:"currentStock" validate:"gte=0"`
	MinStockLevel float64         `json:"minStockLevel" validate:"gte=0"`
	MaxStockLevel float64         `json:"maxStockLevel" validate:"gtfield=MinStockLevel"`
	Unit          string          `json:"unit" validate:"required"`
	PricePerUnit  float64         `json:"pricePerUnit" validate:"gte=0"`
	Supplier      SupplierRequest `json:"supplier"`
}

func (req InventoryItemRequest) toDomain() *inventory.Item {
	return &inventory.Item{
		Name:          req.Name,
		Category:      inventory.Category(req.Category),
		CurrentStock:  req.CurrentStock,
		MinStockLevel: req.MinStockLevel,
		MaxStockLevel: req.MaxStockLevel,
		Unit:          req.Unit,
		PricePerUnit:  req.PricePerUnit,
		Supplier:      inventory.Supplier{Name: req.Supplier.Name, Contact: req.Supplier.Contact},
		IsActive:      true,
	}
}

type AdjustStockRequest struct {
	Action   string  `json:"action" validate:"required,oneof=restock consumption wastage adjustment"`
	Quantity float64 `json:"quantity" validate:"gte=0"`
	Reason   string  `json:"reason" validate:"max=500"`
}

type InventoryHandler struct {
	base
	service inventory.Service
}

func NewInventoryHandler(service inventory.Service, production bool) *InventoryHandler {
	return &InventoryHandler{base: newBase(production), service: service}
}

func (h *InventoryHandler) RegisterRoutes(router chi.Router, g Guards) {
	router.Group(func(r chi.Router) {
		r.Use(g.Authenticated, g.Admin)
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/low-stock", h.handleLowStock)
		r.Post("/check-alerts", h.handleScan)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
		r.Post("/{id}/adjust", h.handleAdjust)
	})
}

func (h *InventoryHandler) handleList(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	q := r.URL.Query()
	f := inventory.ListFilter{
		Category: inventory.Category(q.Get("category")),
		Status:   inventory.Status(q.Get("status")),
		Page:     page,
		Limit:    limit,
	}

	items, total, err := h.service.ListItems(r.Context(), f)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondPage(w, items, page, limit, total)
}

func (h *InventoryHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req InventoryItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.CreateItem(r.Context(), req.toDomain())
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusCreated, "Inventory item created successfully", item)
}

func (h *InventoryHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	d, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "", d)
}

func (h *InventoryHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	var req InventoryItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	item := req.toDomain()
	item.ID = id
	updated, err := h.service.UpdateItem(r.Context(), item)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Inventory item updated successfully", updated)
}

func (h *InventoryHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	if err := h.service.DeleteItem(r.Context(), id); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Inventory item deleted successfully", nil)
}

func (h *InventoryHandler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	var req AdjustStockRequest
	if !h.decode(w, r, &req) {
		return
	}

	actor := identityFrom(r).UserID
	d, err := h.service.AdjustStock(r.Context(), id, inventory.Adjustment{
		Action:   inventory.Action(req.Action),
		Quantity: req.Quantity,
		Reason:   req.Reason,
		ActorID:  &actor,
	})
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Stock updated successfully", d)
}

func (h *InventoryHandler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStockReport(r.Context())
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "", items)
}

func (h *InventoryHandler) handleScan(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.ScanLowStock(r.Context())
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Low stock check completed", map[string]int{"alertedItems": n})
}
