package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bhavik262/pizza-delivery/internal/catalog"
	"github.com/bhavik262/pizza-delivery/internal/pricing"
)

type SizeRequest struct {
	Size       catalog.Size `json:"size" validate:"required,oneof=small medium large"`
	Multiplier float64      `json:"multiplier" validate:"gt=0"`
}

type PizzaRequest struct {
	Name            string        `json:"name" validate:"required,max=100"`
	Description     string        `json:"description" validate:"max=500"`
	Category        string        `json:"category" validate:"required,oneof=veg non-veg vegan specialty"`
	BasePrice       float64       `json:"basePrice" validate:"gte=0"`
	Sizes           []SizeRequest `json:"sizes" validate:"required,min=1,dive"`
	Ingredients     []string      `json:"ingredients"`
	ImageURL        string        `json:"imageUrl" validate:"omitempty,url"`
	IsAvailable     *bool         `json:"isAvailable,omitempty"`
	Rating          float64       `json:"rating" validate:"gte=0,lte=5"`
	PreparationTime int           `json:"preparationTime" validate:"gte=1,lte=120"`
}

func (req PizzaRequest) toDomain() *catalog.Pizza {
	p := &catalog.Pizza{
		Name:            req.Name,
		Description:     req.Description,
		Category:        catalog.Category(req.Category),
		BasePrice:       req.BasePrice,
		Ingredients:     req.Ingredients,
		ImageURL:        req.ImageURL,
		IsAvailable:     true,
		Rating:          req.Rating,
		PreparationTime: req.PreparationTime,
	}
	if req.IsAvailable != nil {
		p.IsAvailable = *req.IsAvailable
	}
	for _, s := range req.Sizes {
		p.Sizes = append(p.Sizes, catalog.SizeOption{Size: s.Size, Multiplier: s.Multiplier})
	}
	return p
}

type QuoteRequest struct {
	Size           catalog.Size      `json:"size" validate:"required"`
	Quantity       int               `json:"quantity" validate:"required,min=1,max=10"`
	Customizations pricing.Selection `json:"customizations"`
}

type PizzaHandler struct {
	base
	service catalog.Service
	engine  *pricing.Engine
}

func NewPizzaHandler(service catalog.Service, engine *pricing.Engine, production bool) *PizzaHandler {
	return &PizzaHandler{base: newBase(production), service: service, engine: engine}
}

func (h *PizzaHandler) RegisterRoutes(router chi.Router, g Guards) {
	router.Get("/", h.handleList)
	router.Get("/customizations", h.handleGetCustomizations)
	router.Get("/{id}", h.handleGet)
	router.Post("/{id}/price", h.handleQuote)

	router.Group(func(r chi.Router) {
		r.Use(g.Authenticated, g.Admin)
		r.Post("/", h.handleCreate)
		r.Put("/customizations", h.handleUpdateCustomizations)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

func (h *PizzaHandler) handleList(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	q := r.URL.Query()
	f := catalog.ListFilter{
		Category: catalog.Category(q.Get("category")),
		Search:   q.Get("search"),
		Sort:     catalog.SortOrder(q.Get("sort")),
		Page:     page,
		Limit:    limit,
	}
	if v := q.Get("available"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.Available = &b
		}
	}

	pizzas, total, err := h.service.ListPizzas(r.Context(), f)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondPage(w, pizzas, page, limit, total)
}

func (h *PizzaHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	p, err := h.service.GetPizza(r.Context(), id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "", p)
}

func (h *PizzaHandler) handleQuote(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	var req QuoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.GetPizza(r.Context(), id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	custom, err := h.service.GetCustomizations(r.Context())
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	line, err := h.engine.LinePrice(p, req.Size, req.Customizations, req.Quantity, custom)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "", line)
}

func (h *PizzaHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req PizzaRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.service.CreatePizza(r.Context(), req.toDomain())
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusCreated, "Pizza created successfully", p)
}

func (h *PizzaHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	var req PizzaRequest
	if !h.decode(w, r, &req) {
		return
	}

	p := req.toDomain()
	p.ID = id
	updated, err := h.service.UpdatePizza(r.Context(), p)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Pizza updated successfully", updated)
}

func (h *PizzaHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	if err := h.service.DeletePizza(r.Context(), id); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Pizza deleted successfully", nil)
}

func (h *PizzaHandler) handleGetCustomizations(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCustomizations(r.Context())
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "", c)
}

func (h *PizzaHandler) handleUpdateCustomizations(w http.ResponseWriter, r *http.Request) {
	var c catalog.Customizations
	if !h.decode(w, r, &c) {
		return
	}
	updated, err := h.service.UpdateCustomizations(r.Context(), &c)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Customization options updated successfully", updated)
}
