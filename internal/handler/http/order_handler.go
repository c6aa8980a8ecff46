package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"

	"github.com/bhavik262/pizza-delivery/internal/catalog"
	"github.com/bhavik262/pizza-delivery/internal/order"
	"github.com/bhavik262/pizza-delivery/internal/pricing"
)

type OrderItemRequest struct {
	PizzaID        uuid.UUID         `json:"pizzaId" validate:"required"`
	Size           catalog.Size      `json:"size" validate:"required,oneof=small medium large"`
	Quantity       int               `json:"quantity" validate:"required,min=1,max=10"`
	Customizations pricing.Selection `json:"customizations"`
}

type CreateOrderRequest struct {
	Items               []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress     order.Address      `json:"deliveryAddress" validate:"required"`
	Phone               string             `json:"phone" validate:"required,min=10,max=15"`
	SpecialInstructions string             `json:"specialInstructions" validate:"max=500"`
	PaymentMethod       string             `json:"paymentMethod" validate:"required,oneof=razorpay cod"`
}

type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"razorpayOrderId" validate:"required"`
	GatewayPaymentID string `json:"razorpayPaymentId" validate:"required"`
	Signature        string `json:"razorpaySignature" validate:"required"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type OrderHandler struct {
	base
	service order.Service
}

func NewOrderHandler(service order.Service, production bool) *OrderHandler {
	return &OrderHandler{base: newBase(production), service: service}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router, g Guards) {
	router.Group(func(r chi.Router) {
		r.Use(g.Authenticated)
		r.Post("/", h.handleCreate)
		r.Get("/my-orders", h.handleListMine)
		r.Get("/{id}", h.handleGet)
		r.Post("/{id}/verify-payment", h.handleVerifyPayment)
		r.Post("/{id}/confirm-cod", h.handleConfirmCOD)
		r.Put("/{id}/cancel", h.handleCancel)
	})
}

func (h *OrderHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := order.CreateInput{
		UserID:              identityFrom(r).UserID,
		DeliveryAddress:     req.DeliveryAddress,
		Phone:               req.Phone,
		SpecialInstructions: req.SpecialInstructions,
		PaymentMethod:       order.PaymentMethod(req.PaymentMethod),
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, order.ItemInput{
			PizzaID:        it.PizzaID,
			Size:           it.Size,
			Quantity:       it.Quantity,
			Customizations: it.Customizations,
		})
	}

	checkout, err := h.service.CreateOrder(r.Context(), in)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusCreated, "Order created successfully", checkout)
}

func (h *OrderHandler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	var req VerifyPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.service.VerifyPayment(r.Context(), identityFrom(r).UserID, id, order.PaymentConfirmation{
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
	})
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Payment verified successfully", o)
}

func (h *OrderHandler) handleConfirmCOD(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	o, err := h.service.ConfirmCashOnDelivery(r.Context(), identityFrom(r).UserID, id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Order confirmed successfully", o)
}

func (h *OrderHandler) handleListMine(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	f := order.ListFilter{Status: order.Status(r.URL.Query().Get("status")), Page: page, Limit: limit}

	orders, total, err := h.service.ListUserOrders(r.Context(), identityFrom(r).UserID, f)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondPage(w, orders, page, limit, total)
}

func (h *OrderHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	o, err := h.service.GetOrder(r.Context(), identityFrom(r), id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "", o)
}

func (h *OrderHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	var req CancelOrderRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	o, err := h.service.CancelByUser(r.Context(), identityFrom(r), id, req.Reason)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Order cancelled successfully", o)
}
