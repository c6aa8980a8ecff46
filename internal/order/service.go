package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bhavik262/pizza-delivery/internal/apperr"
	"github.com/bhavik262/pizza-delivery/internal/auth"
	"github.com/bhavik262/pizza-delivery/internal/catalog"
	"github.com/bhavik262/pizza-delivery/internal/inventory"
	"github.com/bhavik262/pizza-delivery/internal/payment"
	"github.com/bhavik262/pizza-delivery/internal/pricing"
)

const (
	maxItemQuantity        = 10
	maxInstructionsLength  = 500
	deliveryBuffer         = 20 * time.Minute
	defaultPreparationTime = 15
)

var (
	ErrInvalidTransition         = apperr.New(apperr.Conflict, "invalid order status transition")
	ErrAlreadyProcessed          = apperr.New(apperr.Conflict, "order payment already processed")
	ErrPaymentVerificationFailed = apperr.New(apperr.Validation, "payment verification failed")
	ErrContactSupport            = apperr.New(apperr.Conflict, "order is out for delivery, please contact support to cancel")
	ErrCannotCancel              = apperr.New(apperr.Conflict, "order can no longer be cancelled")
	ErrOrderCancelled            = apperr.New(apperr.Conflict, "order was cancelled, the payment will be refunded")
	ErrForbidden                 = apperr.New(apperr.Forbidden, "access denied to this order")
	ErrPizzaUnavailable          = apperr.New(apperr.Validation, "pizza is not available")
	ErrInvalidOrder              = apperr.New(apperr.Validation, "invalid order")
)

// Catalog is the read side of the catalog the order workflow prices against.
type Catalog interface {
	GetPizza(ctx context.Context, id uuid.UUID) (*catalog.Pizza, error)
	GetCustomizations(ctx context.Context) (*catalog.Customizations, error)
}

type Stock interface {
	ConsumeForOrder(ctx context.Context, orderID uuid.UUID, reason string, usages []inventory.Usage) error
}

// Notifier sends order emails. Implementations must not block the caller.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, o *Order)
	SendOrderStatusUpdate(ctx context.Context, o *Order)
}

type Broadcaster interface {
	ToUser(userID uuid.UUID, event string, payload any)
	ToAdmins(event string, payload any)
}

// Checkout is the result of placing an order. Payment is set for gateway
// orders; Warnings lists customizations that were not applied.
type Checkout struct {
	Order    *Order                `json:"order"`
	Payment  *payment.GatewayOrder `json:"razorpayOrder,omitempty"`
	Warnings []string              `json:"warnings,omitempty"`
}

type Service interface {
	CreateOrder(ctx context.Context, in CreateInput) (*Checkout, error)
	VerifyPayment(ctx context.Context, userID, orderID uuid.UUID, pc PaymentConfirmation) (*Order, error)
	ConfirmCashOnDelivery(ctx context.Context, userID, orderID uuid.UUID) (*Order, error)
	UpdateStatus(ctx context.Context, actor auth.Identity, orderID uuid.UUID, to Status, notes string) (*Order, error)
	CancelByUser(ctx context.Context, actor auth.Identity, orderID uuid.UUID, reason string) (*Order, error)
	GetOrder(ctx context.Context, actor auth.Identity, id uuid.UUID) (*Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, f ListFilter) ([]Order, int, error)
	ListOrders(ctx context.Context, f ListFilter) ([]Order, int, error)
	Stats(ctx context.Context) (*Stats, error)
}

// Deps are the collaborators the order workflow orchestrates.
type Deps struct {
	Catalog     Catalog
	Pricing     *pricing.Engine
	Gateway     payment.Gateway
	Stock       Stock
	Notifier    Notifier
	Broadcaster Broadcaster
	Currency    string
}

type service struct {
	repo Repository
	Deps
	now       func() time.Time
	newNumber func(time.Time) string
}

type Option func(*service)

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func WithNumberGenerator(gen func(time.Time) string) Option {
	return func(s *service) { s.newNumber = gen }
}

func NewService(repo Repository, deps Deps, opts ...Option) Service {
	if deps.Currency == "" {
		deps.Currency = "INR"
	}
	s := &service{
		repo:      repo,
		Deps:      deps,
		now:       func() time.Time { return time.Now().UTC() },
		newNumber: NewNumber,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateInput(in CreateInput) error {
	var fields []apperr.FieldError
	if len(in.Items) == 0 {
		fields = append(fields, apperr.FieldError{Field: "items", Message: "order must contain at least one item"})
	}
	for i, it := range in.Items {
		if it.Quantity < 1 || it.Quantity > maxItemQuantity {
			fields = append(fields, apperr.FieldError{
				Field:   fmt.Sprintf("items[%d].quantity", i),
				Message: fmt.Sprintf("quantity must be between 1 and %d", maxItemQuantity),
			})
		}
	}
	if !in.PaymentMethod.Valid() {
		fields = append(fields, apperr.FieldError{Field: "paymentMethod", Message: "payment method must be razorpay or cod"})
	}
	if strings.TrimSpace(in.Phone) == "" {
		fields = append(fields, apperr.FieldError{Field: "phone", Message: "phone is required"})
	}
	a := in.DeliveryAddress
	if a.Street == "" || a.City == "" || a.State == "" || a.ZipCode == "" {
		fields = append(fields, apperr.FieldError{Field: "deliveryAddress", Message: "street, city, state and zipCode are required"})
	}
	if len([]rune(in.SpecialInstructions)) > maxInstructionsLength {
		fields = append(fields, apperr.FieldError{
			Field:   "specialInstructions",
			Message: fmt.Sprintf("must be at most %d characters", maxInstructionsLength),
		})
	}
	if len(fields) > 0 {
		return apperr.Invalid(ErrInvalidOrder.Message, fields...)
	}
	return nil
}

func (s *service) CreateOrder(ctx context.Context, in CreateInput) (*Checkout, error) {
	if err := validateInput(in); err != nil {
		log.Warn().Err(err).Stringer("user_id", in.UserID).Msg("service: rejected order input")
		return nil, err
	}

	customizations, err := s.Catalog.GetCustomizations(ctx)
	if err != nil && !errors.Is(err, catalog.ErrCustomizationsNotFound) {
		log.Error().Err(err).Msg("service: failed to load customizations for order")
		return nil, fmt.Errorf("service: failed to load customizations: %w", err)
	}

	now := s.now()
	o := &Order{
		UserID:              in.UserID,
		Items:               make([]Item, 0, len(in.Items)),
		DeliveryAddress:     in.DeliveryAddress,
		Phone:               strings.TrimSpace(in.Phone),
		SpecialInstructions: strings.TrimSpace(in.SpecialInstructions),
		OrderStatus:         StatusPending,
		PaymentStatus:       PaymentPending,
		PaymentMethod:       in.PaymentMethod,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	var warnings []string
	lineTotals := make([]float64, 0, len(in.Items))
	maxPrep := 0

	for i, req := range in.Items {
		pizza, err := s.Catalog.GetPizza(ctx, req.PizzaID)
		if err != nil {
			if errors.Is(err, catalog.ErrPizzaNotFound) {
				return nil, fmt.Errorf("item %d: %w", i, catalog.ErrPizzaNotFound)
			}
			return nil, fmt.Errorf("service: failed to load pizza %s: %w", req.PizzaID, err)
		}
		if !pizza.IsAvailable {
			return nil, apperr.Invalid(ErrPizzaUnavailable.Message, apperr.FieldError{
				Field:   fmt.Sprintf("items[%d].pizzaId", i),
				Message: fmt.Sprintf("%s is not available", pizza.Name),
			})
		}

		line, err := s.Pricing.LinePrice(pizza, req.Size, req.Customizations, req.Quantity, customizations)
		if err != nil {
			if errors.Is(err, pricing.ErrInvalidSize) {
				return nil, apperr.Invalid(pricing.ErrInvalidSize.Message, apperr.FieldError{
					Field:   fmt.Sprintf("items[%d].size", i),
					Message: fmt.Sprintf("%s is not offered in size %q", pizza.Name, req.Size),
				})
			}
			return nil, err
		}
		for _, name := range line.Dropped {
			warnings = append(warnings, fmt.Sprintf("%s: %q is unavailable and was not applied", pizza.Name, name))
		}

		o.Items = append(o.Items, Item{
			PizzaID:        pizza.ID,
			Name:           pizza.Name,
			Size:           req.Size,
			Quantity:       req.Quantity,
			Customizations: line.Customizations,
			UnitPrice:      line.UnitPrice,
			Price:          line.LineTotal,
		})
		lineTotals = append(lineTotals, line.LineTotal)

		prep := pizza.PreparationTime
		if prep <= 0 {
			prep = defaultPreparationTime
		}
		maxPrep = max(maxPrep, prep)
	}

	o.Pricing = s.Pricing.Totals(lineTotals, 0)
	o.EstimatedDeliveryTime = now.Add(time.Duration(maxPrep)*time.Minute + deliveryBuffer)
	actor := in.UserID
	o.StatusHistory = []StatusChange{{Status: StatusPending, Timestamp: now, ActorID: &actor, Notes: "Order placed"}}

	if err := s.insert(ctx, o); err != nil {
		return nil, err
	}
	log.Info().
		Stringer("order_id", o.ID).
		Str("order_number", o.OrderNumber).
		Stringer("user_id", o.UserID).
		Float64("total", o.Pricing.Total).
		Msg("service: order created")

	checkout := &Checkout{Order: o, Warnings: warnings}
	if o.PaymentMethod != PaymentRazorpay {
		return checkout, nil
	}

	gwOrder, err := s.Gateway.CreateOrder(ctx, pricing.MinorUnits(o.Pricing.Total), s.Currency, o.OrderNumber)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("service: payment gateway order creation failed")
		s.markPaymentFailed(ctx, o.ID)
		return nil, apperr.Wrap(apperr.Upstream, "failed to create payment order", err)
	}

	updated, err := s.repo.Update(ctx, o.ID, func(cur *Order) error {
		cur.PaymentDetails.GatewayOrderID = gwOrder.ID
		return nil
	})
	if err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("service: failed to store gateway order reference")
		return nil, fmt.Errorf("service: failed to store gateway order reference: %w", err)
	}
	checkout.Order = updated
	checkout.Payment = gwOrder
	return checkout, nil
}

// insert persists o, drawing a fresh order number whenever the previous one
// collided.
func (s *service) insert(ctx context.Context, o *Order) error {
	var err error
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		o.OrderNumber = s.newNumber(s.now())
		err = s.repo.Create(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateOrderNumber) {
			log.Error().Err(err).Stringer("user_id", o.UserID).Msg("service: failed to create order in repository")
			return fmt.Errorf("service: failed to create order: %w", err)
		}
		log.Warn().Str("order_number", o.OrderNumber).Int("attempt", attempt).Msg("service: order number collision, retrying")
	}
	return fmt.Errorf("service: failed to allocate a unique order number: %w", err)
}

func (s *service) markPaymentFailed(ctx context.Context, id uuid.UUID) {
	_, err := s.repo.Update(ctx, id, func(o *Order) error {
		o.PaymentStatus = PaymentFailed
		s.apply(o, StatusCancelled, nil, "Payment order could not be created")
		return nil
	})
	if err != nil {
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to mark order payment as failed")
	}
}

func (s *service) apply(o *Order, to Status, actor *uuid.UUID, notes string) {
	now := s.now()
	o.OrderStatus = to
	if to == StatusDelivered {
		delivered := now
		o.ActualDeliveryTime = &delivered
	}
	o.StatusHistory = append(o.StatusHistory, StatusChange{Status: to, Timestamp: now, ActorID: actor, Notes: notes})
}

// VerifyPayment records a captured gateway payment. A pending order is
// confirmed. An order an admin already moved forward only gets the payment
// recorded. A cancelled order gets the payment recorded and refunded, and the
// caller receives ErrOrderCancelled.
func (s *service) VerifyPayment(ctx context.Context, userID, orderID uuid.UUID, pc PaymentConfirmation) (*Order, error) {
	var from Status
	o, err := s.repo.Update(ctx, orderID, func(o *Order) error {
		if o.UserID != userID || o.PaymentMethod != PaymentRazorpay {
			return ErrNotFound
		}
		if o.PaymentStatus == PaymentCompleted || o.PaymentStatus == PaymentRefunded {
			return ErrAlreadyProcessed
		}
		if o.PaymentDetails.GatewayOrderID != "" && o.PaymentDetails.GatewayOrderID != pc.GatewayOrderID {
			return ErrPaymentVerificationFailed
		}
		if !s.Gateway.VerifySignature(pc.GatewayOrderID, pc.GatewayPaymentID, pc.Signature) {
			return ErrPaymentVerificationFailed
		}

		from = o.OrderStatus
		o.PaymentStatus = PaymentCompleted
		o.PaymentDetails.GatewayOrderID = pc.GatewayOrderID
		o.PaymentDetails.GatewayPaymentID = pc.GatewayPaymentID
		o.PaymentDetails.GatewaySignature = pc.Signature
		if from == StatusPending {
			s.apply(o, StatusConfirmed, &userID, "Payment completed")
		}
		return nil
	})
	if err != nil {
		return nil, s.mutationError(err, orderID, "verify payment")
	}

	log.Info().Stringer("order_id", o.ID).Str("payment_id", pc.GatewayPaymentID).Stringer("order_status", from).Msg("service: payment verified")

	switch from {
	case StatusPending:
		s.afterConfirm(ctx, o)
	case StatusCancelled:
		log.Warn().Stringer("order_id", o.ID).Msg("service: payment captured for a cancelled order, refunding")
		s.refund(ctx, o)
		return nil, ErrOrderCancelled
	}
	return o, nil
}

func (s *service) ConfirmCashOnDelivery(ctx context.Context, userID, orderID uuid.UUID) (*Order, error) {
	o, err := s.repo.Update(ctx, orderID, func(o *Order) error {
		if o.UserID != userID || o.PaymentMethod != PaymentCashOnDelivery {
			return ErrNotFound
		}
		if o.OrderStatus != StatusPending {
			return ErrAlreadyProcessed
		}
		s.apply(o, StatusConfirmed, &userID, "Cash on delivery order confirmed")
		return nil
	})
	if err != nil {
		return nil, s.mutationError(err, orderID, "confirm cash on delivery")
	}

	log.Info().Stringer("order_id", o.ID).Msg("service: cash on delivery order confirmed")
	s.afterConfirm(ctx, o)
	return o, nil
}

func (s *service) UpdateStatus(ctx context.Context, actor auth.Identity, orderID uuid.UUID, to Status, notes string) (*Order, error) {
	if !to.Valid() {
		return nil, apperr.Invalid("invalid order status", apperr.FieldError{Field: "status", Message: fmt.Sprintf("unknown status %q", to)})
	}

	var from Status
	o, err := s.repo.Update(ctx, orderID, func(o *Order) error {
		from = o.OrderStatus
		if !CanTransition(from, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}
		actorID := actor.UserID
		s.apply(o, to, &actorID, notes)
		return nil
	})
	if err != nil {
		return nil, s.mutationError(err, orderID, "update order status")
	}

	log.Info().Stringer("order_id", o.ID).Stringer("old_status", from).Stringer("new_status", to).Msg("service: order status updated")
	return s.afterTransition(ctx, o, from), nil
}

func (s *service) CancelByUser(ctx context.Context, actor auth.Identity, orderID uuid.UUID, reason string) (*Order, error) {
	if reason == "" {
		reason = "Cancelled by customer"
	}

	var from Status
	o, err := s.repo.Update(ctx, orderID, func(o *Order) error {
		if !actor.CanAccess(o.UserID) {
			return ErrForbidden
		}
		from = o.OrderStatus
		switch from {
		case StatusOutForDelivery:
			return ErrContactSupport
		case StatusDelivered, StatusCancelled:
			return ErrCannotCancel
		}
		if !CanTransition(from, StatusCancelled) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, StatusCancelled)
		}
		actorID := actor.UserID
		s.apply(o, StatusCancelled, &actorID, reason)
		return nil
	})
	if err != nil {
		return nil, s.mutationError(err, orderID, "cancel order")
	}

	log.Info().Stringer("order_id", o.ID).Stringer("old_status", from).Msg("service: order cancelled by user")
	return s.afterTransition(ctx, o, from), nil
}

func (s *service) mutationError(err error, orderID uuid.UUID, op string) error {
	switch apperr.KindOf(err) {
	case apperr.NotFound, apperr.Conflict, apperr.Validation, apperr.Forbidden:
		log.Warn().Err(err).Stringer("order_id", orderID).Msgf("service: %s rejected", op)
		return err
	}
	log.Error().Err(err).Stringer("order_id", orderID).Msgf("service: failed to %s", op)
	return fmt.Errorf("service: failed to %s: %w", op, err)
}

// afterConfirm runs the side effects of a newly confirmed order. None of
// them can undo the confirmation.
func (s *service) afterConfirm(ctx context.Context, o *Order) {
	s.consumeStock(ctx, o)
	if s.Notifier != nil {
		s.Notifier.SendOrderConfirmation(ctx, o)
	}
	if s.Broadcaster != nil {
		s.Broadcaster.ToUser(o.UserID, "orderStatusUpdate", statusEvent(o))
		s.Broadcaster.ToAdmins("newOrder", map[string]any{
			"orderId":     o.ID,
			"orderNumber": o.OrderNumber,
			"total":       o.Pricing.Total,
			"status":      o.OrderStatus,
		})
	}
}

func (s *service) afterTransition(ctx context.Context, o *Order, from Status) *Order {
	if from == StatusPending && o.OrderStatus == StatusConfirmed {
		s.consumeStock(ctx, o)
	}
	if o.OrderStatus == StatusCancelled {
		o = s.refund(ctx, o)
	}
	if s.Notifier != nil {
		s.Notifier.SendOrderStatusUpdate(ctx, o)
	}
	if s.Broadcaster != nil {
		s.Broadcaster.ToUser(o.UserID, "orderStatusUpdate", statusEvent(o))
		s.Broadcaster.ToAdmins("orderStatusChanged", map[string]any{
			"orderId":     o.ID,
			"orderNumber": o.OrderNumber,
			"oldStatus":   from,
			"status":      o.OrderStatus,
		})
	}
	return o
}

func statusEvent(o *Order) map[string]any {
	return map[string]any{
		"orderId":     o.ID,
		"orderNumber": o.OrderNumber,
		"status":      o.OrderStatus,
		"message":     StatusMessage(o.OrderStatus),
	}
}

func (s *service) consumeStock(ctx context.Context, o *Order) {
	usages := o.Usages()
	if s.Stock == nil || len(usages) == 0 {
		return
	}
	if err := s.Stock.ConsumeForOrder(ctx, o.ID, "Order "+o.OrderNumber, usages); err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("service: failed to consume inventory for order")
	}
}

// refund returns a captured gateway payment. A failed refund is logged and
// the cancellation stands.
func (s *service) refund(ctx context.Context, o *Order) *Order {
	if o.PaymentMethod != PaymentRazorpay || o.PaymentStatus != PaymentCompleted || o.PaymentDetails.GatewayPaymentID == "" {
		return o
	}

	r, err := s.Gateway.Refund(ctx, o.PaymentDetails.GatewayPaymentID, pricing.MinorUnits(o.Pricing.Total), "Order cancelled")
	if err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("service: refund failed, order stays cancelled")
		return o
	}

	updated, err := s.repo.Update(ctx, o.ID, func(cur *Order) error {
		cur.PaymentStatus = PaymentRefunded
		cur.PaymentDetails.RefundID = r.ID
		return nil
	})
	if err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Str("refund_id", r.ID).Msg("service: failed to record refund")
		return o
	}
	log.Info().Stringer("order_id", o.ID).Str("refund_id", r.ID).Msg("service: payment refunded")
	return updated
}

func (s *service) GetOrder(ctx context.Context, actor auth.Identity, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Stringer("order_id", id).Msg("service: order not found by id")
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	if !actor.CanAccess(o.UserID) {
		log.Warn().Stringer("order_id", id).Stringer("user_id", actor.UserID).Msg("service: order access denied")
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *service) ListUserOrders(ctx context.Context, userID uuid.UUID, f ListFilter) ([]Order, int, error) {
	orders, total, err := s.repo.ListByUser(ctx, userID, f)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch user orders")
		return nil, 0, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}
	return orders, total, nil
}

func (s *service) ListOrders(ctx context.Context, f ListFilter) ([]Order, int, error) {
	orders, total, err := s.repo.List(ctx, f)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to fetch orders")
		return nil, 0, fmt.Errorf("service: failed to fetch orders: %w", err)
	}
	return orders, total, nil
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	stats, err := s.repo.Stats(ctx, startOfDay)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to compute order stats")
		return nil, fmt.Errorf("service: failed to compute order stats: %w", err)
	}
	return stats, nil
}
