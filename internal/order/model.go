package order

import (
	"time"

	"github.com/gofrs/uuid"

	"github.com/bhavik262/pizza-delivery/internal/catalog"
	"github.com/bhavik262/pizza-delivery/internal/inventory"
	"github.com/bhavik262/pizza-delivery/internal/pricing"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out-for-delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentRazorpay       PaymentMethod = "razorpay"
	PaymentCashOnDelivery PaymentMethod = "cod"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentRazorpay || m == PaymentCashOnDelivery
}

// Item is a line of an order with the customization prices captured when
// the order was placed.
type Item struct {
	PizzaID        uuid.UUID                `json:"pizzaId"`
	Name           string                   `json:"name"`
	Size           catalog.Size             `json:"size"`
	Quantity       int                      `json:"quantity"`
	Customizations []pricing.ResolvedOption `json:"customizations"`
	UnitPrice      float64                  `json:"unitPrice"`
	Price          float64                  `json:"price"`
}

type Address struct {
	Street   string `json:"street" validate:"required"`
	City     string `json:"city" validate:"required"`
	State    string `json:"state" validate:"required"`
	ZipCode  string `json:"zipCode" validate:"required"`
	Landmark string `json:"landmark,omitempty"`
}

type PaymentDetails struct {
	GatewayOrderID   string `json:"razorpayOrderId,omitempty"`
	GatewayPaymentID string `json:"razorpayPaymentId,omitempty"`
	GatewaySignature string `json:"razorpaySignature,omitempty"`
	RefundID         string `json:"refundId,omitempty"`
}

type StatusChange struct {
	Status    Status     `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	ActorID   *uuid.UUID `json:"updatedBy,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

type Order struct {
	ID                    uuid.UUID      `json:"id"`
	OrderNumber           string         `json:"orderNumber"`
	UserID                uuid.UUID      `json:"userId"`
	Items                 []Item         `json:"items"`
	DeliveryAddress       Address        `json:"deliveryAddress"`
	Phone                 string         `json:"phone"`
	SpecialInstructions   string         `json:"specialInstructions,omitempty"`
	OrderStatus           Status         `json:"orderStatus"`
	PaymentStatus         PaymentStatus  `json:"paymentStatus"`
	PaymentMethod         PaymentMethod  `json:"paymentMethod"`
	PaymentDetails        PaymentDetails `json:"paymentDetails"`
	Pricing               pricing.Totals `json:"pricing"`
	EstimatedDeliveryTime time.Time      `json:"estimatedDeliveryTime"`
	ActualDeliveryTime    *time.Time     `json:"actualDeliveryTime,omitempty"`
	StatusHistory         []StatusChange `json:"statusHistory,omitempty"`
	CreatedAt             time.Time      `json:"createdAt"`
	UpdatedAt             time.Time      `json:"updatedAt"`
}

// Usages lists the stock consumed by the order: each customization's usage
// multiplied by its line quantity.
func (o *Order) Usages() []inventory.Usage {
	var out []inventory.Usage
	for _, it := range o.Items {
		for _, c := range it.Customizations {
			if c.InventoryItemID == nil || c.Usage <= 0 {
				continue
			}
			out = append(out, inventory.Usage{ItemID: *c.InventoryItemID, Quantity: c.Usage * float64(it.Quantity)})
		}
	}
	return out
}

// ItemInput is one requested line before pricing.
type ItemInput struct {
	PizzaID        uuid.UUID
	Size           catalog.Size
	Quantity       int
	Customizations pricing.Selection
}

type CreateInput struct {
	UserID              uuid.UUID
	Items               []ItemInput
	DeliveryAddress     Address
	Phone               string
	SpecialInstructions string
	PaymentMethod       PaymentMethod
}

// PaymentConfirmation carries what the client received from the gateway.
type PaymentConfirmation struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

type ListFilter struct {
	Status Status
	Page   int
	Limit  int
}

func (f ListFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

type PopularPizza struct {
	PizzaID  uuid.UUID `json:"pizzaId"`
	Name     string    `json:"name"`
	Orders   int       `json:"orderCount"`
	Quantity int       `json:"totalQuantity"`
}

type Stats struct {
	TotalOrders   int            `json:"totalOrders"`
	TotalRevenue  float64        `json:"totalRevenue"`
	TodayOrders   int            `json:"todayOrders"`
	PendingOrders int            `json:"pendingOrders"`
	ByStatus      map[Status]int `json:"ordersByStatus"`
	PopularPizzas []PopularPizza `json:"popularPizzas"`
}
