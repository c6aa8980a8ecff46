package inventory

import (
	"time"

	"github.com/gofrs/uuid"
)

type Category string

const (
	CategoryBase      Category = "base"
	CategorySauce     Category = "sauce"
	CategoryCheese    Category = "cheese"
	CategoryVegetable Category = "vegetable"
	CategoryMeat      Category = "meat"
	CategoryOther     Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryBase, CategorySauce, CategoryCheese, CategoryVegetable, CategoryMeat, CategoryOther:
		return true
	}
	return false
}

type Action string

const (
	ActionRestock     Action = "restock"
	ActionConsumption Action = "consumption"
	ActionWastage     Action = "wastage"
	ActionAdjustment  Action = "adjustment"
)

func (a Action) Valid() bool {
	switch a {
	case ActionRestock, ActionConsumption, ActionWastage, ActionAdjustment:
		return true
	}
	return false
}

type Status string

const (
	StatusCritical    Status = "critical"
	StatusLow         Status = "low"
	StatusNormal      Status = "normal"
	StatusOverstocked Status = "overstocked"
)

// NeedsAlert reports whether the status is at or below the low threshold.
func (s Status) NeedsAlert() bool {
	return s == StatusCritical || s == StatusLow
}

type Supplier struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

type Item struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	Category          Category   `json:"category"`
	CurrentStock      float64    `json:"currentStock"`
	MinStockLevel     float64    `json:"minStockLevel"`
	MaxStockLevel     float64    `json:"maxStockLevel"`
	Unit              string     `json:"unit"`
	PricePerUnit      float64    `json:"pricePerUnit"`
	Supplier          Supplier   `json:"supplier"`
	LowStockAlertSent bool       `json:"lowStockAlertSent"`
	LastRestocked     *time.Time `json:"lastRestocked,omitempty"`
	IsActive          bool       `json:"isActive"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	History           []Movement `json:"stockHistory,omitempty"`
}

// Movement is one append-only stock history record.
type Movement struct {
	ID            int64      `json:"id"`
	ItemID        uuid.UUID  `json:"itemId"`
	Action        Action     `json:"action"`
	Quantity      float64    `json:"quantity"`
	PreviousStock float64    `json:"previousStock"`
	NewStock      float64    `json:"newStock"`
	Reason        string     `json:"reason"`
	ActorID       *uuid.UUID `json:"actorId,omitempty"`
	OrderID       *uuid.UUID `json:"orderId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type Adjustment struct {
	Action   Action
	Quantity float64
	Reason   string
	ActorID  *uuid.UUID
	OrderID  *uuid.UUID
}

// Usage is the quantity of one stock item an order consumes.
type Usage struct {
	ItemID   uuid.UUID
	Quantity float64
}

// Details is an item with its derived analytics.
type Details struct {
	Item
	Status              Status     `json:"status"`
	ConsumptionRate     float64    `json:"consumptionRate"`
	PredictedStockOutAt *time.Time `json:"predictedStockOutDate"`
}

type ListFilter struct {
	Category Category
	Status   Status
	Page     int
	Limit    int
}
