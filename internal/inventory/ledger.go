package inventory

import (
	"fmt"
	"time"

	"github.com/bhavik262/pizza-delivery/internal/apperr"
)

const consumptionWindowDays = 30

var (
	ErrInvalidAction   = apperr.New(apperr.Validation, "invalid stock action")
	ErrInvalidQuantity = apperr.New(apperr.Validation, "quantity must not be negative")
)

// Apply mutates item according to adj and returns the history record for it.
// The resulting stock is clamped to zero; the record is produced even when
// clamping occurred.
func Apply(item *Item, adj Adjustment, now time.Time) (Movement, error) {
	if !adj.Action.Valid() {
		return Movement{}, fmt.Errorf("%w: %q", ErrInvalidAction, adj.Action)
	}
	if adj.Quantity < 0 {
		return Movement{}, ErrInvalidQuantity
	}

	previous := item.CurrentStock
	next := previous

	switch adj.Action {
	case ActionRestock:
		next = previous + adj.Quantity
		item.LowStockAlertSent = false
		restocked := now
		item.LastRestocked = &restocked
	case ActionConsumption, ActionWastage:
		next = previous - adj.Quantity
	case ActionAdjustment:
		next = adj.Quantity
	}
	if next < 0 {
		next = 0
	}

	item.CurrentStock = next
	item.UpdatedAt = now

	m := Movement{
		ItemID:        item.ID,
		Action:        adj.Action,
		Quantity:      adj.Quantity,
		PreviousStock: previous,
		NewStock:      next,
		Reason:        adj.Reason,
		ActorID:       adj.ActorID,
		OrderID:       adj.OrderID,
		CreatedAt:     now,
	}
	item.History = append(item.History, m)
	return m, nil
}

// Status classifies the current stock. Critical takes precedence over low.
func (i *Item) Status() Status {
	switch {
	case i.CurrentStock <= i.MinStockLevel/2:
		return StatusCritical
	case i.CurrentStock <= i.MinStockLevel:
		return StatusLow
	case i.CurrentStock >= i.MaxStockLevel:
		return StatusOverstocked
	default:
		return StatusNormal
	}
}

// ConsumedSince sums the consumption movements in the loaded history at or
// after since.
func (i *Item) ConsumedSince(since time.Time) float64 {
	var total float64
	for _, m := range i.History {
		if m.Action == ActionConsumption && !m.CreatedAt.Before(since) {
			total += m.Quantity
		}
	}
	return total
}

// ConsumptionRate is the average daily consumption over the trailing 30 days,
// computed from the loaded history.
func (i *Item) ConsumptionRate(now time.Time) float64 {
	return i.ConsumedSince(windowStart(now)) / consumptionWindowDays
}

// PredictStockOutDate returns nil when nothing is being consumed.
func (i *Item) PredictStockOutDate(now time.Time) *time.Time {
	return stockOutAt(i.CurrentStock, i.ConsumptionRate(now), now)
}

// Details derives analytics from the loaded history.
func (i *Item) Details(now time.Time) Details {
	return i.DetailsWithConsumption(i.ConsumedSince(windowStart(now)), now)
}

// DetailsWithConsumption derives analytics from a trailing-window consumption
// total computed elsewhere, so callers need not load the history.
func (i *Item) DetailsWithConsumption(consumed float64, now time.Time) Details {
	rate := consumed / consumptionWindowDays
	return Details{
		Item:                *i,
		Status:              i.Status(),
		ConsumptionRate:     rate,
		PredictedStockOutAt: stockOutAt(i.CurrentStock, rate, now),
	}
}

func windowStart(now time.Time) time.Time {
	return now.AddDate(0, 0, -consumptionWindowDays)
}

func stockOutAt(stock, rate float64, now time.Time) *time.Time {
	if rate <= 0 {
		return nil
	}
	at := now.Add(time.Duration(stock / rate * float64(24*time.Hour)))
	return &at
}
