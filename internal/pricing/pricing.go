// Package pricing turns a pizza, a size and a customization selection into
// line prices and order totals. All arithmetic is done in decimal and
// rounded half-up; results are handed back as float64 currency units.
package pricing

import (
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/bhavik262/pizza-delivery/internal/apperr"
	"github.com/bhavik262/pizza-delivery/internal/catalog"
)

var ErrInvalidSize = apperr.New(apperr.Validation, "selected size is not available for this pizza")

// Selection is what the customer picked, by option name.
type Selection struct {
	Base       string   `json:"base,omitempty"`
	Sauce      string   `json:"sauce,omitempty"`
	Cheese     string   `json:"cheese,omitempty"`
	Vegetables []string `json:"vegetables,omitempty"`
	Meats      []string `json:"meats,omitempty"`
}

// ResolvedOption is a customization captured with its price at order time.
type ResolvedOption struct {
	Group           catalog.Group `json:"group"`
	Name            string        `json:"name"`
	Price           float64       `json:"price"`
	InventoryItemID *uuid.UUID    `json:"inventoryItemId,omitempty"`
	Usage           float64       `json:"usage,omitempty"`
}

type Line struct {
	Multiplier     float64          `json:"multiplier"`
	UnitPrice      float64          `json:"unitPrice"`
	LineTotal      float64          `json:"lineTotal"`
	Customizations []ResolvedOption `json:"customizations"`
	Dropped        []string         `json:"dropped,omitempty"`
}

type Totals struct {
	Subtotal    float64 `json:"subtotal"`
	DeliveryFee float64 `json:"deliveryFee"`
	Tax         float64 `json:"tax"`
	Discount    float64 `json:"discount"`
	Total       float64 `json:"total"`
}

type Engine struct {
	taxRate     decimal.Decimal
	deliveryFee decimal.Decimal
}

func NewEngine(taxRate, deliveryFee float64) *Engine {
	return &Engine{
		taxRate:     decimal.NewFromFloat(taxRate),
		deliveryFee: decimal.NewFromFloat(deliveryFee),
	}
}

// Resolve matches a selection against the catalog. Names that are unknown
// or unavailable are returned in dropped instead of failing.
func (e *Engine) Resolve(sel Selection, cat *catalog.Customizations) (resolved []ResolvedOption, dropped []string) {
	resolved = make([]ResolvedOption, 0)

	pick := func(g catalog.Group, name string) {
		if name == "" {
			return
		}
		if cat == nil {
			dropped = append(dropped, name)
			return
		}
		opt, ok := cat.Find(g, name)
		if !ok || !opt.IsAvailable {
			dropped = append(dropped, name)
			return
		}
		resolved = append(resolved, ResolvedOption{
			Group:           g,
			Name:            opt.Name,
			Price:           opt.Price,
			InventoryItemID: opt.InventoryItemID,
			Usage:           opt.Usage,
		})
	}

	pick(catalog.GroupBases, sel.Base)
	pick(catalog.GroupSauces, sel.Sauce)
	pick(catalog.GroupCheeses, sel.Cheese)
	for _, v := range sel.Vegetables {
		pick(catalog.GroupVegetables, v)
	}
	for _, m := range sel.Meats {
		pick(catalog.GroupMeats, m)
	}

	return resolved, dropped
}

// LinePrice computes unitPrice = basePrice*multiplier + sum(selected option
// prices) and lineTotal = unitPrice*quantity.
func (e *Engine) LinePrice(p *catalog.Pizza, size catalog.Size, sel Selection, quantity int, cat *catalog.Customizations) (*Line, error) {
	multiplier, ok := p.Multiplier(size)
	if !ok {
		return nil, ErrInvalidSize
	}

	resolved, dropped := e.Resolve(sel, cat)

	unit := decimal.NewFromFloat(p.BasePrice).Mul(decimal.NewFromFloat(multiplier))
	for _, r := range resolved {
		unit = unit.Add(decimal.NewFromFloat(r.Price))
	}
	unit = unit.Round(2)
	total := unit.Mul(decimal.NewFromInt(int64(quantity))).Round(2)

	return &Line{
		Multiplier:     multiplier,
		UnitPrice:      unit.InexactFloat64(),
		LineTotal:      total.InexactFloat64(),
		Customizations: resolved,
		Dropped:        dropped,
	}, nil
}

// Totals composes the order-level figures. Tax is rounded to whole currency
// units; total = subtotal + tax + deliveryFee - discount.
func (e *Engine) Totals(lineTotals []float64, discount float64) Totals {
	subtotal := decimal.Zero
	for _, lt := range lineTotals {
		subtotal = subtotal.Add(decimal.NewFromFloat(lt))
	}
	subtotal = subtotal.Round(2)

	tax := subtotal.Mul(e.taxRate).Round(0)
	disc := decimal.NewFromFloat(discount).Round(2)
	total := subtotal.Add(tax).Add(e.deliveryFee).Sub(disc)

	return Totals{
		Subtotal:    subtotal.InexactFloat64(),
		DeliveryFee: e.deliveryFee.InexactFloat64(),
		Tax:         tax.InexactFloat64(),
		Discount:    disc.InexactFloat64(),
		Total:       total.InexactFloat64(),
	}
}

// MinorUnits converts a whole-currency amount into paise/cents.
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
