package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhavik262/pizza-delivery/internal/catalog"
	"github.com/bhavik262/pizza-delivery/internal/pricing"
)

func margherita() *catalog.Pizza {
	return &catalog.Pizza{
		Name:        "Margherita",
		BasePrice:   299,
		IsAvailable: true,
		Sizes: []catalog.SizeOption{
			{Size: catalog.SizeSmall, Multiplier: 0.8},
			{Size: catalog.SizeMedium, Multiplier: 1.0},
			{Size: catalog.SizeLarge, Multiplier: 1.5},
		},
	}
}

func customizations() *catalog.Customizations {
	return &catalog.Customizations{
		Bases:      []catalog.Option{{Name: "Thin Crust", Price: 0, IsAvailable: true}, {Name: "Cheese Burst", Price: 99, IsAvailable: true}},
		Sauces:     []catalog.Option{{Name: "Tomato", Price: 0, IsAvailable: true}},
		Cheeses:    []catalog.Option{{Name: "Mozzarella", Price: 40, IsAvailable: true}, {Name: "Cheddar", Price: 50, IsAvailable: false}},
		Vegetables: []catalog.Option{{Name: "Onion", Price: 20, IsAvailable: true}, {Name: "Capsicum", Price: 25, IsAvailable: true}},
		Meats:      []catalog.Option{{Name: "Chicken", Price: 80, IsAvailable: true}},
	}
}

func TestEngine_LinePrice_Scenario(t *testing.T) {
	engine := pricing.NewEngine(0.05, 50)

	line, err := engine.LinePrice(margherita(), catalog.SizeMedium, pricing.Selection{}, 2, customizations())
	require.NoError(t, err)
	assert.Equal(t, 299.0, line.UnitPrice)
	assert.Equal(t, 598.0, line.LineTotal)

	totals := engine.Totals([]float64{line.LineTotal}, 0)
	assert.Equal(t, 598.0, totals.Subtotal)
	assert.Equal(t, 30.0, totals.Tax)
	assert.Equal(t, 50.0, totals.DeliveryFee)
	assert.Equal(t, 678.0, totals.Total)
}

func TestEngine_LinePrice_WithCustomizations(t *testing.T) {
	engine := pricing.NewEngine(0.05, 50)

	sel := pricing.Selection{
		Base:       "Cheese Burst",
		Cheese:     "Cheddar",
		Vegetables: []string{"Onion", "Olives"},
		Meats:      []string{"Chicken"},
	}
	line, err := engine.LinePrice(margherita(), catalog.SizeLarge, sel, 1, customizations())
	require.NoError(t, err)

	// 299*1.5 + 99 + 20 + 80
	assert.Equal(t, 647.5, line.UnitPrice)
	assert.Len(t, line.Customizations, 3)
	assert.ElementsMatch(t, []string{"Cheddar", "Olives"}, line.Dropped)
}

func TestEngine_LinePrice_InvalidSize(t *testing.T) {
	engine := pricing.NewEngine(0.05, 50)
	p := margherita()
	p.Sizes = p.Sizes[:1]

	_, err := engine.LinePrice(p, catalog.SizeLarge, pricing.Selection{}, 1, customizations())
	assert.ErrorIs(t, err, pricing.ErrInvalidSize)
}

func TestEngine_LinePrice_MonotonicInQuantity(t *testing.T) {
	engine := pricing.NewEngine(0.05, 50)
	sel := pricing.Selection{Base: "Cheese Burst", Vegetables: []string{"Onion"}}

	prev := 0.0
	for q := 1; q <= 10; q++ {
		line, err := engine.LinePrice(margherita(), catalog.SizeSmall, sel, q, customizations())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, line.LineTotal, prev)
		prev = line.LineTotal
	}
}

func TestEngine_LinePrice_MonotonicInCustomizations(t *testing.T) {
	engine := pricing.NewEngine(0.05, 50)
	selections := []pricing.Selection{
		{},
		{Base: "Thin Crust"},
		{Base: "Thin Crust", Sauce: "Tomato"},
		{Base: "Thin Crust", Sauce: "Tomato", Cheese: "Mozzarella"},
		{Base: "Thin Crust", Sauce: "Tomato", Cheese: "Mozzarella", Vegetables: []string{"Onion"}},
		{Base: "Thin Crust", Sauce: "Tomato", Cheese: "Mozzarella", Vegetables: []string{"Onion", "Capsicum"}},
		{Base: "Thin Crust", Sauce: "Tomato", Cheese: "Mozzarella", Vegetables: []string{"Onion", "Capsicum"}, Meats: []string{"Chicken"}},
	}

	prev := 0.0
	for _, sel := range selections {
		line, err := engine.LinePrice(margherita(), catalog.SizeMedium, sel, 1, customizations())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, line.UnitPrice, prev)
		prev = line.UnitPrice
	}
}

func TestEngine_Totals_Invariant(t *testing.T) {
	engine := pricing.NewEngine(0.05, 50)

	tests := []struct {
		name     string
		lines    []float64
		discount float64
	}{
		{name: "single", lines: []float64{598}},
		{name: "fractional", lines: []float64{448.5, 239.2}},
		{name: "discount", lines: []float64{1000}, discount: 100},
		{name: "half_up_tax", lines: []float64{10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Totals(tt.lines, tt.discount)
			assert.InDelta(t, got.Subtotal+got.Tax+got.DeliveryFee-got.Discount, got.Total, 1e-9)
		})
	}

	// 10 * 0.05 = 0.5 rounds up to 1
	assert.Equal(t, 1.0, engine.Totals([]float64{10}, 0).Tax)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(67800), pricing.MinorUnits(678))
	assert.Equal(t, int64(44851), pricing.MinorUnits(448.505))
}
