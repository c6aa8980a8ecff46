package http_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bhavik262/pizza-delivery/internal/catalog"
	"github.com/bhavik262/pizza-delivery/internal/inventory"
	"github.com/bhavik262/pizza-delivery/internal/pricing"
)

var margherita = &catalog.Pizza{
	ID:          uuid.Must(uuid.NewV4()),
	Name:        "Margherita",
	Category:    catalog.CategoryVeg,
	BasePrice:   299,
	Sizes:       []catalog.SizeOption{{Size: catalog.SizeMedium, Multiplier: 1.0}, {Size: catalog.SizeLarge, Multiplier: 1.5}},
	IsAvailable: true,
}

var customizations = &catalog.Customizations{
	Cheeses: []catalog.Option{
		{Name: "Extra Mozzarella", Price: 60, IsAvailable: true},
		{Name: "Cheddar", Price: 70, IsAvailable: false},
	},
}

func TestPizzaHandler_List(t *testing.T) {
	api := newTestAPI(t)
	available := true
	api.catalog.On("ListPizzas", mock.Anything, catalog.ListFilter{
		Category:  catalog.CategoryVeg,
		Search:    "marg",
		Available: &available,
		Sort:      catalog.SortPriceAsc,
		Page:      1,
		Limit:     10,
	}).Return([]catalog.Pizza{*margherita}, 1, nil).Once()

	rr := api.do(t, http.MethodGet, "/api/pizza/?category=veg&search=marg&available=true&sort=price_asc", "", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	env := decodeEnvelope(t, rr)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.Total)
	assert.False(t, env.Pagination.HasNext)
	api.catalog.AssertExpectations(t)
}

func TestPizzaHandler_Quote(t *testing.T) {
	api := newTestAPI(t)
	api.catalog.On("GetPizza", mock.Anything, margherita.ID).Return(margherita, nil)
	api.catalog.On("GetCustomizations", mock.Anything).Return(customizations, nil)

	rr := api.do(t, http.MethodPost, "/api/pizza/"+margherita.ID.String()+"/price", "", map[string]any{
		"size":     "large",
		"quantity": 2,
		"customizations": map[string]any{
			"cheese": "Extra Mozzarella",
		},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var line pricing.Line
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr).Data, &line))
	assert.Equal(t, 508.5, line.UnitPrice)
	assert.Equal(t, 1017.0, line.LineTotal)

	t.Run("unknown_size", func(t *testing.T) {
		rr := api.do(t, http.MethodPost, "/api/pizza/"+margherita.ID.String()+"/price", "", map[string]any{
			"size": "small", "quantity": 1,
		})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, pricing.ErrInvalidSize.Message, decodeEnvelope(t, rr).Message)
	})
}

func TestPizzaHandler_AdminRoutes(t *testing.T) {
	body := map[string]any{
		"name":            "Farmhouse",
		"category":        "veg",
		"basePrice":       349,
		"sizes":           []map[string]any{{"size": "medium", "multiplier": 1}},
		"preparationTime": 18,
	}

	t.Run("create_requires_admin", func(t *testing.T) {
		api := newTestAPI(t)
		rr := api.do(t, http.MethodPost, "/api/pizza/", userToken, body)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("create", func(t *testing.T) {
		api := newTestAPI(t)
		api.catalog.On("CreatePizza", mock.Anything, mock.MatchedBy(func(p *catalog.Pizza) bool {
			return p.Name == "Farmhouse" && p.IsAvailable && len(p.Sizes) == 1 && p.Sizes[0].Size == catalog.SizeMedium
		})).Return(&catalog.Pizza{ID: uuid.Must(uuid.NewV4()), Name: "Farmhouse"}, nil).Once()

		rr := api.do(t, http.MethodPost, "/api/pizza/", adminToken, body)
		assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		api.catalog.AssertExpectations(t)
	})

	t.Run("delete_missing", func(t *testing.T) {
		api := newTestAPI(t)
		id := uuid.Must(uuid.NewV4())
		api.catalog.On("DeletePizza", mock.Anything, id).Return(catalog.ErrPizzaNotFound).Once()

		rr := api.do(t, http.MethodDelete, "/api/pizza/"+id.String(), adminToken, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestInventoryHandler_Adjust(t *testing.T) {
	itemID := uuid.Must(uuid.NewV4())

	t.Run("records_actor", func(t *testing.T) {
		api := newTestAPI(t)
		api.inventory.On("AdjustStock", mock.Anything, itemID, mock.MatchedBy(func(adj inventory.Adjustment) bool {
			return adj.Action == inventory.ActionRestock &&
				adj.Quantity == 25 &&
				adj.ActorID != nil && *adj.ActorID == administrator.UserID
		})).Return(&inventory.Details{
			Item:   inventory.Item{ID: itemID, CurrentStock: 40},
			Status: inventory.StatusNormal,
		}, nil).Once()

		rr := api.do(t, http.MethodPost, "/api/inventory/"+itemID.String()+"/adjust", adminToken, map[string]any{
			"action": "restock", "quantity": 25, "reason": "weekly delivery",
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var d inventory.Details
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr).Data, &d))
		assert.Equal(t, 40.0, d.CurrentStock)
		assert.Equal(t, inventory.StatusNormal, d.Status)
	})

	t.Run("rejects_negative_quantity", func(t *testing.T) {
		api := newTestAPI(t)
		rr := api.do(t, http.MethodPost, "/api/inventory/"+itemID.String()+"/adjust", adminToken, map[string]any{
			"action": "wastage", "quantity": -1,
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("rejects_unknown_action", func(t *testing.T) {
		api := newTestAPI(t)
		rr := api.do(t, http.MethodPost, "/api/inventory/"+itemID.String()+"/adjust", adminToken, map[string]any{
			"action": "steal", "quantity": 1,
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestInventoryHandler_CreateValidatesLevels(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(t, http.MethodPost, "/api/inventory/", adminToken, map[string]any{
		"name": "Basil", "category": "vegetable", "unit": "kg",
		"minStockLevel": 10, "maxStockLevel": 5,
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var fields []string
	for _, e := range decodeEnvelope(t, rr).Errors {
		fields = append(fields, e["field"])
	}
	assert.Contains(t, fields, "maxStockLevel")
}

func TestInventoryHandler_Scan(t *testing.T) {
	api := newTestAPI(t)
	api.inventory.On("ScanLowStock", mock.Anything).Return(3, nil).Once()

	rr := api.do(t, http.MethodPost, "/api/inventory/check-alerts", adminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var data map[string]int
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr).Data, &data))
	assert.Equal(t, 3, data["alertedItems"])
}
