package catalog_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhavik262/pizza-delivery/internal/apperr"
	"github.com/bhavik262/pizza-delivery/internal/catalog"
)

type mockRepository struct {
	createPizzaFunc       func(ctx context.Context, p *catalog.Pizza) error
	getPizzaFunc          func(ctx context.Context, id uuid.UUID) (*catalog.Pizza, error)
	listPizzasFunc        func(ctx context.Context, f catalog.ListFilter) ([]catalog.Pizza, int, error)
	updatePizzaFunc       func(ctx context.Context, p *catalog.Pizza) error
	setAvailabilityFunc   func(ctx context.Context, id uuid.UUID, available bool) error
	getCustomizationsFunc func(ctx context.Context) (*catalog.Customizations, error)
	putCustomizationsFunc func(ctx context.Context, c *catalog.Customizations) error
}

func (m *mockRepository) CreatePizza(ctx context.Context, p *catalog.Pizza) error {
	return m.createPizzaFunc(ctx, p)
}

func (m *mockRepository) GetPizza(ctx context.Context, id uuid.UUID) (*catalog.Pizza, error) {
	return m.getPizzaFunc(ctx, id)
}

func (m *mockRepository) ListPizzas(ctx context.Context, f catalog.ListFilter) ([]catalog.Pizza, int, error) {
	return m.listPizzasFunc(ctx, f)
}

func (m *mockRepository) UpdatePizza(ctx context.Context, p *catalog.Pizza) error {
	return m.updatePizzaFunc(ctx, p)
}

func (m *mockRepository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	return m.setAvailabilityFunc(ctx, id, available)
}

func (m *mockRepository) CountPizzas(ctx context.Context) (int, error) {
	return 0, nil
}

func (m *mockRepository) GetCustomizations(ctx context.Context) (*catalog.Customizations, error) {
	return m.getCustomizationsFunc(ctx)
}

func (m *mockRepository) PutCustomizations(ctx context.Context, c *catalog.Customizations) error {
	return m.putCustomizationsFunc(ctx, c)
}

func validPizza() *catalog.Pizza {
	return &catalog.Pizza{
		Name:        "Farmhouse",
		Category:    catalog.CategoryVeg,
		BasePrice:   349,
		Sizes:       []catalog.SizeOption{{Size: catalog.SizeMedium, Multiplier: 1}},
		IsAvailable: true,
	}
}

func TestService_GetPizza_Caches(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	var calls int32
	repo := &mockRepository{
		getPizzaFunc: func(ctx context.Context, got uuid.UUID) (*catalog.Pizza, error) {
			atomic.AddInt32(&calls, 1)
			p := validPizza()
			p.ID = got
			return p, nil
		},
	}
	svc := catalog.NewService(repo)

	for i := 0; i < 3; i++ {
		p, err := svc.GetPizza(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, p.ID)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestService_UpdatePizza_InvalidatesCache(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	price := 349.0
	repo := &mockRepository{
		getPizzaFunc: func(ctx context.Context, got uuid.UUID) (*catalog.Pizza, error) {
			p := validPizza()
			p.ID = got
			p.BasePrice = price
			return p, nil
		},
		updatePizzaFunc: func(ctx context.Context, p *catalog.Pizza) error {
			price = p.BasePrice
			return nil
		},
	}
	svc := catalog.NewService(repo)

	_, err := svc.GetPizza(context.Background(), id)
	require.NoError(t, err)

	update := validPizza()
	update.ID = id
	update.BasePrice = 399
	updated, err := svc.UpdatePizza(context.Background(), update)
	require.NoError(t, err)
	assert.Equal(t, 399.0, updated.BasePrice)
}

func TestService_CreatePizza_Validation(t *testing.T) {
	repo := &mockRepository{
		createPizzaFunc: func(ctx context.Context, p *catalog.Pizza) error {
			t.Fatal("repository must not be called for invalid input")
			return nil
		},
	}
	svc := catalog.NewService(repo)

	tests := []struct {
		name  string
		edit  func(p *catalog.Pizza)
		field string
	}{
		{name: "empty_name", edit: func(p *catalog.Pizza) { p.Name = " " }, field: "name"},
		{name: "bad_category", edit: func(p *catalog.Pizza) { p.Category = "dessert" }, field: "category"},
		{name: "negative_price", edit: func(p *catalog.Pizza) { p.BasePrice = -1 }, field: "basePrice"},
		{name: "no_sizes", edit: func(p *catalog.Pizza) { p.Sizes = nil }, field: "sizes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPizza()
			tt.edit(p)
			_, err := svc.CreatePizza(context.Background(), p)
			require.Error(t, err)
			e, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, apperr.Validation, e.Kind)
			require.NotEmpty(t, e.Fields)
			assert.Equal(t, tt.field, e.Fields[0].Field)
		})
	}
}

func TestService_DeletePizza_NotFound(t *testing.T) {
	repo := &mockRepository{
		setAvailabilityFunc: func(ctx context.Context, id uuid.UUID, available bool) error {
			assert.False(t, available)
			return catalog.ErrPizzaNotFound
		},
	}
	svc := catalog.NewService(repo)

	err := svc.DeletePizza(context.Background(), uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, catalog.ErrPizzaNotFound)
}

func TestService_GetCustomizations_LoadsOnce(t *testing.T) {
	var calls int32
	repo := &mockRepository{
		getCustomizationsFunc: func(ctx context.Context) (*catalog.Customizations, error) {
			atomic.AddInt32(&calls, 1)
			return &catalog.Customizations{Bases: []catalog.Option{{Name: "Thin Crust", IsAvailable: true}}}, nil
		},
	}
	svc := catalog.NewService(repo)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := svc.GetCustomizations(context.Background())
			assert.NoError(t, err)
			assert.Len(t, c.Bases, 1)
		}()
	}
	wg.Wait()

	_, err := svc.GetCustomizations(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(10))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestService_GetCustomizations_NotConfigured(t *testing.T) {
	repo := &mockRepository{
		getCustomizationsFunc: func(ctx context.Context) (*catalog.Customizations, error) {
			return nil, catalog.ErrCustomizationsNotFound
		},
	}
	svc := catalog.NewService(repo)

	_, err := svc.GetCustomizations(context.Background())
	assert.ErrorIs(t, err, catalog.ErrCustomizationsNotFound)
}

func TestService_UpdateCustomizations(t *testing.T) {
	var saved *catalog.Customizations
	repo := &mockRepository{
		putCustomizationsFunc: func(ctx context.Context, c *catalog.Customizations) error {
			saved = c
			return nil
		},
		getCustomizationsFunc: func(ctx context.Context) (*catalog.Customizations, error) {
			return nil, errors.New("must be served from memory")
		},
	}
	svc := catalog.NewService(repo)

	c := &catalog.Customizations{Sauces: []catalog.Option{{Name: "Pesto", Price: 30, IsAvailable: true}}}
	_, err := svc.UpdateCustomizations(context.Background(), c)
	require.NoError(t, err)
	assert.Same(t, c, saved)

	got, err := svc.GetCustomizations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Pesto", got.Sauces[0].Name)

	_, err = svc.UpdateCustomizations(context.Background(), &catalog.Customizations{
		Meats: []catalog.Option{{Name: "Ham", Price: -5}},
	})
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}
