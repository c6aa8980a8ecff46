// Package admin assembles the back-office dashboard from the order,
// inventory and catalog stores.
package admin

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/bhavik262/pizza-delivery/internal/order"
)

type OrderStats interface {
	Stats(ctx context.Context) (*order.Stats, error)
}

type InventoryCounter interface {
	CountLowStock(ctx context.Context) (int, error)
	CountItems(ctx context.Context) (int, error)
}

type PizzaCounter interface {
	CountPizzas(ctx context.Context) (int, error)
}

type Dashboard struct {
	*order.Stats
	LowStockItems       int `json:"lowStockItems"`
	TotalInventoryItems int `json:"totalInventoryItems"`
	TotalPizzas         int `json:"totalPizzas"`
}

type Service interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
}

type service struct {
	orders    OrderStats
	inventory InventoryCounter
	pizzas    PizzaCounter
}

func NewService(orders OrderStats, inventory InventoryCounter, pizzas PizzaCounter) Service {
	return &service{orders: orders, inventory: inventory, pizzas: pizzas}
}

func (s *service) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stats, err := s.orders.Stats(ctx)
		if err != nil {
			return fmt.Errorf("order stats: %w", err)
		}
		d.Stats = stats
		return nil
	})
	g.Go(func() error {
		n, err := s.inventory.CountLowStock(ctx)
		if err != nil {
			return fmt.Errorf("low stock count: %w", err)
		}
		d.LowStockItems = n
		return nil
	})
	g.Go(func() error {
		n, err := s.inventory.CountItems(ctx)
		if err != nil {
			return fmt.Errorf("inventory count: %w", err)
		}
		d.TotalInventoryItems = n
		return nil
	})
	g.Go(func() error {
		n, err := s.pizzas.CountPizzas(ctx)
		if err != nil {
			return fmt.Errorf("pizza count: %w", err)
		}
		d.TotalPizzas = n
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("service: failed to build dashboard: %w", err)
	}
	return &d, nil
}
