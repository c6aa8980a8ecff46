// Package seed loads the starter catalog from a YAML document into an
// empty database.
package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/bhavik262/pizza-delivery/internal/catalog"
	"github.com/bhavik262/pizza-delivery/internal/inventory"
)

type Pizza struct {
	Name            string               `yaml:"name"`
	Description     string               `yaml:"description"`
	Category        string               `yaml:"category"`
	BasePrice       float64              `yaml:"basePrice"`
	Sizes           []catalog.SizeOption `yaml:"sizes"`
	Ingredients     []string             `yaml:"ingredients"`
	ImageURL        string               `yaml:"imageUrl"`
	Rating          float64              `yaml:"rating"`
	PreparationTime int                  `yaml:"preparationTime"`
}

// Option references its stock item by the item's seed name.
type Option struct {
	Name          string  `yaml:"name"`
	Price         float64 `yaml:"price"`
	Unavailable   bool    `yaml:"unavailable"`
	InventoryItem string  `yaml:"inventoryItem"`
	Usage         float64 `yaml:"usage"`
}

type Customizations struct {
	Bases      []Option `yaml:"bases"`
	Sauces     []Option `yaml:"sauces"`
	Cheeses    []Option `yaml:"cheeses"`
	Vegetables []Option `yaml:"vegetables"`
	Meats      []Option `yaml:"meats"`
}

type Item struct {
	Name          string  `yaml:"name"`
	Category      string  `yaml:"category"`
	CurrentStock  float64 `yaml:"currentStock"`
	MinStockLevel float64 `yaml:"minStockLevel"`
	MaxStockLevel float64 `yaml:"maxStockLevel"`
	Unit          string  `yaml:"unit"`
	PricePerUnit  float64 `yaml:"pricePerUnit"`
	Supplier      string  `yaml:"supplier"`
}

type Data struct {
	Pizzas         []Pizza        `yaml:"pizzas"`
	Customizations Customizations `yaml:"customizations"`
	Inventory      []Item         `yaml:"inventory"`
}

func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: failed to read %s: %w", path, err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("seed: failed to decode: %w", err)
	}
	return &d, nil
}

type Catalog interface {
	CountPizzas(ctx context.Context) (int, error)
	CreatePizza(ctx context.Context, p *catalog.Pizza) (*catalog.Pizza, error)
	UpdateCustomizations(ctx context.Context, c *catalog.Customizations) (*catalog.Customizations, error)
}

type Inventory interface {
	CreateItem(ctx context.Context, item *inventory.Item) (*inventory.Item, error)
}

// Apply writes d when the catalog holds no pizzas yet. It reports whether
// anything was written.
func Apply(ctx context.Context, d *Data, cat Catalog, inv Inventory) (bool, error) {
	n, err := cat.CountPizzas(ctx)
	if err != nil {
		return false, fmt.Errorf("seed: failed to count pizzas: %w", err)
	}
	if n > 0 {
		log.Info().Int("pizzas", n).Msg("seed: catalog already populated, skipping")
		return false, nil
	}

	stock := make(map[string]uuid.UUID, len(d.Inventory))
	for _, it := range d.Inventory {
		item := &inventory.Item{
			Name:          it.Name,
			Category:      inventory.Category(it.Category),
			CurrentStock:  it.CurrentStock,
			MinStockLevel: it.MinStockLevel,
			MaxStockLevel: it.MaxStockLevel,
			Unit:          it.Unit,
			PricePerUnit:  it.PricePerUnit,
			Supplier:      inventory.Supplier{Name: it.Supplier},
			IsActive:      true,
		}
		created, err := inv.CreateItem(ctx, item)
		if err != nil {
			return false, fmt.Errorf("seed: inventory item %q: %w", it.Name, err)
		}
		stock[it.Name] = created.ID
	}

	custom, err := d.Customizations.resolve(stock)
	if err != nil {
		return false, err
	}
	if _, err := cat.UpdateCustomizations(ctx, custom); err != nil {
		return false, fmt.Errorf("seed: customizations: %w", err)
	}

	for _, p := range d.Pizzas {
		pizza := &catalog.Pizza{
			Name:            p.Name,
			Description:     p.Description,
			Category:        catalog.Category(p.Category),
			BasePrice:       p.BasePrice,
			Sizes:           p.Sizes,
			Ingredients:     p.Ingredients,
			ImageURL:        p.ImageURL,
			IsAvailable:     true,
			Rating:          p.Rating,
			PreparationTime: p.PreparationTime,
		}
		if _, err := cat.CreatePizza(ctx, pizza); err != nil {
			return false, fmt.Errorf("seed: pizza %q: %w", p.Name, err)
		}
	}

	log.Info().
		Int("pizzas", len(d.Pizzas)).
		Int("inventory_items", len(d.Inventory)).
		Msg("seed: starter catalog loaded")
	return true, nil
}

func (c Customizations) resolve(stock map[string]uuid.UUID) (*catalog.Customizations, error) {
	out := &catalog.Customizations{}
	groups := []struct {
		in  []Option
		out *[]catalog.Option
	}{
		{c.Bases, &out.Bases},
		{c.Sauces, &out.Sauces},
		{c.Cheeses, &out.Cheeses},
		{c.Vegetables, &out.Vegetables},
		{c.Meats, &out.Meats},
	}
	for _, g := range groups {
		opts := make([]catalog.Option, 0, len(g.in))
		for _, o := range g.in {
			opt := catalog.Option{Name: o.Name, Price: o.Price, IsAvailable: !o.Unavailable, Usage: o.Usage}
			if o.InventoryItem != "" {
				id, ok := stock[o.InventoryItem]
				if !ok {
					return nil, fmt.Errorf("seed: option %q references unknown inventory item %q", o.Name, o.InventoryItem)
				}
				opt.InventoryItemID = &id
			}
			opts = append(opts, opt)
		}
		*g.out = opts
	}
	return out, nil
}
