package catalog

import (
	"time"

	"github.com/gofrs/uuid"
)

type Category string

const (
	CategoryVeg       Category = "veg"
	CategoryNonVeg    Category = "non-veg"
	CategoryVegan     Category = "vegan"
	CategorySpecialty Category = "specialty"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryVeg, CategoryNonVeg, CategoryVegan, CategorySpecialty:
		return true
	}
	return false
}

type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// SizeOption pairs a size with the multiplier applied to the base price.
type SizeOption struct {
	Size       Size    `json:"size" yaml:"size"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
}

type Pizza struct {
	ID              uuid.UUID    `json:"id"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	Category        Category     `json:"category"`
	BasePrice       float64      `json:"basePrice"`
	Sizes           []SizeOption `json:"sizes"`
	Ingredients     []string     `json:"ingredients"`
	ImageURL        string       `json:"imageUrl"`
	IsAvailable     bool         `json:"isAvailable"`
	Rating          float64      `json:"rating"`
	PreparationTime int          `json:"preparationTime"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// Multiplier returns the price multiplier for size, if the pizza offers it.
func (p *Pizza) Multiplier(size Size) (float64, bool) {
	for _, s := range p.Sizes {
		if s.Size == size {
			return s.Multiplier, true
		}
	}
	return 0, false
}

// Option is one entry of a customization list. InventoryItemID, when set,
// names the stock item consumed by Usage units per pizza.
type Option struct {
	Name            string     `json:"name"`
	Price           float64    `json:"price"`
	IsAvailable     bool       `json:"isAvailable"`
	InventoryItemID *uuid.UUID `json:"inventoryItemId,omitempty"`
	Usage           float64    `json:"usage,omitempty"`
}

type Group string

const (
	GroupBases      Group = "bases"
	GroupSauces     Group = "sauces"
	GroupCheeses    Group = "cheeses"
	GroupVegetables Group = "vegetables"
	GroupMeats      Group = "meats"
)

// Customizations is the process-wide singleton of customization options.
type Customizations struct {
	Bases      []Option  `json:"bases"`
	Sauces     []Option  `json:"sauces"`
	Cheeses    []Option  `json:"cheeses"`
	Vegetables []Option  `json:"vegetables"`
	Meats      []Option  `json:"meats"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (c *Customizations) Group(g Group) []Option {
	switch g {
	case GroupBases:
		return c.Bases
	case GroupSauces:
		return c.Sauces
	case GroupCheeses:
		return c.Cheeses
	case GroupVegetables:
		return c.Vegetables
	case GroupMeats:
		return c.Meats
	}
	return nil
}

// Find returns the option called name in group g.
func (c *Customizations) Find(g Group, name string) (Option, bool) {
	for _, o := range c.Group(g) {
		if o.Name == name {
			return o, true
		}
	}
	return Option{}, false
}

type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
	SortRating    SortOrder = "rating"
)

type ListFilter struct {
	Category  Category
	Search    string
	Available *bool
	Sort      SortOrder
	Page      int
	Limit     int
}

func (f ListFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}
