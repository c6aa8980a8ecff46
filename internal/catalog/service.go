package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/gofrs/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/bhavik262/pizza-delivery/internal/apperr"
)

const pizzaCacheSize = 256

var ErrInvalidPizza = apperr.New(apperr.Validation, "invalid pizza")

type Service interface {
	ListPizzas(ctx context.Context, f ListFilter) ([]Pizza, int, error)
	GetPizza(ctx context.Context, id uuid.UUID) (*Pizza, error)
	CreatePizza(ctx context.Context, p *Pizza) (*Pizza, error)
	UpdatePizza(ctx context.Context, p *Pizza) (*Pizza, error)
	DeletePizza(ctx context.Context, id uuid.UUID) error
	CountPizzas(ctx context.Context) (int, error)
	GetCustomizations(ctx context.Context) (*Customizations, error)
	UpdateCustomizations(ctx context.Context, c *Customizations) (*Customizations, error)
}

type service struct {
	repo   Repository
	pizzas *lru.Cache[uuid.UUID, Pizza]

	// customizations holds the loaded singleton; nil means "not loaded".
	customizations atomic.Pointer[Customizations]
	loadGroup      singleflight.Group
}

func NewService(repo Repository) Service {
	cache, err := lru.New[uuid.UUID, Pizza](pizzaCacheSize)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &service{repo: repo, pizzas: cache}
}

func (s *service) ListPizzas(ctx context.Context, f ListFilter) ([]Pizza, int, error) {
	pizzas, total, err := s.repo.ListPizzas(ctx, f)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list pizzas")
		return nil, 0, fmt.Errorf("service: failed to list pizzas: %w", err)
	}
	return pizzas, total, nil
}

func (s *service) GetPizza(ctx context.Context, id uuid.UUID) (*Pizza, error) {
	if p, ok := s.pizzas.Get(id); ok {
		return &p, nil
	}

	p, err := s.repo.GetPizza(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPizzaNotFound) {
			return nil, ErrPizzaNotFound
		}
		log.Error().Err(err).Stringer("pizza_id", id).Msg("service: failed to get pizza")
		return nil, fmt.Errorf("service: failed to get pizza %s: %w", id, err)
	}

	s.pizzas.Add(id, *p)
	return p, nil
}

func (s *service) CreatePizza(ctx context.Context, p *Pizza) (*Pizza, error) {
	if err := validatePizza(p); err != nil {
		return nil, err
	}
	if err := s.repo.CreatePizza(ctx, p); err != nil {
		log.Error().Err(err).Str("name", p.Name).Msg("service: failed to create pizza")
		return nil, fmt.Errorf("service: failed to create pizza: %w", err)
	}

	log.Info().Stringer("pizza_id", p.ID).Str("name", p.Name).Msg("service: pizza created")
	return p, nil
}

func (s *service) UpdatePizza(ctx context.Context, p *Pizza) (*Pizza, error) {
	if err := validatePizza(p); err != nil {
		return nil, err
	}
	err := s.repo.UpdatePizza(ctx, p)
	s.pizzas.Remove(p.ID)
	if err != nil {
		if errors.Is(err, ErrPizzaNotFound) {
			return nil, ErrPizzaNotFound
		}
		log.Error().Err(err).Stringer("pizza_id", p.ID).Msg("service: failed to update pizza")
		return nil, fmt.Errorf("service: failed to update pizza %s: %w", p.ID, err)
	}

	return s.GetPizza(ctx, p.ID)
}

// DeletePizza hides the pizza from ordering; existing orders keep their reference.
func (s *service) DeletePizza(ctx context.Context, id uuid.UUID) error {
	err := s.repo.SetAvailability(ctx, id, false)
	s.pizzas.Remove(id)
	if err != nil {
		if errors.Is(err, ErrPizzaNotFound) {
			return ErrPizzaNotFound
		}
		log.Error().Err(err).Stringer("pizza_id", id).Msg("service: failed to delete pizza")
		return fmt.Errorf("service: failed to delete pizza %s: %w", id, err)
	}

	log.Info().Stringer("pizza_id", id).Msg("service: pizza marked unavailable")
	return nil
}

func (s *service) CountPizzas(ctx context.Context) (int, error) {
	n, err := s.repo.CountPizzas(ctx)
	if err != nil {
		return 0, fmt.Errorf("service: failed to count pizzas: %w", err)
	}
	return n, nil
}

func (s *service) GetCustomizations(ctx context.Context) (*Customizations, error) {
	if c := s.customizations.Load(); c != nil {
		return c, nil
	}

	v, err, _ := s.loadGroup.Do("customizations", func() (any, error) {
		c, err := s.repo.GetCustomizations(ctx)
		if err != nil {
			return nil, err
		}
		s.customizations.Store(c)
		return c, nil
	})
	if err != nil {
		if errors.Is(err, ErrCustomizationsNotFound) {
			return nil, ErrCustomizationsNotFound
		}
		log.Error().Err(err).Msg("service: failed to load customizations")
		return nil, fmt.Errorf("service: failed to load customizations: %w", err)
	}

	return v.(*Customizations), nil
}

func (s *service) UpdateCustomizations(ctx context.Context, c *Customizations) (*Customizations, error) {
	if err := validateCustomizations(c); err != nil {
		return nil, err
	}
	if err := s.repo.PutCustomizations(ctx, c); err != nil {
		log.Error().Err(err).Msg("service: failed to save customizations")
		return nil, fmt.Errorf("service: failed to save customizations: %w", err)
	}

	s.customizations.Store(c)
	log.Info().Msg("service: customization catalog updated")
	return c, nil
}

func validatePizza(p *Pizza) error {
	var fields []apperr.FieldError
	if strings.TrimSpace(p.Name) == "" {
		fields = append(fields, apperr.FieldError{Field: "name", Message: "name is required"})
	}
	if !p.Category.Valid() {
		fields = append(fields, apperr.FieldError{Field: "category", Message: "unknown category"})
	}
	if p.BasePrice < 0 {
		fields = append(fields, apperr.FieldError{Field: "basePrice", Message: "must not be negative"})
	}
	if len(p.Sizes) == 0 {
		fields = append(fields, apperr.FieldError{Field: "sizes", Message: "at least one size is required"})
	}
	seen := make(map[Size]bool, len(p.Sizes))
	for _, sz := range p.Sizes {
		if sz.Multiplier <= 0 {
			fields = append(fields, apperr.FieldError{Field: "sizes", Message: fmt.Sprintf("multiplier for %s must be positive", sz.Size)})
		}
		if seen[sz.Size] {
			fields = append(fields, apperr.FieldError{Field: "sizes", Message: fmt.Sprintf("duplicate size %s", sz.Size)})
		}
		seen[sz.Size] = true
	}
	if len(fields) > 0 {
		return apperr.Invalid(ErrInvalidPizza.Message, fields...)
	}
	return nil
}

func validateCustomizations(c *Customizations) error {
	var fields []apperr.FieldError
	for _, g := range []Group{GroupBases, GroupSauces, GroupCheeses, GroupVegetables, GroupMeats} {
		names := make(map[string]bool)
		for _, o := range c.Group(g) {
			if strings.TrimSpace(o.Name) == "" {
				fields = append(fields, apperr.FieldError{Field: string(g), Message: "option name is required"})
			}
			if names[o.Name] {
				fields = append(fields, apperr.FieldError{Field: string(g), Message: fmt.Sprintf("duplicate option %q", o.Name)})
			}
			names[o.Name] = true
			if o.Price < 0 {
				fields = append(fields, apperr.FieldError{Field: string(g), Message: fmt.Sprintf("price of %q must not be negative", o.Name)})
			}
			if o.Usage < 0 {
				fields = append(fields, apperr.FieldError{Field: string(g), Message: fmt.Sprintf("usage of %q must not be negative", o.Name)})
			}
		}
	}
	if len(fields) > 0 {
		return apperr.Invalid("invalid customization options", fields...)
	}
	return nil
}
