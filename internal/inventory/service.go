package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bhavik262/pizza-delivery/internal/apperr"
)

// Alerter delivers low-stock notifications; implementations must not block.
type Alerter interface {
	SendLowStockAlert(ctx context.Context, items []Item)
}

type Broadcaster interface {
	ToAdmins(event string, payload any)
}

type Service interface {
	CreateItem(ctx context.Context, item *Item) (*Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*Details, error)
	ListItems(ctx context.Context, f ListFilter) ([]Details, int, error)
	UpdateItem(ctx context.Context, item *Item) (*Item, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
	AdjustStock(ctx context.Context, id uuid.UUID, adj Adjustment) (*Details, error)
	ConsumeForOrder(ctx context.Context, orderID uuid.UUID, reason string, usages []Usage) error
	ScanLowStock(ctx context.Context) (int, error)
	LowStockReport(ctx context.Context) ([]Details, error)
	CountLowStock(ctx context.Context) (int, error)
	CountItems(ctx context.Context) (int, error)
}

type service struct {
	repo        Repository
	alerter     Alerter
	broadcaster Broadcaster
	now         func() time.Time
}

type Option func(*service)

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(repo Repository, alerter Alerter, broadcaster Broadcaster, opts ...Option) Service {
	s := &service{
		repo:        repo,
		alerter:     alerter,
		broadcaster: broadcaster,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateItem(item *Item) error {
	var fields []apperr.FieldError
	if strings.TrimSpace(item.Name) == "" {
		fields = append(fields, apperr.FieldError{Field: "name", Message: "name is required"})
	}
	if !item.Category.Valid() {
		fields = append(fields, apperr.FieldError{Field: "category", Message: "unknown category"})
	}
	if strings.TrimSpace(item.Unit) == "" {
		fields = append(fields, apperr.FieldError{Field: "unit", Message: "unit is required"})
	}
	if item.MinStockLevel < 0 {
		fields = append(fields, apperr.FieldError{Field: "minStockLevel", Message: "must not be negative"})
	}
	if item.MaxStockLevel <= item.MinStockLevel {
		fields = append(fields, apperr.FieldError{Field: "maxStockLevel", Message: ErrInvalidLevels.Message})
	}
	if item.CurrentStock < 0 {
		fields = append(fields, apperr.FieldError{Field: "currentStock", Message: "must not be negative"})
	}
	if len(fields) > 0 {
		return apperr.Invalid("invalid inventory item", fields...)
	}
	return nil
}

func (s *service) CreateItem(ctx context.Context, item *Item) (*Item, error) {
	if err := validateItem(item); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, item); err != nil {
		if errors.Is(err, ErrNameExists) {
			return nil, ErrNameExists
		}
		log.Error().Err(err).Str("name", item.Name).Msg("service: failed to create inventory item")
		return nil, fmt.Errorf("service: failed to create inventory item: %w", err)
	}

	log.Info().Stringer("item_id", item.ID).Str("name", item.Name).Msg("service: inventory item created")
	return item, nil
}

func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*Details, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("item_id", id).Msg("service: failed to get inventory item")
		return nil, fmt.Errorf("service: failed to get inventory item %s: %w", id, err)
	}

	now := s.now()
	history, err := s.repo.History(ctx, id, windowStart(now))
	if err != nil {
		log.Error().Err(err).Stringer("item_id", id).Msg("service: failed to load stock history")
		return nil, fmt.Errorf("service: failed to load stock history for %s: %w", id, err)
	}
	item.History = history

	d := item.Details(now)
	return &d, nil
}

func (s *service) ListItems(ctx context.Context, f ListFilter) ([]Details, int, error) {
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list inventory items")
		return nil, 0, fmt.Errorf("service: failed to list inventory items: %w", err)
	}

	out, err := s.withAnalytics(ctx, items)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// withAnalytics attaches trailing-window consumption analytics to items
// loaded without their history.
func (s *service) withAnalytics(ctx context.Context, items []Item) ([]Details, error) {
	now := s.now()
	ids := make([]uuid.UUID, 0, len(items))
	for i := range items {
		ids = append(ids, items[i].ID)
	}
	consumed, err := s.repo.ConsumedSince(ctx, ids, windowStart(now))
	if err != nil {
		log.Error().Err(err).Int("items", len(ids)).Msg("service: failed to load consumption totals")
		return nil, fmt.Errorf("service: failed to load consumption totals: %w", err)
	}

	out := make([]Details, 0, len(items))
	for i := range items {
		out = append(out, items[i].DetailsWithConsumption(consumed[items[i].ID], now))
	}
	return out, nil
}

func (s *service) UpdateItem(ctx context.Context, item *Item) (*Item, error) {
	if err := validateItem(item); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, item); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNameExists) {
			return nil, err
		}
		log.Error().Err(err).Stringer("item_id", item.ID).Msg("service: failed to update inventory item")
		return nil, fmt.Errorf("service: failed to update inventory item %s: %w", item.ID, err)
	}
	return s.repo.GetByID(ctx, item.ID)
}

func (s *service) DeleteItem(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Stringer("item_id", id).Msg("service: failed to delete inventory item")
		return fmt.Errorf("service: failed to delete inventory item %s: %w", id, err)
	}
	log.Info().Stringer("item_id", id).Msg("service: inventory item deactivated")
	return nil
}

// AdjustStock applies one stock movement atomically. When the movement takes
// the item to or below its minimum and no alert is outstanding, the alert
// flag is set in the same write and the alert is dispatched after commit.
func (s *service) AdjustStock(ctx context.Context, id uuid.UUID, adj Adjustment) (*Details, error) {
	var shouldAlert bool

	item, err := s.repo.Mutate(ctx, id, func(it *Item) (*Movement, error) {
		m, err := Apply(it, adj, s.now())
		if err != nil {
			return nil, err
		}
		shouldAlert = it.Status().NeedsAlert() && !it.LowStockAlertSent
		if shouldAlert {
			it.LowStockAlertSent = true
		}
		return &m, nil
	})
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.NotFound, apperr.Validation:
			log.Warn().Err(err).Stringer("item_id", id).Str("action", string(adj.Action)).Msg("service: stock adjustment rejected")
			return nil, err
		}
		log.Error().Err(err).Stringer("item_id", id).Msg("service: failed to adjust stock")
		return nil, fmt.Errorf("service: failed to adjust stock for %s: %w", id, err)
	}

	last := item.History[len(item.History)-1]
	log.Info().
		Stringer("item_id", id).
		Str("action", string(adj.Action)).
		Float64("previous_stock", last.PreviousStock).
		Float64("new_stock", last.NewStock).
		Msg("service: stock adjusted")

	if shouldAlert {
		s.raiseAlert(ctx, []Item{*item})
	}

	now := s.now()
	history, err := s.repo.History(ctx, id, windowStart(now))
	if err != nil {
		log.Error().Err(err).Stringer("item_id", id).Msg("service: failed to load stock history after adjustment")
		return nil, fmt.Errorf("service: failed to load stock history for %s: %w", id, err)
	}
	item.History = history

	d := item.Details(now)
	return &d, nil
}

// ConsumeForOrder decrements stock for every usage. Usages of the same item
// are merged; a failure on one item does not stop the others.
func (s *service) ConsumeForOrder(ctx context.Context, orderID uuid.UUID, reason string, usages []Usage) error {
	totals := make(map[uuid.UUID]float64)
	var order []uuid.UUID
	for _, u := range usages {
		if u.Quantity <= 0 {
			continue
		}
		if _, ok := totals[u.ItemID]; !ok {
			order = append(order, u.ItemID)
		}
		totals[u.ItemID] += u.Quantity
	}

	var errs []error
	for _, itemID := range order {
		oid := orderID
		_, err := s.AdjustStock(ctx, itemID, Adjustment{
			Action:   ActionConsumption,
			Quantity: totals[itemID],
			Reason:   reason,
			OrderID:  &oid,
		})
		if err != nil {
			log.Error().Err(err).Stringer("order_id", orderID).Stringer("item_id", itemID).Msg("service: failed to consume stock for order")
			errs = append(errs, fmt.Errorf("item %s: %w", itemID, err))
		}
	}
	return errors.Join(errs...)
}

// ScanLowStock alerts on every low item that has not been alerted yet.
func (s *service) ScanLowStock(ctx context.Context) (int, error) {
	items, err := s.repo.ListLowStock(ctx, true)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to scan for low stock")
		return 0, fmt.Errorf("service: failed to scan for low stock: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	if err := s.repo.MarkAlertSent(ctx, ids); err != nil {
		log.Error().Err(err).Msg("service: failed to mark low stock alerts")
		return 0, fmt.Errorf("service: failed to mark low stock alerts: %w", err)
	}

	s.raiseAlert(ctx, items)
	log.Info().Int("items", len(items)).Msg("service: low stock alert raised")
	return len(items), nil
}

func (s *service) LowStockReport(ctx context.Context) ([]Details, error) {
	items, err := s.repo.ListLowStock(ctx, false)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to build low stock report")
		return nil, fmt.Errorf("service: failed to build low stock report: %w", err)
	}
	return s.withAnalytics(ctx, items)
}

func (s *service) CountLowStock(ctx context.Context) (int, error) {
	items, err := s.repo.ListLowStock(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("service: failed to count low stock items: %w", err)
	}
	return len(items), nil
}

func (s *service) CountItems(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("service: failed to count inventory items: %w", err)
	}
	return n, nil
}

func (s *service) raiseAlert(ctx context.Context, items []Item) {
	if s.alerter != nil {
		s.alerter.SendLowStockAlert(ctx, items)
	}
	if s.broadcaster != nil {
		payload := make([]map[string]any, 0, len(items))
		for i := range items {
			payload = append(payload, map[string]any{
				"itemId":       items[i].ID,
				"name":         items[i].Name,
				"currentStock": items[i].CurrentStock,
				"status":       items[i].Status(),
			})
		}
		s.broadcaster.ToAdmins("lowStock", payload)
	}
}

// RunScanner calls ScanLowStock every interval until ctx is done.
func RunScanner(ctx context.Context, svc Service, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := svc.ScanLowStock(ctx); err != nil {
				log.Warn().Err(err).Msg("inventory: periodic low stock scan failed")
			}
		}
	}
}
