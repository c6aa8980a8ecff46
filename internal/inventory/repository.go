package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bhavik262/pizza-delivery/internal/apperr"
	"github.com/bhavik262/pizza-delivery/internal/db"
)

var (
	ErrNotFound      = apperr.New(apperr.NotFound, "inventory item not found")
	ErrNameExists    = apperr.New(apperr.Conflict, "inventory item with this name already exists")
	ErrInvalidLevels = apperr.New(apperr.Validation, "maxStockLevel must be greater than minStockLevel")
)

// MutateFunc changes a locked item and returns the movement to append, if any.
type MutateFunc func(item *Item) (*Movement, error)

type Repository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	List(ctx context.Context, f ListFilter) ([]Item, int, error)
	Update(ctx context.Context, item *Item) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	// Mutate runs fn against the item under a row lock and persists the
	// result together with the returned movement in one transaction.
	Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*Item, error)
	History(ctx context.Context, id uuid.UUID, since time.Time) ([]Movement, error)
	ListLowStock(ctx context.Context, onlyUnalerted bool) ([]Item, error)
	MarkAlertSent(ctx context.Context, ids []uuid.UUID) error
	// ConsumedSince totals consumption movements per item at or after since.
	// Items without consumption are absent from the map.
	ConsumedSince(ctx context.Context, ids []uuid.UUID, since time.Time) (map[uuid.UUID]float64, error)
	Count(ctx context.Context) (int, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{db: pool}
}

const itemColumns = `id, name, category, current_stock, min_stock_level, max_stock_level, unit, price_per_unit,
	supplier_name, supplier_contact, low_stock_alert_sent, last_restocked, is_active, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(
		&it.ID,
		&it.Name,
		&it.Category,
		&it.CurrentStock,
		&it.MinStockLevel,
		&it.MaxStockLevel,
		&it.Unit,
		&it.PricePerUnit,
		&it.Supplier.Name,
		&it.Supplier.Contact,
		&it.LowStockAlertSent,
		&it.LastRestocked,
		&it.IsActive,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func translate(err error, op string) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case db.IsUniqueViolation(err, "inventory_items_name_key"):
		return ErrNameExists
	case db.IsInvalidInput(err):
		return ErrInvalidLevels
	}
	return fmt.Errorf("repository: failed to %s: %w", op, err)
}

func (r *postgresRepository) Create(ctx context.Context, item *Item) error {
	if item.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate inventory item ID: %w", err)
		}
		item.ID = id
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO inventory_items (id, name, category, current_stock, min_stock_level, max_stock_level, unit,
			price_per_unit, supplier_name, supplier_contact, low_stock_alert_sent, last_restocked, is_active,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE, $13, $13)
	`
	_, err := r.db.Exec(ctx, query,
		item.ID, item.Name, string(item.Category), item.CurrentStock, item.MinStockLevel, item.MaxStockLevel,
		item.Unit, item.PricePerUnit, item.Supplier.Name, item.Supplier.Contact, item.LowStockAlertSent,
		item.LastRestocked, now,
	)
	if err != nil {
		return translate(err, "insert inventory item")
	}
	item.IsActive = true
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	it, err := scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1 AND is_active`, id))
	if err != nil {
		return nil, translate(err, "select inventory item")
	}
	return it, nil
}

func (r *postgresRepository) List(ctx context.Context, f ListFilter) ([]Item, int, error) {
	where := []string{"is_active"}
	var args []any
	if f.Category != "" {
		args = append(args, string(f.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	switch f.Status {
	case StatusCritical:
		where = append(where, "current_stock <= min_stock_level / 2")
	case StatusLow:
		where = append(where, "current_stock > min_stock_level / 2 AND current_stock <= min_stock_level")
	case StatusOverstocked:
		where = append(where, "current_stock > min_stock_level AND current_stock >= max_stock_level")
	case StatusNormal:
		where = append(where, "current_stock > min_stock_level AND current_stock < max_stock_level")
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count inventory items: %w", err)
	}

	args = append(args, f.Limit, (max(f.Page, 1)-1)*f.Limit)
	query := fmt.Sprintf(`SELECT %s FROM inventory_items%s ORDER BY name LIMIT $%d OFFSET $%d`,
		itemColumns, clause, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to query inventory items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository: failed to scan inventory item: %w", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository: failed iterating inventory items: %w", err)
	}
	return items, total, nil
}

// Update writes descriptive fields and thresholds; stock only moves through Mutate.
func (r *postgresRepository) Update(ctx context.Context, item *Item) error {
	now := time.Now().UTC()
	query := `
		UPDATE inventory_items
		SET name = $1, category = $2, min_stock_level = $3, max_stock_level = $4, unit = $5,
			price_per_unit = $6, supplier_name = $7, supplier_contact = $8, updated_at = $9
		WHERE id = $10 AND is_active
	`
	tag, err := r.db.Exec(ctx, query,
		item.Name, string(item.Category), item.MinStockLevel, item.MaxStockLevel, item.Unit,
		item.PricePerUnit, item.Supplier.Name, item.Supplier.Contact, now, item.ID,
	)
	if err != nil {
		return translate(err, "update inventory item")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	item.UpdatedAt = now
	return nil
}

func (r *postgresRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE inventory_items SET is_active = FALSE, updated_at = $1 WHERE id = $2 AND is_active`,
		time.Now().UTC(), id)
	if err != nil {
		return translate(err, "deactivate inventory item")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*Item, error) {
	var result *Item
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		item, err := scanItem(tx.QueryRow(ctx,
			`SELECT `+itemColumns+` FROM inventory_items WHERE id = $1 AND is_active FOR UPDATE`, id))
		if err != nil {
			return translate(err, "lock inventory item")
		}

		movement, err := fn(item)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE inventory_items
			SET current_stock = $1, low_stock_alert_sent = $2, last_restocked = $3, updated_at = $4
			WHERE id = $5
		`, item.CurrentStock, item.LowStockAlertSent, item.LastRestocked, item.UpdatedAt, item.ID)
		if err != nil {
			return translate(err, "update stock")
		}

		if movement != nil {
			err = tx.QueryRow(ctx, `
				INSERT INTO inventory_movements (item_id, action, quantity, previous_stock, new_stock, reason,
					actor_id, order_id, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				RETURNING id
			`, item.ID, string(movement.Action), movement.Quantity, movement.PreviousStock, movement.NewStock,
				movement.Reason, movement.ActorID, movement.OrderID, movement.CreatedAt,
			).Scan(&movement.ID)
			if err != nil {
				return fmt.Errorf("repository: failed to insert stock movement: %w", err)
			}
			if n := len(item.History); n > 0 {
				item.History[n-1].ID = movement.ID
			}
		}

		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *postgresRepository) History(ctx context.Context, id uuid.UUID, since time.Time) ([]Movement, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, item_id, action, quantity, previous_stock, new_stock, reason, actor_id, order_id, created_at
		FROM inventory_movements
		WHERE item_id = $1 AND created_at >= $2
		ORDER BY created_at ASC, id ASC
	`, id, since)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query stock history for %s: %w", id, err)
	}
	defer rows.Close()

	history := make([]Movement, 0)
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Action, &m.Quantity, &m.PreviousStock, &m.NewStock,
			&m.Reason, &m.ActorID, &m.OrderID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan stock movement: %w", err)
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating stock history: %w", err)
	}
	return history, nil
}

func (r *postgresRepository) ListLowStock(ctx context.Context, onlyUnalerted bool) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE is_active AND current_stock <= min_stock_level`
	if onlyUnalerted {
		query += ` AND NOT low_stock_alert_sent`
	}
	query += ` ORDER BY current_stock / NULLIF(min_stock_level, 0) ASC NULLS FIRST, name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query low stock items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan low stock item: %w", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating low stock items: %w", err)
	}
	return items, nil
}

func (r *postgresRepository) MarkAlertSent(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `UPDATE inventory_items SET low_stock_alert_sent = TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to mark low stock alerts: %w", err)
	}
	return nil
}

func (r *postgresRepository) ConsumedSince(ctx context.Context, ids []uuid.UUID, since time.Time) (map[uuid.UUID]float64, error) {
	totals := make(map[uuid.UUID]float64, len(ids))
	if len(ids) == 0 {
		return totals, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT item_id, SUM(quantity) FILTER (WHERE action = 'consumption' AND created_at >= $2)
		FROM inventory_movements
		WHERE item_id = ANY($1)
		GROUP BY item_id
	`, ids, since)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query consumption totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var total *float64
		if err := rows.Scan(&id, &total); err != nil {
			return nil, fmt.Errorf("repository: failed to scan consumption total: %w", err)
		}
		if total != nil {
			totals[id] = *total
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating consumption totals: %w", err)
	}
	return totals, nil
}

func (r *postgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items WHERE is_active`).Scan(&n); err != nil {
		return 0, fmt.Errorf("repository: failed to count inventory items: %w", err)
	}
	return n, nil
}
