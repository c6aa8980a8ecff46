package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bhavik262/pizza-delivery/internal/apperr"
	"github.com/bhavik262/pizza-delivery/internal/db"
)

var (
	ErrNotFound             = apperr.New(apperr.NotFound, "order not found")
	ErrDuplicateOrderNumber = apperr.New(apperr.Conflict, "order number already exists")
)

// UpdateFunc mutates a locked order. Appending to StatusHistory records new
// history rows; returning an error leaves the order untouched.
type UpdateFunc func(o *Order) error

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, f ListFilter) ([]Order, int, error)
	List(ctx context.Context, f ListFilter) ([]Order, int, error)
	Stats(ctx context.Context, since time.Time) (*Stats, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{db: pool}
}

const orderColumns = `id, order_number, user_id, items, delivery_address, phone, special_instructions,
	order_status, payment_status, payment_method, payment_details, subtotal, delivery_fee, tax, discount,
	total, estimated_delivery_time, actual_delivery_time, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var items, address, details []byte
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&items,
		&address,
		&o.Phone,
		&o.SpecialInstructions,
		&o.OrderStatus,
		&o.PaymentStatus,
		&o.PaymentMethod,
		&details,
		&o.Pricing.Subtotal,
		&o.Pricing.DeliveryFee,
		&o.Pricing.Tax,
		&o.Pricing.Discount,
		&o.Pricing.Total,
		&o.EstimatedDeliveryTime,
		&o.ActualDeliveryTime,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("repository: failed to decode order items: %w", err)
	}
	if err := json.Unmarshal(address, &o.DeliveryAddress); err != nil {
		return nil, fmt.Errorf("repository: failed to decode delivery address: %w", err)
	}
	if err := json.Unmarshal(details, &o.PaymentDetails); err != nil {
		return nil, fmt.Errorf("repository: failed to decode payment details: %w", err)
	}
	return &o, nil
}

func (r *postgresRepository) Create(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate order ID: %w", err)
		}
		o.ID = id
	}

	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("repository: failed to encode order items: %w", err)
	}
	address, err := json.Marshal(o.DeliveryAddress)
	if err != nil {
		return fmt.Errorf("repository: failed to encode delivery address: %w", err)
	}
	details, err := json.Marshal(o.PaymentDetails)
	if err != nil {
		return fmt.Errorf("repository: failed to encode payment details: %w", err)
	}

	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		`,
			o.ID, o.OrderNumber, o.UserID, items, address, o.Phone, o.SpecialInstructions,
			string(o.OrderStatus), string(o.PaymentStatus), string(o.PaymentMethod), details,
			o.Pricing.Subtotal, o.Pricing.DeliveryFee, o.Pricing.Tax, o.Pricing.Discount, o.Pricing.Total,
			o.EstimatedDeliveryTime, o.ActualDeliveryTime, o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			if db.IsUniqueViolation(err, "orders_order_number_key") {
				return ErrDuplicateOrderNumber
			}
			return fmt.Errorf("repository: failed to insert order: %w", err)
		}
		return insertHistory(ctx, tx, o.ID, o.StatusHistory)
	})
}

func insertHistory(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, entries []StatusChange) error {
	for _, h := range entries {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_status_history (order_id, status, actor_id, notes, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, orderID, string(h.Status), h.ActorID, h.Notes, h.Timestamp)
		if err != nil {
			return fmt.Errorf("repository: failed to insert status history for order %s: %w", orderID, err)
		}
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadHistory(ctx context.Context, q querier, orderID uuid.UUID) ([]StatusChange, error) {
	rows, err := q.Query(ctx, `
		SELECT status, actor_id, notes, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query status history for order %s: %w", orderID, err)
	}
	defer rows.Close()

	history := make([]StatusChange, 0)
	for rows.Next() {
		var h StatusChange
		if err := rows.Scan(&h.Status, &h.ActorID, &h.Notes, &h.Timestamp); err != nil {
			return nil, fmt.Errorf("repository: failed to scan status history for order %s: %w", orderID, err)
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating status history for order %s: %w", orderID, err)
	}
	return history, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	if o.StatusHistory, err = loadHistory(ctx, r.db, id); err != nil {
		return nil, err
	}
	return o, nil
}

// Update locks the order row for the duration of fn.
func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*Order, error) {
	var result *Order
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("repository: failed to lock order %s: %w", id, err)
		}
		if o.StatusHistory, err = loadHistory(ctx, tx, id); err != nil {
			return err
		}
		recorded := len(o.StatusHistory)

		if err := fn(o); err != nil {
			return err
		}

		details, err := json.Marshal(o.PaymentDetails)
		if err != nil {
			return fmt.Errorf("repository: failed to encode payment details: %w", err)
		}
		o.UpdatedAt = time.Now().UTC()

		_, err = tx.Exec(ctx, `
			UPDATE orders
			SET order_status = $1, payment_status = $2, payment_details = $3, actual_delivery_time = $4, updated_at = $5
			WHERE id = $6
		`, string(o.OrderStatus), string(o.PaymentStatus), details, o.ActualDeliveryTime, o.UpdatedAt, id)
		if err != nil {
			return fmt.Errorf("repository: failed to update order %s: %w", id, err)
		}

		if len(o.StatusHistory) > recorded {
			if err := insertHistory(ctx, tx, id, o.StatusHistory[recorded:]); err != nil {
				return err
			}
		}

		result = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID, f ListFilter) ([]Order, int, error) {
	return r.list(ctx, &userID, f)
}

func (r *postgresRepository) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	return r.list(ctx, nil, f)
}

func (r *postgresRepository) list(ctx context.Context, userID *uuid.UUID, f ListFilter) ([]Order, int, error) {
	where := `WHERE ($1::uuid IS NULL OR user_id = $1) AND ($2 = '' OR order_status = $2)`
	args := []any{userID, string(f.Status)}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count orders: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders `+where+` ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		append(args, f.Limit, f.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository: failed iterating orders: %w", err)
	}
	return orders, total, nil
}

func (r *postgresRepository) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	stats := &Stats{ByStatus: make(map[Status]int), PopularPizzas: make([]PopularPizza, 0)}

	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(total) FILTER (WHERE payment_status = 'completed'), 0),
			COUNT(*) FILTER (WHERE created_at >= $1),
			COUNT(*) FILTER (WHERE order_status = 'pending')
		FROM orders
	`, since).Scan(&stats.TotalOrders, &stats.TotalRevenue, &stats.TodayOrders, &stats.PendingOrders)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to aggregate orders: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT order_status, COUNT(*) FROM orders GROUP BY order_status`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to group orders by status: %w", err)
	}
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("repository: failed to scan status count: %w", err)
		}
		stats.ByStatus[s] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating status counts: %w", err)
	}

	rows, err = r.db.Query(ctx, `
		SELECT (item->>'pizzaId')::uuid, item->>'name', COUNT(*), SUM((item->>'quantity')::int)
		FROM orders, jsonb_array_elements(items) AS item
		WHERE order_status <> 'cancelled'
		GROUP BY 1, 2
		ORDER BY 4 DESC, 3 DESC
		LIMIT 5
	`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query popular pizzas: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p PopularPizza
		if err := rows.Scan(&p.PizzaID, &p.Name, &p.Orders, &p.Quantity); err != nil {
			return nil, fmt.Errorf("repository: failed to scan popular pizza: %w", err)
		}
		stats.PopularPizzas = append(stats.PopularPizzas, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating popular pizzas: %w", err)
	}
	return stats, nil
}
