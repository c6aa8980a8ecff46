package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bhavik262/pizza-delivery/internal/apperr"
)

var (
	ErrPizzaNotFound          = apperr.New(apperr.NotFound, "pizza not found")
	ErrCustomizationsNotFound = apperr.New(apperr.NotFound, "customization options not configured")
)

type Repository interface {
	CreatePizza(ctx context.Context, p *Pizza) error
	GetPizza(ctx context.Context, id uuid.UUID) (*Pizza, error)
	ListPizzas(ctx context.Context, f ListFilter) ([]Pizza, int, error)
	UpdatePizza(ctx context.Context, p *Pizza) error
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
	CountPizzas(ctx context.Context) (int, error)
	GetCustomizations(ctx context.Context) (*Customizations, error)
	PutCustomizations(ctx context.Context, c *Customizations) error
}

type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

const pizzaColumns = `id, name, description, category, base_price, sizes, ingredients, image_url,
	is_available, rating, preparation_time, created_at, updated_at`

func scanPizza(row pgx.Row) (*Pizza, error) {
	var p Pizza
	var sizes []byte
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Category,
		&p.BasePrice,
		&sizes,
		&p.Ingredients,
		&p.ImageURL,
		&p.IsAvailable,
		&p.Rating,
		&p.PreparationTime,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sizes, &p.Sizes); err != nil {
		return nil, fmt.Errorf("repository: failed to decode sizes for pizza %s: %w", p.ID, err)
	}
	return &p, nil
}

func (r *postgresRepository) CreatePizza(ctx context.Context, p *Pizza) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate pizza ID: %w", err)
		}
		p.ID = id
	}
	sizes, err := json.Marshal(p.Sizes)
	if err != nil {
		return fmt.Errorf("repository: failed to encode sizes: %w", err)
	}
	if p.Ingredients == nil {
		p.Ingredients = []string{}
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO pizzas (id, name, description, category, base_price, sizes, ingredients, image_url,
			is_available, rating, preparation_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	`
	_, err = r.db.Exec(ctx, query,
		p.ID, p.Name, p.Description, string(p.Category), p.BasePrice, sizes, p.Ingredients, p.ImageURL,
		p.IsAvailable, p.Rating, p.PreparationTime, now,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert pizza: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (r *postgresRepository) GetPizza(ctx context.Context, id uuid.UUID) (*Pizza, error) {
	row := r.db.QueryRow(ctx, `SELECT `+pizzaColumns+` FROM pizzas WHERE id = $1`, id)
	p, err := scanPizza(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPizzaNotFound
		}
		return nil, fmt.Errorf("repository: failed to select pizza by id %s: %w", id, err)
	}
	return p, nil
}

func (r *postgresRepository) ListPizzas(ctx context.Context, f ListFilter) ([]Pizza, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		args = append(args, string(f.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Available != nil {
		args = append(args, *f.Available)
		where = append(where, fmt.Sprintf("is_available = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM pizzas`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count pizzas: %w", err)
	}

	order := "created_at DESC"
	switch f.Sort {
	case SortPriceAsc:
		order = "base_price ASC"
	case SortPriceDesc:
		order = "base_price DESC"
	case SortRating:
		order = "rating DESC"
	}

	args = append(args, f.Limit, f.Offset())
	query := fmt.Sprintf(`SELECT %s FROM pizzas%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		pizzaColumns, clause, order, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to query pizzas: %w", err)
	}
	defer rows.Close()

	pizzas := make([]Pizza, 0)
	for rows.Next() {
		p, err := scanPizza(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository: failed to scan pizza: %w", err)
		}
		pizzas = append(pizzas, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository: failed iterating pizzas: %w", err)
	}

	return pizzas, total, nil
}

func (r *postgresRepository) UpdatePizza(ctx context.Context, p *Pizza) error {
	sizes, err := json.Marshal(p.Sizes)
	if err != nil {
		return fmt.Errorf("repository: failed to encode sizes: %w", err)
	}
	if p.Ingredients == nil {
		p.Ingredients = []string{}
	}

	now := time.Now().UTC()
	query := `
		UPDATE pizzas
		SET name = $1, description = $2, category = $3, base_price = $4, sizes = $5, ingredients = $6,
			image_url = $7, is_available = $8, rating = $9, preparation_time = $10, updated_at = $11
		WHERE id = $12
	`
	tag, err := r.db.Exec(ctx, query,
		p.Name, p.Description, string(p.Category), p.BasePrice, sizes, p.Ingredients,
		p.ImageURL, p.IsAvailable, p.Rating, p.PreparationTime, now, p.ID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update pizza %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPizzaNotFound
	}
	p.UpdatedAt = now
	return nil
}

func (r *postgresRepository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE pizzas SET is_available = $1, updated_at = $2 WHERE id = $3`,
		available, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("repository: failed to set availability for pizza %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPizzaNotFound
	}
	return nil
}

func (r *postgresRepository) CountPizzas(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM pizzas`).Scan(&n); err != nil {
		return 0, fmt.Errorf("repository: failed to count pizzas: %w", err)
	}
	return n, nil
}

func (r *postgresRepository) GetCustomizations(ctx context.Context) (*Customizations, error) {
	var (
		data      []byte
		updatedAt time.Time
	)
	err := r.db.QueryRow(ctx, `SELECT data, updated_at FROM customization_catalog WHERE id = 1`).Scan(&data, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomizationsNotFound
		}
		return nil, fmt.Errorf("repository: failed to select customizations: %w", err)
	}

	var c Customizations
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("repository: failed to decode customizations: %w", err)
	}
	c.UpdatedAt = updatedAt
	return &c, nil
}

func (r *postgresRepository) PutCustomizations(ctx context.Context, c *Customizations) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("repository: failed to encode customizations: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO customization_catalog (id, data, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.Exec(ctx, query, data, now); err != nil {
		return fmt.Errorf("repository: failed to upsert customizations: %w", err)
	}
	c.UpdatedAt = now
	return nil
}
