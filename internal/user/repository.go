package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bhavik262/pizza-delivery/internal/apperr"
	"github.com/bhavik262/pizza-delivery/internal/db"
)

var (
	ErrNotFound    = apperr.New(apperr.NotFound, "user not found")
	ErrEmailExists = apperr.New(apperr.Conflict, "user with this email already exists")
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByVerificationToken(ctx context.Context, token string) (*User, error)
	GetByResetToken(ctx context.Context, token string, now time.Time) (*User, error)
	Update(ctx context.Context, u *User) error
}

type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

const userColumns = `id, name, email, password_hash, phone, role, address, is_verified, is_active,
	COALESCE(verification_token, ''), COALESCE(reset_token, ''), reset_token_expires, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var address []byte
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Phone,
		&u.Role,
		&address,
		&u.IsVerified,
		&u.IsActive,
		&u.VerificationToken,
		&u.ResetToken,
		&u.ResetTokenExpires,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to scan user: %w", err)
	}
	if err := json.Unmarshal(address, &u.Address); err != nil {
		return nil, fmt.Errorf("repository: failed to decode user address: %w", err)
	}
	return &u, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *postgresRepository) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate user ID: %w", err)
		}
		u.ID = id
	}
	address, err := json.Marshal(u.Address)
	if err != nil {
		return fmt.Errorf("repository: failed to encode user address: %w", err)
	}

	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err = r.db.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, phone, role, address, is_verified, is_active,
			verification_token, reset_token, reset_token_expires, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Phone, string(u.Role), address, u.IsVerified, u.IsActive,
		nullable(u.VerificationToken), nullable(u.ResetToken), u.ResetTokenExpires, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "users_email_key") {
			return ErrEmailExists
		}
		return fmt.Errorf("repository: failed to insert user: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *postgresRepository) GetByVerificationToken(ctx context.Context, token string) (*User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE verification_token = $1`, token))
}

func (r *postgresRepository) GetByResetToken(ctx context.Context, token string, now time.Time) (*User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE reset_token = $1 AND reset_token_expires > $2`, token, now))
}

func (r *postgresRepository) Update(ctx context.Context, u *User) error {
	address, err := json.Marshal(u.Address)
	if err != nil {
		return fmt.Errorf("repository: failed to encode user address: %w", err)
	}
	u.UpdatedAt = time.Now().UTC()

	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET name = $1, email = $2, password_hash = $3, phone = $4, role = $5, address = $6,
			is_verified = $7, is_active = $8, verification_token = $9, reset_token = $10,
			reset_token_expires = $11, updated_at = $12
		WHERE id = $13
	`, u.Name, u.Email, u.PasswordHash, u.Phone, string(u.Role), address, u.IsVerified, u.IsActive,
		nullable(u.VerificationToken), nullable(u.ResetToken), u.ResetTokenExpires, u.UpdatedAt, u.ID)
	if err != nil {
		if db.IsUniqueViolation(err, "users_email_key") {
			return ErrEmailExists
		}
		return fmt.Errorf("repository: failed to update user %s: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
