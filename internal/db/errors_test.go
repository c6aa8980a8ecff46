package db_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/bhavik262/pizza-delivery/internal/config"
	"github.com/bhavik262/pizza-delivery/internal/db"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "orders_order_number_key"}

	assert.True(t, db.IsUniqueViolation(dup, ""))
	assert.True(t, db.IsUniqueViolation(fmt.Errorf("insert: %w", dup), "orders_order_number_key"))
	assert.False(t, db.IsUniqueViolation(dup, "users_email_key"))
	assert.False(t, db.IsUniqueViolation(errors.New("boom"), ""))
}

func TestIsInvalidInput(t *testing.T) {
	assert.True(t, db.IsInvalidInput(&pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation}))
	assert.True(t, db.IsInvalidInput(&pgconn.PgError{Code: pgerrcode.CheckViolation}))
	assert.False(t, db.IsInvalidInput(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
}

func TestConnString(t *testing.T) {
	got := db.ConnString(config.PostgresConfig{
		Host: "localhost", Port: "5432", User: "postgres", Password: "123456", DBName: "pizza", SSLMode: "disable",
	})
	assert.Equal(t, "host=localhost port=5432 user=postgres password=123456 dbname=pizza sslmode=disable", got)
}
