package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	JWT       JWTConfig
	SMTP      SMTPConfig
	Razorpay  RazorpayConfig
	Admin     AdminConfig
	Pricing   PricingConfig
	RateLimit RateLimitConfig
	Inventory InventoryConfig
}

type AppConfig struct {
	Port        string
	Env         string
	FrontendURL string
	SeedFile    string
	// TrustProxy honours X-Forwarded-For / X-Real-IP. Enable only behind a
	// reverse proxy that overwrites those headers.
	TrustProxy bool
}

// Production reports whether error details must be hidden from clients.
func (a AppConfig) Production() bool {
	return a.Env == "production"
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MigrationsPath  string
}

type JWTConfig struct {
	Secret    string
	ExpiresIn time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Enabled is false when no SMTP host is configured; mail is then only logged.
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

type RazorpayConfig struct {
	KeyID     string
	KeySecret string
}

type AdminConfig struct {
	Name     string
	Email    string
	Password string
}

type PricingConfig struct {
	TaxRate     float64
	DeliveryFee float64
	Currency    string
}

type RateLimitConfig struct {
	PasswordResetAttempts int
	PasswordResetWindow   time.Duration
	SweepInterval         time.Duration
}

type InventoryConfig struct {
	LowStockScanInterval time.Duration
}

// Load reads an optional .env file at path and then the process environment.
func Load(path string) (*Config, error) {
	if path != "" {
		err := godotenv.Load(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &Config{}
	var err error

	cfg.App.Port = getEnv("APP_PORT", "5000")
	cfg.App.Env = getEnv("APP_ENV", "development")
	cfg.App.FrontendURL = getEnv("FRONTEND_URL", "http://localhost:3000")
	cfg.App.SeedFile = getEnv("SEED_FILE", "seed/catalog.yaml")
	if cfg.App.TrustProxy, err = getBool("TRUST_PROXY", false); err != nil {
		return nil, err
	}

	if cfg.Postgres.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	cfg.Postgres.Port = getEnv("DB_PORT", "5432")
	if cfg.Postgres.User, err = requireEnv("DB_USER"); err != nil {
		return nil, err
	}
	if cfg.Postgres.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Postgres.DBName, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}
	cfg.Postgres.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Postgres.MigrationsPath = getEnv("DB_MIGRATIONS_PATH", "migrations")
	maxConns, err := getInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	minConns, err := getInt("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, err
	}
	cfg.Postgres.MaxConns = int32(maxConns)
	cfg.Postgres.MinConns = int32(minConns)
	if cfg.Postgres.MaxConnLifetime, err = getDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute); err != nil {
		return nil, err
	}

	if cfg.JWT.Secret, err = requireEnv("JWT_SECRET"); err != nil {
		return nil, err
	}
	if cfg.JWT.ExpiresIn, err = getDuration("JWT_EXPIRES_IN", 7*24*time.Hour); err != nil {
		return nil, err
	}

	cfg.SMTP.Host = os.Getenv("SMTP_HOST")
	if cfg.SMTP.Port, err = getInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	cfg.SMTP.User = os.Getenv("SMTP_USER")
	cfg.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	cfg.SMTP.From = getEnv("SMTP_FROM", "Pizza Delivery <no-reply@pizza.local>")

	cfg.Razorpay.KeyID = os.Getenv("RAZORPAY_KEY_ID")
	cfg.Razorpay.KeySecret = os.Getenv("RAZORPAY_KEY_SECRET")

	cfg.Admin.Name = getEnv("ADMIN_NAME", "Admin")
	cfg.Admin.Email = getEnv("ADMIN_EMAIL", "admin@pizza.local")
	cfg.Admin.Password = os.Getenv("ADMIN_PASSWORD")

	if cfg.Pricing.TaxRate, err = getFloat("TAX_RATE", 0.05); err != nil {
		return nil, err
	}
	if cfg.Pricing.DeliveryFee, err = getFloat("DELIVERY_FEE", 50); err != nil {
		return nil, err
	}
	cfg.Pricing.Currency = getEnv("CURRENCY", "INR")

	if cfg.RateLimit.PasswordResetAttempts, err = getInt("RESET_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.RateLimit.PasswordResetWindow, err = getDuration("RESET_WINDOW", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimit.SweepInterval, err = getDuration("RATE_LIMIT_SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}

	if cfg.Inventory.LowStockScanInterval, err = getDuration("LOW_STOCK_SCAN_INTERVAL", time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
