package user

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/bhavik262/pizza-delivery/internal/apperr"
	"github.com/bhavik262/pizza-delivery/internal/auth"
)

const (
	minPasswordLength = 6
	resetTokenTTL     = time.Hour
)

var (
	ErrInvalidCredentials = apperr.New(apperr.Unauthorized, "invalid credentials")
	ErrAccountInactive    = apperr.New(apperr.Forbidden, "account is deactivated")
	ErrInvalidToken       = apperr.New(apperr.Validation, "invalid or expired token")
)

// Mailer sends account emails. Implementations must not block the caller.
type Mailer interface {
	SendVerification(ctx context.Context, u *User, token string)
	SendPasswordReset(ctx context.Context, u *User, token string)
}

type Service interface {
	Register(ctx context.Context, in RegisterInput) (*User, string, error)
	Login(ctx context.Context, email, password string) (*User, string, error)
	Authenticate(ctx context.Context, rawToken string) (auth.Identity, error)
	VerifyEmail(ctx context.Context, token string) (*User, error)
	ForgotPassword(ctx context.Context, email, clientIP string) error
	ResetPassword(ctx context.Context, token, password string) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (*User, error)
	EnsureAdmin(ctx context.Context, name, email, password string) error
}

type service struct {
	repo       Repository
	tokens     *auth.Tokens
	limiter    *auth.Limiter
	mailer     Mailer
	bcryptCost int
	now        func() time.Time
}

type Option func(*service)

func WithBcryptCost(cost int) Option {
	return func(s *service) { s.bcryptCost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(repo Repository, tokens *auth.Tokens, limiter *auth.Limiter, mailer Mailer, opts ...Option) Service {
	s := &service{
		repo:       repo,
		tokens:     tokens,
		limiter:    limiter,
		mailer:     mailer,
		bcryptCost: bcrypt.DefaultCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *service) hash(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", apperr.Invalid("invalid password", apperr.FieldError{
			Field:   "password",
			Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength),
		})
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to generate password hash")
		return "", fmt.Errorf("service: internal error hashing password: %w", err)
	}
	return string(b), nil
}

func (s *service) Register(ctx context.Context, in RegisterInput) (*User, string, error) {
	email := normalizeEmail(in.Email)
	var fields []apperr.FieldError
	if strings.TrimSpace(in.Name) == "" {
		fields = append(fields, apperr.FieldError{Field: "name", Message: "name is required"})
	}
	if _, err := mail.ParseAddress(email); err != nil {
		fields = append(fields, apperr.FieldError{Field: "email", Message: "email is invalid"})
	}
	if len(fields) > 0 {
		return nil, "", apperr.Invalid("invalid registration", fields...)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, "", err
	}
	verification, err := randomToken()
	if err != nil {
		return nil, "", fmt.Errorf("service: %w", err)
	}

	u := &User{
		Name:              strings.TrimSpace(in.Name),
		Email:             email,
		PasswordHash:      hash,
		Phone:             strings.TrimSpace(in.Phone),
		Role:              auth.RoleUser,
		Address:           in.Address,
		IsActive:          true,
		VerificationToken: verification,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailExists) {
			log.Warn().Str("email", email).Msg("service: registration with existing email")
			return nil, "", ErrEmailExists
		}
		log.Error().Err(err).Msg("service: failed to create user in repository")
		return nil, "", fmt.Errorf("service: failed to save user: %w", err)
	}

	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, "", err
	}
	if s.mailer != nil {
		s.mailer.SendVerification(ctx, u, verification)
	}

	log.Info().Stringer("user_id", u.ID).Msg("service: user registered")
	return u, token, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*User, string, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		log.Error().Err(err).Msg("service: failed to get user by email")
		return nil, "", fmt.Errorf("service: failed to get user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		log.Warn().Stringer("user_id", u.ID).Msg("service: login with wrong password")
		return nil, "", ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, "", ErrAccountInactive
	}

	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Authenticate resolves a bearer token to the current identity record.
func (s *service) Authenticate(ctx context.Context, rawToken string) (auth.Identity, error) {
	id, err := s.tokens.Parse(rawToken)
	if err != nil {
		return auth.Identity{}, err
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return auth.Identity{}, auth.ErrTokenInvalid
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to resolve token subject")
		return auth.Identity{}, fmt.Errorf("service: failed to resolve token subject: %w", err)
	}
	if !u.IsActive {
		return auth.Identity{}, ErrAccountInactive
	}
	return u.Identity(), nil
}

func (s *service) VerifyEmail(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	u, err := s.repo.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("service: failed to look up verification token: %w", err)
	}

	u.IsVerified = true
	u.VerificationToken = ""
	if err := s.repo.Update(ctx, u); err != nil {
		log.Error().Err(err).Stringer("user_id", u.ID).Msg("service: failed to mark user verified")
		return nil, fmt.Errorf("service: failed to verify email: %w", err)
	}
	return u, nil
}

// ForgotPassword always succeeds for unknown addresses so callers cannot
// probe which emails are registered.
func (s *service) ForgotPassword(ctx context.Context, email, clientIP string) error {
	email = normalizeEmail(email)
	if s.limiter != nil {
		if err := s.limiter.Allow(auth.Key(email, clientIP)); err != nil {
			log.Warn().Str("email", email).Str("ip", clientIP).Msg("service: password reset throttled")
			return err
		}
	}

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("service: failed to get user by email: %w", err)
	}

	token, err := randomToken()
	if err != nil {
		return fmt.Errorf("service: %w", err)
	}
	expires := s.now().Add(resetTokenTTL)
	u.ResetToken = token
	u.ResetTokenExpires = &expires
	if err := s.repo.Update(ctx, u); err != nil {
		log.Error().Err(err).Stringer("user_id", u.ID).Msg("service: failed to store reset token")
		return fmt.Errorf("service: failed to store reset token: %w", err)
	}

	if s.mailer != nil {
		s.mailer.SendPasswordReset(ctx, u, token)
	}
	return nil
}

func (s *service) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return ErrInvalidToken
	}
	hash, err := s.hash(password)
	if err != nil {
		return err
	}

	u, err := s.repo.GetByResetToken(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("service: failed to look up reset token: %w", err)
	}

	u.PasswordHash = hash
	u.ResetToken = ""
	u.ResetTokenExpires = nil
	if err := s.repo.Update(ctx, u); err != nil {
		log.Error().Err(err).Stringer("user_id", u.ID).Msg("service: failed to reset password")
		return fmt.Errorf("service: failed to reset password: %w", err)
	}
	log.Info().Stringer("user_id", u.ID).Msg("service: password reset")
	return nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to get user by id")
		return nil, fmt.Errorf("service: failed to get user by id '%s': %w", id, err)
	}
	return u, nil
}

func (s *service) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (*User, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Invalid("invalid profile", apperr.FieldError{Field: "name", Message: "name must not be empty"})
		}
		u.Name = name
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Address != nil {
		u.Address = *in.Address
	}

	if err := s.repo.Update(ctx, u); err != nil {
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to update profile")
		return nil, fmt.Errorf("service: failed to update user by id '%s': %w", id, err)
	}
	return u, nil
}

// EnsureAdmin creates the default admin account when no user has email.
func (s *service) EnsureAdmin(ctx context.Context, name, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		log.Warn().Msg("service: default admin credentials not configured, skipping")
		return nil
	}

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("service: failed to look up admin: %w", err)
	}

	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	u := &User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
		IsVerified:   true,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, u); err != nil && !errors.Is(err, ErrEmailExists) {
		return fmt.Errorf("service: failed to create admin: %w", err)
	}
	log.Info().Str("email", email).Msg("service: default admin ensured")
	return nil
}
