package auth

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhavik262/pizza-delivery/internal/apperr"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	id := uuid.Must(uuid.NewV4())

	raw, err := tokens.Issue(id, RoleAdmin)
	require.NoError(t, err)

	got, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestTokens_Errors(t *testing.T) {
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens := NewTokens("secret", time.Hour)
	tokens.now = func() time.Time { return issued }

	raw, err := tokens.Issue(uuid.Must(uuid.NewV4()), RoleUser)
	require.NoError(t, err)

	tests := []struct {
		name    string
		parser  *Tokens
		raw     string
		wantErr error
	}{
		{name: "missing", parser: tokens, raw: "", wantErr: ErrTokenMissing},
		{name: "garbage", parser: tokens, raw: "not.a.token", wantErr: ErrTokenInvalid},
		{name: "wrong_secret", parser: &Tokens{secret: []byte("other"), ttl: time.Hour, now: tokens.now}, raw: raw, wantErr: ErrTokenInvalid},
		{name: "expired", parser: &Tokens{secret: []byte("secret"), ttl: time.Hour, now: func() time.Time { return issued.Add(2 * time.Hour) }}, raw: raw, wantErr: ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parser.Parse(tt.raw)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
		})
	}
}

func TestIdentity_CanAccess(t *testing.T) {
	owner := uuid.Must(uuid.NewV4())
	other := uuid.Must(uuid.NewV4())

	assert.True(t, Identity{UserID: owner, Role: RoleUser}.CanAccess(owner))
	assert.False(t, Identity{UserID: other, Role: RoleUser}.CanAccess(owner))
	assert.True(t, Identity{UserID: other, Role: RoleAdmin}.CanAccess(owner))
	assert.False(t, Identity{Role: RoleUser}.CanAccess(uuid.Nil))

	assert.True(t, Identity{Role: RoleAdmin}.HasRole(RoleUser, RoleAdmin))
	assert.False(t, Identity{Role: RoleUser}.HasRole(RoleAdmin))
}

func TestIdentity_Context(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	want := Identity{UserID: uuid.Must(uuid.NewV4()), Role: RoleUser}
	got, ok := FromContext(WithIdentity(context.Background(), want))
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestLimiter(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(3, 15*time.Minute)
	l.now = func() time.Time { return now }
	key := Key("a@b.c", "10.0.0.1")

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Allow(key))
	}

	now = now.Add(5 * time.Minute)
	err := l.Allow(key)
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.RateLimited, e.Kind)
	assert.Equal(t, 10*time.Minute, e.RetryAfter)

	assert.NoError(t, l.Allow(Key("a@b.c", "10.0.0.2")), "other ip has its own window")

	now = now.Add(11 * time.Minute)
	assert.NoError(t, l.Allow(key), "window resets once expired")
}

func TestLimiter_Sweep(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(1, time.Minute)
	l.now = func() time.Time { return now }

	require.NoError(t, l.Allow("old"))
	now = now.Add(30 * time.Second)
	require.NoError(t, l.Allow("fresh"))

	now = now.Add(45 * time.Second)
	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
}

func TestLimiter_Run(t *testing.T) {
	l := NewLimiter(1, time.Minute)

	for _, interval := range []time.Duration{0, -time.Second} {
		assert.NotPanics(t, func() {
			assert.NoError(t, l.Run(context.Background(), interval))
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, time.Millisecond) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
