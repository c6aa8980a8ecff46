package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bhavik262/pizza-delivery/internal/apperr"
	"github.com/bhavik262/pizza-delivery/internal/auth"
	handler "github.com/bhavik262/pizza-delivery/internal/handler/http"
	"github.com/bhavik262/pizza-delivery/internal/user"
)

func TestUserHandler_Register_Success(t *testing.T) {
	api := newTestAPI(t)

	requestDTO := handler.RegisterRequest{
		Name:     "Asha",
		Email:    "asha@example.com",
		Password: "pizza123",
		Phone:    "9876543210",
	}
	created := &user.User{
		ID:        uuid.Must(uuid.NewV4()),
		Name:      requestDTO.Name,
		Email:     requestDTO.Email,
		Role:      auth.RoleUser,
		IsActive:  true,
		CreatedAt: time.Now().Truncate(time.Second),
	}

	api.users.On("Register", mock.Anything, mock.MatchedBy(func(in user.RegisterInput) bool {
		return in.Email == requestDTO.Email && in.Password == requestDTO.Password && in.Name == requestDTO.Name
	})).Return(created, "jwt-token", nil).Once()

	rr := api.do(t, http.MethodPost, "/api/auth/register", "", requestDTO)
	require.Equal(t, http.StatusCreated, rr.Code)

	env := decodeEnvelope(t, rr)
	assert.True(t, env.Success)

	var data struct {
		Token string          `json:"token"`
		User  json.RawMessage `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "jwt-token", data.Token)
	assert.Contains(t, string(data.User), created.ID.String())
	assert.NotContains(t, string(data.User), "password", "credentials must never be serialized")
	api.users.AssertExpectations(t)
}

func TestUserHandler_Register_EmailExists(t *testing.T) {
	api := newTestAPI(t)
	api.users.On("Register", mock.Anything, mock.AnythingOfType("user.RegisterInput")).
		Return(nil, "", user.ErrEmailExists).
		Once()

	rr := api.do(t, http.MethodPost, "/api/auth/register", "", handler.RegisterRequest{
		Name: "Asha", Email: "exists@example.com", Password: "pizza123",
	})
	require.Equal(t, http.StatusConflict, rr.Code)

	env := decodeEnvelope(t, rr)
	assert.False(t, env.Success)
	assert.Equal(t, user.ErrEmailExists.Message, env.Message)
	api.users.AssertExpectations(t)
}

func TestUserHandler_Register_ValidationErrors(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodPost, "/api/auth/register", "", handler.RegisterRequest{
		Name: "A", Email: "not-an-email", Password: "123",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	env := decodeEnvelope(t, rr)
	assert.False(t, env.Success)
	assert.Equal(t, "Validation failed", env.Message)

	fields := map[string]bool{}
	for _, e := range env.Errors {
		fields[e["field"]] = true
	}
	if diff := cmp.Diff(map[string]bool{"name": true, "email": true, "password": true}, fields); diff != "" {
		t.Errorf("invalid fields mismatch (-want +got):\n%s", diff)
	}
	api.users.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestUserHandler_Register_UnknownField(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodPost, "/api/auth/register", "", `{"name":"Asha","email":"a@b.com","password":"123456","role":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	api.users.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestUserHandler_Login(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "success", wantStatus: http.StatusOK},
		{name: "invalid_credentials", err: user.ErrInvalidCredentials, wantStatus: http.StatusUnauthorized},
		{name: "inactive", err: user.ErrAccountInactive, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			if tt.err != nil {
				api.users.On("Login", mock.Anything, "a@b.com", "secret1").Return(nil, "", tt.err).Once()
			} else {
				api.users.On("Login", mock.Anything, "a@b.com", "secret1").
					Return(&user.User{ID: customer.UserID}, "jwt", nil).Once()
			}

			rr := api.do(t, http.MethodPost, "/api/auth/login", "", handler.LoginRequest{Email: "a@b.com", Password: "secret1"})
			assert.Equal(t, tt.wantStatus, rr.Code)
			env := decodeEnvelope(t, rr)
			assert.Equal(t, tt.err == nil, env.Success)
			api.users.AssertExpectations(t)
		})
	}
}

func TestUserHandler_ForgotPassword_RateLimited(t *testing.T) {
	api := newTestAPI(t)
	api.users.On("ForgotPassword", mock.Anything, "a@b.com", mock.AnythingOfType("string")).
		Return(apperr.Throttled("too many attempts, please try again later", 90*time.Second)).
		Once()

	rr := api.do(t, http.MethodPost, "/api/auth/forgot-password", "", handler.ForgotPasswordRequest{Email: "a@b.com"})
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "90", rr.Header().Get("Retry-After"))
}

func TestUserHandler_ForgotPassword_ClientAddress(t *testing.T) {
	forgot := func(t *testing.T, api *testAPI) {
		t.Helper()
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(handler.ForgotPasswordRequest{Email: "a@b.com"}))
		req := httptest.NewRequest(http.MethodPost, "/api/auth/forgot-password", &buf)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		req.RemoteAddr = "198.51.100.2:4321"
		rr := httptest.NewRecorder()
		api.router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
		api.users.AssertExpectations(t)
	}

	t.Run("forwarding_headers_ignored_by_default", func(t *testing.T) {
		api := newTestAPI(t)
		api.users.On("ForgotPassword", mock.Anything, "a@b.com", "198.51.100.2").Return(nil).Once()
		forgot(t, api)
	})

	t.Run("trusted_proxy", func(t *testing.T) {
		api := newTestAPIWith(t, func(d *handler.RouterDeps) { d.TrustProxy = true })
		api.users.On("ForgotPassword", mock.Anything, "a@b.com", "203.0.113.7").Return(nil).Once()
		forgot(t, api)
	})
}

func TestUserHandler_ResetPassword_InvalidToken(t *testing.T) {
	api := newTestAPI(t)
	api.users.On("ResetPassword", mock.Anything, "stale", "newpass").Return(user.ErrInvalidToken).Once()

	rr := api.do(t, http.MethodPost, "/api/auth/reset-password/stale", "", handler.ResetPasswordRequest{Password: "newpass"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	api.users.AssertExpectations(t)
}

func TestUserHandler_Me(t *testing.T) {
	t.Run("requires_token", func(t *testing.T) {
		api := newTestAPI(t)
		rr := api.do(t, http.MethodGet, "/api/auth/me", "", nil)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, auth.ErrTokenMissing.Message, decodeEnvelope(t, rr).Message)
	})

	t.Run("expired_token", func(t *testing.T) {
		api := newTestAPI(t)
		rr := api.do(t, http.MethodGet, "/api/auth/me", "expired", nil)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, auth.ErrTokenExpired.Message, decodeEnvelope(t, rr).Message)
	})

	t.Run("returns_current_user", func(t *testing.T) {
		api := newTestAPI(t)
		api.users.On("GetByID", mock.Anything, customer.UserID).
			Return(&user.User{ID: customer.UserID, Name: "Asha"}, nil).Once()

		rr := api.do(t, http.MethodGet, "/api/auth/me", userToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var u user.User
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr).Data, &u))
		assert.Equal(t, "Asha", u.Name)
	})
}

func TestUserHandler_UpdateProfile(t *testing.T) {
	api := newTestAPI(t)
	api.users.On("UpdateProfile", mock.Anything, customer.UserID, mock.MatchedBy(func(in user.ProfileInput) bool {
		return in.Name != nil && *in.Name == "Asha K" && in.Phone == nil && in.Address != nil && in.Address.City == "Pune"
	})).Return(&user.User{ID: customer.UserID, Name: "Asha K"}, nil).Once()

	rr := api.do(t, http.MethodPut, "/api/auth/profile", userToken, `{"name":"Asha K","address":{"city":"Pune"}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	api.users.AssertExpectations(t)
}

func TestCORS(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/pizza", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	api.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/pizza", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	api.router.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
