package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bhavik262/pizza-delivery/internal/user"
)

type AddressRequest struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
}

func (a *AddressRequest) toDomain() user.Address {
	if a == nil {
		return user.Address{}
	}
	return user.Address{Street: a.Street, City: a.City, State: a.State, ZipCode: a.ZipCode}
}

type RegisterRequest struct {
	Name     string          `json:"name" validate:"required,min=2,max=50"`
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=6"`
	Phone    string          `json:"phone" validate:"omitempty,min=10,max=15"`
	Address  *AddressRequest `json:"address,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

type UpdateProfileRequest struct {
	Name    *string         `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	Phone   *string         `json:"phone,omitempty" validate:"omitempty,min=10,max=15"`
	Address *AddressRequest `json:"address,omitempty"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  *user.User `json:"user"`
}

type UserHandler struct {
	base
	service user.Service
}

func NewUserHandler(service user.Service, production bool) *UserHandler {
	return &UserHandler{base: newBase(production), service: service}
}

func (h *UserHandler) RegisterRoutes(router chi.Router, g Guards) {
	router.Post("/register", h.handleRegister)
	router.Post("/login", h.handleLogin)
	router.Get("/verify-email/{token}", h.handleVerifyEmail)
	router.Post("/forgot-password", h.handleForgotPassword)
	router.Post("/reset-password/{token}", h.handleResetPassword)

	router.Group(func(r chi.Router) {
		r.Use(g.Authenticated)
		r.Get("/me", h.handleMe)
		r.Put("/profile", h.handleUpdateProfile)
	})
}

func (h *UserHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, token, err := h.service.Register(r.Context(), user.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Address:  req.Address.toDomain(),
	})
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	respondOK(w, http.StatusCreated, "User registered successfully. Please verify your email.", AuthResponse{Token: token, User: u})
}

func (h *UserHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	respondOK(w, http.StatusOK, "Login successful", AuthResponse{Token: token, User: u})
}

func (h *UserHandler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.VerifyEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Email verified successfully", u)
}

func (h *UserHandler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email, clientIP(r)); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "If an account exists for this email, a reset link has been sent", nil)
}

func (h *UserHandler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Password reset successfully", nil)
}

func (h *UserHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetByID(r.Context(), identityFrom(r).UserID)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "", u)
}

func (h *UserHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := user.ProfileInput{Name: req.Name, Phone: req.Phone}
	if req.Address != nil {
		addr := req.Address.toDomain()
		in.Address = &addr
	}

	u, err := h.service.UpdateProfile(r.Context(), identityFrom(r).UserID, in)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "Profile updated successfully", u)
}
