package user

import (
	"time"

	"github.com/gofrs/uuid"

	"github.com/bhavik262/pizza-delivery/internal/auth"
)

type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
}

type User struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	Phone             string     `json:"phone"`
	Role              auth.Role  `json:"role"`
	Address           Address    `json:"address"`
	IsVerified        bool       `json:"isVerified"`
	IsActive          bool       `json:"isActive"`
	VerificationToken string     `json:"-"`
	ResetToken        string     `json:"-"`
	ResetTokenExpires *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func (u *User) Identity() auth.Identity {
	return auth.Identity{UserID: u.ID, Role: u.Role}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Address  Address
}

// ProfileInput holds the editable profile fields; nil leaves a field as is.
type ProfileInput struct {
	Name    *string
	Phone   *string
	Address *Address
}
