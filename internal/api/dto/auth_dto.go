package dto

import (
	"github.com/authkit/session-auth/internal/domain"
	"github.com/authkit/session-auth/internal/validation"
)

// RegisterRequest payload for new users.
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Input converts the payload for validation.
func (r RegisterRequest) Input() validation.RegisterInput {
	return validation.RegisterInput{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Password:  r.Password,
	}
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Input converts the payload for validation.
func (r LoginRequest) Input() validation.LoginInput {
	return validation.LoginInput{Email: r.Email, Password: r.Password}
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Message string            `json:"message"`
	User    domain.PublicUser `json:"user"`
}

// UserResponse is returned by verify.
type UserResponse struct {
	User domain.PublicUser `json:"user"`
}

// MessageResponse carries a bare message.
type MessageResponse struct {
	Message string `json:"message"`
}
