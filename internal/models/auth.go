package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignupRequest holds the payload for account creation. Email is required for
// teachers and optional for students, enforced in the service.
type SignupRequest struct {
	Name      string   `json:"name" validate:"required"`
	Email     *string  `json:"email" validate:"omitempty,email"`
	Phone     string   `json:"phone" validate:"required"`
	Role      UserRole `json:"role" validate:"required,oneof=teacher student"`
	Password  string   `json:"password" validate:"required,min=6"`
	IP        string   `json:"-"`
	UserAgent string   `json:"-"`
}

// LoginRequest holds credentials for authenticating a user. Identifier is an
// email for teachers and a phone number for students.
type LoginRequest struct {
	Identifier string   `json:"identifier" validate:"required"`
	Password   string   `json:"password" validate:"required"`
	Role       UserRole `json:"role" validate:"required,oneof=teacher student"`
	IP         string   `json:"-"`
	UserAgent  string   `json:"-"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expires_in"`
	User      UserInfo  `json:"user"`
	IssuedAt  time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Email   *string  `json:"email,omitempty"`
	Phone   string   `json:"phone"`
	Role    UserRole `json:"role"`
	IsAdmin bool     `json:"is_admin"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID  string   `json:"user_id"`
	Role    UserRole `json:"role"`
	Name    string   `json:"name"`
	IsAdmin bool     `json:"is_admin"`
	jwt.RegisteredClaims
}
