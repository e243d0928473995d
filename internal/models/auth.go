package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignUpRequest creates an identity and its user record.
type SignUpRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	Role     UserRole `json:"role" validate:"required,oneof=teacher student"`
	Name     string   `json:"name" validate:"max=120"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProviderLoginRequest exchanges a third-party credential.
type ProviderLoginRequest struct {
	Token string `json:"token" validate:"required"`
}

// CompleteProfileRequest writes the user record for an identity whose signup stopped
// after the identity was created.
type CompleteProfileRequest struct {
	Role UserRole `json:"role" validate:"required,oneof=teacher student"`
	Name string   `json:"name" validate:"max=120"`
}

// AuthResult returns the issued token and the resolved user.
type AuthResult struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	User        UserInfo  `json:"user"`
}

// UserInfo describes the authenticated user in responses. Role is empty when the
// identity has no user record yet.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role,omitempty"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Info converts claims into the response shape.
func (c *JWTClaims) Info() UserInfo {
	if c == nil {
		return UserInfo{}
	}
	return UserInfo{ID: c.UserID, Email: c.Email, FullName: c.FullName, Role: c.Role}
}
