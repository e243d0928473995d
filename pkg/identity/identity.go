// Package identity authenticates users by password or by a verified third-party
// credential and owns the identity records that user documents are keyed by.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// PasswordProvider is the provider name of email/password identities.
const PasswordProvider = "password"

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// Identity is an authenticated principal.
type Identity struct {
	UID         string    `json:"uid" db:"id"`
	Email       string    `json:"email" db:"email"`
	DisplayName string    `json:"display_name" db:"display_name"`
	PhotoURL    string    `json:"photo_url,omitempty" db:"photo_url"`
	Provider    string    `json:"provider" db:"provider"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Credential is a verified external sign-in.
type Credential struct {
	Provider    string
	Subject     string
	Email       string
	DisplayName string
	PhotoURL    string
}

// Provider is implemented by identity backends.
type Provider interface {
	Create(ctx context.Context, email, password string) (*Identity, error)
	Authenticate(ctx context.Context, email, password string) (*Identity, error)
	// AuthenticateCredential signs in with a verified credential, creating the identity on
	// first use. created reports whether a new identity was made.
	AuthenticateCredential(ctx context.Context, cred Credential) (ident *Identity, created bool, err error)
	UpdateProfile(ctx context.Context, uid, displayName string) error
	Lookup(ctx context.Context, uid string) (*Identity, error)
}

// Error codes.
const (
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeInvalidEmail      = "auth/invalid-email"
	CodeWeakPassword      = "auth/weak-password"
	CodeWrongPassword     = "auth/wrong-password"
	CodeUserNotFound      = "auth/user-not-found"
	CodeInvalidCredential = "auth/invalid-credential"
	CodeUnavailable       = "auth/unavailable"
)

// Error is an identity failure carrying a stable code.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// CodeOf returns the identity error code of err, or "" for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Message returns the user-facing text for a code.
func Message(code string) string {
	switch code {
	case CodeEmailInUse:
		return "That email address is already in use!"
	case CodeInvalidEmail:
		return "That email address is invalid!"
	case CodeWeakPassword:
		return "Password should be at least 6 characters."
	case CodeWrongPassword, CodeUserNotFound, CodeInvalidCredential:
		return "Invalid email or password."
	default:
		return "Authentication failed. Please try again."
	}
}

func newError(code string) error { return &Error{Code: code} }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateNew(email, password string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return newError(CodeInvalidEmail)
	}
	if len(password) < MinPasswordLength {
		return newError(CodeWeakPassword)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", &Error{Code: CodeUnavailable, Err: err}
	}
	return string(hash), nil
}

func checkPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return newError(CodeWrongPassword)
	}
	return nil
}
