package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ProviderClaims is the payload of a third-party sign-in token.
type ProviderClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// TokenVerifier turns provider tokens into verified credentials.
type TokenVerifier struct {
	provider string
	secret   []byte
	opts     []jwt.ParserOption
}

// NewTokenVerifier verifies HS256 tokens signed with secret. Empty issuer or audience
// disables that check.
func NewTokenVerifier(provider, secret, issuer, audience string) *TokenVerifier {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &TokenVerifier{provider: provider, secret: []byte(secret), opts: opts}
}

// Verify parses token and returns the credential it asserts.
func (v *TokenVerifier) Verify(token string) (Credential, error) {
	if token == "" {
		return Credential{}, newError(CodeInvalidCredential)
	}
	claims := &ProviderClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, v.opts...)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("token invalid")
		}
		return Credential{}, &Error{Code: CodeInvalidCredential, Err: err}
	}
	if claims.Subject == "" {
		return Credential{}, &Error{Code: CodeInvalidCredential, Err: fmt.Errorf("subject missing")}
	}
	return Credential{
		Provider:    v.provider,
		Subject:     claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
	}, nil
}

// Sign issues a provider token. It exists for development tooling and tests that stand
// in for the external provider.
func (v *TokenVerifier) Sign(claims ProviderClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
