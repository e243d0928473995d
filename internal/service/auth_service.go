package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-api/internal/models"
	appErrors "github.com/noah-isme/studio-api/pkg/errors"
	"github.com/noah-isme/studio-api/pkg/identity"
)

type authUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type credentialVerifier interface {
	Verify(token string) (identity.Credential, error)
}

type tokenDenylist interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	Revoked(ctx context.Context, jti string) (bool, error)
}

// AuthConfig defines configuration for access tokens.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// AuthService signs users up and in against the identity provider and issues access
// tokens carrying the role from the user record.
type AuthService struct {
	identities identity.Provider
	users      authUserRepository
	verifier   credentialVerifier
	denylist   tokenDenylist
	validator  *validator.Validate
	logger     *zap.Logger
	config     AuthConfig
	now        func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(identities identity.Provider, users authUserRepository, verifier credentialVerifier, denylist tokenDenylist, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	return &AuthService{
		identities: identities,
		users:      users,
		verifier:   verifier,
		denylist:   denylist,
		validator:  validate,
		logger:     logger,
		config:     config,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SignUp creates the identity, attaches the display name and writes the user record.
// Any failure after the identity exists is reported as a PartialSignup error carrying
// the identity id; CompleteProfile resumes from there.
func (s *AuthService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid signup payload")
	}

	ident, err := s.identities.Create(ctx, req.Email, req.Password)
	if err != nil {
		s.logger.Info("signup rejected", zap.String("backend_code", identity.CodeOf(err)))
		return nil, identityError(err)
	}

	if req.Name != "" {
		if err := s.identities.UpdateProfile(ctx, ident.UID, req.Name); err != nil {
			return nil, s.partialSignup(ident.UID, err)
		}
	}

	user := &models.User{ID: ident.UID, Email: ident.Email, FullName: req.Name, Role: req.Role}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, s.partialSignup(ident.UID, err)
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return s.issue(user)
}

// LogIn authenticates with email and password. A missing user record leaves the role
// empty rather than failing.
func (s *AuthService) LogIn(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid login payload")
	}

	ident, err := s.identities.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, identityError(err)
	}

	user, err := s.loadUser(ctx, ident)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// LogInWithProvider exchanges a third-party credential. First sign-in creates a student
// record flagged googleSignIn; later sign-ins reuse the stored record.
func (s *AuthService) LogInWithProvider(ctx context.Context, req models.ProviderLoginRequest) (*models.AuthResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid provider payload")
	}
	if s.verifier == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "provider sign-in is not configured")
	}

	cred, err := s.verifier.Verify(req.Token)
	if err != nil {
		return nil, identityError(err)
	}
	ident, created, err := s.identities.AuthenticateCredential(ctx, cred)
	if err != nil {
		return nil, identityError(err)
	}

	user, err := s.users.FindByID(ctx, ident.UID)
	switch {
	case err == nil:
		if user.Role == "" {
			user.Role = models.RoleStudent
		}
	case isNotFound(err):
		user = &models.User{
			ID:           ident.UID,
			Email:        ident.Email,
			FullName:     ident.DisplayName,
			PhotoURL:     ident.PhotoURL,
			Role:         models.RoleStudent,
			GoogleSignIn: true,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, remoteError(err, "failed to save user record")
		}
		s.logger.Info("provider user created", zap.String("user_id", user.ID), zap.Bool("new_identity", created))
	default:
		return nil, remoteError(err, "failed to load user record")
	}
	return s.issue(user)
}

// CompleteProfile writes the user record for an identity whose signup stopped early.
// An existing record is returned unchanged; roles never change once written.
func (s *AuthService) CompleteProfile(ctx context.Context, claims *models.JWTClaims, req models.CompleteProfileRequest) (*models.AuthResult, error) {
	if claims == nil || claims.UserID == "" {
		return nil, appErrors.ErrAuthRequired
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid profile payload")
	}

	existing, err := s.users.FindByID(ctx, claims.UserID)
	if err == nil {
		return s.issue(existing)
	}
	if !isNotFound(err) {
		return nil, remoteError(err, "failed to load user record")
	}

	if req.Name != "" {
		if err := s.identities.UpdateProfile(ctx, claims.UserID, req.Name); err != nil {
			return nil, remoteError(err, "failed to update profile")
		}
	}
	user := &models.User{ID: claims.UserID, Email: claims.Email, FullName: req.Name, Role: req.Role}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, remoteError(err, "failed to save user record")
	}
	return s.issue(user)
}

// LogOut revokes the presented access token.
func (s *AuthService) LogOut(ctx context.Context, claims *models.JWTClaims) error {
	if claims == nil || s.denylist == nil {
		return nil
	}
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.denylist.Revoke(ctx, claims.ID, expiresAt); err != nil {
		return remoteError(err, "failed to revoke token")
	}
	return nil
}

// ValidateToken parses an access token and rejects revoked ones.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	if s.denylist != nil {
		revoked, err := s.denylist.Revoked(ctx, claims.ID)
		if err != nil {
			s.logger.Warn("denylist lookup failed", zap.Error(err))
			return nil, appErrors.Remote(err, "denylist_unavailable", "could not verify token")
		}
		if revoked {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token revoked")
		}
	}
	return claims, nil
}

func (s *AuthService) loadUser(ctx context.Context, ident *identity.Identity) (*models.User, error) {
	user, err := s.users.FindByID(ctx, ident.UID)
	if err == nil {
		return user, nil
	}
	if isNotFound(err) {
		return &models.User{ID: ident.UID, Email: ident.Email, FullName: ident.DisplayName}, nil
	}
	return nil, remoteError(err, "failed to load user record")
}

func (s *AuthService) partialSignup(uid string, cause error) error {
	e := appErrors.Wrap(cause, appErrors.ErrPartialSignup.Code, appErrors.ErrPartialSignup.Status, appErrors.ErrPartialSignup.Message)
	e.ResourceID = uid
	if code := identityOrStoreCode(cause); code != "" {
		e.BackendCode = code
	}
	s.logger.Error("signup left identity without user record", zap.String("user_id", uid), zap.String("backend_code", e.BackendCode), zap.Error(cause))
	return e
}

func (s *AuthService) issue(user *models.User) (*models.AuthResult, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	return &models.AuthResult{
		AccessToken: signed,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
		User:        claims.Info(),
	}, nil
}
