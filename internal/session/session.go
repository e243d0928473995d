// Package session holds the client-side state of a signed-in user: the auth state
// machine, and the role-scoped workspaces whose stores merge backend results.
package session

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/studio-api/internal/models"
	appErrors "github.com/noah-isme/studio-api/pkg/errors"
)

// State is the auth state of a session.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// ErrStale is returned when a result arrives after the session or scope it was issued
// for has moved on. The result was not applied.
var ErrStale = appErrors.New("STALE_RESULT", http.StatusConflict, "result superseded by a newer session state")

// Status is a point-in-time view of the session.
type Status struct {
	State State
	Epoch uint64
	User  models.UserInfo
	// Err is the failure that returned the session to Unauthenticated, if any.
	Err error
}

// NeedsProfile reports an authenticated identity without a user record, the state
// left behind by an interrupted signup.
func (s Status) NeedsProfile() bool {
	return s.State == Authenticated && s.User.Role == ""
}

// Session runs the auth state machine. Every transition bumps the epoch; a result
// issued under an older epoch is discarded.
type Session struct {
	auth    AuthBackend
	backend Backend
	logger  *zap.Logger

	mu        sync.Mutex
	state     State
	epoch     uint64
	user      models.UserInfo
	token     string
	err       error
	workspace Workspace
}

// New constructs an unauthenticated session.
func New(auth AuthBackend, backend Backend, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{auth: auth, backend: backend, logger: logger.Named("session")}
}

// Status returns the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{State: s.state, Epoch: s.epoch, User: s.user, Err: s.err}
}

// Workspace returns the workspace of the signed-in role, or nil.
func (s *Session) Workspace() Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspace
}

// SignUp creates an account and signs in. A PARTIAL_SIGNUP error leaves the session
// unauthenticated; LogIn followed by CompleteProfile resumes it.
func (s *Session) SignUp(ctx context.Context, req models.SignUpRequest) (Workspace, error) {
	return s.authenticate(ctx, func(ctx context.Context) (*models.AuthResult, error) {
		return s.auth.SignUp(ctx, req)
	})
}

// LogIn signs in with email and password.
func (s *Session) LogIn(ctx context.Context, req models.LoginRequest) (Workspace, error) {
	return s.authenticate(ctx, func(ctx context.Context) (*models.AuthResult, error) {
		return s.auth.LogIn(ctx, req)
	})
}

// LogInWithProvider signs in with a third-party credential.
func (s *Session) LogInWithProvider(ctx context.Context, req models.ProviderLoginRequest) (Workspace, error) {
	return s.authenticate(ctx, func(ctx context.Context) (*models.AuthResult, error) {
		return s.auth.LogInWithProvider(ctx, req)
	})
}

// CompleteProfile writes the missing user record of a signed-in identity and opens the
// workspace for the resulting role. On failure the session is left as it was.
func (s *Session) CompleteProfile(ctx context.Context, req models.CompleteProfileRequest) (Workspace, error) {
	s.mu.Lock()
	if s.state != Authenticated {
		s.mu.Unlock()
		return nil, appErrors.ErrAuthRequired
	}
	epoch := s.epoch
	s.mu.Unlock()

	res, err := s.auth.CompleteProfile(ctx, req)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		if err == nil {
			s.revoke(ctx, res.AccessToken)
		}
		return nil, ErrStale
	}
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.epoch++
	s.user = res.User
	previous := s.install(res.AccessToken)
	s.replaceWorkspace(s.open(res.User))
	ws := s.workspace
	s.mu.Unlock()

	if previous != res.AccessToken {
		s.revoke(ctx, previous)
	}
	return ws, nil
}

// LogOut clears the session immediately and closes the workspace so in-flight
// results are dropped. Remote sign-out is best effort.
func (s *Session) LogOut(ctx context.Context) {
	s.mu.Lock()
	s.epoch++
	s.state = Unauthenticated
	s.user = models.UserInfo{}
	s.err = nil
	token := s.install("")
	s.replaceWorkspace(nil)
	s.mu.Unlock()

	s.revoke(ctx, token)
}

func (s *Session) authenticate(ctx context.Context, call func(context.Context) (*models.AuthResult, error)) (Workspace, error) {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.state = Authenticating
	s.err = nil
	s.user = models.UserInfo{}
	previous := s.install("")
	s.replaceWorkspace(nil)
	s.mu.Unlock()

	s.revoke(ctx, previous)
	res, err := call(ctx)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		if err == nil {
			s.revoke(ctx, res.AccessToken)
		}
		return nil, ErrStale
	}
	defer s.mu.Unlock()

	s.epoch++
	if err != nil {
		s.state = Unauthenticated
		s.err = err
		return nil, err
	}
	s.state = Authenticated
	s.user = res.User
	s.install(res.AccessToken)
	s.replaceWorkspace(s.open(res.User))
	s.logger.Debug("signed in", zap.String("user_id", res.User.ID), zap.String("role", string(res.User.Role)))
	return s.workspace, nil
}

// install makes token the credential used by the backend and returns the one it
// replaced. Callers hold s.mu.
func (s *Session) install(token string) string {
	previous := s.token
	s.token = token
	s.auth.SetToken(token)
	return previous
}

// revoke signs a credential out remotely. Failures are logged only.
func (s *Session) revoke(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := s.auth.Revoke(ctx, token); err != nil {
		s.logger.Warn("remote sign-out failed", zap.Error(err))
	}
}

func (s *Session) replaceWorkspace(ws Workspace) {
	if s.workspace != nil {
		s.workspace.Close()
	}
	s.workspace = ws
}

func (s *Session) open(user models.UserInfo) Workspace {
	switch user.Role {
	case models.RoleTeacher:
		return NewTeacherWorkspace(s.backend, user)
	case models.RoleStudent:
		return NewStudentWorkspace(s.backend, user)
	default:
		return nil
	}
}
