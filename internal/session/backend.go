package session

import (
	"context"

	"github.com/noah-isme/studio-api/internal/models"
)

// AuthBackend performs identity-affecting calls. Sign-in calls return the issued
// credential without using it; the session installs it with SetToken once the result
// is known to be current, and hands superseded ones to Revoke.
type AuthBackend interface {
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResult, error)
	LogIn(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error)
	LogInWithProvider(ctx context.Context, req models.ProviderLoginRequest) (*models.AuthResult, error)
	CompleteProfile(ctx context.Context, req models.CompleteProfileRequest) (*models.AuthResult, error)
	SetToken(token string)
	Revoke(ctx context.Context, token string) error
}

// ContentBackend manages the caller's lessons and techniques.
type ContentBackend interface {
	ListContent(ctx context.Context, kind models.ContentType) ([]models.ContentItem, error)
	CreateContent(ctx context.Context, kind models.ContentType, input models.ContentInput) (*models.ContentItem, error)
	UpdateContent(ctx context.Context, kind models.ContentType, id string, input models.ContentInput) (*models.ContentItem, error)
	DeleteContent(ctx context.Context, kind models.ContentType, id string) error
}

// AssignmentBackend reads and writes the assignment ledger.
type AssignmentBackend interface {
	Assign(ctx context.Context, req models.AssignRequest) (*models.Assignment, error)
	AssignMany(ctx context.Context, req models.BulkAssignRequest) (*models.BulkAssignResult, error)
	StudentAssignments(ctx context.Context, studentID string) ([]models.Assignment, error)
	UpdateAssignmentStatus(ctx context.Context, id string, status models.AssignmentStatus) (*models.Assignment, error)
	Library(ctx context.Context, studentID string, kind models.ContentType) ([]models.AssignedContent, error)
}

// RosterBackend persists roster changes. Every call returns the roster as re-read after
// the write.
type RosterBackend interface {
	Roster(ctx context.Context, search string) (*models.RosterView, error)
	AddStudentByEmail(ctx context.Context, email string) (*models.RosterView, error)
	RemoveStudent(ctx context.Context, studentID string) (*models.RosterView, error)
}

// DirectorySource yields a mapping of user ids to users. The full listing can be
// swapped for a scoped query without changing consumers.
type DirectorySource interface {
	Snapshot(ctx context.Context) (models.DirectorySnapshot, error)
}

// Backend is everything a signed-in workspace talks to.
type Backend interface {
	ContentBackend
	AssignmentBackend
	RosterBackend
	DirectorySource
}
