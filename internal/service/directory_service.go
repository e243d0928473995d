package service

import (
	"context"
	"time"

	"github.com/noah-isme/studio-api/internal/models"
)

type directoryRepository interface {
	List(ctx context.Context) ([]models.User, error)
}

// DirectoryService produces fresh snapshots of the users collection. Snapshots are never
// cached; every call reads the store.
type DirectoryService struct {
	users directoryRepository
	now   func() time.Time
}

// NewDirectoryService constructs a DirectoryService.
func NewDirectoryService(users directoryRepository) *DirectoryService {
	return &DirectoryService{users: users, now: func() time.Time { return time.Now().UTC() }}
}

// Snapshot lists all users at the current time.
func (s *DirectoryService) Snapshot(ctx context.Context) (models.DirectorySnapshot, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return models.DirectorySnapshot{}, remoteError(err, "failed to fetch users")
	}
	return models.NewDirectorySnapshot(users, s.now()), nil
}
