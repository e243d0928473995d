package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-api/internal/models"
	"github.com/noah-isme/studio-api/internal/repository"
	"github.com/noah-isme/studio-api/pkg/docstore"
	"github.com/noah-isme/studio-api/pkg/identity"
)

type testBackend struct {
	store      *docstore.MemoryStore
	identities *identity.MemoryProvider
	users      *repository.UserRepository
	clock      time.Time
}

func newTestBackend() *testBackend {
	b := &testBackend{
		store:      docstore.NewMemoryStore(),
		identities: identity.NewMemoryProvider(),
		clock:      time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	b.store.SetClock(func() time.Time { return b.clock })
	b.users = repository.NewUserRepository(b.store)
	return b
}

// tick advances the store clock so consecutive writes get distinct timestamps.
func (b *testBackend) tick() {
	b.clock = b.clock.Add(time.Minute)
}

func (b *testBackend) seedUser(t *testing.T, u models.User) models.User {
	t.Helper()
	require.NoError(t, b.users.Create(context.Background(), &u))
	for _, id := range u.Students {
		require.NoError(t, b.users.AddStudent(context.Background(), u.ID, id))
	}
	b.tick()
	return u
}

func unavailableStore() error {
	return &docstore.Error{Code: docstore.CodeUnavailable, Message: "backend offline"}
}
