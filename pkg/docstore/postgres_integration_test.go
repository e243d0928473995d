//go:build integration

package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/noah-isme/studio-api/pkg/database"
)

func TestPostgresStoreAgainstContainer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg, err := postgres.RunContainer(ctx,
		tc.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("studio"),
		postgres.WithUsername("studio"),
		postgres.WithPassword("studio"),
		tc.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := database.Open(ctx, dsn, 4, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	store := NewPostgresStore(db, nil)
	require.NoError(t, store.Set(ctx, "users", "t1", Fields{"role": "teacher", "createdAt": ServerTimestamp()}))
	require.NoError(t, store.Update(ctx, "users", "t1", Fields{"students": ArrayUnion("s1", "s2")}))
	require.NoError(t, store.Update(ctx, "users", "t1", Fields{"students": ArrayRemove("s1")}))

	docs, err := store.Query(ctx, "users", Where("students", OpArrayContains, "s2"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, []interface{}{"s2"}, docs[0].Data["students"])

	assert.ErrorIs(t, store.Update(ctx, "users", "ghost", Fields{"x": 1}), ErrNotFound)
	require.NoError(t, store.Delete(ctx, "users", "t1"))
	_, err = store.Get(ctx, "users", "t1")
	assert.ErrorIs(t, err, ErrNotFound)
}
