package docstore

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	labels []string
}

func (r *recordingObserver) ObserveDBQuery(label string, _ time.Duration) {
	r.labels = append(r.labels, label)
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *recordingObserver) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	obs := &recordingObserver{}
	store := NewPostgresStore(sqlx.NewDb(db, "sqlmock"), obs)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	return store, mock, obs
}

func TestPostgresStoreGet(t *testing.T) {
	store, mock, obs := newMockStore(t)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "data", "created_at", "updated_at"}).
		AddRow("l1", []byte(`{"title":"Scales","userId":"t1"}`), now, now)
	mock.ExpectQuery(regexp.QuoteMeta(selectDocument)).WithArgs("Lesson", "l1").WillReturnRows(rows)

	doc, err := store.Get(context.Background(), "Lesson", "l1")
	require.NoError(t, err)
	assert.Equal(t, "Scales", doc.Data["title"])
	assert.Equal(t, []string{"docstore.get.Lesson"}, obs.labels)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetNotFound(t *testing.T) {
	store, mock, _ := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectDocument)).WithArgs("Lesson", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "created_at", "updated_at"}))

	_, err := store.Get(context.Background(), "Lesson", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreQueryUsesContainment(t *testing.T) {
	store, mock, _ := newMockStore(t)
	rows := sqlmock.NewRows([]string{"id", "data", "created_at", "updated_at"}).
		AddRow("t1", []byte(`{"role":"teacher","students":["s1"]}`), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1 AND data @> $2::jsonb AND data @> $3::jsonb ORDER BY id`)).
		WithArgs("users", `{"role":"teacher"}`, `{"students":["s1"]}`).
		WillReturnRows(rows)

	docs, err := store.Query(context.Background(), "users",
		Where("role", OpEqual, "teacher"),
		Where("students", OpArrayContains, "s1"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "t1", docs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpdateLocksAndMerges(t *testing.T) {
	store, mock, _ := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockDocument)).WithArgs("users", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"role":"teacher","students":["s1"]}`)))
	mock.ExpectExec(regexp.QuoteMeta(updateDocument)).
		WithArgs("users", "t1", []byte(`{"role":"teacher","students":["s1","s2"]}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Update(context.Background(), "users", "t1", Fields{"students": ArrayUnion("s2", "s1")})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpdateMissingRollsBack(t *testing.T) {
	store, mock, _ := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockDocument)).WithArgs("users", "ghost").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))
	mock.ExpectRollback()

	err := store.Update(context.Background(), "users", "ghost", Fields{"fullName": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSetAndDelete(t *testing.T) {
	store, mock, _ := newMockStore(t)
	mock.ExpectExec("INSERT INTO documents").
		WithArgs("Lesson", "l1", []byte(`{"title":"Scales"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(deleteDocument)).WithArgs("Lesson", "l1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Set(context.Background(), "Lesson", "l1", Fields{"title": "Scales"}))
	require.NoError(t, store.Delete(context.Background(), "Lesson", "l1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreDatabaseErrorIsUnavailable(t *testing.T) {
	store, mock, _ := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(deleteDocument)).WillReturnError(assert.AnError)

	err := store.Delete(context.Background(), "Lesson", "l1")
	assert.Equal(t, CodeUnavailable, CodeOf(err))
}
