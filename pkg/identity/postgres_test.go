package identity

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newMockProvider(t *testing.T) (*PostgresProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresProvider(sqlx.NewDb(db, "sqlmock")), mock
}

func TestPostgresProviderCreateDuplicate(t *testing.T) {
	p, mock := newMockProvider(t)
	mock.ExpectExec("INSERT INTO identities").WillReturnError(&pq.Error{Code: "23505"})

	_, err := p.Create(context.Background(), "a@example.com", "secret1")
	assert.Equal(t, CodeEmailInUse, CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProviderAuthenticate(t *testing.T) {
	p, mock := newMockProvider(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "email", "display_name", "photo_url", "provider", "created_at", "password_hash"}).
		AddRow("u1", "a@example.com", "Ana", "", PasswordProvider, time.Now(), string(hash))
	mock.ExpectQuery(regexp.QuoteMeta("FROM identities WHERE LOWER(email) = $1 AND provider = $2")).
		WithArgs("a@example.com", PasswordProvider).
		WillReturnRows(rows)

	ident, err := p.Authenticate(context.Background(), " A@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "u1", ident.UID)
	assert.Equal(t, "Ana", ident.DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProviderCredentialExisting(t *testing.T) {
	p, mock := newMockProvider(t)
	mock.ExpectQuery("INSERT INTO identities").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE provider = $1 AND provider_subject = $2")).
		WithArgs("google", "sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "display_name", "photo_url", "provider", "created_at"}).
			AddRow("u9", "s@example.com", "Sam", "", "google", time.Now()))

	ident, created, err := p.AuthenticateCredential(context.Background(), Credential{Provider: "google", Subject: "sub-1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "u9", ident.UID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProviderUpdateProfileMissing(t *testing.T) {
	p, mock := newMockProvider(t)
	mock.ExpectExec("UPDATE identities SET display_name").WillReturnResult(sqlmock.NewResult(0, 0))

	err := p.UpdateProfile(context.Background(), "ghost", "x")
	assert.Equal(t, CodeUserNotFound, CodeOf(err))
}
