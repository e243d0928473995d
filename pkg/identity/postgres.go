package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const identityColumns = `id, COALESCE(email, '') AS email, display_name, photo_url, provider, created_at`

// PostgresProvider stores identities in the identities table.
type PostgresProvider struct {
	db *sqlx.DB
}

// NewPostgresProvider wraps db.
func NewPostgresProvider(db *sqlx.DB) *PostgresProvider {
	return &PostgresProvider{db: db}
}

func (p *PostgresProvider) Create(ctx context.Context, email, password string) (*Identity, error) {
	email = normalizeEmail(email)
	if err := validateNew(email, password); err != nil {
		return nil, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	ident := &Identity{UID: uuid.NewString(), Email: email, Provider: PasswordProvider, CreatedAt: time.Now().UTC()}
	const query = `INSERT INTO identities (id, email, password_hash, provider, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $5)`
	if _, err := p.db.ExecContext(ctx, query, ident.UID, ident.Email, hash, PasswordProvider, ident.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, newError(CodeEmailInUse)
		}
		return nil, unavailable(err)
	}
	return ident, nil
}

func (p *PostgresProvider) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	var row struct {
		Identity
		PasswordHash string `db:"password_hash"`
	}
	const query = `SELECT ` + identityColumns + `, password_hash FROM identities WHERE LOWER(email) = $1 AND provider = $2 LIMIT 1`
	if err := p.db.GetContext(ctx, &row, query, normalizeEmail(email), PasswordProvider); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError(CodeUserNotFound)
		}
		return nil, unavailable(err)
	}
	if err := checkPassword(row.PasswordHash, password); err != nil {
		return nil, err
	}
	return &row.Identity, nil
}

func (p *PostgresProvider) AuthenticateCredential(ctx context.Context, cred Credential) (*Identity, bool, error) {
	if cred.Provider == "" || cred.Subject == "" {
		return nil, false, newError(CodeInvalidCredential)
	}
	ident := &Identity{
		UID:         uuid.NewString(),
		Email:       normalizeEmail(cred.Email),
		DisplayName: cred.DisplayName,
		PhotoURL:    cred.PhotoURL,
		Provider:    cred.Provider,
		CreatedAt:   time.Now().UTC(),
	}
	// The insert is a no-op when the subject is already known; RETURNING then yields no row.
	const insert = `INSERT INTO identities (id, email, display_name, photo_url, provider, provider_subject, created_at, updated_at)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $7)
ON CONFLICT (provider, provider_subject) WHERE provider_subject IS NOT NULL DO NOTHING
RETURNING id`
	var id string
	err := p.db.GetContext(ctx, &id, insert, ident.UID, ident.Email, ident.DisplayName, ident.PhotoURL, ident.Provider, cred.Subject, ident.CreatedAt)
	switch {
	case err == nil:
		return ident, true, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, unavailable(err)
	}

	var existing Identity
	const query = `SELECT ` + identityColumns + ` FROM identities WHERE provider = $1 AND provider_subject = $2`
	if err := p.db.GetContext(ctx, &existing, query, cred.Provider, cred.Subject); err != nil {
		return nil, false, unavailable(err)
	}
	return &existing, false, nil
}

func (p *PostgresProvider) UpdateProfile(ctx context.Context, uid, displayName string) error {
	const query = `UPDATE identities SET display_name = $2, updated_at = $3 WHERE id = $1`
	res, err := p.db.ExecContext(ctx, query, uid, displayName, time.Now().UTC())
	if err != nil {
		return unavailable(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return newError(CodeUserNotFound)
	}
	return nil
}

func (p *PostgresProvider) Lookup(ctx context.Context, uid string) (*Identity, error) {
	var ident Identity
	const query = `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`
	if err := p.db.GetContext(ctx, &ident, query, uid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError(CodeUserNotFound)
		}
		return nil, unavailable(err)
	}
	return &ident, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func unavailable(err error) error {
	return &Error{Code: CodeUnavailable, Err: err}
}
