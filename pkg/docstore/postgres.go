package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	selectDocument = `SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2`
	lockDocument   = `SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`
	upsertDocument = `INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	updateDocument = `UPDATE documents SET data = $3, updated_at = $4 WHERE collection = $1 AND id = $2`
	deleteDocument = `DELETE FROM documents WHERE collection = $1 AND id = $2`
)

type documentRow struct {
	ID        string    `db:"id"`
	Data      []byte    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r documentRow) document() (Document, error) {
	data := map[string]interface{}{}
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return Document{}, unavailable("decode document "+r.ID, err)
	}
	return Document{ID: r.ID, Data: data, CreateTime: r.CreatedAt, UpdateTime: r.UpdatedAt}, nil
}

// PostgresStore keeps every collection in the JSONB documents table.
type PostgresStore struct {
	db       *sqlx.DB
	observer Observer
	now      func() time.Time
}

// NewPostgresStore wraps db. observer may be nil.
func NewPostgresStore(db *sqlx.DB, observer Observer) *PostgresStore {
	return &PostgresStore{db: db, observer: observer, now: func() time.Time { return time.Now().UTC() }}
}

func (s *PostgresStore) NewID() string { return newID() }

func (s *PostgresStore) Set(ctx context.Context, collection, id string, fields Fields, opts ...SetOption) error {
	if err := checkRef(collection, id); err != nil {
		return err
	}
	defer observe(s.observer, "docstore.set."+collection, time.Now())
	o := applySetOptions(opts)
	now := s.now()

	if !o.merge {
		data, err := apply(nil, fields, now, false)
		if err != nil {
			return err
		}
		return s.write(ctx, s.db, upsertDocument, collection, id, data, now)
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		existing, err := s.lock(ctx, tx, collection, id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		data, err := apply(existing, fields, now, true)
		if err != nil {
			return err
		}
		return s.write(ctx, tx, upsertDocument, collection, id, data, now)
	})
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := checkRef(collection, id); err != nil {
		return nil, err
	}
	defer observe(s.observer, "docstore.get."+collection, time.Now())

	var row documentRow
	if err := s.db.GetContext(ctx, &row, selectDocument, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(collection, id)
		}
		return nil, unavailable("get document", err)
	}
	doc, err := row.document()
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *PostgresStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if collection == "" {
		return nil, invalidArgument("collection required")
	}
	query, args, err := buildQuery(collection, filters)
	if err != nil {
		return nil, err
	}
	defer observe(s.observer, "docstore.query."+collection, time.Now())

	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, unavailable("query documents", err)
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	if err := checkRef(collection, id); err != nil {
		return err
	}
	defer observe(s.observer, "docstore.update."+collection, time.Now())
	now := s.now()

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		existing, err := s.lock(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		data, err := apply(existing, fields, now, true)
		if err != nil {
			return err
		}
		return s.write(ctx, tx, updateDocument, collection, id, data, now)
	})
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	if err := checkRef(collection, id); err != nil {
		return err
	}
	defer observe(s.observer, "docstore.delete."+collection, time.Now())

	if _, err := s.db.ExecContext(ctx, deleteDocument, collection, id); err != nil {
		return unavailable("delete document", err)
	}
	return nil
}

// buildQuery translates filters into JSONB containment predicates.
func buildQuery(collection string, filters []Filter) (string, []interface{}, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1`)
	args := []interface{}{collection}
	for _, f := range filters {
		if err := f.validate(); err != nil {
			return "", nil, err
		}
		value, err := normalize(f.Value)
		if err != nil {
			return "", nil, err
		}
		if f.Op == OpArrayContains {
			value = []interface{}{value}
		}
		fragment, err := json.Marshal(map[string]interface{}{f.Field: value})
		if err != nil {
			return "", nil, invalidArgument(err.Error())
		}
		args = append(args, string(fragment))
		fmt.Fprintf(&sb, " AND data @> $%d::jsonb", len(args))
	}
	sb.WriteString(" ORDER BY id")
	return sb.String(), args, nil
}

func (s *PostgresStore) lock(ctx context.Context, tx *sqlx.Tx, collection, id string) (map[string]interface{}, error) {
	var raw []byte
	if err := tx.GetContext(ctx, &raw, lockDocument, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(collection, id)
		}
		return nil, unavailable("lock document", err)
	}
	data := map[string]interface{}{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, unavailable("decode document", err)
	}
	return data, nil
}

func (s *PostgresStore) write(ctx context.Context, exec sqlx.ExecerContext, query, collection, id string, data map[string]interface{}, now time.Time) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return invalidArgument(err.Error())
	}
	if _, err := exec.ExecContext(ctx, query, collection, id, payload, now); err != nil {
		return unavailable("write document", err)
	}
	return nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit transaction", err)
	}
	return nil
}
