// Package docstore is a small document database abstraction: named collections of
// JSON-like documents keyed by string ids, with server-side field transforms
// (timestamps, array union/remove) and equality/array-contains queries.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Fields is a set of top-level document fields, possibly containing sentinels.
type Fields map[string]interface{}

// Document is a stored record. Data holds JSON-normalised values.
type Document struct {
	ID         string
	Data       map[string]interface{}
	CreateTime time.Time
	UpdateTime time.Time
}

// DataTo decodes the document fields into dest.
func (d *Document) DataTo(dest interface{}) error {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", d.ID, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Op is a query comparison operator.
type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

// Filter restricts a query to documents whose Field satisfies Op against Value.
type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

// Where builds a Filter.
func Where(field string, op Op, value interface{}) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

func (f Filter) validate() error {
	if f.Field == "" {
		return invalidArgument("filter field required")
	}
	if f.Op != OpEqual && f.Op != OpArrayContains {
		return invalidArgument(fmt.Sprintf("unsupported operator %q", f.Op))
	}
	return nil
}

// SetOption alters Set behaviour.
type SetOption func(*setOptions)

type setOptions struct {
	merge bool
}

// Merge keeps fields of an existing document that are not named in the write.
func Merge() SetOption {
	return func(o *setOptions) { o.merge = true }
}

func applySetOptions(opts []SetOption) setOptions {
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Store is implemented by every backend.
type Store interface {
	// NewID returns a fresh document id.
	NewID() string
	// Set creates or overwrites a document.
	Set(ctx context.Context, collection, id string, fields Fields, opts ...SetOption) error
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Query returns all documents matching every filter.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	// Update merges fields into an existing document; missing documents yield ErrNotFound.
	Update(ctx context.Context, collection, id string, fields Fields) error
	// Delete removes a document. Deleting a missing document succeeds.
	Delete(ctx context.Context, collection, id string) error
}

// Observer receives timings for backend operations.
type Observer interface {
	ObserveDBQuery(label string, duration time.Duration)
}

func newID() string {
	return uuid.NewString()
}

func checkRef(collection, id string) error {
	if collection == "" {
		return invalidArgument("collection required")
	}
	if id == "" {
		return invalidArgument("document id required")
	}
	return nil
}

func observe(o Observer, label string, start time.Time) {
	if o != nil {
		o.ObserveDBQuery(label, time.Since(start))
	}
}
