package repository

import (
	"errors"

	"github.com/noah-isme/studio-api/pkg/docstore"
)

// IsNotFound reports whether err is a missing-document error.
func IsNotFound(err error) bool {
	return errors.Is(err, docstore.ErrNotFound)
}

// optional writes a field only when it carries a value.
func optional(fields docstore.Fields, key, value string) {
	if value != "" {
		fields[key] = value
	}
}
