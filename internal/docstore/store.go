// Package docstore is the document store adapter. It exposes a small
// collection/document API over badger, postgres and sqlite and owns the
// conversion between wire identifiers and the native uuid type.
package docstore

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
)

// Collections known to the store.
const (
	Posts    = "posts"
	Comments = "comments"
	Users    = "users"
)

// Reserved document keys.
const (
	KeyID        = "id"
	KeyCreatedAt = "createdAt"
)

// Document is a stored record. Documents returned by a Store always carry
// KeyID as a canonical id string and KeyCreatedAt as a UTC time.Time.
// Numbers come back as float64.
type Document map[string]any

// ID returns the document id.
func (d Document) ID() string {
	id, _ := d[KeyID].(string)
	return id
}

// CreatedAt returns the creation time.
func (d Document) CreatedAt() time.Time {
	t, _ := d[KeyCreatedAt].(time.Time)
	return t
}

// String returns the string value stored under key.
func (d Document) String(key string) (string, bool) {
	s, ok := d[key].(string)
	return s, ok
}

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Filter matches documents whose fields equal the given scalar values.
type Filter map[string]any

// Sort orders Find results. The zero value orders by id.
type Sort struct {
	Field      string
	Descending bool
}

// Store is implemented by every backend. Implementations are safe for
// concurrent use and InsertOne is visible to any subsequent FindOne.
type Store interface {
	FindOne(ctx context.Context, collection, id string) (Document, error)
	Find(ctx context.Context, collection string, filter Filter, sort Sort) ([]Document, error)
	InsertOne(ctx context.Context, collection string, doc Document) (string, error)
	Close() error
}

func checkCollection(collection string) error {
	switch collection {
	case Posts, Comments, Users:
		return nil
	}
	return errors.Wrapf(ErrUnknownCollection, "%q", collection)
}

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkFilter(filter Filter) error {
	for k, v := range filter {
		if !fieldName.MatchString(k) || k == KeyID || k == KeyCreatedAt {
			return errors.Wrapf(ErrInvalidFilter, "field %q", k)
		}
		switch v.(type) {
		case string, bool, float64, float32, int, int32, int64:
		default:
			return errors.Wrapf(ErrInvalidFilter, "field %q: unsupported value %T", k, v)
		}
	}
	return nil
}

func checkSort(sort Sort) error {
	if sort.Field != "" && sort.Field != KeyID && !fieldName.MatchString(sort.Field) {
		return errors.Wrapf(ErrInvalidFilter, "sort field %q", sort.Field)
	}
	return nil
}

// now is the store's fallback clock for documents inserted without createdAt.
func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
