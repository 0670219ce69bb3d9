package reqid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Header is the HTTP header carrying the request ID in both directions.
const Header = "X-Request-Id"

// key is the context key for the request ID.
type key struct{}

// NewContext returns a copy of parent with a new random request ID stored.
// It also returns the generated ID.
func NewContext(parent context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(parent, key{}, id), id
}

// FromRequest returns a copy of r's context carrying the request ID. A
// well-formed uuid in the X-Request-Id header is reused; anything else is
// replaced with a fresh id.
func FromRequest(r *http.Request) (context.Context, string) {
	if h := r.Header.Get(Header); h != "" {
		if u, err := uuid.Parse(h); err == nil {
			id := u.String()
			return context.WithValue(r.Context(), key{}, id), id
		}
	}
	return NewContext(r.Context())
}

// FromContext extracts the request ID from ctx.
// It returns the ID and whether it was present.
func FromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(key{})
	id, ok := v.(string)
	return id, ok
}
