// Package viewer builds the per-request authorization context: the optional
// identity of the caller, projected from what the identity collaborator
// attached to the request.
package viewer

import (
	"context"
	"net/http"
)

// Viewer is the immutable authorization context of one request. The zero
// value is the anonymous viewer.
type Viewer struct {
	userID string
}

// Anonymous returns a viewer without identity.
func Anonymous() Viewer { return Viewer{} }

// ForUser returns a viewer for the given user id. An empty id yields the
// anonymous viewer.
func ForUser(id string) Viewer { return Viewer{userID: id} }

// UserID reports the caller's id and whether an identity is present.
func (v Viewer) UserID() (string, bool) {
	return v.userID, v.userID != ""
}

// Authenticated reports whether the viewer carries an identity.
func (v Viewer) Authenticated() bool { return v.userID != "" }

// IdentitySource is the identity collaborator: it answers whether the request
// carries a resolved identity and, if so, its id.
type IdentitySource interface {
	Identity(r *http.Request) (id string, ok bool)
}

// Build projects the identity already resolved for r into a Viewer. It does
// no I/O and never fails; a nil source yields the anonymous viewer.
func Build(r *http.Request, src IdentitySource) Viewer {
	if src == nil {
		return Anonymous()
	}
	id, ok := src.Identity(r)
	if !ok || id == "" {
		return Anonymous()
	}
	return ForUser(id)
}

type key struct{}

// NewContext returns a copy of parent carrying v.
func NewContext(parent context.Context, v Viewer) context.Context {
	return context.WithValue(parent, key{}, v)
}

// FromContext returns the viewer stored in ctx, or the anonymous viewer.
func FromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(key{}).(Viewer)
	return v
}
