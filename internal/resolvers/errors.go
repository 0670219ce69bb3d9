package resolvers

import (
	"github.com/pkg/errors"

	"github.com/hanpama/contentgraph/internal/docstore"
)

// Error codes reported in GraphQL error extensions.
const (
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeBadUserInput     = "BAD_USER_INPUT"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
)

// Error is a field error with a machine-readable code.
type Error struct {
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// Extensions implements executor.ExtendedError.
func (e *Error) Extensions() map[string]any {
	return map[string]any{"code": e.Code}
}

// ErrUnauthenticated rejects writes from callers without an identity.
var ErrUnauthenticated = &Error{Code: CodeUnauthenticated, Message: "User not logged in."}

// classify maps store failures onto coded field errors.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, docstore.ErrInvalidID):
		return &Error{Code: CodeBadUserInput, Message: err.Error(), cause: err}
	case errors.Is(err, docstore.ErrUnavailable):
		return &Error{Code: CodeStoreUnavailable, Message: "Store unavailable.", cause: err}
	}
	return err
}
