package docstore

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned by FindOne when no document has the id.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidID is returned when a string is not a well-formed identifier.
	ErrInvalidID = errors.New("invalid identifier")
	// ErrUnavailable marks failures of the underlying storage engine.
	ErrUnavailable = errors.New("store unavailable")
	// ErrUnknownCollection is returned for collections outside the fixed set.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrInvalidFilter is returned for filters or sorts the store cannot evaluate.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrUnsupportedValue is returned when a document holds a value that
	// cannot be persisted.
	ErrUnsupportedValue = errors.New("unsupported document value")
)

type unavailableError struct {
	op  string
	err error
}

func (e *unavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.op, e.err)
}

func (e *unavailableError) Is(target error) bool { return target == ErrUnavailable }

func (e *unavailableError) Unwrap() error { return e.err }

// unavailable wraps a driver error so that errors.Is(err, ErrUnavailable)
// holds while the driver error stays reachable.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&unavailableError{op: op, err: err})
}
