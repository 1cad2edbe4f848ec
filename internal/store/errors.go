package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotReady is returned for operations issued before the store finished opening.
	ErrNotReady = errors.New("store not ready")
	// ErrUnknownCollection is returned for a collection name outside the schema.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store closed")
)

// Error is a failed store operation. Code carries the SQLite engine's primary
// result code when the failure came from the engine, zero otherwise.
type Error struct {
	Op         string
	Collection Collection
	Code       sqlite3.ErrNo
	Extended   sqlite3.ErrNoExtended
	Err        error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("store %s %s: %v (code %d)", e.Op, e.Collection, e.Err, int(e.Code))
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsConstraint reports whether err is a store failure caused by a uniqueness
// or other constraint violation.
func IsConstraint(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

func wrapErr(op string, c Collection, err error) error {
	if err == nil {
		return nil
	}
	se := &Error{Op: op, Collection: c, Err: err}
	var engineErr sqlite3.Error
	if errors.As(err, &engineErr) {
		se.Code = engineErr.Code
		se.Extended = engineErr.ExtendedCode
	}
	return se
}
