package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound is returned when a filename has no catalog row.
	ErrFileNotFound = errors.New("file not found in catalog")
	// ErrGroupNotFound is returned when a group has no members.
	ErrGroupNotFound = errors.New("image group not found in catalog")
)

// Error wraps a failed catalog operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind classifies the failure as not_found or storage.
func (e *Error) ErrorKind() string {
	if errors.Is(e.Err, ErrFileNotFound) || errors.Is(e.Err, ErrGroupNotFound) {
		return "not_found"
	}
	return "storage"
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
