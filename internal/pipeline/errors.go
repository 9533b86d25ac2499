package pipeline

import (
	"errors"
	"fmt"
)

// ErrMemberNotFound is returned when a catalogued file is missing from the
// archive tree.
var ErrMemberNotFound = errors.New("group member not found in archive")

// ResolveError reports the members of a group that could not be located.
type ResolveError struct {
	Group   string
	Missing []string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("group %s: %v: %v", e.Group, ErrMemberNotFound, e.Missing)
}

func (e *ResolveError) Is(target error) bool {
	return target == ErrMemberNotFound
}

// ErrorKind classifies the failure for logging.
func (e *ResolveError) ErrorKind() string {
	return "not_found"
}
