package tools

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrToolFailed matches every *Error.
	ErrToolFailed = errors.New("external tool failed")
	// ErrMissingOutput is reported when a tool exits cleanly without writing
	// its output file.
	ErrMissingOutput = errors.New("expected output not produced")
)

// Error describes a failed external tool invocation.
type Error struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Tool, e.Err)
	if line := lastLine(e.Stderr); line != "" {
		msg += ": " + line
	}
	return msg
}

func (e *Error) Unwrap() []error {
	return []error{ErrToolFailed, e.Err}
}

// ErrorKind classifies tool failures for logging and retry decisions.
func (e *Error) ErrorKind() string {
	return "external_tool"
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}
