// Package metadata parses the human-readable tag listing printed by
// exiftool into a typed map.
package metadata

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

const (
	KeyReleaseMode         = "Release Mode"
	KeySequenceImageNumber = "Sequence Image Number"
)

// Tags maps exiftool tag names ("Release Mode") to their printed values.
// Unknown tags are kept as-is.
type Tags map[string]string

// Get returns the value of key and whether it was present.
func (t Tags) Get(key string) (string, bool) {
	if t == nil {
		return "", false
	}
	value, ok := t[key]
	return value, ok
}

// ReleaseMode returns the camera drive/release mode, e.g. "Exposure Bracketing".
func (t Tags) ReleaseMode() (string, bool) {
	return t.Get(KeyReleaseMode)
}

// SequenceImageNumber returns the 1-based position of the shot within a burst.
func (t Tags) SequenceImageNumber() (string, bool) {
	return t.Get(KeySequenceImageNumber)
}

// Parse reads "Tag Name : value" lines. Lines without a colon are ignored;
// a repeated tag keeps its last value.
func Parse(output []byte) (Tags, error) {
	tags := make(Tags)
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		tags[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return tags, nil
}
