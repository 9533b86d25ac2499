// Package grouping derives image-group identities from capture filenames.
//
// Cameras number every exposure of a bracket burst consecutively
// (IMG_0100, IMG_0101, IMG_0102). When the capture metadata says the shot
// was part of an exposure bracket, the numeric core is moved back to the
// first exposure of the burst so all siblings share one group name. The
// derivation is pure: the archiver and the pipeline call it independently
// and must agree.
package grouping

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ExposureBracketing is the release mode value that triggers sequence
// correction.
const ExposureBracketing = "Exposure Bracketing"

// Tags is the metadata view needed for grouping. Each accessor reports
// whether the field was present.
type Tags interface {
	ReleaseMode() (string, bool)
	SequenceImageNumber() (string, bool)
}

// Result is the derived group identity of one file.
type Result struct {
	Group    string
	Sequence int
}

// Stem strips the final extension from a filename and lower-cases it.
func Stem(filename string) string {
	base := filepath.Base(filename)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return cases.Lower(language.Und).String(base)
}

// Derive computes the group name and sequence index for a stem.
func Derive(stem string, tags Tags) Result {
	prefix, core, suffix, ok := split(stem)
	if !ok {
		return Result{Group: stem, Sequence: 1}
	}

	seq := 1
	if n, bracketed, ok := sequenceFromTags(tags); ok {
		seq = n
		if bracketed {
			core = shiftCore(core, n-1)
		}
	}
	return Result{Group: prefix + core + suffix, Sequence: seq}
}

// split returns the leading non-digit prefix, the first run of ASCII digits
// and everything after it.
func split(stem string) (prefix, core, suffix string, ok bool) {
	start := strings.IndexFunc(stem, isDigit)
	if start < 0 {
		return "", "", "", false
	}
	end := start
	for end < len(stem) {
		r, size := utf8.DecodeRuneInString(stem[end:])
		if !isDigit(r) {
			break
		}
		end += size
	}
	return stem[:start], stem[start:end], stem[end:], true
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func sequenceFromTags(tags Tags) (seq int, bracketed bool, ok bool) {
	if tags == nil {
		return 0, false, false
	}
	mode, hasMode := tags.ReleaseMode()
	raw, hasSeq := tags.SequenceImageNumber()
	if !hasMode || !hasSeq {
		return 0, false, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, false, false
	}
	return n, strings.EqualFold(strings.TrimSpace(mode), ExposureBracketing), true
}

// shiftCore subtracts delta from a zero-padded decimal string, keeping its
// width. Values that would go negative or overflow are returned unchanged.
func shiftCore(core string, delta int) string {
	if delta == 0 {
		return core
	}
	value, err := strconv.ParseUint(core, 10, 63)
	if err != nil || uint64(delta) > value {
		return core
	}
	shifted := strconv.FormatUint(value-uint64(delta), 10)
	if pad := len(core) - len(shifted); pad > 0 {
		shifted = strings.Repeat("0", pad) + shifted
	}
	return shifted
}
