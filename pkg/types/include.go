package types

import (
	"fmt"
	"strings"
)

// QueryInclude names a field that a query result can carry.
type QueryInclude string

const (
	IncludePath     QueryInclude = "path"
	IncludeDocument QueryInclude = "document"
	IncludeChunk    QueryInclude = "chunk"
)

// ParseInclude converts a user-supplied name into a QueryInclude.
func ParseInclude(s string) (QueryInclude, error) {
	switch QueryInclude(strings.ToLower(strings.TrimSpace(s))) {
	case IncludePath:
		return IncludePath, nil
	case IncludeDocument:
		return IncludeDocument, nil
	case IncludeChunk:
		return IncludeChunk, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownInclude, s)
	}
}

// Header returns the label printed before the value in human-readable output.
// Document bodies start on their own line.
func (q QueryInclude) Header() string {
	label := strings.ToUpper(string(q[:1])) + string(q[1:])
	if q == IncludeDocument {
		return label + ":\n"
	}
	return label + ": "
}

// IncludeSet is the ordered list of fields requested for each result.
// Order matters for human-readable output.
type IncludeSet []QueryInclude

// ParseIncludeSet parses names in order, dropping duplicates.
func ParseIncludeSet(names []string) (IncludeSet, error) {
	set := make(IncludeSet, 0, len(names))
	for _, name := range names {
		inc, err := ParseInclude(name)
		if err != nil {
			return nil, err
		}
		if !set.Has(inc) {
			set = append(set, inc)
		}
	}
	return set, nil
}

// DefaultIncludeSet is used when the caller asks for nothing in particular.
func DefaultIncludeSet() IncludeSet {
	return IncludeSet{IncludePath, IncludeDocument}
}

// Has reports whether q is requested.
func (s IncludeSet) Has(q QueryInclude) bool {
	for _, item := range s {
		if item == q {
			return true
		}
	}
	return false
}

// LineRanges reports whether results should be line-range chunks rather than whole files.
func (s IncludeSet) LineRanges() bool {
	return s.Has(IncludeChunk)
}

// Validate rejects empty sets and the chunk+document combination.
func (s IncludeSet) Validate() error {
	if len(s) == 0 {
		return ErrEmptyInclude
	}
	if s.Has(IncludeChunk) && s.Has(IncludeDocument) {
		return ErrIncompatibleInclude
	}
	return nil
}

// Strings returns the names in order.
func (s IncludeSet) Strings() []string {
	out := make([]string, len(s))
	for i, item := range s {
		out[i] = string(item)
	}
	return out
}
