package filter

import (
	"path/filepath"
	"strings"
)

// LineRangePresence matches records that carry line-range metadata.
func LineRangePresence() Expr {
	return GreaterEqual{Field: FieldStart, Value: 0}
}

// BuildRetrievalFilter returns the filter used for the main similarity query.
//
// excluded holds absolute file paths that must not appear in the results.
// When lineRanges is set, only records with line-range metadata qualify.
// With both, the two clauses are combined with And; with only the
// line-range requirement the presence clause is returned on its own. The
// result is nil when nothing needs filtering.
func BuildRetrievalFilter(excluded []string, lineRanges bool) Expr {
	var exclusion Expr
	if len(excluded) > 0 {
		values := make([]string, len(excluded))
		copy(values, excluded)
		exclusion = NotIn{Field: FieldPath, Values: values}
	}

	switch {
	case exclusion != nil && lineRanges:
		return And{Clauses: []Expr{exclusion, LineRangePresence()}}
	case lineRanges:
		return LineRangePresence()
	case exclusion != nil:
		return exclusion
	default:
		return nil
	}
}

// ExclusionValues returns each excluded absolute path followed by its form
// relative to root, so records indexed with either form are matched. Paths
// outside root keep only their absolute form.
func ExclusionValues(root string, excluded []string) []string {
	out := make([]string, 0, 2*len(excluded))
	seen := make(map[string]struct{}, 2*len(excluded))
	add := func(v string) {
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, path := range excluded {
		add(path)
		if root == "" {
			continue
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		add(rel)
	}
	return out
}
