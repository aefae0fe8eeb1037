// Package filter selects, sorts and limits chunk results.
package filter

import (
	"errors"
	"fmt"
	"strings"
)

// SortField specifies the facet to sort chunks by.
type SortField int

const (
	// SortName sorts chunks by name.
	SortName SortField = iota
	// SortBundled sorts by raw size.
	SortBundled
	// SortMinified sorts by minified size.
	SortMinified
	// SortGzipped sorts by gzipped size.
	SortGzipped
	// SortTreeshaked sorts by tree-shaken code size.
	SortTreeshaked
)

var sortFieldNames = map[SortField]string{
	SortName:       "name",
	SortBundled:    "bundled",
	SortMinified:   "minified",
	SortGzipped:    "gzipped",
	SortTreeshaked: "treeshaked",
}

// String returns the string representation of the sort field.
func (s SortField) String() string {
	if name, ok := sortFieldNames[s]; ok {
		return name
	}
	return "name"
}

// ErrInvalidSortField indicates that the sort field string could not be parsed.
var ErrInvalidSortField = errors.New("invalid sort field")

// ParseSortField parses a sort field name (case-insensitive).
func ParseSortField(s string) (SortField, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for field, name := range sortFieldNames {
		if name == want {
			return field, nil
		}
	}
	return SortName, fmt.Errorf("%w: %q (valid: name, bundled, minified, gzipped, treeshaked)", ErrInvalidSortField, s)
}
