// Package types provides the core data types for sizesnap: the chunk being
// measured, the multi-facet size record derived from it, and helpers for
// formatting byte sizes.
package types

import (
	"strings"

	"github.com/dustin/go-humanize"
)

// Output formats that support ES-module tree-shaking.
const (
	FormatES  = "es"
	FormatESM = "esm"
)

// Chunk identifies one unit of measurement: a named piece of compiled output
// text and the module format it was emitted in. Chunks are transient; only the
// SizeRecord derived from them is persisted.
type Chunk struct {
	// Name is the output file name, unique per build.
	Name string `json:"name"`

	// Source is the raw chunk text.
	Source string `json:"-"`

	// Format is the bundler output format (e.g. "es", "cjs", "iife").
	Format string `json:"format"`
}

// Treeshakeable reports whether the chunk format supports ES-module-level
// tree-shaking.
func (c Chunk) Treeshakeable() bool {
	return IsESFormat(c.Format)
}

// IsESFormat reports whether format names an ES-module output format.
func IsESFormat(format string) bool {
	return format == FormatES || format == FormatESM
}

// PrettyFormat returns the display name of a format ("es" is shown as "esm").
func PrettyFormat(format string) string {
	if format == FormatES {
		return FormatESM
	}
	return format
}

// TreeshakeRecord holds the sizes of a chunk after an isolated production
// build with dead-code elimination and top-level minification.
type TreeshakeRecord struct {
	// Code is the length of the minified tree-shaken output.
	Code int64 `json:"code" yaml:"code"`

	// ImportStatements is the summed span of top-level import declarations
	// left in that output.
	ImportStatements int64 `json:"import_statements" yaml:"import_statements"`
}

// SizeRecord is the multi-facet size measurement of a single chunk.
// Bundled, Minified and the tree-shake facets count UTF-16 code units (see
// Length); Gzipped counts bytes of the compressed stream. Treeshaked is only
// set for ES-module formats.
type SizeRecord struct {
	Bundled    int64            `json:"bundled" yaml:"bundled"`
	Minified   int64            `json:"minified" yaml:"minified"`
	Gzipped    int64            `json:"gzipped" yaml:"gzipped"`
	Treeshaked *TreeshakeRecord `json:"treeshaked,omitempty" yaml:"treeshaked,omitempty"`
}

// Field is one named numeric facet of a SizeRecord.
type Field struct {
	// Path is the dotted field path, e.g. "treeshaked.code".
	Path  string
	Value int64
}

// Fields flattens the record into its numeric facets, recursing into the
// tree-shake record when present. The order is stable.
func (r SizeRecord) Fields() []Field {
	fields := []Field{
		{Path: "bundled", Value: r.Bundled},
		{Path: "minified", Value: r.Minified},
		{Path: "gzipped", Value: r.Gzipped},
	}
	if r.Treeshaked != nil {
		fields = append(fields,
			Field{Path: "treeshaked.code", Value: r.Treeshaked.Code},
			Field{Path: "treeshaked.import_statements", Value: r.Treeshaked.ImportStatements},
		)
	}
	return fields
}

// Lookup returns the value of the facet at path.
func (r SizeRecord) Lookup(path string) (int64, bool) {
	for _, f := range r.Fields() {
		if f.Path == path {
			return f.Value, true
		}
	}
	return 0, false
}

// Equal reports whether two records carry the same facets and values.
func (r SizeRecord) Equal(other SizeRecord) bool {
	a, b := r.Fields(), other.Fields()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the record.
func (r SizeRecord) Clone() SizeRecord {
	out := r
	if r.Treeshaked != nil {
		ts := *r.Treeshaked
		out.Treeshaked = &ts
	}
	return out
}

// NormalizeSource strips carriage returns so that sizes are stable across
// platforms.
func NormalizeSource(source string) string {
	return strings.ReplaceAll(source, "\r", "")
}

// Length is the size of s in UTF-16 code units, the unit JavaScript string
// lengths use. Characters outside the Basic Multilingual Plane count twice.
func Length(s string) int64 {
	var n int64
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// FormatSize converts a size in bytes to a human-readable string.
// Sizes below one KiB are printed with thousands separators ("512 B");
// larger sizes use binary (IEC) units ("1.5 KiB").
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return "-" + FormatSize(-bytes)
	}
	if bytes < 1024 {
		return humanize.Comma(bytes) + " B"
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatBytes prints an exact byte count with thousands separators.
func FormatBytes(bytes int64) string {
	return humanize.Comma(bytes) + " B"
}
