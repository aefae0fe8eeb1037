package filter

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/gobwas/glob"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/output"
)

// Filter defines criteria for selecting, sorting and limiting chunks.
type Filter struct {
	// Include contains glob patterns. If non-empty, names must match at
	// least one.
	Include []string

	// Exclude contains glob patterns. Matching names are excluded.
	Exclude []string

	SortBy         SortField
	SortDescending bool

	// Limit is the maximum number of chunks to return. 0 means unlimited.
	Limit int

	include []glob.Glob
	exclude []glob.Glob
}

// Option is a functional option for configuring a Filter.
type Option func(*Filter)

// New creates a Filter. By default chunks keep their order and are not
// limited. Invalid glob patterns are an error.
func New(opts ...Option) (*Filter, error) {
	f := &Filter{SortBy: SortName}
	for _, opt := range opts {
		opt(f)
	}

	var err error
	if f.include, err = compile(f.Include); err != nil {
		return nil, err
	}
	if f.exclude, err = compile(f.Exclude); err != nil {
		return nil, err
	}
	return f, nil
}

func compile(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// WithInclude sets the include glob patterns.
func WithInclude(patterns ...string) Option {
	return func(f *Filter) {
		f.Include = patterns
	}
}

// WithExclude sets the exclude glob patterns.
func WithExclude(patterns ...string) Option {
	return func(f *Filter) {
		f.Exclude = patterns
	}
}

// WithSortBy sets the facet to sort by.
func WithSortBy(field SortField) Option {
	return func(f *Filter) {
		f.SortBy = field
	}
}

// WithSortDescending sets whether to sort in descending order.
func WithSortDescending(desc bool) Option {
	return func(f *Filter) {
		f.SortDescending = desc
	}
}

// WithLimit sets the maximum number of chunks to return. Negative values
// mean unlimited.
func WithLimit(limit int) Option {
	return func(f *Filter) {
		f.Limit = max(limit, 0)
	}
}

// MatchName reports whether a chunk name passes the include and exclude
// patterns. Exclusion wins.
func (f *Filter) MatchName(name string) bool {
	for _, g := range f.exclude {
		if g.Match(name) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, g := range f.include {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Sort returns a sorted copy of chunks. Chunks without a record sort
// after those with one, whatever the direction. Ties keep input order.
func (f *Filter) Sort(chunks []output.ChunkResult) []output.ChunkResult {
	sorted := slices.Clone(chunks)
	if sorted == nil {
		sorted = []output.ChunkResult{}
	}

	slices.SortStableFunc(sorted, func(a, b output.ChunkResult) int {
		if f.SortBy != SortName {
			switch {
			case a.Record == nil && b.Record == nil:
				return 0
			case a.Record == nil:
				return 1
			case b.Record == nil:
				return -1
			}
		}

		var result int
		switch f.SortBy {
		case SortBundled:
			result = cmp.Compare(a.Record.Bundled, b.Record.Bundled)
		case SortMinified:
			result = cmp.Compare(a.Record.Minified, b.Record.Minified)
		case SortGzipped:
			result = cmp.Compare(a.Record.Gzipped, b.Record.Gzipped)
		case SortTreeshaked:
			result = cmp.Compare(treeshaked(a), treeshaked(b))
		default:
			result = cmp.Compare(a.Name, b.Name)
		}

		if f.SortDescending {
			return -result
		}
		return result
	})
	return sorted
}

func treeshaked(c output.ChunkResult) int64 {
	if c.Record.Treeshaked == nil {
		return -1
	}
	return c.Record.Treeshaked.Code
}

// Apply runs the pipeline: match names, sort, limit.
func (f *Filter) Apply(chunks []output.ChunkResult) []output.ChunkResult {
	var matched []output.ChunkResult
	for _, c := range chunks {
		if f.MatchName(c.Name) {
			matched = append(matched, c)
		}
	}

	sorted := f.Sort(matched)
	if f.Limit > 0 && len(sorted) > f.Limit {
		return sorted[:f.Limit]
	}
	return sorted
}
