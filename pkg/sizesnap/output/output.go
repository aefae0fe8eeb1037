// Package output provides formatters for displaying chunk measurements in
// various output formats (pretty, plain, table, json, yaml, etc.).
//
// Formatters are kept in a registry and selected by name at runtime:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
)

// Status describes what happened to a chunk in a run.
type Status string

const (
	// StatusRecorded means the record was written to the snapshot.
	StatusRecorded Status = "recorded"
	// StatusMatched means the record matched the baseline.
	StatusMatched Status = "ok"
	// StatusMismatch means at least one facet exceeded the threshold.
	StatusMismatch Status = "mismatch"
	// StatusMissing means match mode found no baseline.
	StatusMissing Status = "missing"
	// StatusFailed means the chunk could not be measured.
	StatusFailed Status = "error"
	// StatusStored marks records read back from a snapshot file.
	StatusStored Status = "stored"
)

// Failed reports whether the status counts as a failure.
func (s Status) Failed() bool {
	return s == StatusMismatch || s == StatusMissing || s == StatusFailed
}

// ChunkResult is one row of output.
type ChunkResult struct {
	Name   string            `json:"name" yaml:"name"`
	Format string            `json:"format" yaml:"format"`
	Record *types.SizeRecord `json:"record,omitempty" yaml:"record,omitempty"`

	// Baseline is the stored record, when one was compared against.
	Baseline *types.SizeRecord `json:"baseline,omitempty" yaml:"baseline,omitempty"`

	Status     Status            `json:"status" yaml:"status"`
	Violations []types.Violation `json:"violations,omitempty" yaml:"violations,omitempty"`
	Error      string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result contains the complete output data for formatting.
type Result struct {
	Chunks       []ChunkResult `json:"chunks" yaml:"chunks"`
	Mode         string        `json:"mode" yaml:"mode"`
	SnapshotPath string        `json:"snapshot_path" yaml:"snapshot_path"`
	Duration     time.Duration `json:"duration" yaml:"duration"`

	// Failures counts chunks whose status is a failure.
	Failures int `json:"failures" yaml:"failures"`
}

// Tally recomputes Failures from the chunk statuses.
func (r *Result) Tally() {
	r.Failures = 0
	for _, c := range r.Chunks {
		if c.Status.Failed() {
			r.Failures++
		}
	}
}

// Totals sums each facet over the chunks that have a record.
func (r *Result) Totals() types.SizeRecord {
	var total types.SizeRecord
	for _, c := range r.Chunks {
		if c.Record == nil {
			continue
		}
		total.Bundled += c.Record.Bundled
		total.Minified += c.Record.Minified
		total.Gzipped += c.Record.Gzipped
		if c.Record.Treeshaked != nil {
			if total.Treeshaked == nil {
				total.Treeshaked = &types.TreeshakeRecord{}
			}
			total.Treeshaked.Code += c.Record.Treeshaked.Code
			total.Treeshaked.ImportStatements += c.Record.Treeshaked.ImportStatements
		}
	}
	return total
}

// Columns are the headers shared by the tabular formatters.
var Columns = []string{"CHUNK", "FORMAT", "BUNDLED", "MINIFIED", "GZIPPED", "TREESHAKED", "IMPORTS", "STATUS"}

// cells renders a row using size for the numeric columns. Missing facets
// are shown as "-".
func (c ChunkResult) cells(size func(int64) string) []string {
	row := []string{c.Name, types.PrettyFormat(c.Format), "-", "-", "-", "-", "-", string(c.Status)}
	if c.Record == nil {
		return row
	}
	row[2] = size(c.Record.Bundled)
	row[3] = size(c.Record.Minified)
	row[4] = size(c.Record.Gzipped)
	if ts := c.Record.Treeshaked; ts != nil {
		row[5] = size(ts.Code)
		row[6] = size(ts.ImportStatements)
	}
	return row
}

func rawSize(n int64) string {
	return strconv.FormatInt(n, 10)
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry, replacing any existing
// formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
