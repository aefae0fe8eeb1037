// Package snapshot persists size records keyed by chunk name and reconciles
// new measurements against them.
package snapshot

import (
	"context"
	"sort"
	"sync"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/logging"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
)

// Snapshot maps chunk names to their stored records.
type Snapshot map[string]types.SizeRecord

// Names returns the chunk names in sorted order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Backend loads and saves a whole snapshot. Load of a snapshot that does not
// exist yet returns an empty snapshot and no error.
type Backend interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Location() string
}

// Locker is implemented by backends that can exclude other processes during
// a read-modify-write cycle.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// Store reconciles size records with a persisted snapshot.
type Store struct {
	backend Backend
	mu      sync.Mutex
	log     *logging.Logger
}

// NewStore creates a Store over backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend, log: logging.Get("snapshot")}
}

// Open creates a Store over the snapshot file at path.
func Open(path string) *Store {
	return NewStore(NewFileBackend(path))
}

// Location describes where the snapshot lives.
func (s *Store) Location() string {
	return s.backend.Location()
}

// Load returns the current snapshot.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Load(ctx)
}

// Write stores rec under name, keeping every other entry.
func (s *Store) Write(ctx context.Context, name string, rec types.SizeRecord) error {
	return s.WriteAll(ctx, map[string]types.SizeRecord{name: rec})
}

// WriteAll stores several records in one read-modify-write cycle.
func (s *Store) WriteAll(ctx context.Context, records map[string]types.SizeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if locker, ok := s.backend.(Locker); ok {
		unlock, err := locker.Lock(ctx)
		if err != nil {
			return err
		}
		defer unlock()
	}

	snap, err := s.backend.Load(ctx)
	if err != nil {
		return err
	}
	for name, rec := range records {
		snap[name] = rec.Clone()
	}
	if err := s.backend.Save(ctx, snap); err != nil {
		return err
	}

	s.log.Debug("snapshot written", "path", s.backend.Location(), "entries", len(records), "total", len(snap))
	return nil
}

// Match compares rec against the stored entry for name. Any field that grew
// by more than threshold bytes is a violation; all violations are reported
// together in a *types.MismatchError. Match never writes.
func (s *Store) Match(ctx context.Context, name string, rec types.SizeRecord, threshold int64) error {
	snap, err := s.Load(ctx)
	if err != nil {
		return err
	}

	stored, ok := snap[name]
	if !ok {
		return &types.MissingBaselineError{Name: name, Path: s.backend.Location()}
	}

	if violations := Compare(stored, rec, threshold); len(violations) > 0 {
		s.log.Debug("snapshot mismatch", "chunk", name, "violations", len(violations))
		return &types.MismatchError{Name: name, Violations: violations}
	}
	return nil
}

// Compare returns the fields of got that exceed stored by more than
// threshold. Fields absent from stored count as zero.
func Compare(stored, got types.SizeRecord, threshold int64) []types.Violation {
	var violations []types.Violation
	for _, f := range got.Fields() {
		prev, _ := stored.Lookup(f.Path)
		if f.Value-prev > threshold {
			violations = append(violations, types.Violation{
				Field:     f.Path,
				Stored:    prev,
				Got:       f.Value,
				Threshold: threshold,
			})
		}
	}
	return violations
}

// FieldDelta is the change of one field between two records.
type FieldDelta struct {
	Field  string `json:"field" yaml:"field"`
	Stored int64  `json:"stored" yaml:"stored"`
	Got    int64  `json:"got" yaml:"got"`
	Delta  int64  `json:"delta" yaml:"delta"`
}

// Deltas lists every field present in either record with its change.
func Deltas(stored, got types.SizeRecord) []FieldDelta {
	seen := make(map[string]bool)
	var out []FieldDelta

	for _, f := range got.Fields() {
		prev, _ := stored.Lookup(f.Path)
		out = append(out, FieldDelta{Field: f.Path, Stored: prev, Got: f.Value, Delta: f.Value - prev})
		seen[f.Path] = true
	}
	for _, f := range stored.Fields() {
		if !seen[f.Path] {
			out = append(out, FieldDelta{Field: f.Path, Stored: f.Value, Delta: -f.Value})
		}
	}
	return out
}
