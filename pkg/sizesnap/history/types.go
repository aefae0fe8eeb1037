// Package history records one entry per measurement run so that size trends
// can be inspected after the fact.
package history

import (
	"time"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
)

// Mode is the snapshot mode a run was made in.
type Mode string

const (
	// ModeWrite records measurements into the snapshot.
	ModeWrite Mode = "write"
	// ModeMatch compares measurements against the snapshot.
	ModeMatch Mode = "match"
)

// Entry is one recorded run.
type Entry struct {
	ID           string        `json:"id"`
	Timestamp    time.Time     `json:"timestamp"`
	Mode         Mode          `json:"mode"`
	SnapshotPath string        `json:"snapshot_path"`
	Chunks       []ChunkRecord `json:"chunks"`
	Summary      Summary       `json:"summary"`
}

// ChunkRecord is the outcome of one chunk in a run. Record is nil when the
// chunk failed.
type ChunkRecord struct {
	Name   string            `json:"name"`
	Format string            `json:"format"`
	Record *types.SizeRecord `json:"record,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Summary aggregates a run.
type Summary struct {
	Chunks       int   `json:"chunks"`
	Failures     int   `json:"failures"`
	TotalBundled int64 `json:"total_bundled"`
	TotalGzipped int64 `json:"total_gzipped"`
}

// Summarize computes the summary of chunks.
func Summarize(chunks []ChunkRecord) Summary {
	s := Summary{Chunks: len(chunks)}
	for _, c := range chunks {
		if c.Record == nil {
			s.Failures++
			continue
		}
		s.TotalBundled += c.Record.Bundled
		s.TotalGzipped += c.Record.Gzipped
	}
	return s
}
