package output

import (
	"bytes"
	"time"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
	jsoniter "github.com/json-iterator/go"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// document is the structure shared by the json and yaml formatters.
type document struct {
	Chunks []ChunkResult `json:"chunks" yaml:"chunks"`
	Meta   documentMeta  `json:"meta" yaml:"meta"`
}

type documentMeta struct {
	Mode         string           `json:"mode,omitempty" yaml:"mode,omitempty"`
	SnapshotPath string           `json:"snapshot_path,omitempty" yaml:"snapshot_path,omitempty"`
	Duration     string           `json:"duration,omitempty" yaml:"duration,omitempty"`
	Chunks       int              `json:"chunks" yaml:"chunks"`
	Failures     int              `json:"failures" yaml:"failures"`
	Totals       types.SizeRecord `json:"totals" yaml:"totals"`
}

func buildDocument(r *Result) document {
	chunks := r.Chunks
	if chunks == nil {
		chunks = []ChunkResult{}
	}
	return document{
		Chunks: chunks,
		Meta: documentMeta{
			Mode:         r.Mode,
			SnapshotPath: r.SnapshotPath,
			Duration:     formatDurationString(r.Duration),
			Chunks:       len(r.Chunks),
			Failures:     r.Failures,
			Totals:       r.Totals(),
		},
	}
}

// formatDurationString formats a duration for machine-readable output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

// JSONFormatter formats output as a single indented JSON object.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := codec.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildDocument(r))
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

var _ Formatter = (*JSONFormatter)(nil)

// JSONLFormatter writes one compact JSON object per chunk, for streaming
// into tools like jq.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, c := range r.Chunks {
		data, err := codec.Marshal(c)
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

var _ Formatter = (*JSONLFormatter)(nil)
