// Package gzipsize reports the gzip-compressed size of text without keeping
// the compressed bytes around.
package gzipsize

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Level is the compression level used for download-size estimates.
const Level = gzip.BestCompression

// Compressor measures gzip output sizes.
type Compressor struct {
	level int
}

// New creates a Compressor at Level.
func New() *Compressor {
	return &Compressor{level: Level}
}

// NewWithLevel creates a Compressor at an explicit gzip level.
func NewWithLevel(level int) (*Compressor, error) {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		return nil, fmt.Errorf("gzip level %d out of range", level)
	}
	return &Compressor{level: level}, nil
}

// Size returns the byte length of data once gzipped.
func (c *Compressor) Size(ctx context.Context, data string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("gzip: %w", err)
	}

	var cw countingWriter
	zw, err := gzip.NewWriterLevel(&cw, c.level)
	if err != nil {
		return 0, fmt.Errorf("gzip: %w", err)
	}

	if _, err := io.Copy(zw, strings.NewReader(data)); err != nil {
		return 0, fmt.Errorf("gzip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("gzip: %w", err)
	}

	return cw.n, nil
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}
