// Package measure derives the size record of a chunk: its raw, minified and
// gzipped sizes, plus the tree-shaken sizes for ES-module chunks.
package measure

import (
	"context"
	"fmt"
	"time"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/gzipsize"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/logging"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/minify"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/treeshake"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
	"golang.org/x/sync/errgroup"
)

// Minifier minifies source text.
type Minifier interface {
	Minify(ctx context.Context, src string, opts minify.Options) (string, error)
}

// Compressor reports compressed sizes.
type Compressor interface {
	Size(ctx context.Context, data string) (int64, error)
}

// Treeshaker evaluates the tree-shaken size of ES-module code.
type Treeshaker interface {
	Evaluate(ctx context.Context, code string) (types.TreeshakeRecord, error)
}

// Cache memoizes records by chunk content. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(chunk types.Chunk) (*types.SizeRecord, bool)
	Put(chunk types.Chunk, rec types.SizeRecord) error
}

// Measurer aggregates the size facets of chunks.
type Measurer struct {
	minifier   Minifier
	compressor Compressor
	treeshaker Treeshaker
	cache      Cache
	timeout    time.Duration
	log        *logging.Logger
}

// Option configures a Measurer.
type Option func(*Measurer)

// WithMinifier replaces the default esbuild minifier.
func WithMinifier(m Minifier) Option {
	return func(ms *Measurer) { ms.minifier = m }
}

// WithCompressor replaces the default gzip compressor.
func WithCompressor(c Compressor) Option {
	return func(ms *Measurer) { ms.compressor = c }
}

// WithTreeshaker replaces the default tree-shake evaluator.
func WithTreeshaker(t Treeshaker) Option {
	return func(ms *Measurer) { ms.treeshaker = t }
}

// WithCache enables memoization of records.
func WithCache(c Cache) Option {
	return func(ms *Measurer) { ms.cache = c }
}

// WithTimeout bounds the time spent measuring one chunk. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(ms *Measurer) { ms.timeout = d }
}

// New creates a Measurer backed by esbuild and gzip unless overridden.
func New(opts ...Option) *Measurer {
	m := &Measurer{log: logging.Get("measure")}
	for _, opt := range opts {
		opt(m)
	}
	if m.minifier == nil {
		m.minifier = minify.New()
	}
	if m.compressor == nil {
		m.compressor = gzipsize.New()
	}
	if m.treeshaker == nil {
		if mm, ok := m.minifier.(*minify.Minifier); ok {
			m.treeshaker = treeshake.New(mm)
		} else {
			m.treeshaker = treeshake.New(minify.New())
		}
	}
	return m
}

// Measure computes the size record of chunk. On any failure no record is
// returned.
func (m *Measurer) Measure(ctx context.Context, chunk types.Chunk) (*types.SizeRecord, error) {
	chunk.Source = types.NormalizeSource(chunk.Source)

	if m.cache != nil {
		if rec, ok := m.cache.Get(chunk); ok {
			m.log.Debug("cache hit", "chunk", chunk.Name)
			return rec, nil
		}
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	rec := &types.SizeRecord{Bundled: types.Length(chunk.Source)}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		minified, err := m.minifier.Minify(gctx, chunk.Source, minify.Options{})
		if err != nil {
			return err
		}
		gzipped, err := m.compressor.Size(gctx, minified)
		if err != nil {
			return err
		}
		rec.Minified = types.Length(minified)
		rec.Gzipped = gzipped
		return nil
	})

	if chunk.Treeshakeable() {
		g.Go(func() error {
			ts, err := m.treeshaker.Evaluate(gctx, chunk.Source)
			if err != nil {
				return err
			}
			rec.Treeshaked = &ts
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		m.log.Debug("measurement failed", "chunk", chunk.Name, "error", err)
		return nil, fmt.Errorf("measuring %s: %w", chunk.Name, err)
	}

	m.log.Debug("chunk measured",
		"chunk", chunk.Name,
		"format", chunk.Format,
		"bundled", rec.Bundled,
		"gzipped", rec.Gzipped,
		"duration", time.Since(start),
	)

	if m.cache != nil {
		if err := m.cache.Put(chunk, *rec); err != nil {
			m.log.Warn("cache write failed", "chunk", chunk.Name, "error", err)
		}
	}

	return rec, nil
}
