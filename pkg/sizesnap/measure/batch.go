package measure

import (
	"context"
	"runtime"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
	"golang.org/x/sync/errgroup"
)

// Result pairs a chunk with its record or the error that prevented one.
type Result struct {
	Chunk  types.Chunk
	Record *types.SizeRecord
	Err    error
}

// MeasureAll measures chunks with at most workers in flight and returns one
// result per chunk in input order. A failing chunk does not stop the others.
// Workers below one default to the number of CPUs.
func (m *Measurer) MeasureAll(ctx context.Context, chunks []types.Chunk, workers int) []Result {
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	results := make([]Result, len(chunks))

	var g errgroup.Group
	g.SetLimit(workers)

	for i, chunk := range chunks {
		g.Go(func() error {
			rec, err := m.Measure(ctx, chunk)
			results[i] = Result{Chunk: chunk, Record: rec, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
