package plugin

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/options"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/snapshot"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMeasurer struct {
	rec types.SizeRecord
	err error
}

func (s stubMeasurer) Measure(_ context.Context, chunk types.Chunk) (*types.SizeRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	rec := s.rec.Clone()
	if !chunk.Treeshakeable() {
		rec.Treeshaked = nil
	}
	return &rec, nil
}

func esRecord() types.SizeRecord {
	return types.SizeRecord{
		Bundled:    12345,
		Minified:   6789,
		Gzipped:    1234,
		Treeshaked: &types.TreeshakeRecord{Code: 456, ImportStatements: 78},
	}
}

func newPlugin(t *testing.T, o options.Options, m Measurer, backend *snapshot.MemoryBackend) (*Plugin, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	p := NewWithOptions(o,
		WithMeasurer(m),
		WithStore(snapshot.NewStore(backend)),
		WithOutput(&out),
	)
	return p, &out
}

func TestNew_RejectsUnknownOptions(t *testing.T) {
	_, err := New(map[string]any{"minify": true, "snapshot": "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfiguration)
	assert.Equal(t, `Options "minify", "snapshot" are invalid`, err.Error())
}

func TestNew_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	p, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, "size-snapshot", p.Name())
	assert.True(t, p.Options().PrintInfo)
	assert.False(t, p.Options().MatchSnapshot)
}

func TestRenderChunk_WriteModePrintsAndRecords(t *testing.T) {
	ctx := context.Background()
	backend := snapshot.NewMemoryBackend(nil)
	p, out := newPlugin(t, options.Options{SnapshotPath: "mem", PrintInfo: true}, stubMeasurer{rec: esRecord()}, backend)

	err := p.RenderChunk(ctx, "code", ChunkInfo{FileName: "index.js"}, OutputOptions{Format: "es"})
	require.NoError(t, err)

	info := out.String()
	assert.Contains(t, info, `Computed sizes of "index.js" with "esm" format`)
	assert.Contains(t, info, "bundler parsing size: ")
	assert.Contains(t, info, "12,345 B")
	assert.Contains(t, info, "6,789 B")
	assert.Contains(t, info, "1,234 B")
	assert.Contains(t, info, "treeshaked with esbuild with production NODE_ENV and minified")
	assert.Contains(t, info, "    import statements size of it: ")

	snap, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.True(t, esRecord().Equal(snap["index.js"]))
}

func TestRenderChunk_PrintInfoDisabled(t *testing.T) {
	backend := snapshot.NewMemoryBackend(nil)
	p, out := newPlugin(t, options.Options{SnapshotPath: "mem"}, stubMeasurer{rec: esRecord()}, backend)

	require.NoError(t, p.RenderChunk(context.Background(), "code", ChunkInfo{FileName: "a.js"}, OutputOptions{Format: "cjs"}))
	assert.Empty(t, out.String())

	snap, err := backend.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap["a.js"].Treeshaked)
}

func TestRenderChunk_MatchMode(t *testing.T) {
	ctx := context.Background()
	stored := esRecord()
	o := options.Options{SnapshotPath: "mem", MatchSnapshot: true, Threshold: 10, PrintInfo: true}

	t.Run("passes within threshold and never prints or writes", func(t *testing.T) {
		backend := snapshot.NewMemoryBackend(snapshot.Snapshot{"index.js": stored})
		grown := stored.Clone()
		grown.Bundled += 10
		p, out := newPlugin(t, o, stubMeasurer{rec: grown}, backend)

		require.NoError(t, p.RenderChunk(ctx, "code", ChunkInfo{FileName: "index.js"}, OutputOptions{Format: "es"}))
		assert.Empty(t, out.String())

		snap, err := backend.Load(ctx)
		require.NoError(t, err)
		assert.True(t, stored.Equal(snap["index.js"]))
	})

	t.Run("fails beyond threshold", func(t *testing.T) {
		backend := snapshot.NewMemoryBackend(snapshot.Snapshot{"index.js": stored})
		grown := stored.Clone()
		grown.Gzipped += 11
		p, _ := newPlugin(t, o, stubMeasurer{rec: grown}, backend)

		err := p.RenderChunk(ctx, "code", ChunkInfo{FileName: "index.js"}, OutputOptions{Format: "es"})
		assert.ErrorIs(t, err, types.ErrSnapshotMismatch)
	})

	t.Run("missing baseline", func(t *testing.T) {
		backend := snapshot.NewMemoryBackend(nil)
		p, _ := newPlugin(t, o, stubMeasurer{rec: stored}, backend)

		err := p.RenderChunk(ctx, "code", ChunkInfo{FileName: "new.js"}, OutputOptions{Format: "es"})
		assert.ErrorIs(t, err, types.ErrMissingBaseline)
	})
}

func TestRenderChunk_MeasurementFailurePropagates(t *testing.T) {
	backend := snapshot.NewMemoryBackend(nil)
	boom := &types.SyntaxError{Stage: "minify", Messages: []string{"Unexpected token"}}
	p, out := newPlugin(t, options.Options{SnapshotPath: "mem", PrintInfo: true}, stubMeasurer{err: boom}, backend)

	err := p.RenderChunk(context.Background(), "(", ChunkInfo{FileName: "bad.js"}, OutputOptions{Format: "es"})
	assert.ErrorIs(t, err, types.ErrSourceSyntax)
	assert.Empty(t, out.String())

	snap, err := backend.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestRenderChunk_StorageFailurePropagates(t *testing.T) {
	backend := snapshot.NewMemoryBackend(nil)
	backend.FailWith(errors.New("read-only filesystem"))
	p, _ := newPlugin(t, options.Options{SnapshotPath: "mem"}, stubMeasurer{rec: esRecord()}, backend)

	err := p.RenderChunk(context.Background(), "code", ChunkInfo{FileName: "a.js"}, OutputOptions{Format: "es"})
	assert.ErrorIs(t, err, types.ErrStorage)
}

func TestInfo_NonESFormatOmitsTreeshake(t *testing.T) {
	rec := esRecord()
	rec.Treeshaked = nil

	info := Info("bundle.cjs", "cjs", rec)
	assert.Contains(t, info, `with "cjs" format`)
	assert.NotContains(t, info, "treeshaked")
	assert.NotContains(t, info, "import statements")
}
