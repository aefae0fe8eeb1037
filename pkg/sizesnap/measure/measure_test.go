package measure

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/minify"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMinifier strips spaces and records its outputs.
type fakeMinifier struct {
	mu      sync.Mutex
	outputs []string
	inputs  []string
	err     error
}

func (f *fakeMinifier) Minify(_ context.Context, src string, _ minify.Options) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	out := strings.ReplaceAll(src, " ", "")
	f.mu.Lock()
	f.inputs = append(f.inputs, src)
	f.outputs = append(f.outputs, out)
	f.mu.Unlock()
	return out, nil
}

// fakeCompressor reports half the input length and records its inputs.
type fakeCompressor struct {
	mu     sync.Mutex
	inputs []string
}

func (f *fakeCompressor) Size(_ context.Context, data string) (int64, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, data)
	f.mu.Unlock()
	return int64(len(data) / 2), nil
}

type fakeTreeshaker struct {
	mu     sync.Mutex
	calls  int
	inputs []string
	rec    types.TreeshakeRecord
	err    error
	delay  time.Duration
}

func (f *fakeTreeshaker) Evaluate(ctx context.Context, code string) (types.TreeshakeRecord, error) {
	f.mu.Lock()
	f.calls++
	f.inputs = append(f.inputs, code)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return types.TreeshakeRecord{}, ctx.Err()
		}
	}
	return f.rec, f.err
}

func newFakes() (*fakeMinifier, *fakeCompressor, *fakeTreeshaker) {
	return &fakeMinifier{}, &fakeCompressor{}, &fakeTreeshaker{rec: types.TreeshakeRecord{Code: 7, ImportStatements: 3}}
}

func TestMeasure_AssemblesRecord(t *testing.T) {
	mf, gz, ts := newFakes()
	m := New(WithMinifier(mf), WithCompressor(gz), WithTreeshaker(ts))

	src := "const a = 1 ;"
	rec, err := m.Measure(context.Background(), types.Chunk{Name: "index.js", Source: src, Format: "es"})
	require.NoError(t, err)

	assert.Equal(t, int64(len(src)), rec.Bundled)
	assert.Equal(t, int64(len("consta=1;")), rec.Minified)
	assert.Equal(t, int64(len("consta=1;")/2), rec.Gzipped)
	require.NotNil(t, rec.Treeshaked)
	assert.Equal(t, types.TreeshakeRecord{Code: 7, ImportStatements: 3}, *rec.Treeshaked)
}

func TestMeasure_CountsUTF16Units(t *testing.T) {
	mf, gz, ts := newFakes()
	m := New(WithMinifier(mf), WithCompressor(gz), WithTreeshaker(ts))

	src := `console.log("héllo wörld ✓");`
	rec, err := m.Measure(context.Background(), types.Chunk{Name: "intl.js", Source: src, Format: "cjs"})
	require.NoError(t, err)

	assert.Equal(t, 33, len(src))
	assert.Equal(t, int64(29), rec.Bundled)
	assert.Equal(t, int64(27), rec.Minified)
	// gzip output is a byte stream and is measured in bytes.
	assert.Equal(t, int64(31/2), rec.Gzipped)
}

func TestMeasure_GzipsMinifiedOutput(t *testing.T) {
	mf, gz, ts := newFakes()
	m := New(WithMinifier(mf), WithCompressor(gz), WithTreeshaker(ts))

	_, err := m.Measure(context.Background(), types.Chunk{Name: "a.js", Source: "let x = 1 + 2;", Format: "cjs"})
	require.NoError(t, err)

	require.Len(t, gz.inputs, 1)
	require.Len(t, mf.outputs, 1)
	assert.Equal(t, mf.outputs[0], gz.inputs[0])
}

func TestMeasure_NormalizesCarriageReturns(t *testing.T) {
	mf, gz, ts := newFakes()
	m := New(WithMinifier(mf), WithCompressor(gz), WithTreeshaker(ts))

	crlf, err := m.Measure(context.Background(), types.Chunk{Name: "a.js", Source: "a();\r\nb();\r\n", Format: "es"})
	require.NoError(t, err)
	lf, err := m.Measure(context.Background(), types.Chunk{Name: "a.js", Source: "a();\nb();\n", Format: "es"})
	require.NoError(t, err)

	assert.Equal(t, lf, crlf)
	for _, in := range append(mf.inputs, ts.inputs...) {
		assert.NotContains(t, in, "\r")
	}
}

func TestMeasure_TreeshakeOnlyForESFormats(t *testing.T) {
	tests := []struct {
		format string
		want   bool
	}{
		{"es", true},
		{"esm", true},
		{"cjs", false},
		{"iife", false},
		{"umd", false},
		{"amd", false},
		{"system", false},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			mf, gz, ts := newFakes()
			m := New(WithMinifier(mf), WithCompressor(gz), WithTreeshaker(ts))

			rec, err := m.Measure(context.Background(), types.Chunk{Name: "c.js", Source: "x()", Format: tt.format})
			require.NoError(t, err)

			if tt.want {
				assert.NotNil(t, rec.Treeshaked)
				assert.Equal(t, 1, ts.calls)
			} else {
				assert.Nil(t, rec.Treeshaked)
				assert.Zero(t, ts.calls)
			}
		})
	}
}

func TestMeasure_FailureYieldsNoRecord(t *testing.T) {
	t.Run("minifier", func(t *testing.T) {
		mf, gz, ts := newFakes()
		mf.err = &types.SyntaxError{Stage: "minify", Messages: []string{"bad"}}
		m := New(WithMinifier(mf), WithCompressor(gz), WithTreeshaker(ts))

		rec, err := m.Measure(context.Background(), types.Chunk{Name: "a.js", Source: "(", Format: "cjs"})
		assert.Nil(t, rec)
		assert.ErrorIs(t, err, types.ErrSourceSyntax)
		assert.Empty(t, gz.inputs)
	})

	t.Run("treeshaker", func(t *testing.T) {
		mf, gz, ts := newFakes()
		ts.err = errors.New("bundle exploded")
		m := New(WithMinifier(mf), WithCompressor(gz), WithTreeshaker(ts))

		rec, err := m.Measure(context.Background(), types.Chunk{Name: "a.js", Source: "x", Format: "es"})
		assert.Nil(t, rec)
		assert.ErrorContains(t, err, "bundle exploded")
		assert.ErrorContains(t, err, "a.js")
	})
}

func TestMeasure_Timeout(t *testing.T) {
	mf, gz, ts := newFakes()
	ts.delay = time.Second
	m := New(WithMinifier(mf), WithCompressor(gz), WithTreeshaker(ts), WithTimeout(20*time.Millisecond))

	_, err := m.Measure(context.Background(), types.Chunk{Name: "slow.js", Source: "x", Format: "es"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type mapCache struct {
	mu    sync.Mutex
	items map[string]types.SizeRecord
	puts  int
}

func (c *mapCache) Get(chunk types.Chunk) (*types.SizeRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.items[chunk.Format+chunk.Source]
	if !ok {
		return nil, false
	}
	out := rec.Clone()
	return &out, true
}

func (c *mapCache) Put(chunk types.Chunk, rec types.SizeRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[chunk.Format+chunk.Source] = rec.Clone()
	c.puts++
	return nil
}

func TestMeasure_UsesCache(t *testing.T) {
	mf, gz, ts := newFakes()
	cache := &mapCache{items: map[string]types.SizeRecord{}}
	m := New(WithMinifier(mf), WithCompressor(gz), WithTreeshaker(ts), WithCache(cache))

	chunk := types.Chunk{Name: "a.js", Source: "a ( )", Format: "es"}
	first, err := m.Measure(context.Background(), chunk)
	require.NoError(t, err)
	second, err := m.Measure(context.Background(), chunk)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, ts.calls)
	assert.Equal(t, 1, cache.puts)
	assert.Len(t, mf.inputs, 1)
}

func TestMeasureAll_PreservesOrderAndIsolatesFailures(t *testing.T) {
	mf, gz, ts := newFakes()
	m := New(WithMinifier(mf), WithCompressor(gz), WithTreeshaker(ts))

	chunks := []types.Chunk{
		{Name: "a.js", Source: "a", Format: "cjs"},
		{Name: "b.js", Source: "bb", Format: "cjs"},
		{Name: "c.js", Source: "ccc", Format: "cjs"},
	}

	results := m.MeasureAll(context.Background(), chunks, 2)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, chunks[i].Name, r.Chunk.Name)
		require.NoError(t, r.Err)
		assert.Equal(t, int64(i+1), r.Record.Bundled)
	}
}

func TestMeasure_RealCollaborators(t *testing.T) {
	m := New()

	src := "export function greet(name) {\n  return 'hello ' + name;\n}\nconsole.log(greet('world'));\n"
	first, err := m.Measure(context.Background(), types.Chunk{Name: "greet.js", Source: src, Format: "es"})
	require.NoError(t, err)
	second, err := m.Measure(context.Background(), types.Chunk{Name: "greet.js", Source: src, Format: "es"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(len(src)), first.Bundled)
	assert.Less(t, first.Minified, first.Bundled)
	require.NotNil(t, first.Treeshaked)
	assert.Positive(t, first.Treeshaked.Code)
	assert.Zero(t, first.Treeshaked.ImportStatements)
}
