package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/output"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result() *output.Result {
	r := &output.Result{
		Duration: 2 * time.Second,
		Chunks: []output.ChunkResult{
			{
				Name:   "main.js",
				Record: &types.SizeRecord{Bundled: 100, Minified: 60, Gzipped: 40, Treeshaked: &types.TreeshakeRecord{Code: 7, ImportStatements: 3}},
				Status: output.StatusMismatch,
				Violations: []types.Violation{
					{Field: "gzipped", Stored: 10, Got: 40},
					{Field: "minified", Stored: 10, Got: 60},
				},
			},
			{Name: "broken.js", Status: output.StatusFailed, Error: "boom"},
		},
	}
	r.Tally()
	return r
}

func TestRecord(t *testing.T) {
	m := New()
	m.Record(result(), time.Unix(1700000000, 0))

	assert.Equal(t, 40.0, testutil.ToFloat64(m.chunkBytes.WithLabelValues("main.js", "gzipped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.chunkBytes.WithLabelValues("main.js", "treeshaked.import_statements")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.violations.WithLabelValues("main.js")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.violations.WithLabelValues("broken.js")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.failures))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.runDuration))
	assert.Equal(t, 1.7e9, testutil.ToFloat64(m.lastRunTimestamp))

	// main.js has five facets; broken.js has none.
	assert.Equal(t, 5, testutil.CollectAndCount(m.chunkBytes))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Record(result(), time.Now())

	path := filepath.Join(t.TempDir(), "sizesnap.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "# TYPE sizesnap_chunk_bytes gauge")
	assert.Contains(t, content, `sizesnap_chunk_bytes{chunk="main.js",facet="bundled"} 100`)
	assert.Contains(t, content, `sizesnap_threshold_violations{chunk="main.js"} 2`)
	assert.Contains(t, content, "sizesnap_failed_chunks 2")
}

func TestWriteTextfile_BadDirectory(t *testing.T) {
	m := New()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))
	assert.Error(t, err)
}
