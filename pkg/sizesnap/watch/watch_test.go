package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resolved returns dir with symlinks resolved, so event paths compare equal
// on platforms whose temp dir is a symlink.
func resolved(t *testing.T, dir string) string {
	t.Helper()
	p, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	return p
}

func startRun(t *testing.T, w *Watcher) <-chan []string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	batches := make(chan []string, 16)
	go w.Run(ctx, func(paths []string) { batches <- paths })
	return batches
}

func nextBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}

func TestWatch_TracksDirectories(t *testing.T) {
	root := resolved(t, t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "dep"), 0o755))

	w, err := New()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch(root))

	w.mu.RLock()
	defer w.mu.RUnlock()
	assert.True(t, w.dirs[root])
	assert.True(t, w.dirs[filepath.Join(root, "sub")])
	assert.False(t, w.dirs[filepath.Join(root, "node_modules")])
}

func TestWatch_MissingPath(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	defer w.Close()

	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "missing")))
}

func TestRun_DebouncesWrites(t *testing.T) {
	root := resolved(t, t.TempDir())
	target := filepath.Join(root, "main.js")
	require.NoError(t, os.WriteFile(target, []byte("a"), 0o644))

	w, err := New(WithDebounce(100 * time.Millisecond))
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch(root))

	batches := startRun(t, w)

	for i := range 3 {
		require.NoError(t, os.WriteFile(target, []byte(strings.Repeat("x", i+2)), 0o644))
	}

	assert.Equal(t, []string{target}, nextBatch(t, batches))
}

func TestRun_FilterAndSingleFile(t *testing.T) {
	root := resolved(t, t.TempDir())
	watched := filepath.Join(root, "app.js")
	sibling := filepath.Join(root, "other.js")
	require.NoError(t, os.WriteFile(watched, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(sibling, []byte("a"), 0o644))

	w, err := New(WithDebounce(50*time.Millisecond), WithFilter(func(string) bool { return false }))
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch(watched))

	batches := startRun(t, w)

	require.NoError(t, os.WriteFile(sibling, []byte("changed"), 0o644))
	require.NoError(t, os.WriteFile(watched, []byte("changed"), 0o644))

	assert.Equal(t, []string{watched}, nextBatch(t, batches))
}

func TestRun_NewSubdirectory(t *testing.T) {
	root := resolved(t, t.TempDir())

	w, err := New(
		WithDebounce(50*time.Millisecond),
		WithFilter(func(p string) bool { return strings.HasSuffix(p, ".js") }),
	)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch(root))

	batches := startRun(t, w)

	sub := filepath.Join(root, "chunks")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.Eventually(t, func() bool {
		w.mu.RLock()
		defer w.mu.RUnlock()
		return w.dirs[sub]
	}, 5*time.Second, 10*time.Millisecond)

	target := filepath.Join(sub, "lazy.js")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "notes.txt"), []byte("x"), 0o644))

	assert.Equal(t, []string{target}, nextBatch(t, batches))
}

func TestClose_Idempotent(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestIsSubPath(t *testing.T) {
	sep := string(filepath.Separator)
	assert.True(t, isSubPath("a"+sep+"b", "a"))
	assert.False(t, isSubPath("ab", "a"))
	assert.False(t, isSubPath("a", "a"))
}
