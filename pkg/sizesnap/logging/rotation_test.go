package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countFiles(t *testing.T, dir, prefix string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	n := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			n++
		}
	}
	return n
}

func TestRotatingWriter_RotatesBySize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := logging.NewRotatingWriter(filepath.Join(dir, "size.log"), logging.RotationConfig{MaxSize: 512})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		_, err := w.Write([]byte(strings.Repeat("x", 50) + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	assert.GreaterOrEqual(t, countFiles(t, dir, "size"), 2)
}

func TestRotatingWriter_MaxBackups(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := logging.NewRotatingWriter(filepath.Join(dir, "backups.log"), logging.RotationConfig{
		MaxSize:    128,
		MaxBackups: 2,
	})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		_, err := w.Write([]byte(strings.Repeat("y", 30) + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	assert.LessOrEqual(t, countFiles(t, dir, "backups"), 3)
}

func TestRotatingWriter_PrunesOldFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	old := filepath.Join(dir, "aged.2020-01-01-000000.log")
	require.NoError(t, os.WriteFile(old, []byte("old\n"), 0o644))
	past := time.Now().Add(-90 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	w, err := logging.NewRotatingWriter(filepath.Join(dir, "aged.log"), logging.RotationConfig{MaxAge: 7})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
}

func TestRotatingWriter_CreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "deeper", "dir.log")
	w, err := logging.NewRotatingWriter(path, logging.RotationConfig{})
	require.NoError(t, err)

	_, err = w.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	t.Parallel()

	w, err := logging.NewRotatingWriter(filepath.Join(t.TempDir(), "closed.log"), logging.RotationConfig{})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestDefaultRotationConfig(t *testing.T) {
	cfg := logging.DefaultRotationConfig()
	assert.Equal(t, int64(10*1024*1024), cfg.MaxSize)
	assert.Equal(t, 5, cfg.MaxBackups)
	assert.True(t, cfg.Daily)
}
