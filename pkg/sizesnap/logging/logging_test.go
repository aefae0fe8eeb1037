package logging_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests share the package-level logging state and must not run in
// parallel with each other.

func TestInit(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     logging.Config
		wantErr bool
	}{
		{
			name: "defaults",
			cfg:  logging.Config{Level: "info", Path: filepath.Join(dir, "a.log")},
		},
		{
			name: "component overrides",
			cfg: logging.Config{
				Level:      "warn",
				Path:       filepath.Join(dir, "b.log"),
				Components: map[string]string{"treeshake": "debug", "snapshot": "error"},
			},
		},
		{
			name:    "invalid level",
			cfg:     logging.Config{Level: "loud", Path: filepath.Join(dir, "c.log")},
			wantErr: true,
		},
		{
			name: "invalid component level",
			cfg: logging.Config{
				Level:      "info",
				Path:       filepath.Join(dir, "d.log"),
				Components: map[string]string{"measure": "chatty"},
			},
			wantErr: true,
		},
		{
			name:    "invalid console level",
			cfg:     logging.Config{Level: "info", Path: filepath.Join(dir, "e.log"), ConsoleLevel: "nope"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := logging.Init(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, logging.Close())
		})
	}
}

func TestGet_ReturnsSameLogger(t *testing.T) {
	a := logging.Get("measure")
	b := logging.Get("measure")

	assert.Same(t, a, b)
	assert.Equal(t, "measure", a.Component())
}

func TestGet_DiscardsBeforeInit(t *testing.T) {
	require.NoError(t, logging.Close())

	assert.NotPanics(t, func() {
		logging.Get("early").Info("nobody is listening")
	})
}

func TestLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sizesnap.log")
	require.NoError(t, logging.Init(logging.Config{Level: "debug", Path: path}))

	logger := logging.Get("snapshot")
	logger.Debug("loading snapshot", "path", "/tmp/.size-snapshot.json")
	logger.With("chunk", "index.js").Info("entry written")

	require.NoError(t, logging.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "snapshot")
	assert.Contains(t, content, "loading snapshot")
	assert.Contains(t, content, "entry written")
	assert.Contains(t, content, "index.js")
}

func TestLogger_ObtainedBeforeInit(t *testing.T) {
	require.NoError(t, logging.Close())
	early := logging.Get("early-bird")

	path := filepath.Join(t.TempDir(), "early.log")
	require.NoError(t, logging.Init(logging.Config{Level: "info", Path: path}))
	early.Info("picked up the file writer")
	require.NoError(t, logging.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "picked up the file writer")
}

func TestLogger_ComponentLevelOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.log")
	require.NoError(t, logging.Init(logging.Config{
		Level:      "error",
		Path:       path,
		Components: map[string]string{"treeshake": "debug"},
	}))

	logging.Get("treeshake").Debug("verbose treeshake detail")
	logging.Get("measure").Info("measure info hidden")

	require.NoError(t, logging.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "verbose treeshake detail")
	assert.NotContains(t, string(data), "measure info hidden")
}

func TestLogger_Console(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "console.log")
	require.NoError(t, logging.Init(logging.Config{
		Level:        "debug",
		Path:         path,
		ConsoleLevel: "warn",
		Console:      &console,
	}))

	logger := logging.Get("cli")
	logger.Info("file only")
	logger.Warn("both places")

	require.NoError(t, logging.Close())

	assert.NotContains(t, console.String(), "file only")
	assert.Contains(t, console.String(), "both places")
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.log")
	require.NoError(t, logging.Init(logging.Config{Level: "info", Path: path}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger := logging.Get("worker")
			for j := 0; j < 25; j++ {
				logger.Info("tick", "n", j)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, logging.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 200, strings.Count(string(data), "tick"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"INFO", logging.LevelInfo, false},
		{"", logging.LevelInfo, false},
		{"warning", logging.LevelWarn, false},
		{"error", logging.LevelError, false},
		{"trace", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := logging.ParseLevel(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, logging.ErrInvalidLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestDefaultLogPath(t *testing.T) {
	path := logging.DefaultLogPath()
	assert.True(t, strings.HasSuffix(path, filepath.Join("sizesnap", "sizesnap.log")))
}
