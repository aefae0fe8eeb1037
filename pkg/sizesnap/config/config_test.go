package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	return tempDir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Snapshot.Path != "" {
		t.Errorf("Snapshot.Path = %q, want empty", cfg.Snapshot.Path)
	}
	if cfg.Snapshot.Threshold != DefaultThreshold {
		t.Errorf("Snapshot.Threshold = %d, want %d", cfg.Snapshot.Threshold, DefaultThreshold)
	}
	if !cfg.Snapshot.PrintInfo {
		t.Error("Snapshot.PrintInfo = false, want true")
	}
	if cfg.Measure.Timeout != DefaultTimeout {
		t.Errorf("Measure.Timeout = %v, want %v", cfg.Measure.Timeout, DefaultTimeout)
	}
	if cfg.Measure.DefaultFormat != DefaultFormat {
		t.Errorf("Measure.DefaultFormat = %q, want %q", cfg.Measure.DefaultFormat, DefaultFormat)
	}
	if len(cfg.Measure.Extensions) != len(DefaultExtensions) {
		t.Errorf("len(Measure.Extensions) = %d, want %d", len(cfg.Measure.Extensions), len(DefaultExtensions))
	}
	if cfg.Measure.Workers <= 0 {
		t.Errorf("Measure.Workers = %d, want > 0", cfg.Measure.Workers)
	}
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled = false, want true")
	}
	if cfg.Cache.MemoryEntries != DefaultMemoryEntries {
		t.Errorf("Cache.MemoryEntries = %d, want %d", cfg.Cache.MemoryEntries, DefaultMemoryEntries)
	}
	if cfg.History.RetentionDays != DefaultRetentionDays {
		t.Errorf("History.RetentionDays = %d, want %d", cfg.History.RetentionDays, DefaultRetentionDays)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Rotation.MaxSize != "10MB" {
		t.Errorf("Logging.Rotation.MaxSize = %q, want 10MB", cfg.Logging.Rotation.MaxSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_FromFile(t *testing.T) {
	tempDir := isolate(t)
	configDir := filepath.Join(tempDir, ".config", "sizesnap")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := `
snapshot:
  path: ~/snapshots/app.json
  threshold: 128
  print_info: false
measure:
  workers: 3
  timeout: 5s
  extensions: [".js"]
history:
  enabled: false
logging:
  level: debug
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if want := filepath.Join(tempDir, "snapshots", "app.json"); cfg.Snapshot.Path != want {
		t.Errorf("Snapshot.Path = %q, want %q", cfg.Snapshot.Path, want)
	}
	if cfg.Snapshot.Threshold != 128 {
		t.Errorf("Snapshot.Threshold = %d, want 128", cfg.Snapshot.Threshold)
	}
	if cfg.Snapshot.PrintInfo {
		t.Error("Snapshot.PrintInfo = true, want false")
	}
	if cfg.Measure.Workers != 3 {
		t.Errorf("Measure.Workers = %d, want 3", cfg.Measure.Workers)
	}
	if cfg.Measure.Timeout != 5*time.Second {
		t.Errorf("Measure.Timeout = %v, want 5s", cfg.Measure.Timeout)
	}
	if len(cfg.Measure.Extensions) != 1 || cfg.Measure.Extensions[0] != ".js" {
		t.Errorf("Measure.Extensions = %v, want [.js]", cfg.Measure.Extensions)
	}
	if cfg.History.Enabled {
		t.Error("History.Enabled = true, want false")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Unset keys keep their defaults.
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled = false, want true")
	}
}

func TestLoad_XDGConfigHome(t *testing.T) {
	isolate(t)
	xdgHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdgHome)

	dir := filepath.Join(xdgHome, "sizesnap")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("snapshot:\n  threshold: 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Snapshot.Threshold != 7 {
		t.Errorf("Snapshot.Threshold = %d, want 7", cfg.Snapshot.Threshold)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("SIZESNAP_SNAPSHOT_THRESHOLD", "2048")
	t.Setenv("SIZESNAP_LOGGING_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Snapshot.Threshold != 2048 {
		t.Errorf("Snapshot.Threshold = %d, want 2048", cfg.Snapshot.Threshold)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	tempDir := isolate(t)
	configDir := filepath.Join(tempDir, ".config", "sizesnap")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("snapshot: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want parse error")
	}
}

func TestLoadFile_ExplicitPath(t *testing.T) {
	tempDir := isolate(t)
	path := filepath.Join(tempDir, "custom.yaml")
	if err := os.WriteFile(path, []byte("measure:\n  workers: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Measure.Workers != 3 {
		t.Errorf("Measure.Workers = %d, want 3", cfg.Measure.Workers)
	}
	if cfg.Measure.DefaultFormat != DefaultFormat {
		t.Errorf("Measure.DefaultFormat = %q, want %q", cfg.Measure.DefaultFormat, DefaultFormat)
	}
}

func TestLoadFile_MissingExplicitPath(t *testing.T) {
	tempDir := isolate(t)

	if _, err := LoadFile(filepath.Join(tempDir, "nope.yaml")); err == nil {
		t.Error("LoadFile() error = nil, want error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.Snapshot.Threshold = -1
	cfg.History.RetentionDays = -2

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil, want error")
	}
	for _, want := range []string{"snapshot.threshold", "history.retention_days"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q does not mention %s", err, want)
		}
	}
}

func TestWriteDefault(t *testing.T) {
	isolate(t)

	written, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if !written {
		t.Fatal("WriteDefault() = false on first call, want true")
	}

	path, err := ConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading written config: %v", err)
	}
	for _, want := range []string{"snapshot:", "measure:", "cache:", "history:", "logging:"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("default config missing %q", want)
		}
	}

	// The written template must load cleanly.
	if _, err := Load(); err != nil {
		t.Errorf("Load() of default config error = %v", err)
	}

	written, err = WriteDefault()
	if err != nil {
		t.Fatalf("second WriteDefault() error = %v", err)
	}
	if written {
		t.Error("WriteDefault() overwrote an existing file")
	}
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)

	tests := []struct {
		in   string
		want string
	}{
		{"~/x/y", filepath.Join(home, "x", "y")},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := ExpandPath(tt.in)
		if err != nil {
			t.Fatalf("ExpandPath(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfigDir(t *testing.T) {
	home := isolate(t)

	dir, err := ConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, ".config", "sizesnap"); dir != want {
		t.Errorf("ConfigDir() = %q, want %q", dir, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	dir, err = ConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/xdg/sizesnap" {
		t.Errorf("ConfigDir() = %q, want /xdg/sizesnap", dir)
	}
}
