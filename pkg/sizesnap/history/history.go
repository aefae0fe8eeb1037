package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("history entry not found")

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// History manages run entries stored as JSON files in a directory.
type History struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// New creates a History rooted at dir. The directory is created on first
// Record.
func New(dir string) (*History, error) {
	if dir == "" {
		return nil, errors.New("history directory cannot be empty")
	}
	return &History{dir: dir, now: time.Now}, nil
}

// Dir returns the directory entries are stored in.
func (h *History) Dir() string {
	return h.dir
}

// Record persists a run and returns the created entry.
func (h *History) Record(mode Mode, snapshotPath string, chunks []ChunkRecord) (*Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now().UTC()
	entry := &Entry{
		ID:           generateID(mode, now),
		Timestamp:    now,
		Mode:         mode,
		SnapshotPath: snapshotPath,
		Chunks:       chunks,
		Summary:      Summarize(chunks),
	}
	if entry.Chunks == nil {
		entry.Chunks = []ChunkRecord{}
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	if err := h.writeEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to write history entry: %w", err)
	}
	return entry, nil
}

func (h *History) writeEntry(entry *Entry) error {
	filePath := filepath.Join(h.dir, entry.ID+".json")

	data, err := codec.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// List returns entries newest first. If limit is 0 or negative, all entries
// are returned. Unreadable files are skipped.
func (h *History) List(limit int) ([]Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	names, err := h.entryFiles()
	if err != nil {
		return nil, err
	}

	entries := []Entry{}
	for _, name := range names {
		entry, err := h.readEntryFile(name)
		if err != nil {
			continue
		}
		entries = append(entries, *entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Get retrieves an entry by id.
func (h *History) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, errors.New("entry ID cannot be empty")
	}
	if strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("invalid entry ID: %s", id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	entry, err := h.readEntryFile(id + ".json")
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Cleanup removes entries older than retentionDays and returns how many were
// removed. A non-positive retention keeps everything.
func (h *History) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.now().AddDate(0, 0, -retentionDays)

	names, err := h.entryFiles()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, name := range names {
		stamp, ok := h.entryTime(name)
		if !ok || !stamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(h.dir, name)); err != nil {
			continue
		}
		removed++
	}
	return removed, nil
}

// entryTime prefers the recorded timestamp and falls back to the file's
// modification time for entries that cannot be decoded.
func (h *History) entryTime(name string) (time.Time, bool) {
	if entry, err := h.readEntryFile(name); err == nil {
		return entry.Timestamp, true
	}
	info, err := os.Stat(filepath.Join(h.dir, name))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func (h *History) entryFiles() ([]string, error) {
	files, err := os.ReadDir(h.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var names []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		names = append(names, f.Name())
	}
	return names, nil
}

func (h *History) readEntryFile(filename string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(h.dir, filename))
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := codec.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry %s: %w", filename, err)
	}
	return &entry, nil
}

// generateID creates an id like "match-2026-06-15T10-30-00-1f0c9a2b".
func generateID(mode Mode, now time.Time) string {
	ts := now.Format("2006-01-02T15-04-05")
	return fmt.Sprintf("%s-%s-%s", mode, ts, uuid.NewString()[:8])
}
