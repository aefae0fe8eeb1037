package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sys/unix"
)

// DefaultFileName is the snapshot file created in the working directory.
const DefaultFileName = ".size-snapshot.json"

// codec writes map keys in sorted order, so snapshot files diff cleanly.
var codec = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// Encode renders a snapshot as sorted, two-space indented JSON with a
// trailing newline. Indentation is applied to the compact form because
// jsoniter's own indenting does not reach into sorted map values.
func Encode(snap Snapshot) ([]byte, error) {
	if snap == nil {
		snap = Snapshot{}
	}
	compact, err := codec.Marshal(snap)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Decode parses snapshot JSON. Empty input is an empty snapshot.
func Decode(data []byte) (Snapshot, error) {
	snap := Snapshot{}
	if len(data) == 0 {
		return snap, nil
	}
	if err := codec.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	if snap == nil {
		snap = Snapshot{}
	}
	return snap, nil
}

// FileBackend stores the snapshot as a JSON file.
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend for the file at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// DefaultPath returns the snapshot path in the current working directory.
func DefaultPath() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return filepath.Join(cwd, DefaultFileName), nil
}

func (b *FileBackend) Location() string {
	return b.path
}

func (b *FileBackend) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, &types.StorageError{Op: "read", Path: b.path, Err: err}
	}

	snap, err := Decode(data)
	if err != nil {
		return nil, &types.StorageError{Op: "decode", Path: b.path, Err: err}
	}
	return snap, nil
}

// Save writes the snapshot atomically through a temporary file.
func (b *FileBackend) Save(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(snap)
	if err != nil {
		return &types.StorageError{Op: "encode", Path: b.path, Err: err}
	}

	if dir := filepath.Dir(b.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &types.StorageError{Op: "write", Path: b.path, Err: err}
		}
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &types.StorageError{Op: "write", Path: b.path, Err: err}
	}
	if err := os.Rename(tmp, b.path); err != nil {
		_ = os.Remove(tmp)
		return &types.StorageError{Op: "write", Path: b.path, Err: err}
	}
	return nil
}

// Lock takes an exclusive advisory lock on a sidecar file so that concurrent
// sizesnap processes sharing one snapshot serialize their updates.
func (b *FileBackend) Lock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lockPath := b.path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, &types.StorageError{Op: "lock", Path: b.path, Err: err}
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, &types.StorageError{Op: "lock", Path: b.path, Err: err}
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, &types.StorageError{Op: "lock", Path: b.path, Err: err}
	}

	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
	}, nil
}

// MemoryBackend keeps the snapshot in memory. It is used by tests and by
// dry runs that must not touch disk.
type MemoryBackend struct {
	mu   sync.Mutex
	snap Snapshot
	err  error
}

// NewMemoryBackend creates a backend seeded with a copy of initial.
func NewMemoryBackend(initial Snapshot) *MemoryBackend {
	b := &MemoryBackend{snap: Snapshot{}}
	for name, rec := range initial {
		b.snap[name] = rec.Clone()
	}
	return b
}

// FailWith makes every subsequent operation return err.
func (b *MemoryBackend) FailWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

func (b *MemoryBackend) Location() string {
	return "memory"
}

func (b *MemoryBackend) Load(_ context.Context) (Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, &types.StorageError{Op: "read", Path: b.Location(), Err: b.err}
	}
	out := make(Snapshot, len(b.snap))
	for name, rec := range b.snap {
		out[name] = rec.Clone()
	}
	return out, nil
}

func (b *MemoryBackend) Save(_ context.Context, snap Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return &types.StorageError{Op: "write", Path: b.Location(), Err: b.err}
	}
	b.snap = make(Snapshot, len(snap))
	for name, rec := range snap {
		b.snap[name] = rec.Clone()
	}
	return nil
}
