// Package discover finds chunk files on disk and infers their output format.
package discover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/logging"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
)

// DefaultExtensions are the chunk file extensions looked for in directories.
var DefaultExtensions = []string{".js", ".mjs", ".cjs"}

// DefaultSkipDirs are directory names never descended into.
var DefaultSkipDirs = []string{"node_modules", ".git"}

// ErrDuplicateName is returned when two files map to the same chunk name.
var ErrDuplicateName = errors.New("duplicate chunk name")

// Candidate is a chunk file found on disk.
type Candidate struct {
	// Path is the file path as found.
	Path string
	// Name is the chunk name: the slash-separated path relative to the
	// walked directory, or the base name for a file given directly.
	Name   string
	Format string
}

// Options configures discovery.
type Options struct {
	Extensions []string
	SkipDirs   []string

	// Format forces the format of every chunk when set.
	Format string

	// DefaultFormat applies when the extension does not imply one.
	DefaultFormat string
}

func (o Options) withDefaults() Options {
	if len(o.Extensions) == 0 {
		o.Extensions = DefaultExtensions
	}
	if o.SkipDirs == nil {
		o.SkipDirs = DefaultSkipDirs
	}
	if o.DefaultFormat == "" {
		o.DefaultFormat = types.FormatES
	}
	return o
}

// FormatFor infers the format of a chunk file from its extension.
func FormatFor(path, defaultFormat string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mjs":
		return types.FormatES
	case ".cjs":
		return "cjs"
	default:
		return defaultFormat
	}
}

// Discover resolves paths into chunk candidates sorted by name. Files are
// taken as given; directories are walked for matching extensions.
func Discover(ctx context.Context, paths []string, opts Options) ([]Candidate, error) {
	opts = opts.withDefaults()
	log := logging.Get("discover")

	var (
		mu    sync.Mutex
		found []Candidate
	)
	add := func(path, name string) {
		format := opts.Format
		if format == "" {
			format = FormatFor(path, opts.DefaultFormat)
		}
		mu.Lock()
		found = append(found, Candidate{Path: path, Name: name, Format: format})
		mu.Unlock()
	}

	for _, root := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("discovering %s: %w", root, err)
		}
		if !info.IsDir() {
			add(root, filepath.Base(root))
			continue
		}

		if err := walk(ctx, root, opts, add); err != nil {
			return nil, err
		}
	}

	slices.SortFunc(found, func(a, b Candidate) int {
		return strings.Compare(a.Name, b.Name)
	})
	for i := 1; i < len(found); i++ {
		if found[i].Name == found[i-1].Name {
			return nil, fmt.Errorf("%w %q: %s and %s", ErrDuplicateName, found[i].Name, found[i-1].Path, found[i].Path)
		}
	}

	log.Debug("discovered chunks", "roots", len(paths), "chunks", len(found))
	return found, nil
}

func walk(ctx context.Context, root string, opts Options, add func(path, name string)) error {
	conf := fastwalk.Config{Follow: false}

	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && slices.Contains(opts.SkipDirs, d.Name()) {
				return fastwalk.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !hasExtension(path, opts.Extensions) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		add(path, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", root, err)
	}
	return nil
}

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// Load reads the candidate into a chunk.
func Load(c Candidate) (types.Chunk, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return types.Chunk{}, fmt.Errorf("reading chunk %s: %w", c.Name, err)
	}
	return types.Chunk{Name: c.Name, Source: string(data), Format: c.Format}, nil
}
