// Package cache memoizes size records by chunk content. A bounded in-memory
// LRU sits in front of an on-disk Badger store.
package cache

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/logging"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
)

// DefaultMemoryEntries is the LRU size used when none is given.
const DefaultMemoryEntries = 512

// Stats describes cache usage since Open.
type Stats struct {
	Hits       int64 `json:"hits" yaml:"hits"`
	Misses     int64 `json:"misses" yaml:"misses"`
	Entries    int   `json:"entries" yaml:"entries"`
	MemEntries int   `json:"mem_entries" yaml:"mem_entries"`
	DiskBytes  int64 `json:"disk_bytes" yaml:"disk_bytes"`
}

// Cache provides record memoization for the measurer. It is safe for
// concurrent use.
type Cache struct {
	store *Store
	mem   *lru.Cache[Digest, types.SizeRecord]
	log   *logging.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// Open opens or creates a cache at the given path. memEntries bounds the
// in-memory layer; zero or less uses DefaultMemoryEntries.
func Open(path string, memEntries int) (*Cache, error) {
	store, err := OpenStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", path, err)
	}
	return newCache(store, memEntries)
}

// OpenInMemory creates a cache that is not persisted.
func OpenInMemory(memEntries int) (*Cache, error) {
	store, err := OpenInMemoryStore()
	if err != nil {
		return nil, fmt.Errorf("opening in-memory cache: %w", err)
	}
	return newCache(store, memEntries)
}

func newCache(store *Store, memEntries int) (*Cache, error) {
	if memEntries <= 0 {
		memEntries = DefaultMemoryEntries
	}
	mem, err := lru.New[Digest, types.SizeRecord](memEntries)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &Cache{store: store, mem: mem, log: logging.Get("cache")}, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Get returns the record cached for chunk's content.
func (c *Cache) Get(chunk types.Chunk) (*types.SizeRecord, bool) {
	d := MakeDigest(chunk)

	if rec, ok := c.mem.Get(d); ok {
		c.hits.Add(1)
		out := rec.Clone()
		return &out, true
	}

	entry, err := c.store.Get(d)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.log.Warn("cache read failed", "chunk", chunk.Name, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	c.mem.Add(d, entry.Record.Clone())
	out := entry.Record.Clone()
	return &out, true
}

// Put records rec as the measurement of chunk's content.
func (c *Cache) Put(chunk types.Chunk, rec types.SizeRecord) error {
	d := MakeDigest(chunk)
	c.mem.Add(d, rec.Clone())

	entry := &Entry{Record: rec, StoredAt: time.Now().UnixNano()}
	if err := c.store.Put(d, entry); err != nil {
		return fmt.Errorf("caching %s: %w", chunk.Name, err)
	}
	return nil
}

// Clear removes all cached records.
func (c *Cache) Clear() error {
	c.mem.Purge()
	return c.store.DeleteAll()
}

// Stats reports usage counters and current size.
func (c *Cache) Stats() (Stats, error) {
	n, err := c.store.Count()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Entries:    n,
		MemEntries: c.mem.Len(),
		DiskBytes:  c.store.DiskSize(),
	}, nil
}
