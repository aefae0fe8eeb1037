package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"time"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/minify"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
)

// CacheVersion is incremented when the cache format or the measurement
// pipeline changes in a way that alters records.
const CacheVersion = 2

// KeyPrefix namespaces record keys inside the store.
const KeyPrefix = "rec\x00"

// Entry is a cached measurement.
type Entry struct {
	Record   types.SizeRecord
	StoredAt int64 // UnixNano
}

// Encode serializes the entry to bytes using gob.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes bytes into the entry using gob.
func (e *Entry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// Time returns when the entry was stored.
func (e *Entry) Time() time.Time {
	return time.Unix(0, e.StoredAt)
}

// Digest identifies a chunk's content. Two chunks with the same digest
// produce the same record.
type Digest [sha256.Size]byte

// MakeDigest hashes the cache version, the linked esbuild version, the chunk
// format and the normalized source. The chunk name does not take part.
func MakeDigest(chunk types.Chunk) Digest {
	return makeDigest(minify.EngineVersion(), chunk)
}

func makeDigest(engine string, chunk types.Chunk) Digest {
	h := sha256.New()
	h.Write([]byte{CacheVersion, 0})
	h.Write([]byte(engine))
	h.Write([]byte{0})
	h.Write([]byte(chunk.Format))
	h.Write([]byte{0})
	h.Write([]byte(types.NormalizeSource(chunk.Source)))

	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// MakeKey returns the store key of a digest.
// Format: rec\x00<digest>
func MakeKey(d Digest) []byte {
	key := make([]byte, 0, len(KeyPrefix)+len(d))
	key = append(key, KeyPrefix...)
	return append(key, d[:]...)
}
