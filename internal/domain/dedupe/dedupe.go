// Package dedupe tracks recently ingested check-ins so that replayed
// submissions are rejected before they reach storage.
package dedupe

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultMaxSize bounds the number of remembered keys.
const DefaultMaxSize = 50000

// Deduper records seen check-in keys to ensure at-most-once ingestion.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so that a failed ingestion can be retried.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// Key identifies a check-in by participant and instant.
func Key(name string, at time.Time) string {
	return name + "@" + at.UTC().Format(time.RFC3339Nano)
}

// lruDeduper evicts the least recently recorded key once full.
type lruDeduper struct {
	maxSize int
	cache   *lru.Cache
}

// NewInMemoryDeduper creates a bounded in-memory deduper. A non-positive
// max size falls back to DefaultMaxSize.
func NewInMemoryDeduper(opts ...Option) (Deduper, error) {
	d := &lruDeduper{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxSize <= 0 {
		d.maxSize = DefaultMaxSize
	}

	cache, err := lru.New(d.maxSize)
	if err != nil {
		return nil, err
	}
	d.cache = cache
	return d, nil
}

func (d *lruDeduper) SeenAndRecord(_ context.Context, key string) bool {
	seen, _ := d.cache.ContainsOrAdd(key, struct{}{})
	return seen
}

func (d *lruDeduper) Unrecord(_ context.Context, key string) {
	d.cache.Remove(key)
}

func (d *lruDeduper) Size() int64 {
	return int64(d.cache.Len())
}
