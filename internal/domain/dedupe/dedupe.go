// Package dedupe maps client idempotency keys to the analysis job they
// created, so a retried submission returns the original job.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Deduper remembers which job a key produced.
type Deduper interface {
	// Claim atomically binds key to jobID unless key is already bound.
	// It returns the job bound to key and whether this call made the binding.
	Claim(ctx context.Context, key, jobID string) (string, bool)

	// Release forgets key. Used when the job bound to it could not be
	// accepted (e.g., queue backpressure) so the client may retry.
	Release(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key   string
	jobID string
}

// inMemoryDeduper keeps keys in insertion order. In bounded mode the oldest
// key is evicted once maxSize is reached; maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front is the oldest key
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50_000,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

// Claim binds key to jobID if key is new.
func (d *inMemoryDeduper) Claim(_ context.Context, key, jobID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, exists := d.seen[key]; exists {
		return el.Value.(entry).jobID, false
	}

	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.evictOldest()
	}

	d.seen[key] = d.order.PushBack(entry{key: key, jobID: jobID})
	d.size.Add(1)
	return jobID, true
}

// Release forgets key.
func (d *inMemoryDeduper) Release(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, exists := d.seen[key]; exists {
		d.order.Remove(el)
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	el := d.order.Front()
	if el == nil {
		return
	}
	d.order.Remove(el)
	delete(d.seen, el.Value.(entry).key)
	d.size.Add(-1)
}

// Size returns the current number of keys.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
