// Package dedupe guards against the same log being processed twice at once.
package dedupe

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// Deduper tracks in-flight submission keys.
type Deduper interface {
	// SeenAndRecord atomically checks if key is in flight and records it if
	// not. Returns true if key was already recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord releases a key once its submission finished processing, or
	// when it could not be enqueued.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// Key identifies a submission by submitter and log. Surrounding whitespace
// and trailing slashes are ignored; log slugs are case-sensitive.
func Key(submitterID, logURL string) string {
	u := strings.TrimRight(strings.TrimSpace(logURL), "/")
	return submitterID + "|" + u
}

// inMemoryDeduper keeps keys in a map plus insertion-ordered list. When
// bounded, the oldest key is evicted to make room.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int // <= 0 means unbounded
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
		seen:    make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		if oldest := d.order.Front(); oldest != nil {
			d.remove(oldest)
		}
	}
	d.seen[key] = d.order.PushBack(key)
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.remove(el)
	}
}

// remove must be called with d.mu held.
func (d *inMemoryDeduper) remove(el *list.Element) {
	delete(d.seen, el.Value.(string))
	d.order.Remove(el)
	d.size.Add(-1)
}

// Size returns the current number of keys.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
