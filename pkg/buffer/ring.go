package buffer

import (
	"sync"

	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/metric"
)

// Option configures a Ring.
type Option[T any] func(*Ring[T])

// WithMetrics exports ring counters labelled with name. A nil registry or
// empty name is ignored.
func WithMetrics[T any](registry *metric.MetricsRegistry, name string) Option[T] {
	return func(r *Ring[T]) {
		if registry != nil && name != "" {
			r.registry, r.name = registry, name
		}
	}
}

// WithEvictHook is called with every evicted item, outside the ring lock.
func WithEvictHook[T any](fn func(T)) Option[T] {
	return func(r *Ring[T]) { r.onEvict = fn }
}

// Ring is a fixed-capacity FIFO. Safe for concurrent use.
type Ring[T any] struct {
	mu       sync.RWMutex
	items    []T
	start    int // index of the oldest item
	n        int
	appended int64
	evicted  int64
	closed   bool

	onEvict  func(T)
	registry *metric.MetricsRegistry
	name     string
	metrics  *ringMetrics
}

// NewRing creates a ring. A capacity below one is raised to one. The error
// is only non-nil when metric registration fails.
func NewRing[T any](capacity int, opts ...Option[T]) (*Ring[T], error) {
	if capacity < 1 {
		capacity = 1
	}
	r := &Ring[T]{items: make([]T, capacity)}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry != nil {
		m, err := newRingMetrics(r.registry, r.name, capacity)
		if err != nil {
			return nil, errors.Wrap(err, "Ring", "New", "register metrics")
		}
		r.metrics = m
	}
	return r, nil
}

// Append adds item at the tail, evicting the head when the ring is full.
// It fails only after Close.
func (r *Ring[T]) Append(item T) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errors.WrapInvalid(errors.ErrClosed, "Ring", "Append", "append to closed ring")
	}

	var old T
	evicted := false
	capacity := len(r.items)
	if r.n == capacity {
		old = r.items[r.start]
		r.items[r.start] = item
		r.start = (r.start + 1) % capacity
		r.evicted++
		evicted = true
	} else {
		r.items[(r.start+r.n)%capacity] = item
		r.n++
	}
	r.appended++
	size := r.n
	r.mu.Unlock()

	r.metrics.appended(size, evicted)
	if evicted && r.onEvict != nil {
		r.onEvict(old)
	}
	return nil
}

// Snapshot copies every item, oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.newest(r.n)
}

// Last copies the newest k items, oldest first.
func (r *Ring[T]) Last(k int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.newest(min(max(k, 0), r.n))
}

func (r *Ring[T]) newest(k int) []T {
	out := make([]T, k)
	first := r.start + r.n - k
	for i := range out {
		out[i] = r.items[(first+i)%len(r.items)]
	}
	return out
}

// Len returns the number of stored items.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.n
}

// Cap returns the capacity.
func (r *Ring[T]) Cap() int { return len(r.items) }

// Appended returns the number of accepted appends.
func (r *Ring[T]) Appended() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.appended
}

// Evicted returns the number of items pushed out by appends.
func (r *Ring[T]) Evicted() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.evicted
}

// Close rejects further appends. Stored items stay readable.
func (r *Ring[T]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
