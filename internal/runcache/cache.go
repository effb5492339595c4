// Package runcache provides the run scoped cache node behaviors use to share
// expensive values (clients, connections, parsed documents) across the nodes
// of a single run.
//
// # Lifecycle
//
// A Cache is created when a run starts and closed when it ends. Close calls
// Close on every entry implementing io.Closer, so entries may own resources.
//
// # Concurrency Model
//
// Parallel sub-contexts hit the cache from many goroutines with keys that are
// mostly independent, so entries live in a sync.Map. GetOrCreate runs the
// constructor at most once per key even under contention.
package runcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/flowgrid/internal/ctxlog"
)

// ErrClosed is returned when the cache is used after Close.
var ErrClosed = errors.New("run cache is closed")

// entry holds a lazily constructed value.
type entry struct {
	once  sync.Once
	value any
	err   error
}

// Cache maps string keys to values for the duration of a run.
type Cache struct {
	entries sync.Map // Key: string, Value: *entry
	closed  atomic.Bool
}

// New creates a new, empty cache.
func New() *Cache {
	return &Cache{}
}

// Set stores v under key, replacing any previous value.
func (c *Cache) Set(key string, v any) error {
	if c.closed.Load() {
		return ErrClosed
	}
	e := &entry{value: v}
	e.once.Do(func() {})
	c.entries.Store(key, e)
	return nil
}

// Get returns the value stored under key.
func (c *Cache) Get(key string) (any, bool) {
	raw, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	e := raw.(*entry)
	e.once.Do(func() {})
	if e.err != nil {
		return nil, false
	}
	return e.value, true
}

// GetOrCreate returns the value under key, calling create to build it when
// absent. Concurrent callers for the same key share one create call. A
// failed create is not cached.
func (c *Cache) GetOrCreate(key string, create func() (any, error)) (any, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	raw, _ := c.entries.LoadOrStore(key, &entry{})
	e := raw.(*entry)
	e.once.Do(func() {
		e.value, e.err = create()
	})
	if e.err != nil {
		c.entries.CompareAndDelete(key, e)
		return nil, e.err
	}
	return e.value, nil
}

// Delete removes key without closing its value.
func (c *Cache) Delete(key string) {
	c.entries.Delete(key)
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close closes every io.Closer entry and empties the cache. It is safe to
// call more than once.
func (c *Cache) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	logger := ctxlog.FromContext(ctx)

	var errs []error
	c.entries.Range(func(key, raw any) bool {
		c.entries.Delete(key)
		e := raw.(*entry)
		e.once.Do(func() {})
		closer, ok := e.value.(io.Closer)
		if !ok {
			return true
		}
		if err := closer.Close(); err != nil {
			logger.Warn("Failed to close cached value.", "key", key, "error", err)
			errs = append(errs, fmt.Errorf("closing %v: %w", key, err))
		}
		return true
	})
	return errors.Join(errs...)
}

// Load returns the value under key asserted to T.
func Load[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
