package nodecache

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Cache maps string keys to values of type V, constructing each value at most
// once.
type Cache[V any] struct {
	entries sync.Map // Key: string, Value: V
	group   singleflight.Group
	count   atomic.Int64
}

// New creates an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{}
}

// GetOrCreate returns the value stored under key, calling create on a miss.
// Concurrent misses on the same key share one create call.
func (c *Cache[V]) GetOrCreate(key string, create func() (V, error)) (V, error) {
	if v, ok := c.entries.Load(key); ok {
		return v.(V), nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		// A previous flight may have published between our Load and Do.
		if v, ok := c.entries.Load(key); ok {
			return v, nil
		}
		created, err := create()
		if err != nil {
			return nil, err
		}
		c.entries.Store(key, created)
		c.count.Add(1)
		return created, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Load returns the value stored under key, if any.
func (c *Cache[V]) Load(key string) (V, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Len returns the number of published values.
func (c *Cache[V]) Len() int {
	return int(c.count.Load())
}

// Range calls fn for every published value until fn returns false. Order is
// unspecified.
func (c *Cache[V]) Range(fn func(key string, value V) bool) {
	c.entries.Range(func(k, v any) bool {
		return fn(k.(string), v.(V))
	})
}
