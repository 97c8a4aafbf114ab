// Package ilcache memoizes method bodies for the code generator and
// synthesizes P/Invoke marshalling stubs the IL provider does not supply.
package ilcache

import (
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/aotgraph/internal/typesystem"
	"golang.org/x/sync/singleflight"
)

// Threshold is the entry count above which the compilation replaces the
// cache with an empty one between batches.
const Threshold = 1000

// PInvokePolicy decides which P/Invoke methods get a compiled stub.
type PInvokePolicy interface {
	GeneratesPInvoke(m *typesystem.Method) bool
}

// MethodILData is a cache entry.
type MethodILData struct {
	Method *typesystem.Method
	IL     *MethodIL
}

// Cache maps methods to their bodies. It is safe for concurrent use.
type Cache struct {
	provider ILProvider
	policy   PInvokePolicy

	entries sync.Map // Key: *typesystem.Method, Value: *MethodILData
	flight  singleflight.Group
	count   atomic.Int64
}

// New creates an empty cache over provider.
func New(provider ILProvider, policy PInvokePolicy) *Cache {
	return &Cache{provider: provider, policy: policy}
}

// Provider returns the underlying provider.
func (c *Cache) Provider() ILProvider { return c.provider }

// Renew returns an empty cache sharing the provider and policy of c.
func (c *Cache) Renew() *Cache { return New(c.provider, c.policy) }

// Len returns the number of cached entries.
func (c *Cache) Len() int { return int(c.count.Load()) }

// GetMethodIL returns the body of m, or nil when m has none. Provider errors
// are not cached.
func (c *Cache) GetMethodIL(m *typesystem.Method) (*MethodIL, error) {
	if v, ok := c.entries.Load(m); ok {
		return v.(*MethodILData).IL, nil
	}
	v, err, _ := c.flight.Do(m.String(), func() (any, error) {
		if v, ok := c.entries.Load(m); ok {
			return v, nil
		}
		il, err := c.provider.GetMethodIL(m)
		if err != nil {
			return nil, err
		}
		if il == nil && m.IsPInvoke && c.policy.GeneratesPInvoke(m) {
			il = pinvokeStub(m)
		}
		data := &MethodILData{Method: m, IL: il}
		c.entries.Store(m, data)
		c.count.Add(1)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*MethodILData).IL, nil
}
