// Package codegen turns method bodies into machine code and the graph nodes
// that code relocates against.
package codegen

import (
	"context"
	"sync/atomic"

	"github.com/specialistvlad/aotgraph/internal/ilcache"
	"github.com/specialistvlad/aotgraph/internal/nodes"
	"github.com/specialistvlad/aotgraph/internal/objdata"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
)

// Host is the compilation as seen by the code generator.
type Host interface {
	Factory() *nodes.Factory
	TypeSystem() *typesystem.Context
	GetMethodIL(m *typesystem.Method) (*ilcache.MethodIL, error)
	CanInline(caller, callee *typesystem.Method) bool
	IsModuleInstrumented(m *typesystem.Module) bool
}

// Backend compiles one method using a worker's Context.
type Backend interface {
	CompileMethod(ctx context.Context, cg *Context, m *typesystem.Method) (objdata.ObjectData, error)
}

var contextsCreated atomic.Int64

// ContextsCreated returns how many Contexts were created by this process.
func ContextsCreated() int64 { return contextsCreated.Load() }

// Context is per-worker code generator state. It is not safe for concurrent
// use; each worker owns exactly one.
type Context struct {
	host     Host
	workerID int
	builder  *objdata.Builder
	compiled int
}

// NewContext creates the state for one worker.
func NewContext(host Host, workerID int) *Context {
	contextsCreated.Add(1)
	return &Context{host: host, workerID: workerID, builder: objdata.NewBuilder(false)}
}

func (c *Context) Host() Host { return c.host }

func (c *Context) WorkerID() int { return c.workerID }

// Compiled returns how many methods this context produced code for.
func (c *Context) Compiled() int { return c.compiled }
