// Package modulegroup decides which methods and types belong to the current
// compilation and which are only referenced across the version bubble.
package modulegroup

import (
	"errors"
	"slices"

	"github.com/specialistvlad/aotgraph/internal/typesystem"
)

// Group is the set of modules compiled together. Modules in the group form a
// version bubble: code may be inlined and generic instantiations may be
// pre-compiled across them.
type Group struct {
	modules      []*typesystem.Module
	compiled     map[*typesystem.Module]bool
	instrumented map[string]bool
}

// Option configures a Group.
type Option func(*Group)

// WithInstrumentedModules marks modules, by name, whose code receives
// profiling hooks.
func WithInstrumentedModules(names ...string) Option {
	return func(g *Group) {
		for _, n := range names {
			g.instrumented[n] = true
		}
	}
}

// New creates a group compiling the given modules. The first module in
// registration order becomes the home module of signatures.
func New(modules []*typesystem.Module, opts ...Option) (*Group, error) {
	if len(modules) == 0 {
		return nil, errors.New("a compilation group needs at least one module")
	}
	g := &Group{
		compiled:     make(map[*typesystem.Module]bool, len(modules)),
		instrumented: make(map[string]bool),
	}
	for _, m := range modules {
		if !g.compiled[m] {
			g.compiled[m] = true
			g.modules = append(g.modules, m)
		}
	}
	slices.SortFunc(g.modules, func(a, b *typesystem.Module) int { return a.Index() - b.Index() })
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// CompilationModules returns the compiled modules in registration order.
func (g *Group) CompilationModules() []*typesystem.Module {
	return append([]*typesystem.Module(nil), g.modules...)
}

// HomeModule is the module signatures are encoded relative to.
func (g *Group) HomeModule() *typesystem.Module {
	return g.modules[0]
}

// ContainsModule reports whether m is compiled here.
func (g *Group) ContainsModule(m *typesystem.Module) bool {
	return g.compiled[m]
}

// ContainsType reports whether the definition of t is compiled here.
func (g *Group) ContainsType(t *typesystem.Type) bool {
	return g.compiled[t.TypicalDefinition().Module]
}

// VersionsWithType reports whether every module t mentions is either in the
// bubble or the core library, so its layout cannot change underneath us.
func (g *Group) VersionsWithType(t *typesystem.Type) bool {
	switch t.Kind {
	case typesystem.KindGenericParameter:
		return true
	case typesystem.KindArray:
		return g.VersionsWithType(t.Elem)
	}
	def := t.TypicalDefinition()
	if !g.compiled[def.Module] && !def.Module.IsSystem {
		return false
	}
	for _, arg := range t.Instantiation {
		if !g.VersionsWithType(arg) {
			return false
		}
	}
	return true
}

// ContainsMethodBody reports whether code for m is generated in this
// compilation.
func (g *Group) ContainsMethodBody(m *typesystem.Method) bool {
	if !g.ContainsType(m.Owner) {
		return false
	}
	return g.VersionsWithMethodBody(m)
}

// VersionsWithMethodBody reports whether m and all of its instantiation
// arguments live in the version bubble.
func (g *Group) VersionsWithMethodBody(m *typesystem.Method) bool {
	if !g.VersionsWithType(m.Owner) {
		return false
	}
	for _, arg := range m.Instantiation {
		if !g.VersionsWithType(arg) {
			return false
		}
	}
	return true
}

// GeneratesPInvoke reports whether the marshalling stub for a P/Invoke method
// is compiled ahead of time.
func (g *Group) GeneratesPInvoke(m *typesystem.Method) bool {
	return m.IsPInvoke && g.ContainsMethodBody(m) && m.Owner.TypicalDefinition().Module.GeneratesPInvoke
}

// CanInline reports whether callee may be inlined into caller. Methods that
// need a security object frame are never inlined.
func (g *Group) CanInline(caller, callee *typesystem.Method) bool {
	if callee.RequireSecObject || caller.RequireSecObject {
		return false
	}
	return g.VersionsWithMethodBody(caller) && g.VersionsWithMethodBody(callee)
}

// IsModuleInstrumented reports whether code from m gets profiling hooks.
func (g *Group) IsModuleInstrumented(m *typesystem.Module) bool {
	return m != nil && g.instrumented[m.Name]
}
