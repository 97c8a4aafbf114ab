package compilation

import (
	"fmt"

	"github.com/specialistvlad/aotgraph/internal/nodes"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
)

// RootProvider contributes the entry points of a compilation.
type RootProvider interface {
	AddCompilationRoots(r *RootingService) error
}

// RootingService is handed to root providers while the compilation is
// being set up.
type RootingService struct {
	c *Compilation
}

// AddMethodRoot roots the entrypoint of the canonical form of m.
func (r *RootingService) AddMethodRoot(m *typesystem.Method, reason string) error {
	canonical := r.c.ts.CanonicalMethod(m, typesystem.Specific)
	node, err := r.c.factory.MethodEntrypoint(nodes.NewMethodWithToken(canonical, typesystem.ModuleToken{}, nil), false, false)
	if err != nil {
		return fmt.Errorf("failed to root method %s: %w", m, err)
	}
	r.c.analyzer.AddRoot(node, reason)
	return nil
}

// AddTypeRoot roots the constructed type symbol of t.
func (r *RootingService) AddTypeRoot(t *typesystem.Type, reason string) error {
	node, err := r.c.factory.ConstructedTypeSymbol(t)
	if err != nil {
		return fmt.Errorf("failed to root type %s: %w", t, err)
	}
	r.c.analyzer.AddRoot(node, reason)
	return nil
}

// MethodRoots roots a fixed list of methods.
type MethodRoots struct {
	Methods []*typesystem.Method
	Reason  string
}

func (p MethodRoots) AddCompilationRoots(r *RootingService) error {
	for _, m := range p.Methods {
		if err := r.AddMethodRoot(m, p.Reason); err != nil {
			return err
		}
	}
	return nil
}
