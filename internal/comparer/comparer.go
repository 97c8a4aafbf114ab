// Package comparer defines the total order used to serialize nodes
// deterministically. Nothing here looks at pointer values or creation order.
package comparer

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/specialistvlad/aotgraph/internal/typesystem"
)

// Node is a comparable object node. Nodes of one kind share a class code;
// CompareToImpl is only called with another node of the same class code.
type Node interface {
	Name() string
	ClassCode() int
	CompareToImpl(other Node, c *Comparer) int
}

// Comparer orders nodes by class code, then by the kind's own fields.
type Comparer struct{}

// New returns a Comparer.
func New() *Comparer {
	return &Comparer{}
}

// Compare returns a negative, zero or positive result. Nil sorts first.
func (c *Comparer) Compare(a, b Node) int {
	switch {
	case a == b:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if r := cmp.Compare(a.ClassCode(), b.ClassCode()); r != 0 {
		return r
	}
	return a.CompareToImpl(b, c)
}

// CompareTypes orders types by metadata. Nil sorts first.
func (c *Comparer) CompareTypes(a, b *typesystem.Type) int {
	return typesystem.CompareTypes(a, b)
}

// CompareMethods orders methods by metadata. Nil sorts first.
func (c *Comparer) CompareMethods(a, b *typesystem.Method) int {
	return typesystem.CompareMethods(a, b)
}

// CompareFields orders fields by metadata. Nil sorts first.
func (c *Comparer) CompareFields(a, b *typesystem.Field) int {
	return typesystem.CompareFields(a, b)
}

// CompareModules orders modules by name. Nil sorts first.
func (c *Comparer) CompareModules(a, b *typesystem.Module) int {
	return typesystem.CompareModules(a, b)
}

// DuplicateNodeError reports two distinct nodes the comparer cannot tell apart.
type DuplicateNodeError struct {
	First, Second Node
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("distinct nodes compare equal: %s and %s", e.First.Name(), e.Second.Name())
}

// CheckUnique returns a *DuplicateNodeError if two adjacent nodes of a sorted
// slice compare equal while being distinct.
func CheckUnique[N Node](c *Comparer, sorted []N) error {
	for i := 1; i < len(sorted); i++ {
		a, b := Node(sorted[i-1]), Node(sorted[i])
		if a != b && c.Compare(a, b) == 0 {
			return &DuplicateNodeError{First: a, Second: b}
		}
	}
	return nil
}

// SortNodes sorts nodes in place. Two distinct nodes that compare equal
// would have been one node in the factory, so that case panics.
func SortNodes[N Node](c *Comparer, nodes []N) {
	slices.SortStableFunc(nodes, func(a, b N) int {
		return c.Compare(a, b)
	})
	if err := CheckUnique(c, nodes); err != nil {
		panic(fmt.Sprintf("comparer: %v", err))
	}
}
