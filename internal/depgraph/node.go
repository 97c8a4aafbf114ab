package depgraph

import "sync/atomic"

// Node is a vertex of the dependency graph. F is the factory passed to nodes
// when they compute their dependencies.
//
// Implementations embed NodeCore, which carries the marked state.
type Node[F any] interface {
	Name() string
	StaticDependenciesAreComputed() bool
	GetStaticDependencies(factory F) DependencyList[F]

	core() *NodeCore
}

// MarkObserver is implemented by nodes that need to react to being marked,
// e.g. import cells registering with their section.
type MarkObserver[F any] interface {
	OnMarked(factory F)
}

// NodeCore holds per-node graph state. The zero value is an unmarked node.
type NodeCore struct {
	marked atomic.Bool
}

// Marked reports whether the node has been pulled into the graph.
func (c *NodeCore) Marked() bool {
	return c.marked.Load()
}

func (c *NodeCore) core() *NodeCore {
	return c
}

// DependencyListEntry pairs a dependency with a diagnostic reason.
type DependencyListEntry[F any] struct {
	Node   Node[F]
	Reason string
}

// DependencyList is an insertion-ordered list of dependencies.
type DependencyList[F any] []DependencyListEntry[F]

// Add appends a dependency.
func (l *DependencyList[F]) Add(node Node[F], reason string) {
	*l = append(*l, DependencyListEntry[F]{Node: node, Reason: reason})
}

// Edge is a recorded dependency. From is nil for roots.
type Edge[F any] struct {
	From   Node[F]
	To     Node[F]
	Reason string
}
