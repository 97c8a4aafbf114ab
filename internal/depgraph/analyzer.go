package depgraph

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/specialistvlad/aotgraph/internal/ctxlog"
)

// ComputeDependencyRoutine is invoked with each batch of marked nodes whose
// dependencies are not yet computable. On return every node of the batch must
// report StaticDependenciesAreComputed.
type ComputeDependencyRoutine[F any] func(ctx context.Context, batch []Node[F]) error

// Options configures an Analyzer.
type Options struct {
	// TrackEdges records every edge and root reason for dependency logs.
	TrackEdges bool
}

// ErrNoRoutine is returned when a node needs deferred computation but no
// ComputeDependencyRoutine was registered.
var ErrNoRoutine = errors.New("no dependency routine registered for deferred nodes")

// Analyzer computes the set of nodes reachable from the roots.
type Analyzer[F any] struct {
	factory F
	opts    Options
	routine ComputeDependencyRoutine[F]

	stack    []Node[F]
	deferred []Node[F]
	marked   []Node[F]
	count    atomic.Int64
	batches  int

	edges []Edge[F]
}

// NewAnalyzer creates an Analyzer whose nodes are expanded with factory.
func NewAnalyzer[F any](factory F, opts Options) *Analyzer[F] {
	return &Analyzer[F]{factory: factory, opts: opts}
}

// SetComputeDependencyRoutine registers the batch callback.
func (a *Analyzer[F]) SetComputeDependencyRoutine(routine ComputeDependencyRoutine[F]) {
	a.routine = routine
}

// AddRoot marks node as a root of the graph.
func (a *Analyzer[F]) AddRoot(node Node[F], reason string) {
	a.mark(nil, node, reason)
}

// ComputeMarkedNodes runs the mark loop to a fixed point. Calling it again on
// an unmodified graph marks nothing.
func (a *Analyzer[F]) ComputeMarkedNodes(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Computing marked nodes.", "pending", len(a.stack), "marked", len(a.marked))

	for {
		for len(a.stack) > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			n := a.stack[len(a.stack)-1]
			a.stack = a.stack[:len(a.stack)-1]
			if !n.StaticDependenciesAreComputed() {
				a.deferred = append(a.deferred, n)
				continue
			}
			a.expand(n)
		}

		if len(a.deferred) == 0 {
			break
		}
		if a.routine == nil {
			return ErrNoRoutine
		}

		batch := a.deferred
		a.deferred = nil
		a.batches++
		logger.Debug("Dispatching deferred batch.", "batch", a.batches, "size", len(batch))
		if err := a.routine(ctx, batch); err != nil {
			return fmt.Errorf("dependency routine failed on batch %d: %w", a.batches, err)
		}
		for _, n := range batch {
			if !n.StaticDependenciesAreComputed() {
				return fmt.Errorf("node %s still has no dependencies after its batch was computed", n.Name())
			}
			a.expand(n)
		}
	}

	logger.Debug("Marked nodes computed.", "marked", len(a.marked), "batches", a.batches)
	return nil
}

func (a *Analyzer[F]) expand(n Node[F]) {
	for _, dep := range n.GetStaticDependencies(a.factory) {
		a.mark(n, dep.Node, dep.Reason)
	}
}

func (a *Analyzer[F]) mark(from, to Node[F], reason string) {
	if to == nil {
		if from == nil {
			panic(fmt.Sprintf("depgraph: nil root (%s)", reason))
		}
		panic(fmt.Sprintf("depgraph: %s reported a nil dependency (%s)", from.Name(), reason))
	}
	if a.opts.TrackEdges {
		a.edges = append(a.edges, Edge[F]{From: from, To: to, Reason: reason})
	}
	if !to.core().marked.CompareAndSwap(false, true) {
		return
	}
	a.marked = append(a.marked, to)
	a.count.Add(1)
	a.stack = append(a.stack, to)
	if obs, ok := to.(MarkObserver[F]); ok {
		obs.OnMarked(a.factory)
	}
}

// MarkedNodeList returns the marked nodes in mark order.
func (a *Analyzer[F]) MarkedNodeList() []Node[F] {
	return append([]Node[F](nil), a.marked...)
}

// MarkedCount is safe to call while ComputeMarkedNodes runs.
func (a *Analyzer[F]) MarkedCount() int {
	return int(a.count.Load())
}

// Batches returns how many deferred batches have been dispatched.
func (a *Analyzer[F]) Batches() int {
	return a.batches
}

// Edges returns the recorded edges, roots included. Empty unless TrackEdges.
func (a *Analyzer[F]) Edges() []Edge[F] {
	return append([]Edge[F](nil), a.edges...)
}

// Roots returns the recorded root edges. Empty unless TrackEdges.
func (a *Analyzer[F]) Roots() []Edge[F] {
	var roots []Edge[F]
	for _, e := range a.edges {
		if e.From == nil {
			roots = append(roots, e)
		}
	}
	return roots
}
