// Package depgraph implements the dependency analysis engine that decides
// which nodes end up in the output image.
//
// # Model
//
// The graph is never known up front. Each node reports its own static
// dependencies when asked, and answering that question may create nodes that
// did not exist before. The Analyzer therefore runs a mark-and-discover
// worklist until a full pass marks nothing new:
//
//  1. Roots are marked and pushed onto the mark stack.
//  2. A popped node whose dependencies are already computable is expanded and
//     each dependency is marked.
//  3. A popped node whose dependencies are not yet computable (a method that
//     still needs code) is deferred.
//  4. When the stack drains, the whole deferred batch is handed once to the
//     ComputeDependencyRoutine, which may compile the batch in parallel.
//     Afterwards every node of the batch is expanded and the loop repeats.
//
// # Failure Semantics
//
// The routine may leave individual nodes without output; it must still make
// their dependencies computable. An error returned by the routine is fatal and
// aborts ComputeMarkedNodes.
//
// # Thread-Safety
//
// The Analyzer itself is driven from one goroutine. Only MarkedCount may be
// read concurrently, which is what progress reporting uses.
package depgraph
