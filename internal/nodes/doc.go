// Package nodes is the node library of the object emission graph: compiled
// method bodies, delay-load import cells, the import sections that collect
// them, and the fixup signatures the runtime loader resolves.
//
// All nodes are obtained from a Factory, which guarantees one instance per
// identity. Signature construction validates every referenced type, method
// and field up front, so a node that exists can always emit its data.
package nodes
