// Package typesystem models the metadata the compiler consumes: modules,
// types, methods and fields with stable identities and metadata tokens.
//
// # Why Typesystem Exists
//
// The dependency graph, the node library and the object writer all need to
// reason about managed entities without caring how the input assembly was
// read. This package is that shared vocabulary. It is deliberately small:
//   - **Identity:** every distinct entity is exactly one pointer. Generic
//     instantiations, arrays and generic parameters are interned by Context.
//   - **Canonical forms:** CanonicalType and CanonicalMethod map an
//     instantiation onto the shared code form used by generic sharing.
//   - **Loadability:** EnsureLoadableType and friends report entities that
//     cannot be resolved, so signatures fail at construction time.
//   - **Determinism:** CompareTypes, CompareMethods and CompareFields order
//     entities by metadata, never by pointer value or creation order.
//
// # Thread-Safety
//
// A Context may be used from many compilation workers at once. Interning is
// guarded by a mutex; entity structs are immutable once published.
package typesystem
