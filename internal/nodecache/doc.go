// Package nodecache provides the concurrent get-or-create table behind the
// node factory.
//
// # Purpose
//
// Graph expansion and parallel method compilation both ask the factory for
// nodes, often for the same key at the same moment. The cache guarantees that
// exactly one value is constructed and published per key, and that no caller
// ever sees a value whose constructor has not returned.
//
// # Characteristics
//
//   - **Single construction:** concurrent misses on one key are collapsed with
//     golang.org/x/sync/singleflight, so the constructor runs once.
//   - **Lock-free hits:** published values live in a sync.Map; the hot path
//     is a single Load.
//   - **No negative caching:** a constructor error is returned to every caller
//     waiting on that key and nothing is stored, so a later call retries.
//
// # Concurrency Model
//
// sync.Map suits this workload: keys are written once and read many times
// from many goroutines, and distinct keys never contend.
package nodecache
