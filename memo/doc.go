// Package memo provides a general-purpose memoization engine: given a
// function and its arguments it returns a previously computed result when
// one is cached, and otherwise computes, stores, and returns it, under LRU
// eviction, optional TTL expiry, and single-flight deduplication of
// concurrent identical computations.
//
// # Call paths
//
// A Cache exposes two call paths over the same state:
//
//   - [Cache.Call] serializes all callers behind one exclusive lock held
//     for the full lookup-compute-store sequence. Duplicate concurrent
//     computation is impossible by construction, at the cost of global
//     throughput.
//   - [Cache.CallShared] checks and writes the store without holding any
//     engine lock across the computation; concurrent callers for the same
//     fingerprint collapse onto a single in-flight computation whose
//     outcome every caller shares.
//
// Both paths may be used on the same Cache concurrently: the store's own
// mutex makes each mutation atomic regardless of which path issued it.
// There is no cross-path ordering guarantee beyond that atomicity.
//
// # Errors
//
//   - Arguments that cannot be canonicalized fail fast with an error
//     matching [ErrUncacheable]; the computation is never invoked and no
//     state changes.
//   - A failed computation propagates its error unmodified to the caller
//     and, on the shared path, identically to every follower; nothing is
//     cached and the next call retries.
//   - A caller whose context is cancelled while waiting receives its own
//     ctx.Err(); other waiters and the computation are unaffected.
package memo
