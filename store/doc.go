// Package store provides a fixed-capacity LRU map with per-entry TTL expiry.
//
// All operations are O(1). Expiry is lazy: an expired entry is removed when
// a read encounters it or when a write-triggered eviction scan reaches it;
// there is no background sweeper.
package store
