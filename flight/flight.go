package flight

import (
	"context"
	"sync"
)

// Group tracks at most one in-flight computation per key. The zero value is
// ready for use.
//
// Contract:
//   - Join returns owner=true for exactly one caller per key while a record
//     is outstanding; everyone else becomes a follower on the same handle.
//   - The record is removed before any waiter is released, so a caller that
//     observes a settled handle can immediately start a fresh flight.
//   - Settlement on failure clears the record the same way, making the next
//     call a retry.
type Group[K comparable, V any] struct {
	mu       sync.Mutex
	inflight map[K]*record[V]
}

// record is the shared settlement state for one computation.
type record[V any] struct {
	done    chan struct{}
	val     V
	err     error
	settled bool
	joins   int
}

// Handle is a shareable reference to one in-flight computation. The owner
// settles it; followers wait on it.
type Handle[K comparable, V any] struct {
	g   *Group[K, V]
	key K
	rec *record[V]
}

// Join registers the caller for the computation of key. The first caller
// for a key becomes the owner and must later call [Handle.Settle] exactly
// once; later callers join as followers and should call [Handle.Wait].
func (g *Group[K, V]) Join(key K) (*Handle[K, V], bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inflight == nil {
		g.inflight = make(map[K]*record[V])
	}
	if rec, ok := g.inflight[key]; ok {
		rec.joins++
		return &Handle[K, V]{g: g, key: key, rec: rec}, false
	}

	rec := &record[V]{done: make(chan struct{})}
	g.inflight[key] = rec
	return &Handle[K, V]{g: g, key: key, rec: rec}, true
}

// Settle resolves the computation with a value or an error. The in-flight
// record is removed before waiters are released. Settle is idempotent; only
// the first call takes effect. A record detached by [Group.Forget] is still
// settled so its waiters are never stranded.
func (h *Handle[K, V]) Settle(val V, err error) {
	h.g.mu.Lock()
	defer h.g.mu.Unlock()

	if cur, ok := h.g.inflight[h.key]; ok && cur == h.rec {
		delete(h.g.inflight, h.key)
	}
	if !h.rec.settled {
		h.rec.val = val
		h.rec.err = err
		h.rec.settled = true
		close(h.rec.done)
	}
}

// Wait blocks until the computation settles or ctx is done, whichever comes
// first. Abandoning a wait affects neither the computation nor any other
// waiter.
func (h *Handle[K, V]) Wait(ctx context.Context) (V, error) {
	select {
	case <-h.rec.done:
		return h.rec.val, h.rec.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Joins returns how many followers have joined this computation.
func (h *Handle[K, V]) Joins() int {
	h.g.mu.Lock()
	defer h.g.mu.Unlock()

	return h.rec.joins
}

// Forget detaches the in-flight record for key: subsequent Join calls start
// a fresh flight. The detached computation still settles its own waiters.
func (g *Group[K, V]) Forget(key K) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.inflight, key)
}

// Len returns the number of keys with an outstanding computation.
func (g *Group[K, V]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.inflight)
}
