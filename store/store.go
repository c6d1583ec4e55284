package store

import (
	"sync"
	"time"
)

// OnEvictFunc is called when an entry is removed automatically, either by a
// capacity eviction or by lazy expiry. It is not called for explicit
// Delete or Clear.
type OnEvictFunc[K comparable, V any] func(key K, value V)

// Store is a thread-safe, fixed-capacity LRU map with per-entry expiry.
//
// A capacity of zero means unbounded: entries are never evicted by size.
// A TTL of zero means entries never expire on their own. A Store must be
// created with [New]; the zero value is not ready for use.
//
// Every mutation runs under one exclusive mutex, so a Store is safe to
// drive from any mix of callers regardless of the locking discipline they
// use above it.
type Store[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[K]*entry[K, V]
	head     *entry[K, V] // most recently used
	tail     *entry[K, V] // least recently used
	timeNow  func() time.Time
	onEvict  OnEvictFunc[K, V]
}

// entry is an intrusive doubly-linked list node.
type entry[K comparable, V any] struct {
	key       K
	val       V
	createdAt time.Time
	expiresAt time.Time // zero when the store has no TTL
	prev      *entry[K, V]
	next      *entry[K, V]
}

func (e *entry[K, V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// New creates a store with the given capacity and TTL. Negative values are
// treated as zero (unbounded capacity, no expiry).
func New[K comparable, V any](capacity int, ttl time.Duration) *Store[K, V] {
	if capacity < 0 {
		capacity = 0
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Store[K, V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[K]*entry[K, V]),
		timeNow:  time.Now,
	}
}

// Get retrieves a value by key. A live hit promotes the entry to most
// recently used. An expired entry is removed and reported as a miss.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()

	var zero V

	e, found := s.items[key]
	if !found {
		s.mu.Unlock()
		return zero, false
	}

	if e.expired(s.timeNow()) {
		s.unlink(e)
		delete(s.items, key)
		onEvict := s.onEvict
		s.mu.Unlock()

		if onEvict != nil {
			onEvict(e.key, e.val)
		}
		return zero, false
	}

	s.moveToFront(e)
	val := e.val
	s.mu.Unlock()

	return val, true
}

// Peek retrieves a value by key without promoting it or removing it if
// expired. Expired entries are reported as absent.
func (s *Store[K, V]) Peek(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V

	e, found := s.items[key]
	if !found || e.expired(s.timeNow()) {
		return zero, false
	}
	return e.val, true
}

// Put inserts or replaces the entry, stamps its expiry from the store TTL,
// and marks it most recently used. If the insertion pushes size past
// capacity, entries are removed from the least-recently-used end until size
// fits, and no further: the scan never sweeps beyond the eviction boundary.
func (s *Store[K, V]) Put(key K, val V) {
	s.mu.Lock()

	now := s.timeNow()
	if e, found := s.items[key]; found {
		e.val = val
		e.createdAt = now
		e.expiresAt = s.stamp(now)
		s.moveToFront(e)
		s.mu.Unlock()
		return
	}

	e := &entry[K, V]{
		key:       key,
		val:       val,
		createdAt: now,
		expiresAt: s.stamp(now),
	}
	s.pushFront(e)
	s.items[key] = e

	var evicted []*entry[K, V]
	if s.capacity > 0 {
		for len(s.items) > s.capacity {
			oldest := s.tail
			if oldest == nil {
				break
			}
			s.unlink(oldest)
			delete(s.items, oldest.key)
			evicted = append(evicted, oldest)
		}
	}
	onEvict := s.onEvict
	s.mu.Unlock()

	if onEvict != nil {
		for _, ev := range evicted {
			onEvict(ev.key, ev.val)
		}
	}
}

func (s *Store[K, V]) stamp(now time.Time) time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(s.ttl)
}

// Delete removes an entry by key. Idempotent; reports whether an entry was
// removed. The eviction callback is not invoked for explicit removal.
func (s *Store[K, V]) Delete(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.items[key]
	if !found {
		return false
	}
	s.unlink(e)
	delete(s.items, key)
	return true
}

// Clear removes all entries.
func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[K]*entry[K, V])
	s.head = nil
	s.tail = nil
}

// Len returns the number of physically present entries, including expired
// entries that have not yet been swept; they occupy capacity until read or
// reached by an eviction scan.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}

// Contains reports whether a live entry exists for key. Expired entries are
// not removed.
func (s *Store[K, V]) Contains(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.items[key]
	return found && !e.expired(s.timeNow())
}

// Keys returns the keys of all live entries, ordered from most to least
// recently used.
func (s *Store[K, V]) Keys() []K {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timeNow()
	keys := make([]K, 0, len(s.items))
	for e := s.head; e != nil; e = e.next {
		if !e.expired(now) {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Capacity returns the configured maximum size; zero means unbounded.
func (s *Store[K, V]) Capacity() int {
	return s.capacity
}

// TTL returns the configured entry TTL; zero means entries never expire.
func (s *Store[K, V]) TTL() time.Duration {
	return s.ttl
}

// OnEvict registers a callback invoked after the store lock is released for
// every capacity eviction and lazy expiry removal. It must be safe for
// concurrent use.
func (s *Store[K, V]) OnEvict(f OnEvictFunc[K, V]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onEvict = f
}

// SetClock replaces the time source, primarily for tests. Passing nil
// resets to time.Now.
func (s *Store[K, V]) SetClock(f func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f == nil {
		f = time.Now
	}
	s.timeNow = f
}

func (s *Store[K, V]) moveToFront(e *entry[K, V]) {
	if s.head == e {
		return
	}
	s.unlink(e)
	s.pushFront(e)
}

func (s *Store[K, V]) pushFront(e *entry[K, V]) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *Store[K, V]) unlink(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}
