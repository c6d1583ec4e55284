package memo

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/memoflight/flight"
	"github.com/jonwraymond/memoflight/keyer"
	"github.com/jonwraymond/memoflight/observe"
	"github.com/jonwraymond/memoflight/store"
)

// DefaultMaxSize is the entry capacity used when none is configured.
const DefaultMaxSize = 128

// Args carries a call's positional and keyword arguments. Keyword order is
// irrelevant to the derived fingerprint; positional order is not.
type Args struct {
	Pos []any
	KW  map[string]any
}

// A builds positional-only Args.
func A(pos ...any) Args {
	return Args{Pos: pos}
}

// WithKW returns a copy of the Args with one keyword argument added.
func (a Args) WithKW(key string, val any) Args {
	kw := make(map[string]any, len(a.KW)+1)
	for k, v := range a.KW {
		kw[k] = v
	}
	kw[key] = val
	a.KW = kw
	return a
}

// Func is a computation the cache can memoize. It receives the same Args the
// fingerprint was derived from.
type Func func(ctx context.Context, args Args) (any, error)

// Cache memoizes function results keyed by canonicalized arguments.
// Instances are fully independent; there is no package-level cache.
// A Cache must be created with [New]; the zero value is not ready for use.
type Cache struct {
	name    string
	maxSize int
	ttl     time.Duration
	clock   func() time.Time

	store *store.Store[keyer.Fingerprint, any]
	group *flight.Group[keyer.Fingerprint, any]

	// callMu serializes the exclusive path: held for the entire
	// lookup-compute-store sequence of every Call.
	callMu sync.Mutex

	hits      atomic.Uint64
	misses    atomic.Uint64
	joins     atomic.Uint64
	evictions atomic.Uint64

	log     observe.Logger
	metrics observe.Metrics
	tracer  observe.Tracer
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxSize sets the maximum number of entries. Zero means unbounded:
// entries are never evicted by size and TTL is the only removal trigger.
func WithMaxSize(n int) Option {
	return func(c *Cache) { c.maxSize = n }
}

// WithTTL sets the expiry applied to every entry. Zero means entries never
// expire on their own.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithName sets the instance name used in telemetry attributes.
func WithName(name string) Option {
	return func(c *Cache) { c.name = name }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log observe.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// WithMetrics sets the metrics recorder. Defaults to a no-op recorder.
func WithMetrics(m observe.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithTracer sets the tracer used around owner computations. Defaults to a
// no-op tracer.
func WithTracer(t observe.Tracer) Option {
	return func(c *Cache) { c.tracer = t }
}

// WithClock replaces the time source used for TTL stamps, primarily for
// tests.
func WithClock(f func() time.Time) Option {
	return func(c *Cache) { c.clock = f }
}

// New creates a Cache. Without options it holds up to DefaultMaxSize
// entries and entries never expire.
func New(opts ...Option) (*Cache, error) {
	c := &Cache{
		name:    "memo",
		maxSize: DefaultMaxSize,
		log:     observe.NewNopLogger(),
		metrics: observe.NewNopMetrics(),
		tracer:  observe.NewNopTracer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxSize < 0 {
		return nil, ErrInvalidMaxSize
	}
	if c.ttl < 0 {
		return nil, ErrInvalidTTL
	}

	c.log = c.log.With(observe.String("cache.name", c.name))
	c.store = store.New[keyer.Fingerprint, any](c.maxSize, c.ttl)
	if c.clock != nil {
		c.store.SetClock(c.clock)
	}
	c.store.OnEvict(func(fp keyer.Fingerprint, _ any) {
		c.evictions.Add(1)
		c.metrics.RecordEvictions(context.Background(), c.name, 1)
		c.log.Debug(context.Background(), "entry evicted",
			observe.String("fingerprint", string(fp)))
	})
	c.group = &flight.Group[keyer.Fingerprint, any]{}
	return c, nil
}

// Call invokes fn memoized on the exclusive path: one engine-level lock is
// held from lookup through store write, serializing all Call callers
// globally. No two Call invocations can compute concurrently, for the same
// key or different ones, so this path needs no single-flight coordination.
func (c *Cache) Call(ctx context.Context, fn Func, args Args) (any, error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	fp, err := keyer.Key(args.Pos, args.KW)
	if err != nil {
		return nil, fmt.Errorf("memo: uncacheable arguments: %w", err)
	}

	c.callMu.Lock()
	defer c.callMu.Unlock()

	if val, ok := c.store.Get(fp); ok {
		c.hits.Add(1)
		c.metrics.RecordLookup(ctx, c.name, observe.OutcomeHit)
		return val, nil
	}
	c.misses.Add(1)
	c.metrics.RecordLookup(ctx, c.name, observe.OutcomeMiss)

	val, err := c.compute(ctx, fn, args, fp)
	if err != nil {
		return nil, err
	}
	c.store.Put(fp, val)
	return val, nil
}

// CallShared invokes fn memoized on the shared path: the computation runs
// with no engine lock held, and concurrent CallShared callers for the same
// fingerprint collapse onto one execution. The first caller owns the
// computation; followers suspend until it settles and share its outcome. A
// follower abandoning its wait (context cancellation) affects nobody else.
func (c *Cache) CallShared(ctx context.Context, fn Func, args Args) (any, error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	fp, err := keyer.Key(args.Pos, args.KW)
	if err != nil {
		return nil, fmt.Errorf("memo: uncacheable arguments: %w", err)
	}

	if val, ok := c.store.Get(fp); ok {
		c.hits.Add(1)
		c.metrics.RecordLookup(ctx, c.name, observe.OutcomeHit)
		return val, nil
	}

	handle, owner := c.group.Join(fp)
	if !owner {
		c.joins.Add(1)
		c.metrics.RecordLookup(ctx, c.name, observe.OutcomeJoin)
		return handle.Wait(ctx)
	}

	c.misses.Add(1)
	c.metrics.RecordLookup(ctx, c.name, observe.OutcomeMiss)

	// A panicking computation must still settle the record, or every later
	// call for this fingerprint would join a flight that never resolves.
	defer func() {
		if r := recover(); r != nil {
			handle.Settle(nil, fmt.Errorf("%w: %v", ErrPanic, r))
			panic(r)
		}
	}()

	val, err := c.compute(ctx, fn, args, fp)
	if err != nil {
		// The record is cleared before followers observe the failure, so
		// the next call for this fingerprint retries.
		handle.Settle(nil, err)
		return nil, err
	}
	handle.Settle(val, nil)
	c.store.Put(fp, val)
	return val, nil
}

// compute runs fn with tracing and duration metrics.
func (c *Cache) compute(ctx context.Context, fn Func, args Args, fp keyer.Fingerprint) (any, error) {
	spanCtx, span := c.tracer.StartSpan(ctx, c.name, string(fp))
	start := time.Now()
	val, err := fn(spanCtx, args)
	c.metrics.RecordCompute(ctx, c.name, time.Since(start), err)
	c.tracer.EndSpan(span, err)
	if err != nil {
		c.log.Debug(ctx, "computation failed",
			observe.String("fingerprint", string(fp)), observe.Err(err))
	}
	return val, err
}

// Invalidate removes the entry for the given arguments, reporting whether
// one was present. Invalidating an absent key is a no-op. An in-flight
// computation for the same arguments is not cancelled; when it settles its
// value is still written to the store.
func (c *Cache) Invalidate(args Args) (bool, error) {
	fp, err := keyer.Key(args.Pos, args.KW)
	if err != nil {
		return false, fmt.Errorf("memo: uncacheable arguments: %w", err)
	}
	return c.store.Delete(fp), nil
}

// Clear removes all entries. In-flight computations are not cancelled and
// cumulative counters are not reset.
func (c *Cache) Clear() {
	c.store.Clear()
	c.log.Debug(context.Background(), "cache cleared")
}

// Info is a point-in-time snapshot of the cache's counters and gauges.
type Info struct {
	Hits      uint64        // cumulative live hits
	Misses    uint64        // cumulative misses that triggered a computation
	Joins     uint64        // cumulative followers attached to in-flight computations
	Evictions uint64        // cumulative removals by capacity or expiry
	Size      int           // entries physically present, including unswept expired ones
	MaxSize   int           // configured capacity; zero means unbounded
	TTL       time.Duration // configured entry TTL; zero means no expiry
	Inflight  int           // computations currently outstanding on the shared path
}

// Info returns a snapshot of counters and gauges. It never blocks on
// in-flight computations.
func (c *Cache) Info() Info {
	return Info{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Joins:     c.joins.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.store.Len(),
		MaxSize:   c.maxSize,
		TTL:       c.ttl,
		Inflight:  c.group.Len(),
	}
}

// Name returns the instance name used in telemetry.
func (c *Cache) Name() string {
	return c.name
}
