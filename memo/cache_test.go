package memo

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	c, err := New(opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func constFunc(v any) Func {
	return func(context.Context, Args) (any, error) { return v, nil }
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(WithMaxSize(-1)); !errors.Is(err, ErrInvalidMaxSize) {
		t.Errorf("New(WithMaxSize(-1)) error = %v, want ErrInvalidMaxSize", err)
	}
	if _, err := New(WithTTL(-time.Second)); !errors.Is(err, ErrInvalidTTL) {
		t.Errorf("New(WithTTL(-1s)) error = %v, want ErrInvalidTTL", err)
	}
	if _, err := New(WithMaxSize(0)); err != nil {
		t.Errorf("unbounded capacity should be valid, got %v", err)
	}
}

func TestCall_MemoizesResult(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	var calls atomic.Int32
	fn := func(_ context.Context, args Args) (any, error) {
		calls.Add(1)
		return args.Pos[0].(int) * 2, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.Call(ctx, fn, A(21))
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if v != 42 {
			t.Errorf("Call returned %v, want 42", v)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fn executed %d times, want 1", got)
	}

	// A different argument set is a different entry.
	if _, err := c.Call(ctx, fn, A(5)); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("fn executed %d times after new args, want 2", got)
	}
}

func TestCall_NilFunc(t *testing.T) {
	c := newTestCache(t)
	if _, err := c.Call(context.Background(), nil, A(1)); !errors.Is(err, ErrNilFunc) {
		t.Errorf("Call(nil) error = %v, want ErrNilFunc", err)
	}
	if _, err := c.CallShared(context.Background(), nil, A(1)); !errors.Is(err, ErrNilFunc) {
		t.Errorf("CallShared(nil) error = %v, want ErrNilFunc", err)
	}
}

func TestCall_UncacheableArgsFailFast(t *testing.T) {
	c := newTestCache(t)

	var computed bool
	fn := func(context.Context, Args) (any, error) {
		computed = true
		return nil, nil
	}

	_, err := c.Call(context.Background(), fn, A(func() {}))
	if !errors.Is(err, ErrUncacheable) {
		t.Fatalf("error = %v, want ErrUncacheable", err)
	}
	if computed {
		t.Error("computation must not run when canonicalization fails")
	}
	info := c.Info()
	if info.Hits != 0 || info.Misses != 0 || info.Size != 0 {
		t.Errorf("cache state mutated on canonicalization failure: %+v", info)
	}
}

func TestCall_ComputationErrorNotCached(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	boom := errors.New("boom")

	var calls int
	fn := func(context.Context, Args) (any, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return "ok", nil
	}

	if _, err := c.Call(ctx, fn, A("k")); !errors.Is(err, boom) {
		t.Fatalf("first call error = %v, want boom", err)
	}
	if got := c.Info().Size; got != 0 {
		t.Errorf("failed computation should not be cached, size = %d", got)
	}

	// The next call retries and succeeds.
	v, err := c.Call(ctx, fn, A("k"))
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if v != "ok" {
		t.Errorf("retry returned %v, want ok", v)
	}
}

func TestCall_KeywordOrderIrrelevant(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	var calls int
	fn := func(context.Context, Args) (any, error) {
		calls++
		return calls, nil
	}

	args1 := A("q").WithKW("limit", 10).WithKW("offset", 0)
	args2 := A("q").WithKW("offset", 0).WithKW("limit", 10)

	v1, err := c.Call(ctx, fn, args1)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := c.Call(ctx, fn, args2)
	if err != nil {
		t.Fatal(err)
	}
	if v1 != v2 || calls != 1 {
		t.Errorf("keyword order changed the cache key: v1=%v v2=%v calls=%d", v1, v2, calls)
	}
}

func TestCache_LRUEvictionScenario(t *testing.T) {
	// capacity=2: insert a,b,c => {b,c}; read b, insert d => {b,d}.
	c := newTestCache(t, WithMaxSize(2))
	ctx := context.Background()

	var computes atomic.Int32
	fn := func(_ context.Context, args Args) (any, error) {
		computes.Add(1)
		return args.Pos[0], nil
	}

	for _, k := range []string{"a", "b", "c"} {
		if _, err := c.Call(ctx, fn, A(k)); err != nil {
			t.Fatal(err)
		}
	}
	if got := c.Info().Size; got != 2 {
		t.Fatalf("size = %d, want 2", got)
	}

	computes.Store(0)
	if _, err := c.Call(ctx, fn, A("b")); err != nil { // hit
		t.Fatal(err)
	}
	if got := computes.Load(); got != 0 {
		t.Error("b should have been a hit")
	}
	if _, err := c.Call(ctx, fn, A("a")); err != nil { // miss: a was evicted
		t.Fatal(err)
	}
	if got := computes.Load(); got != 1 {
		t.Error("a should have been evicted and recomputed")
	}
}

func TestCache_EvictionCounter(t *testing.T) {
	c := newTestCache(t, WithMaxSize(2))
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c", "d"} {
		if _, err := c.Call(ctx, constFunc(1), A(k)); err != nil {
			t.Fatal(err)
		}
	}
	if got := c.Info().Evictions; got != 2 {
		t.Errorf("evictions = %d, want 2", got)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	clock := struct {
		now time.Time
	}{now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	c := newTestCache(t, WithTTL(time.Minute), WithClock(func() time.Time { return clock.now }))
	ctx := context.Background()

	var calls int
	fn := func(context.Context, Args) (any, error) {
		calls++
		return calls, nil
	}

	if _, err := c.Call(ctx, fn, A("k")); err != nil {
		t.Fatal(err)
	}

	clock.now = clock.now.Add(30 * time.Second)
	v, err := c.Call(ctx, fn, A("k"))
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Error("read before TTL should hit")
	}

	clock.now = clock.now.Add(31 * time.Second)
	v, err = c.Call(ctx, fn, A("k"))
	if err != nil {
		t.Fatal(err)
	}
	if v != 2 {
		t.Error("read after TTL should miss and recompute")
	}
	if got := c.Info().Evictions; got != 1 {
		t.Errorf("expiry removal should count as an eviction, got %d", got)
	}
}

func TestCache_InfoCounters(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	// 3 distinct misses, then 2 hits.
	for _, k := range []string{"a", "b", "c"} {
		if _, err := c.Call(ctx, constFunc(k), A(k)); err != nil {
			t.Fatal(err)
		}
	}
	for _, k := range []string{"a", "b"} {
		if _, err := c.Call(ctx, constFunc(k), A(k)); err != nil {
			t.Fatal(err)
		}
	}

	info := c.Info()
	if info.Hits != 2 {
		t.Errorf("hits = %d, want 2", info.Hits)
	}
	if info.Misses != 3 {
		t.Errorf("misses = %d, want 3", info.Misses)
	}
	if info.Size != 3 {
		t.Errorf("size = %d, want 3", info.Size)
	}
	if info.MaxSize != DefaultMaxSize {
		t.Errorf("maxsize = %d, want %d", info.MaxSize, DefaultMaxSize)
	}
	if info.Inflight != 0 {
		t.Errorf("inflight = %d, want 0", info.Inflight)
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	var calls int
	fn := func(context.Context, Args) (any, error) {
		calls++
		return calls, nil
	}

	if _, err := c.Call(ctx, fn, A("k")); err != nil {
		t.Fatal(err)
	}

	removed, err := c.Invalidate(A("k"))
	if err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if !removed {
		t.Error("Invalidate of present key should report true")
	}

	// Absent key is a no-op, not an error.
	removed, err = c.Invalidate(A("never"))
	if err != nil || removed {
		t.Errorf("Invalidate of absent key = (%v, %v), want (false, nil)", removed, err)
	}

	// Invalidation forces recomputation.
	if _, err := c.Call(ctx, fn, A("k")); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("fn executed %d times, want 2 after invalidation", calls)
	}

	if _, err := c.Invalidate(A(make(chan int))); !errors.Is(err, ErrUncacheable) {
		t.Errorf("Invalidate with uncacheable args error = %v, want ErrUncacheable", err)
	}
}

func TestCache_ClearKeepsCounters(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b"} {
		if _, err := c.Call(ctx, constFunc(k), A(k)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := c.Call(ctx, constFunc("a"), A("a")); err != nil {
		t.Fatal(err)
	}

	before := c.Info()
	c.Clear()
	after := c.Info()

	if after.Size != 0 {
		t.Errorf("size after Clear = %d, want 0", after.Size)
	}
	if after.Hits != before.Hits || after.Misses != before.Misses {
		t.Errorf("Clear reset counters: before=%+v after=%+v", before, after)
	}
}

func TestCache_IndependentInstances(t *testing.T) {
	a := newTestCache(t)
	b := newTestCache(t)
	ctx := context.Background()

	if _, err := a.Call(ctx, constFunc(1), A("k")); err != nil {
		t.Fatal(err)
	}
	if got := b.Info().Size; got != 0 {
		t.Errorf("instance b sees %d entries from instance a", got)
	}

	var calls int
	fn := func(context.Context, Args) (any, error) {
		calls++
		return calls, nil
	}
	if _, err := b.Call(ctx, fn, A("k")); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Error("instance b should compute independently of a")
	}
}
