package memo

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jonwraymond/memoflight/observe"
)

func TestCache_MetricsWiring(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observe.NewMetrics(provider.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	c := newTestCache(t, WithName("users"), WithMaxSize(1), WithMetrics(metrics))
	ctx := context.Background()

	if _, err := c.Call(ctx, constFunc(1), A("a")); err != nil { // miss
		t.Fatal(err)
	}
	if _, err := c.Call(ctx, constFunc(1), A("a")); err != nil { // hit
		t.Fatal(err)
	}
	if _, err := c.Call(ctx, constFunc(2), A("b")); err != nil { // miss + eviction of a
		t.Fatal(err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	byName := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			byName[m.Name] = m
		}
	}

	lookups, ok := byName["memo.lookups"].Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("memo.lookups was not recorded")
	}
	counts := map[string]int64{}
	for _, dp := range lookups.DataPoints {
		name, _ := dp.Attributes.Value(attribute.Key("cache.name"))
		if name.AsString() != "users" {
			t.Errorf("lookup recorded for cache %q, want users", name.AsString())
		}
		outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
		counts[outcome.AsString()] += dp.Value
	}
	if counts["hit"] != 1 || counts["miss"] != 2 {
		t.Errorf("lookup counts = %v, want hit=1 miss=2", counts)
	}

	evictions, ok := byName["memo.evictions"].Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("memo.evictions was not recorded")
	}
	var evicted int64
	for _, dp := range evictions.DataPoints {
		evicted += dp.Value
	}
	if evicted != 1 {
		t.Errorf("evictions = %d, want 1", evicted)
	}

	if _, ok := byName["memo.compute.duration_ms"]; !ok {
		t.Error("memo.compute.duration_ms was not recorded")
	}
}

func TestCache_LoggerWiring(t *testing.T) {
	var buf bytes.Buffer
	log := observe.NewLoggerWithWriter("debug", &buf)

	c := newTestCache(t, WithName("users"), WithMaxSize(1), WithLogger(log))
	ctx := context.Background()

	if _, err := c.Call(ctx, constFunc(1), A("a")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Call(ctx, constFunc(2), A("b")); err != nil { // evicts a
		t.Fatal(err)
	}
	c.Clear()

	out := buf.String()
	if !strings.Contains(out, "entry evicted") {
		t.Errorf("missing eviction record in log output:\n%s", out)
	}
	if !strings.Contains(out, "cache cleared") {
		t.Errorf("missing clear record in log output:\n%s", out)
	}
	if !strings.Contains(out, `"cache.name":"users"`) {
		t.Errorf("records missing cache.name attribute:\n%s", out)
	}
}
