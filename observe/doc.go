// Package observe provides the telemetry hooks for the memoization engine:
// structured logging, OpenTelemetry metrics, and OpenTelemetry tracing.
//
// It is a pure instrumentation library: no exporter setup, no I/O beyond
// the log writer. Consumers own the meter and tracer providers and wire the
// hooks into memo.New via options.
package observe
