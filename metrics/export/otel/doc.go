// Package otel publishes goTodo client metrics through an OpenTelemetry
// meter.
//
// Each counter family becomes one Int64ObservableCounter whose series carry
// the family label as an attribute. Latency buckets are one
// Int64ObservableGauge with an "le" attribute. One callback feeds them all
// per collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate client state.
package otel
