// Package otel publishes engine metrics through OpenTelemetry observable
// instruments.
//
// [NewExporter] registers one Int64ObservableCounter per counter family, with
// the family's label as an attribute, and one Int64ObservableGauge per
// latency histogram carrying cumulative bucket counts under an "le"
// attribute. A single callback reads the engine snapshot on each collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
