// Package prometheus renders engine metrics in the Prometheus text exposition
// format.
//
// [NewExporter] takes an engine (or any [Source]) and exposes an
// [http.Handler]. Counter families are astaauth_*_total, with a result or
// reason label where one family covers several engine counters. Latency
// histograms are astaauth_validate_latency_seconds and
// astaauth_hash_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
