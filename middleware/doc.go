// Package middleware adapts the astaauth gate to net/http.
//
// # Handlers
//
//   - [Guard] admits requests whose bearer token resolves to an active
//     identity and binds that identity to the request context.
//   - [RequestContext] stamps a request id and client IP onto the context so
//     audit events can be correlated.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the gate).
//   - Tell clients which authentication check failed.
package middleware
