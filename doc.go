// Package astaauth authenticates callers of the ASTA API: it verifies
// email/password logins, issues HMAC-signed bearer tokens, validates them and
// resolves their subject to a live account on every guarded request.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// astaauth is the public surface. It exposes [Engine], [Builder], [Config],
// [Gate] and value types ([Identity], [GateResult], [MetricsSnapshot]).
// Flow orchestration and audit dispatch live under internal/. Hashing and
// token handling live in the password and jwt packages, which know nothing
// about accounts.
//
// # Failure taxonomy
//
// Every failed identity proof is an [*AuthenticationError]; errors.Is(err,
// [ErrUnauthenticated]) holds for all of them. Its Kind is for logs and
// metrics only. Store outages wrap [ErrServiceUnavailable] and must never be
// reported to clients as authentication failures.
//
// # What this package must NOT do
//
//   - Write to the credential store outside Register.
//   - Cache identities between gate checks.
//   - Log plaintext passwords or raw tokens.
package astaauth
