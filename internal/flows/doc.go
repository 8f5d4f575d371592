// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunGate, RunResolve, RunRegister) accepts a
// typed dependency struct and returns results without side-effects beyond
// those dependencies. Flows are generic over the credential record so the
// root package can pass its own type without an import cycle.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the credential store, token manager,
// hashing pool, audit dispatcher, and metrics. They do NOT own any of these
// resources. Ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import astaauth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency funcs.
package flows
