// Package keypool manages a rotating pool of API credentials.
//
// Credentials are persisted through the storage package with their secrets
// sealed by the vault package; plaintext keys exist only in memory, for the
// duration of one call. Selection is pluggable: priority, round-robin,
// least-used and random strategies are provided, each picking exactly one
// active credential per call.
//
// Selection and usage recording are deliberately not combined into one
// atomic operation: concurrent callers may pick the same least-used
// credential before either records usage. The pool is a best-effort load
// balancer, not a mutual-exclusion mechanism.
package keypool
