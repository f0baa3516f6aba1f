// Package store persists the request lifecycle: the requests table, its
// append-only audit log, and the dedup set of seen source items, all in
// one SQLite database so admission checks, state transitions and audit
// writes share a transaction.
//
// Every state change goes through Transition (or CreateFromDraft), which
// validates the edge against the persisted state and appends exactly one
// audit entry in the same transaction. Concurrent actors racing on the
// same request see first-committer-wins; losers get a
// *model.StaleStateError.
package store
