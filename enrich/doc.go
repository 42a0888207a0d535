// Package enrich acquires new content when search coverage is insufficient.
//
// A Dispatcher accepts jobs without blocking and runs them on a bounded ants
// worker pool fed by a channel. Each job runs with its own timeout on a context
// detached from the request that triggered it. A Workflow turns a job into an
// enrichment strategy, fetches every target through its breaker-guarded
// fetcher, normalizes the raw content and hands it to the Ingester.
//
// The Ingester is the single write path into the engine:
//
//	fingerprint -> dedup by hash -> quality gate -> TTL -> content record (pending)
//	  -> index upload -> record processed -> processed cache -> workspace candidate
//
// Duplicates surface as core.ErrDuplicateContent and low-quality content as
// *core.BelowThresholdError; both are recorded so they are not refetched.
package enrich
