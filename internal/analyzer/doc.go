// Package analyzer drives chunk-level extraction of a long document and
// merges the partial results into one record.
//
// The pipeline is:
//
//	validate (optional) -> chunk -> size check -> extract (bounded pool) -> merge
//
// Each chunk is extracted on a fixed-size errgroup pool, behind the shared
// rate limiter and its retry policy. A chunk that fails is recorded with its
// position and never affects its siblings. Merge sorts successful partials by
// position before aggregating, so completion order has no influence on the
// result: list fields are concatenated and scalar fields keep the first
// non-empty value.
//
// Only two outcomes abort a whole analysis: every chunk failing
// (types.ErrNoChunksSucceeded) and cancellation of the caller's context.
package analyzer
