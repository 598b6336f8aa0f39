// Package types provides shared type definitions for docextract.
//
// This package defines the domain types used across the chunker, the
// extraction adapters, the analyzer and storage.
//
// # Core Types
//
// Chunk is a token-bounded slice of a document tagged with its starting
// token offset:
//
//	chunk := types.NewChunk(text, 3800, 4000)
//	chunk.End() // 7800
//
// Legislation is the structured record produced by extraction. Each chunk
// yields a partial Legislation and the analyzer merges them:
//
//	doc := types.NewLegislation()
//	doc.ShortTitle = "Clean Water Act"
//
// ChunkResult carries either a partial document or a failure reason for one
// chunk position, so results can be joined without special-casing errors:
//
//	r := types.Success(0, 4000, doc)
//	f := types.Failure(3800, 4000, err)
//
// # Errors
//
// Chunk-level failures (ErrSizing, ErrRateLimited, ErrExtractionFailed,
// ErrRetryExhausted) are recorded per chunk. ErrNoChunksSucceeded is the only
// failure that aborts an analysis:
//
//	if errors.Is(err, types.ErrNoChunksSucceeded) {
//	    // nothing could be extracted
//	}
package types
