package types

import (
	"errors"
	"fmt"
)

// Domain errors for chunk extraction and merging
var (
	// Chunk-level errors, captured per chunk and never fatal to the whole analysis
	ErrSizing           = errors.New("chunk exceeds context budget")
	ErrRateLimited      = errors.New("rate limited by upstream")
	ErrExtractionFailed = errors.New("extraction failed")
	ErrRetryExhausted   = errors.New("retries exhausted")

	// Whole-operation errors
	ErrNoChunksSucceeded = errors.New("no chunks were successfully processed")
	ErrEmptyContent      = errors.New("content cannot be empty")
	ErrNotLegislation    = errors.New("document is not recognised as legislation")

	// Configuration errors
	ErrUnsupportedEncoding = errors.New("unsupported token encoding")
)

// SizingError reports a chunk whose prompt plus content would not fit in the
// model context window. It is raised before any network call is made.
type SizingError struct {
	Position     int
	PromptTokens int
	ChunkTokens  int
	MaxContext   int
}

func (e *SizingError) Error() string {
	return fmt.Sprintf("input too large at position %d: %d tokens (max %d)",
		e.Position, e.PromptTokens+e.ChunkTokens, e.MaxContext)
}

// Unwrap lets errors.Is match ErrSizing
func (e *SizingError) Unwrap() error {
	return ErrSizing
}

// Total returns the combined token cost
func (e *SizingError) Total() int {
	return e.PromptTokens + e.ChunkTokens
}
