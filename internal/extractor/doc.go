// Package extractor turns a chunk of legislative text into a partial
// structured document.
//
// Two providers are available:
//   - openai: any OpenAI-compatible chat endpoint via langchaingo, JSON mode
//   - local: deterministic offline heuristics, no credentials required
//
// Providers classify failures with the sentinels from pkg/types. A
// throttling response is wrapped with types.ErrRateLimited so the rate
// limiter's retry policy can recognize it; every other failure is wrapped
// with types.ErrExtractionFailed.
//
// CachedExtractor wraps any Extractor with an LRU keyed by the content hash
// of instructions and text, so overlapping re-runs of the same document do
// not pay for identical chunks twice.
package extractor
