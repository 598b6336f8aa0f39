// Package tokenizer measures and slices text by token count.
//
// The chunker works in tokens rather than characters so each chunk plus the
// extraction instructions stays under the model's context limit. Two
// encodings are available:
//
//   - tiktoken BPE encodings keyed by model ("gpt-4o") or encoding name
//     ("o200k_base", "cl100k_base"), via github.com/pkoukk/tiktoken-go
//   - "bytes", one token per byte, for offline runs and tests
//
// # Basic Usage
//
//	tok, err := tokenizer.New("gpt-4o")
//	if err != nil {
//	    log.Fatal(err) // unsupported encoding is a misconfiguration
//	}
//	ids := tok.Encode("Section 1. Short title.")
//	text := tok.Decode(ids[:3])
//
// tiktoken-go fetches BPE ranks on first use and caches them in
// TIKTOKEN_CACHE_DIR when set.
package tokenizer
