// Package chunker divides long documents into overlapping, token-bounded
// chunks for extraction.
//
// Each chunk, plus the fixed extraction instructions, must fit in the model
// context window. The chunker measures text with a tokenizer.Tokenizer and
// tags every chunk with its starting token offset, which the analyzer uses
// as the merge key.
//
// # Basic Usage
//
//	tok, _ := tokenizer.New("gpt-4o")
//	c := chunker.New(tok, chunker.Options{
//	    ChunkSize:        4000,
//	    Overlap:          200,
//	    MaxContextLength: 8000,
//	})
//
//	for _, chunk := range c.CreateChunks(text) {
//	    fmt.Printf("chunk at token %d: %d tokens\n", chunk.Position, chunk.TokenCount)
//	}
//
// # Chunk Sizing
//
//   - ChunkSize defaults to half the context window and is clamped so
//     ChunkSize + ReservedPromptTokens <= MaxContextLength
//   - Overlap is clamped to ChunkSize/4
//   - Documents shorter than ChunkSize are returned as one chunk, unchanged
//
// # Sentence Boundaries
//
// When a decoded window is longer than MinTrimLength bytes it is cut after
// the last ". " so sentences are not severed at chunk edges. The trimmed
// text is re-encoded to get its exact token count; the next chunk starts
// Overlap tokens before the end of the trimmed text. If trimming leaves the
// cursor where it was, it is forced forward by one token, so chunking
// always terminates.
package chunker
