package types

import (
	"crypto/sha256"
	"errors"
)

// Chunk is a token-bounded slice of a larger document.
//
// Position is the starting token offset in the original token stream. It is
// set once by the chunker and is the only key used to order results, so
// processing order never affects the merged output.
type Chunk struct {
	Text        string
	Position    int
	TokenCount  int      // tokens consumed from the original stream
	ContentHash [32]byte // SHA-256 of Text
}

// NewChunk builds a chunk and computes its content hash
func NewChunk(text string, position, tokenCount int) Chunk {
	c := Chunk{
		Text:       text,
		Position:   position,
		TokenCount: tokenCount,
	}
	c.ComputeContentHash()
	return c
}

// End returns the exclusive end token offset covered by the chunk
func (c *Chunk) End() int {
	return c.Position + c.TokenCount
}

// ComputeContentHash computes the SHA-256 hash of the chunk text
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Text))
}

// Validate checks the chunk invariants
func (c *Chunk) Validate() error {
	if c.Position < 0 {
		return errors.New("chunk position must be non-negative")
	}
	if c.TokenCount < 0 {
		return errors.New("chunk token count must be non-negative")
	}
	var zeroHash [32]byte
	if c.ContentHash == zeroHash {
		return errors.New("content hash must be computed")
	}
	return nil
}
