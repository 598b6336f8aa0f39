package chunker

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/docextract/internal/tokenizer"
	"github.com/dshills/docextract/pkg/types"
)

const (
	// DefaultMaxContextLength is the model context window in tokens
	DefaultMaxContextLength = 8000

	// DefaultReservedPromptTokens is kept free for the extraction instructions
	DefaultReservedPromptTokens = 1000

	// DefaultOverlap is the number of tokens shared by consecutive chunks
	DefaultOverlap = 200

	// DefaultMinTrimLength is the decoded length (bytes) above which a chunk
	// is trimmed back to its last sentence boundary
	DefaultMinTrimLength = 100

	// sentenceBoundary marks where a chunk may be cut
	sentenceBoundary = ". "
)

// Options configures chunk sizing. Zero values select defaults.
type Options struct {
	ChunkSize            int // Tokens per chunk (default: MaxContextLength/2)
	Overlap              int // Tokens shared with the previous chunk (default: 200, -1 for none)
	MaxContextLength     int // Model context window (default: 8000)
	ReservedPromptTokens int // Budget kept for instructions (default: 1000)
	MinTrimLength        int // Minimum decoded length before sentence trimming (default: 100)
}

// Chunker splits documents into overlapping, token-bounded chunks
type Chunker struct {
	tok           tokenizer.Tokenizer
	chunkSize     int
	overlap       int
	maxContext    int
	reserved      int
	minTrimLength int
	log           zerolog.Logger
}

// Option configures a Chunker
type Option func(*Chunker)

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(c *Chunker) { c.log = log }
}

// New creates a chunker. The chunk size is clamped so that a chunk plus the
// reserved prompt budget fits in the context window, and the overlap is
// clamped to a quarter of the chunk size so every chunk advances the cursor.
func New(tok tokenizer.Tokenizer, opts Options, options ...Option) *Chunker {
	c := &Chunker{
		tok: tok,
		log: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}

	c.maxContext = opts.MaxContextLength
	if c.maxContext <= 0 {
		c.maxContext = DefaultMaxContextLength
	}

	c.reserved = opts.ReservedPromptTokens
	if c.reserved <= 0 {
		c.reserved = DefaultReservedPromptTokens
	}
	if c.reserved >= c.maxContext {
		c.reserved = c.maxContext / 2
	}

	c.chunkSize = opts.ChunkSize
	if c.chunkSize <= 0 {
		c.chunkSize = c.maxContext / 2
	}
	if c.chunkSize+c.reserved > c.maxContext {
		c.log.Warn().
			Int("chunk_size", c.chunkSize).
			Int("max_context", c.maxContext).
			Int("reserved", c.reserved).
			Msg("chunk size exceeds context budget, adjusting")
		c.chunkSize = c.maxContext - c.reserved
	}
	if c.chunkSize < 1 {
		c.chunkSize = 1
	}

	switch {
	case opts.Overlap < 0:
		c.overlap = 0
	case opts.Overlap == 0:
		c.overlap = DefaultOverlap
	default:
		c.overlap = opts.Overlap
	}
	if limit := c.chunkSize / 4; c.overlap > limit {
		c.overlap = limit
	}

	c.minTrimLength = opts.MinTrimLength
	if c.minTrimLength <= 0 {
		c.minTrimLength = DefaultMinTrimLength
	}

	return c
}

// ChunkSize returns the effective chunk size in tokens
func (c *Chunker) ChunkSize() int {
	return c.chunkSize
}

// Overlap returns the effective overlap in tokens
func (c *Chunker) Overlap() int {
	return c.overlap
}

// MaxContextLength returns the context window the chunker was sized for
func (c *Chunker) MaxContextLength() int {
	return c.maxContext
}

// Tokenizer returns the tokenizer used for measuring chunks
func (c *Chunker) Tokenizer() tokenizer.Tokenizer {
	return c.tok
}

// CreateChunks splits text into chunks ordered by position.
//
// A document shorter than the chunk size is returned unchanged as a single
// chunk at position 0. Otherwise a window of up to ChunkSize tokens is taken
// from the cursor, trimmed back to the last sentence boundary when long
// enough, and the cursor advances by the tokens consumed minus the overlap
// (at least one token). Chunking stops once an untrimmed window reaches the
// final token.
func (c *Chunker) CreateChunks(text string) []types.Chunk {
	tokens := c.tok.Encode(text)
	total := len(tokens)
	c.log.Debug().Int("total_tokens", total).Msg("tokenized document")

	if total < c.chunkSize {
		c.log.Debug().Msg("text fits in single chunk")
		return []types.Chunk{types.NewChunk(text, 0, total)}
	}

	chunks := make([]types.Chunk, 0, total/(c.chunkSize-c.overlap)+1)
	start := 0
	for start < total {
		end := start + c.chunkSize
		if end > total {
			end = total
		}
		chunkText := c.tok.Decode(tokens[start:end])
		consumed := end - start
		trimmed := false

		if len(chunkText) > c.minTrimLength {
			if idx := strings.LastIndex(chunkText, sentenceBoundary); idx != -1 {
				chunkText = chunkText[:idx+1]
				// Re-encode for an exact token count of the trimmed text
				consumed = len(c.tok.Encode(chunkText))
				trimmed = true
			}
		}

		chunks = append(chunks, types.NewChunk(chunkText, start, consumed))
		c.log.Debug().
			Int("position", start).
			Int("tokens", consumed).
			Bool("trimmed", trimmed).
			Msg("created chunk")

		if !trimmed && end == total {
			break
		}

		next := start + consumed - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	c.log.Debug().Int("chunks", len(chunks)).Msg("finished creating chunks")
	return chunks
}

// Plan summarises how a document would be chunked
type Plan struct {
	TotalTokens int
	ChunkSize   int
	Overlap     int
	Chunks      []types.Chunk
}

// Plan chunks text and reports the effective sizing
func (c *Chunker) Plan(text string) Plan {
	return Plan{
		TotalTokens: len(c.tok.Encode(text)),
		ChunkSize:   c.chunkSize,
		Overlap:     c.overlap,
		Chunks:      c.CreateChunks(text),
	}
}
