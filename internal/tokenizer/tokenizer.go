package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/dshills/docextract/pkg/types"
)

const (
	// DefaultModel is the model whose encoding is used when none is configured
	DefaultModel = "gpt-4o"

	// EncodingBytes selects the offline one-token-per-byte encoding
	EncodingBytes = "bytes"
)

// Tokenizer converts text to and from token ids for one fixed encoding.
// Implementations are pure and safe for concurrent use.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
	Name() string
}

// New returns a tokenizer for a model name, a tiktoken encoding name, or the
// "bytes" encoding. An unknown name is a configuration error.
func New(name string) (Tokenizer, error) {
	if name == "" {
		name = DefaultModel
	}
	if strings.EqualFold(name, EncodingBytes) {
		return Bytes{}, nil
	}
	return NewTiktoken(name)
}

// Count returns the number of tokens in text
func Count(tok Tokenizer, text string) int {
	return len(tok.Encode(text))
}

// Tiktoken wraps a BPE encoding from tiktoken-go
type Tiktoken struct {
	name string
	mu   sync.Mutex
	enc  *tiktoken.Tiktoken
}

// NewTiktoken loads the encoding for a model ("gpt-4o") or an encoding
// name ("cl100k_base").
func NewTiktoken(name string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		var encErr error
		enc, encErr = tiktoken.GetEncoding(name)
		if encErr != nil {
			return nil, fmt.Errorf("%w: %s: %v", types.ErrUnsupportedEncoding, name, err)
		}
	}
	return &Tiktoken{name: name, enc: enc}, nil
}

// Encode returns the token ids of text. Special tokens are encoded as
// ordinary text.
func (t *Tiktoken) Encode(text string) []int {
	// tiktoken-go caches per-encoder state without locking
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enc.Encode(text, nil, nil)
}

// Decode returns the text for token ids
func (t *Tiktoken) Decode(tokens []int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enc.Decode(tokens)
}

// Name returns the configured model or encoding name
func (t *Tiktoken) Name() string {
	return t.name
}

// Bytes treats every byte as one token. Decode(Encode(s)) == s for any s and
// token offsets equal byte offsets, which makes chunk boundaries exact.
type Bytes struct{}

// Encode returns one token per byte
func (Bytes) Encode(text string) []int {
	tokens := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		tokens[i] = int(text[i])
	}
	return tokens
}

// Decode reverses Encode
func (Bytes) Decode(tokens []int) string {
	buf := make([]byte, len(tokens))
	for i, tok := range tokens {
		buf[i] = byte(tok)
	}
	return string(buf)
}

// Name returns "bytes"
func (Bytes) Name() string {
	return EncodingBytes
}
