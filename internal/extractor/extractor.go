package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/docextract/pkg/types"
)

// Provider names
const (
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
)

// Provider defaults
const (
	DefaultOpenAIModel = "gpt-4o"
	DefaultCacheSize   = 1000
)

// Extractor produces a partial document from one chunk of text
type Extractor interface {
	// Extract runs instructions against text and returns the decoded record.
	// Throttling failures wrap types.ErrRateLimited.
	Extract(ctx context.Context, instructions, text string) (*types.Legislation, error)

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string
}

// Validator classifies whether a text looks like legislation
type Validator interface {
	Validate(ctx context.Context, text string) (*types.Validation, error)
}

// ComputeKey returns the cache key for an instructions/text pair
func ComputeKey(instructions, text string) string {
	h := sha256.New()
	h.Write([]byte(instructions))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// decodeLegislation parses model output into a normalized record.
// Models occasionally wrap JSON in a markdown fence even in JSON mode.
func decodeLegislation(raw string) (*types.Legislation, error) {
	doc := types.NewLegislation()
	if err := json.Unmarshal([]byte(stripFence(raw)), doc); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", types.ErrExtractionFailed, err)
	}
	doc.Normalize()
	return doc, nil
}

func decodeValidation(raw string) (*types.Validation, error) {
	var v types.Validation
	if err := json.Unmarshal([]byte(stripFence(raw)), &v); err != nil {
		return nil, fmt.Errorf("%w: decode validation: %v", types.ErrExtractionFailed, err)
	}
	return &v, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
