package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dshills/docextract/pkg/types"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultOpenAITimeout bounds a single HTTP exchange with the endpoint
const DefaultOpenAITimeout = 120 * time.Second

// OpenAIConfig configures the OpenAI-compatible provider
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // empty for api.openai.com; set for LM Studio and friends
	Model   string
	Timeout time.Duration
}

// OpenAIProvider extracts through an OpenAI-compatible chat completion API
type OpenAIProvider struct {
	llm   llms.Model
	model string
}

// NewOpenAIProvider creates a provider backed by langchaingo's openai client
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", types.ErrExtractionFailed)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultOpenAITimeout
	}
	// Local servers accept any token but the client insists on one
	token := cfg.APIKey
	if token == "" {
		token = "local"
	}

	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(token, "Bearer ")),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create client: %v", types.ErrExtractionFailed, err)
	}
	return NewOpenAIProviderWithModel(llm, cfg.Model), nil
}

// NewOpenAIProviderWithModel wraps an existing langchaingo model
func NewOpenAIProviderWithModel(llm llms.Model, model string) *OpenAIProvider {
	return &OpenAIProvider{llm: llm, model: model}
}

// Extract implements Extractor
func (p *OpenAIProvider) Extract(ctx context.Context, instructions, text string) (*types.Legislation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.ErrEmptyContent
	}
	raw, err := p.generate(ctx, instructions+"\n\n"+legislationSchema, text)
	if err != nil {
		return nil, err
	}
	return decodeLegislation(raw)
}

// Validate implements Validator
func (p *OpenAIProvider) Validate(ctx context.Context, text string) (*types.Validation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.ErrEmptyContent
	}
	raw, err := p.generate(ctx, ValidationInstructions+"\n\n"+validationSchema, text)
	if err != nil {
		return nil, err
	}
	return decodeValidation(raw)
}

// Provider implements Extractor
func (p *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

// Model implements Extractor
func (p *OpenAIProvider) Model() string {
	return p.model
}

func (p *OpenAIProvider) generate(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}
	resp, err := p.llm.GenerateContent(ctx, messages,
		llms.WithJSONMode(),
		llms.WithTemperature(0),
	)
	if err != nil {
		return "", classifyError(err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", fmt.Errorf("%w: empty response", types.ErrExtractionFailed)
	}
	return resp.Choices[0].Content, nil
}

// classifyError maps a client error onto the retry taxonomy. Context
// errors pass through unwrapped so cancellation is never retried.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isRateLimit(err) {
		return fmt.Errorf("%w: %v", types.ErrRateLimited, err)
	}
	return fmt.Errorf("%w: %v", types.ErrExtractionFailed, err)
}

func isRateLimit(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "too many requests")
}
