package extractor

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds extractor configuration
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	CacheSize int
}

// DetectProvider picks a provider name. An explicit choice wins, then an
// OpenAI key or base URL selects openai, otherwise local.
func DetectProvider(explicit, apiKey, baseURL string) string {
	if explicit != "" {
		return strings.ToLower(explicit)
	}
	if apiKey != "" || baseURL != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}

// New creates an extractor with explicit configuration. A positive
// CacheSize wraps the provider in a CachedExtractor.
func New(cfg Config) (Extractor, error) {
	var ext Extractor
	switch DetectProvider(cfg.Provider, cfg.APIKey, cfg.BaseURL) {
	case ProviderOpenAI:
		p, err := NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		ext = p
	case ProviderLocal:
		ext = NewLocalProvider()
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", cfg.Provider)
	}

	if cfg.CacheSize > 0 {
		return NewCachedExtractor(ext, cfg.CacheSize), nil
	}
	return ext, nil
}

// NewFromEnv creates an extractor from environment variables:
// DOCEXTRACT_PROVIDER, OPENAI_API_KEY, OPENAI_BASE_URL and DOCEXTRACT_MODEL.
func NewFromEnv() (Extractor, error) {
	return New(Config{
		Provider:  os.Getenv("DOCEXTRACT_PROVIDER"),
		APIKey:    os.Getenv("OPENAI_API_KEY"),
		BaseURL:   os.Getenv("OPENAI_BASE_URL"),
		Model:     os.Getenv("DOCEXTRACT_MODEL"),
		CacheSize: DefaultCacheSize,
	})
}
