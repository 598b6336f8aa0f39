// Package config loads docextract settings from a YAML file, an optional
// .env file and DOCEXTRACT_* environment variables, in increasing order of
// precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/docextract/internal/chunker"
	"github.com/dshills/docextract/internal/extractor"
	"github.com/dshills/docextract/internal/logging"
	"github.com/dshills/docextract/internal/ratelimit"
)

// DefaultDBPath is where runs are stored unless configured otherwise
const DefaultDBPath = "~/.docextract/runs.db"

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete application configuration
type Config struct {
	Logging    logging.Config   `yaml:"logging"`
	Tokenizer  TokenizerConfig  `yaml:"tokenizer"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Storage    StorageConfig    `yaml:"storage"`
}

// TokenizerConfig selects the token encoding
type TokenizerConfig struct {
	Encoding string `yaml:"encoding"` // model or encoding name, or "bytes"
}

// RateLimitConfig bounds calls to the extraction endpoint
type RateLimitConfig struct {
	RequestsPerMinute int        `yaml:"requests_per_minute"`
	MaxRetries        int        `yaml:"max_retries"`
	Backoff           []Duration `yaml:"backoff"`
}

// ChunkingConfig sizes chunks in tokens
type ChunkingConfig struct {
	ChunkSize            int `yaml:"chunk_size"` // 0 selects half the context
	Overlap              int `yaml:"overlap"`    // 0 or -1 disables overlap
	MaxContextLength     int `yaml:"max_context_length"`
	ReservedPromptTokens int `yaml:"reserved_prompt_tokens"`
}

// ExtractionConfig configures the provider and the worker pool
type ExtractionConfig struct {
	Provider        string   `yaml:"provider"`
	APIKey          string   `yaml:"-"` // environment only
	BaseURL         string   `yaml:"base_url"`
	Model           string   `yaml:"model"`
	Workers         int      `yaml:"workers"`
	CallTimeout     Duration `yaml:"call_timeout"` // 0 disables
	CacheSize       int      `yaml:"cache_size"`
	Validate        bool     `yaml:"validate"`
	MinConfidence   float64  `yaml:"min_confidence"`
	MinSuccessRatio float64  `yaml:"min_success_ratio"`
}

// StorageConfig locates the run database
type StorageConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// Default returns the built-in configuration
func Default() *Config {
	backoff := make([]Duration, len(ratelimit.DefaultBackoff))
	for i, d := range ratelimit.DefaultBackoff {
		backoff[i] = Duration(d)
	}
	return &Config{
		Logging:   logging.DefaultConfig(),
		Tokenizer: TokenizerConfig{Encoding: "gpt-4o"},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: ratelimit.DefaultRequestsPerMinute,
			MaxRetries:        ratelimit.DefaultMaxRetries,
			Backoff:           backoff,
		},
		Chunking: ChunkingConfig{
			Overlap:              chunker.DefaultOverlap,
			MaxContextLength:     chunker.DefaultMaxContextLength,
			ReservedPromptTokens: chunker.DefaultReservedPromptTokens,
		},
		Extraction: ExtractionConfig{
			Workers:       5,
			CallTimeout:   Duration(120 * time.Second),
			CacheSize:     extractor.DefaultCacheSize,
			Validate:      true,
			MinConfidence: 0.7,
		},
		Storage: StorageConfig{Path: DefaultDBPath},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty) and the environment, then validates it. A missing file at an
// explicitly given path is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotenv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotenv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from environment variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("DOCEXTRACT_LOG_LEVEL", &c.Logging.Level)
	str("DOCEXTRACT_LOG_FORMAT", &c.Logging.Format)
	str("DOCEXTRACT_ENCODING", &c.Tokenizer.Encoding)
	num("DOCEXTRACT_RPM", &c.RateLimit.RequestsPerMinute)
	num("DOCEXTRACT_MAX_RETRIES", &c.RateLimit.MaxRetries)
	num("DOCEXTRACT_CHUNK_SIZE", &c.Chunking.ChunkSize)
	num("DOCEXTRACT_OVERLAP", &c.Chunking.Overlap)
	num("DOCEXTRACT_MAX_CONTEXT", &c.Chunking.MaxContextLength)
	str("DOCEXTRACT_PROVIDER", &c.Extraction.Provider)
	str("DOCEXTRACT_MODEL", &c.Extraction.Model)
	str("OPENAI_API_KEY", &c.Extraction.APIKey)
	str("OPENAI_BASE_URL", &c.Extraction.BaseURL)
	num("DOCEXTRACT_WORKERS", &c.Extraction.Workers)
	str("DOCEXTRACT_DB", &c.Storage.Path)

	if v, ok := lookup("DOCEXTRACT_CALL_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("DOCEXTRACT_CALL_TIMEOUT: %w", err))
		} else {
			c.Extraction.CallTimeout = Duration(d)
		}
	}
	if v, ok := lookup("DOCEXTRACT_VALIDATE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("DOCEXTRACT_VALIDATE: %w", err))
		} else {
			c.Extraction.Validate = b
		}
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalid}, errs...)...)
	}
	return nil
}

// Validate checks every constraint and reports all violations at once
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	check(c.RateLimit.RequestsPerMinute > 0, "rate_limit.requests_per_minute must be positive")
	check(c.RateLimit.MaxRetries > 0, "rate_limit.max_retries must be positive")
	check(len(c.RateLimit.Backoff) > 0, "rate_limit.backoff cannot be empty")
	for _, d := range c.RateLimit.Backoff {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.backoff entries must be positive, got %s", d))
			break
		}
	}
	check(c.Chunking.ChunkSize >= 0, "chunking.chunk_size cannot be negative")
	check(c.Chunking.Overlap >= -1, "chunking.overlap must be -1 or greater")
	check(c.Chunking.MaxContextLength > 0, "chunking.max_context_length must be positive")
	check(c.Chunking.ReservedPromptTokens >= 0, "chunking.reserved_prompt_tokens cannot be negative")
	check(c.Extraction.Workers > 0, "extraction.workers must be positive")
	check(c.Extraction.CallTimeout >= 0, "extraction.call_timeout cannot be negative")
	check(c.Extraction.CacheSize >= 0, "extraction.cache_size cannot be negative")
	check(c.Extraction.MinConfidence >= 0 && c.Extraction.MinConfidence <= 1, "extraction.min_confidence must be within [0, 1]")
	check(c.Extraction.MinSuccessRatio >= 0 && c.Extraction.MinSuccessRatio <= 1, "extraction.min_success_ratio must be within [0, 1]")
	switch strings.ToLower(c.Extraction.Provider) {
	case "", extractor.ProviderOpenAI, extractor.ProviderLocal:
	default:
		errs = append(errs, fmt.Errorf("extraction.provider %q is not one of openai, local", c.Extraction.Provider))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalid}, errs...)...)
	}
	return nil
}

// RateLimiter returns the limiter configuration
func (c *Config) RateLimiter() ratelimit.Config {
	return ratelimit.Config{
		RequestsPerMinute: c.RateLimit.RequestsPerMinute,
		MaxRetries:        c.RateLimit.MaxRetries,
		Backoff:           durations(c.RateLimit.Backoff),
	}
}

// ChunkerOptions returns the chunker configuration. Default already holds
// the overlap default, so a zero overlap here was set explicitly and maps
// to the chunker's "none" value rather than its default.
func (c *Config) ChunkerOptions() chunker.Options {
	overlap := c.Chunking.Overlap
	if overlap <= 0 {
		overlap = -1
	}
	return chunker.Options{
		ChunkSize:            c.Chunking.ChunkSize,
		Overlap:              overlap,
		MaxContextLength:     c.Chunking.MaxContextLength,
		ReservedPromptTokens: c.Chunking.ReservedPromptTokens,
	}
}

// ExtractorConfig returns the provider configuration
func (c *Config) ExtractorConfig() extractor.Config {
	return extractor.Config{
		Provider:  c.Extraction.Provider,
		APIKey:    c.Extraction.APIKey,
		BaseURL:   c.Extraction.BaseURL,
		Model:     c.Extraction.Model,
		Timeout:   c.Extraction.CallTimeout.Std(),
		CacheSize: c.Extraction.CacheSize,
	}
}

// DBPath returns the storage path with a leading ~ expanded
func (c *Config) DBPath() (string, error) {
	return ExpandPath(c.Storage.Path)
}

// ExpandPath expands a leading ~ to the user's home directory
func ExpandPath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
	}
	return p, nil
}
