package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dshills/docextract/internal/chunker"
	"github.com/dshills/docextract/internal/tokenizer"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	rl := cfg.RateLimiter()
	assert.Equal(t, 50, rl.RequestsPerMinute)
	assert.Equal(t, 5, rl.MaxRetries)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second}, rl.Backoff)

	opts := cfg.ChunkerOptions()
	assert.Equal(t, 8000, opts.MaxContextLength)
	assert.Equal(t, 200, opts.Overlap)
	assert.Zero(t, opts.ChunkSize)

	assert.Equal(t, 5, cfg.Extraction.Workers)
	assert.Equal(t, 120*time.Second, cfg.Extraction.CallTimeout.Std())
	assert.True(t, cfg.Extraction.Validate)
	assert.InDelta(t, 0.7, cfg.Extraction.MinConfidence, 1e-9)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "docextract.yaml", `
logging:
  level: debug
  format: json
rate_limit:
  requests_per_minute: 20
  backoff: [1s, 500ms, 3]
chunking:
  chunk_size: 3000
  overlap: -1
extraction:
  provider: openai
  model: gpt-4o-mini
  workers: 8
  call_timeout: 45s
  min_success_ratio: 0.8
storage:
  path: /tmp/runs.db
`)
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 20, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 5, cfg.RateLimit.MaxRetries, "unset fields keep defaults")
	assert.Equal(t, []time.Duration{time.Second, 500 * time.Millisecond, 3 * time.Second}, cfg.RateLimiter().Backoff)
	assert.Equal(t, 3000, cfg.Chunking.ChunkSize)
	assert.Equal(t, -1, cfg.Chunking.Overlap)
	assert.Equal(t, 8, cfg.Extraction.Workers)
	assert.Equal(t, 45*time.Second, cfg.Extraction.CallTimeout.Std())
	assert.InDelta(t, 0.8, cfg.Extraction.MinSuccessRatio, 1e-9)

	ec := cfg.ExtractorConfig()
	assert.Equal(t, "openai", ec.Provider)
	assert.Equal(t, "sk-from-env", ec.APIKey)
	assert.Equal(t, "gpt-4o-mini", ec.Model)
	assert.Equal(t, 45*time.Second, ec.Timeout)

	dbPath, err := cfg.DBPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/runs.db", dbPath)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("unknown field", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "extraction:\n  wrokers: 3\n")
		_, err := Load(path)
		assert.ErrorContains(t, err, "wrokers")
	})

	t.Run("bad duration", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "extraction:\n  call_timeout: soon\n")
		_, err := Load(path)
		assert.ErrorContains(t, err, "invalid duration")
	})

	t.Run("invalid values", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "rate_limit:\n  requests_per_minute: 0\nextraction:\n  workers: -1\n")
		_, err := Load(path)
		require.ErrorIs(t, err, ErrInvalid)
		assert.ErrorContains(t, err, "requests_per_minute")
		assert.ErrorContains(t, err, "workers")
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeFile(t, "empty.yaml", "")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 50, cfg.RateLimit.RequestsPerMinute)
	})
}

func TestExplicitZeroOverlapDisablesOverlap(t *testing.T) {
	path := writeFile(t, "docextract.yaml", "chunking:\n  chunk_size: 1000\n  overlap: 0\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Chunking.Overlap)
	assert.Equal(t, -1, cfg.ChunkerOptions().Overlap)
	assert.Zero(t, chunker.New(tokenizer.Bytes{}, cfg.ChunkerOptions()).Overlap())

	cfg = Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{"DOCEXTRACT_OVERLAP": "0"})))
	require.NoError(t, cfg.Validate())
	assert.Zero(t, chunker.New(tokenizer.Bytes{}, cfg.ChunkerOptions()).Overlap())

	// Leaving overlap unset keeps the default
	path = writeFile(t, "docextract.yaml", "chunking:\n  chunk_size: 1000\n")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, chunker.DefaultOverlap, chunker.New(tokenizer.Bytes{}, cfg.ChunkerOptions()).Overlap())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"DOCEXTRACT_PROVIDER":     "local",
		"DOCEXTRACT_WORKERS":      "2",
		"DOCEXTRACT_RPM":          "10",
		"DOCEXTRACT_OVERLAP":      "-1",
		"DOCEXTRACT_CALL_TIMEOUT": "0s",
		"DOCEXTRACT_VALIDATE":     "false",
		"DOCEXTRACT_DB":           "/var/lib/docextract.db",
		"DOCEXTRACT_ENCODING":     "bytes",
		"DOCEXTRACT_LOG_LEVEL":    "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Extraction.Provider)
	assert.Equal(t, 2, cfg.Extraction.Workers)
	assert.Equal(t, 10, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, -1, cfg.Chunking.Overlap)
	assert.Zero(t, cfg.Extraction.CallTimeout)
	assert.False(t, cfg.Extraction.Validate)
	assert.Equal(t, "/var/lib/docextract.db", cfg.Storage.Path)
	assert.Equal(t, "bytes", cfg.Tokenizer.Encoding)
	assert.Equal(t, "info", cfg.Logging.Level, "empty values are ignored")
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvErrors(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"DOCEXTRACT_WORKERS":      "many",
		"DOCEXTRACT_CALL_TIMEOUT": "forever",
		"DOCEXTRACT_VALIDATE":     "perhaps",
	}))
	require.ErrorIs(t, err, ErrInvalid)
	assert.ErrorContains(t, err, "DOCEXTRACT_WORKERS")
	assert.ErrorContains(t, err, "DOCEXTRACT_CALL_TIMEOUT")
	assert.ErrorContains(t, err, "DOCEXTRACT_VALIDATE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"max retries", func(c *Config) { c.RateLimit.MaxRetries = 0 }, "max_retries"},
		{"empty backoff", func(c *Config) { c.RateLimit.Backoff = nil }, "backoff cannot be empty"},
		{"negative backoff", func(c *Config) { c.RateLimit.Backoff = []Duration{Duration(-time.Second)} }, "backoff entries"},
		{"overlap", func(c *Config) { c.Chunking.Overlap = -2 }, "overlap"},
		{"max context", func(c *Config) { c.Chunking.MaxContextLength = 0 }, "max_context_length"},
		{"call timeout", func(c *Config) { c.Extraction.CallTimeout = Duration(-time.Second) }, "call_timeout"},
		{"confidence", func(c *Config) { c.Extraction.MinConfidence = 1.5 }, "min_confidence"},
		{"success ratio", func(c *Config) { c.Extraction.MinSuccessRatio = -0.1 }, "min_success_ratio"},
		{"provider", func(c *Config) { c.Extraction.Provider = "jina" }, "provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadDotenv(t *testing.T) {
	path := writeFile(t, ".env", "DOCEXTRACT_TEST_DOTENV=from-file\nDOCEXTRACT_TEST_PRESET=from-file\n")
	t.Setenv("DOCEXTRACT_TEST_PRESET", "preset")
	t.Setenv("DOCEXTRACT_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("DOCEXTRACT_TEST_DOTENV"))

	require.NoError(t, LoadDotenv(filepath.Join(t.TempDir(), "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("DOCEXTRACT_TEST_DOTENV"))
	assert.Equal(t, "preset", os.Getenv("DOCEXTRACT_TEST_PRESET"), "existing variables win")
}

func TestDurationYAML(t *testing.T) {
	var v struct {
		A Duration `yaml:"a"`
		B Duration `yaml:"b"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: 1m30s\nb: 7\n"), &v))
	assert.Equal(t, 90*time.Second, v.A.Std())
	assert.Equal(t, 7*time.Second, v.B.Std())

	out, err := yaml.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "a: 1m30s\nb: 7s\n", string(out))

	err = yaml.Unmarshal([]byte("a: [1, 2]\n"), &v)
	assert.ErrorContains(t, err, "scalar")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/.docextract/runs.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".docextract/runs.db"), got)

	got, err = ExpandPath("relative/runs.db")
	require.NoError(t, err)
	assert.Equal(t, "relative/runs.db", got)
	assert.False(t, strings.HasPrefix(got, "~"))
}
