package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/docextract/internal/chunker"
	"github.com/dshills/docextract/internal/extractor"
	"github.com/dshills/docextract/internal/ratelimit"
	"github.com/dshills/docextract/internal/tokenizer"
	"github.com/dshills/docextract/pkg/types"
)

// Defaults
const (
	DefaultWorkers          = 5
	DefaultCallTimeout      = 120 * time.Second
	DefaultValidationSample = 4000 // bytes of the document sent to the validator
	DefaultMinConfidence    = 0.7
)

// ChunkSource splits a document into positioned chunks.
// *chunker.Chunker satisfies it.
type ChunkSource interface {
	CreateChunks(text string) []types.Chunk
}

// Analyzer coordinates the extraction pipeline: chunk -> extract -> merge
type Analyzer struct {
	tok       tokenizer.Tokenizer
	chunks    ChunkSource
	limiter   *ratelimit.Limiter
	extractor extractor.Extractor

	workers      int
	maxContext   int
	callTimeout  time.Duration
	instructions string

	validator        extractor.Validator
	validationSample int
	minConfidence    float64

	log      zerolog.Logger
	progress ProgressFunc
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithWorkers sets the number of concurrent extraction calls
func WithWorkers(n int) Option {
	return func(a *Analyzer) { a.workers = n }
}

// WithMaxContext sets the token budget for instructions plus chunk
func WithMaxContext(n int) Option {
	return func(a *Analyzer) { a.maxContext = n }
}

// WithCallTimeout bounds each extraction attempt. Zero disables the bound
// and leaves timeouts to the provider.
func WithCallTimeout(d time.Duration) Option {
	return func(a *Analyzer) { a.callTimeout = d }
}

// WithInstructions replaces the system prompt sent with every chunk
func WithInstructions(s string) Option {
	return func(a *Analyzer) { a.instructions = s }
}

// WithValidator enables the legislation pre-check. Documents classified
// below minConfidence are rejected before any chunk is extracted.
func WithValidator(v extractor.Validator, minConfidence float64) Option {
	return func(a *Analyzer) {
		a.validator = v
		a.minConfidence = minConfidence
	}
}

// WithValidationSample sets how many leading bytes are validated
func WithValidationSample(n int) Option {
	return func(a *Analyzer) { a.validationSample = n }
}

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(a *Analyzer) { a.log = log }
}

// WithProgress registers a callback for chunk state transitions
func WithProgress(fn ProgressFunc) Option {
	return func(a *Analyzer) { a.progress = fn }
}

// New creates an Analyzer. The limiter is shared by every call made
// through the analyzer and may be shared with other analyzers.
func New(tok tokenizer.Tokenizer, chunks ChunkSource, limiter *ratelimit.Limiter, ext extractor.Extractor, opts ...Option) *Analyzer {
	a := &Analyzer{
		tok:              tok,
		chunks:           chunks,
		limiter:          limiter,
		extractor:        ext,
		workers:          DefaultWorkers,
		maxContext:       chunker.DefaultMaxContextLength,
		callTimeout:      DefaultCallTimeout,
		instructions:     extractor.Instructions,
		validationSample: DefaultValidationSample,
		minConfidence:    DefaultMinConfidence,
		log:              zerolog.Nop(),
	}
	if c, ok := chunks.(*chunker.Chunker); ok {
		a.maxContext = c.MaxContextLength()
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.workers <= 0 {
		a.workers = DefaultWorkers
	}
	if a.validationSample <= 0 {
		a.validationSample = DefaultValidationSample
	}
	return a
}

// Fingerprint is a hex sha256 over the settings that shape a result: chunk
// size, overlap, context budget and instructions. Two analyzers with the
// same fingerprint and extractor produce interchangeable runs.
func (a *Analyzer) Fingerprint() string {
	var size, overlap int
	if c, ok := a.chunks.(*chunker.Chunker); ok {
		size, overlap = c.ChunkSize(), c.Overlap()
	}
	h := sha256.New()
	fmt.Fprintf(h, "chunk_size=%d\noverlap=%d\nmax_context=%d\ninstructions=%s",
		size, overlap, a.maxContext, a.instructions)
	return hex.EncodeToString(h.Sum(nil))
}

// FailedChunk records why a chunk produced no partial document
type FailedChunk struct {
	Position int    `json:"position"`
	Reason   string `json:"reason"`
	Err      error  `json:"-"`
}

// Stats summarises one analysis
type Stats struct {
	TotalChunks  int               `json:"total_chunks"`
	Succeeded    int               `json:"succeeded"`
	Failed       int               `json:"failed"`
	PromptTokens int               `json:"prompt_tokens"`
	Skipped      int               `json:"skipped"` // whitespace-only chunks, not counted in TotalChunks
	Workers      int               `json:"workers"`
	Duration     time.Duration     `json:"duration"`
	Validation   *types.Validation `json:"validation,omitempty"`
}

// Result is the merged document together with an account of what was lost
type Result struct {
	Document *types.Legislation `json:"document"`
	Failed   []FailedChunk      `json:"failed"`
	Stats    Stats              `json:"stats"`

	// Chunks holds every chunk outcome in position order
	Chunks []types.ChunkResult `json:"-"`
}

// FailedPositions returns the positions of failed chunks in ascending order
func (r *Result) FailedPositions() []int {
	positions := make([]int, len(r.Failed))
	for i, f := range r.Failed {
		positions[i] = f.Position
	}
	return positions
}

// SuccessRatio returns the fraction of chunks that succeeded
func (r *Result) SuccessRatio() float64 {
	if r.Stats.TotalChunks == 0 {
		return 0
	}
	return float64(r.Stats.Succeeded) / float64(r.Stats.TotalChunks)
}

// Analyze extracts and merges text. It returns a partial result when some
// chunks fail; inspect Result.Failed before trusting completeness.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.ErrEmptyContent
	}
	startTime := time.Now()
	stats := Stats{Workers: a.workers}

	if a.validator != nil {
		v, err := a.validate(ctx, text)
		if err != nil {
			return nil, err
		}
		stats.Validation = v
	}

	chunks, skipped := dropBlank(a.chunks.CreateChunks(text))
	stats.TotalChunks = len(chunks)
	stats.Skipped = skipped
	stats.PromptTokens = len(a.tok.Encode(a.instructions))
	a.log.Info().
		Int("chunks", len(chunks)).
		Int("skipped", stats.Skipped).
		Int("workers", a.workers).
		Int("prompt_tokens", stats.PromptTokens).
		Msg("starting analysis")

	results := a.extractAll(ctx, chunks, stats.PromptTokens)

	// Cancellation by the caller is fatal even when some chunks finished
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var failed []FailedChunk
	for _, r := range results {
		if r.Succeeded() {
			stats.Succeeded++
			continue
		}
		failed = append(failed, FailedChunk{Position: r.Position, Reason: r.Err.Error(), Err: r.Err})
	}
	slices.SortFunc(failed, func(x, y FailedChunk) int { return x.Position - y.Position })
	stats.Failed = len(failed)

	for _, f := range failed {
		a.log.Warn().Int("position", f.Position).Str("reason", f.Reason).Msg("chunk failed")
	}

	if stats.Succeeded == 0 {
		return nil, fmt.Errorf("%w: all %d chunks failed", types.ErrNoChunksSucceeded, len(chunks))
	}

	doc, err := Merge(results)
	if err != nil {
		return nil, err
	}
	stats.Duration = time.Since(startTime)

	a.log.Info().
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Int("sections", len(doc.Sections)).
		Dur("duration", stats.Duration).
		Msg("analysis complete")

	if failed == nil {
		failed = []FailedChunk{}
	}
	slices.SortStableFunc(results, func(x, y types.ChunkResult) int { return x.Position - y.Position })
	return &Result{Document: doc, Failed: failed, Stats: stats, Chunks: results}, nil
}

// extractAll runs every chunk on the worker pool and waits for all of them.
// Tasks never return an error to the group, so one failure cannot cancel
// its siblings.
func (a *Analyzer) extractAll(ctx context.Context, chunks []types.Chunk, promptTokens int) []types.ChunkResult {
	results := make([]types.ChunkResult, len(chunks))
	tracker := newTracker(len(chunks), a.progress)
	for _, c := range chunks {
		tracker.emit(c.Position, StatePending, nil)
	}

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, c := range chunks {
		g.Go(func() error {
			tracker.emit(c.Position, StateInFlight, nil)
			results[i] = a.extractChunk(ctx, c, promptTokens)
			if results[i].Succeeded() {
				tracker.emit(c.Position, StateSucceeded, nil)
			} else {
				tracker.emit(c.Position, StateFailed, results[i].Err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *Analyzer) extractChunk(ctx context.Context, chunk types.Chunk, promptTokens int) types.ChunkResult {
	if promptTokens+chunk.TokenCount > a.maxContext {
		return types.Failure(chunk.Position, chunk.TokenCount, &types.SizingError{
			Position:     chunk.Position,
			PromptTokens: promptTokens,
			ChunkTokens:  chunk.TokenCount,
			MaxContext:   a.maxContext,
		})
	}

	a.log.Debug().Int("position", chunk.Position).Int("tokens", chunk.TokenCount).Msg("extracting chunk")
	doc, err := ratelimit.Execute(ctx, a.limiter, func(ctx context.Context) (*types.Legislation, error) {
		callCtx, cancel := a.callContext(ctx)
		defer cancel()
		return a.extractor.Extract(callCtx, a.instructions, chunk.Text)
	})
	if err != nil {
		return types.Failure(chunk.Position, chunk.TokenCount, err)
	}
	if doc == nil {
		return types.Failure(chunk.Position, chunk.TokenCount,
			fmt.Errorf("%w: empty result", types.ErrExtractionFailed))
	}
	return types.Success(chunk.Position, chunk.TokenCount, doc)
}

// dropBlank removes whitespace-only chunks, such as a blank tail left by
// sentence trimming. They have nothing to extract and never count as
// successes.
func dropBlank(chunks []types.Chunk) ([]types.Chunk, int) {
	kept := make([]types.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) != "" {
			kept = append(kept, c)
		}
	}
	return kept, len(chunks) - len(kept)
}

// validate classifies the opening of the document
func (a *Analyzer) validate(ctx context.Context, text string) (*types.Validation, error) {
	sample := truncateUTF8(text, a.validationSample)
	v, err := ratelimit.Execute(ctx, a.limiter, func(ctx context.Context) (*types.Validation, error) {
		callCtx, cancel := a.callContext(ctx)
		defer cancel()
		return a.validator.Validate(callCtx, sample)
	})
	if err != nil {
		return nil, fmt.Errorf("validate document: %w", err)
	}
	if !v.Accept(a.minConfidence) {
		a.log.Warn().
			Bool("is_legislation", v.IsLegislation).
			Float64("confidence", v.ConfidenceScore).
			Msg("validation failed")
		return v, fmt.Errorf("%w: is_legislation=%t confidence=%.2f (min %.2f)",
			types.ErrNotLegislation, v.IsLegislation, v.ConfidenceScore, a.minConfidence)
	}
	a.log.Info().Float64("confidence", v.ConfidenceScore).Msg("validation passed")
	return v, nil
}

func (a *Analyzer) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.callTimeout)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// tracker serializes progress callbacks and counts terminal chunks
type tracker struct {
	mu    sync.Mutex
	done  int
	total int
	fn    ProgressFunc
}

func newTracker(total int, fn ProgressFunc) *tracker {
	return &tracker{total: total, fn: fn}
}

func (t *tracker) emit(position int, state ChunkState, err error) {
	if t.fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if state.Terminal() {
		t.done++
	}
	t.fn(ProgressEvent{Position: position, State: state, Err: err, Done: t.done, Total: t.total})
}
