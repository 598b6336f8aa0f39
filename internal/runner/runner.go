package runner

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dshills/docextract/internal/analyzer"
	"github.com/dshills/docextract/internal/storage"
)

var (
	// ErrBusy is returned while another analysis holds the runner
	ErrBusy = errors.New("analysis already in progress")
	// ErrBelowThreshold reports a run whose success ratio is too low
	ErrBelowThreshold = errors.New("success ratio below threshold")
)

// Analyzer is the part of analyzer.Analyzer the runner needs
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*analyzer.Result, error)
}

// Runner executes analyses and records them
type Runner struct {
	analyzer Analyzer
	store    storage.Storage // nil disables persistence and reuse
	provider string
	model    string
	settings string
	lock     Lock
	log      zerolog.Logger
}

// Option configures a Runner
type Option func(*Runner)

// WithStorage persists runs and enables reuse of completed runs
func WithStorage(store storage.Storage) Option {
	return func(r *Runner) { r.store = store }
}

// WithModel labels runs with the extraction provider and model
func WithModel(provider, model string) Option {
	return func(r *Runner) {
		r.provider = provider
		r.model = model
	}
}

// WithSettings sets the settings fingerprint stored with each run. Only
// runs with the same fingerprint are reused. It defaults to the analyzer's
// Fingerprint when the analyzer has one.
func WithSettings(fingerprint string) Option {
	return func(r *Runner) { r.settings = fingerprint }
}

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(r *Runner) { r.log = log }
}

type fingerprinter interface {
	Fingerprint() string
}

// New creates a Runner around an analyzer
func New(a Analyzer, opts ...Option) *Runner {
	r := &Runner{analyzer: a, log: zerolog.Nop()}
	if f, ok := a.(fingerprinter); ok {
		r.settings = f.Fingerprint()
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Request describes one document to analyze
type Request struct {
	Source string // label stored with the run, usually the file path
	Text   string
	Force  bool // analyze even when a completed run exists for the content
}

// Outcome is a finished run. Result is nil when the run was reused.
type Outcome struct {
	Run    *storage.Run
	Result *analyzer.Result
	Reused bool
}

// Check returns ErrBelowThreshold when fewer than minRatio of the chunks
// succeeded. A zero minRatio accepts any run.
func (o *Outcome) Check(minRatio float64) error {
	if minRatio <= 0 {
		return nil
	}
	if ratio := o.Run.SuccessRatio(); ratio < minRatio {
		return fmt.Errorf("%w: %d of %d chunks succeeded (%.2f < %.2f)",
			ErrBelowThreshold, o.Run.SucceededChunks, o.Run.TotalChunks, ratio, minRatio)
	}
	return nil
}

// Busy reports whether an analysis is running
func (r *Runner) Busy() bool {
	return r.lock.Held()
}

// Storage returns the run store, or nil when persistence is disabled
func (r *Runner) Storage() storage.Storage {
	return r.store
}

// Analyze runs one document through the analyzer, reusing a previous
// completed run unless req.Force is set. A run is reused only when its
// content hash, provider, model and settings fingerprint all match.
func (r *Runner) Analyze(ctx context.Context, req Request) (*Outcome, error) {
	if !r.lock.TryAcquire() {
		return nil, ErrBusy
	}
	defer r.lock.Release()

	key := storage.RunKey{
		ContentHash: sha256.Sum256([]byte(req.Text)),
		Provider:    r.provider,
		Model:       r.model,
		Settings:    r.settings,
	}

	if r.store != nil && !req.Force {
		prev, err := r.store.GetLatestRun(ctx, key)
		switch {
		case err == nil:
			r.log.Info().Str("run_id", prev.ID).Str("source", req.Source).Msg("reusing completed run")
			return &Outcome{Run: prev, Reused: true}, nil
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("failed to look up previous run: %w", err)
		}
	}

	run := &storage.Run{
		Source:      req.Source,
		ContentHash: key.ContentHash,
		Provider:    key.Provider,
		Model:       key.Model,
		Settings:    key.Settings,
	}
	if err := r.begin(ctx, run); err != nil {
		return nil, err
	}
	log := r.log.With().Str("run_id", run.ID).Str("source", req.Source).Logger()
	log.Info().Msg("analysis started")

	result, err := r.analyzer.Analyze(ctx, req.Text)
	if err != nil {
		r.fail(ctx, run, err)
		log.Error().Err(err).Msg("analysis failed")
		return nil, err
	}

	run.TotalChunks = result.Stats.TotalChunks
	run.SucceededChunks = result.Stats.Succeeded
	run.FailedChunks = result.Stats.Failed
	run.Document = result.Document
	if err := r.complete(ctx, run, result); err != nil {
		r.fail(ctx, run, err)
		return nil, err
	}

	log.Info().
		Int("succeeded", run.SucceededChunks).
		Int("failed", run.FailedChunks).
		Dur("duration", run.Duration()).
		Msg("analysis recorded")
	return &Outcome{Run: run, Result: result}, nil
}

func (r *Runner) begin(ctx context.Context, run *storage.Run) error {
	if r.store == nil {
		run.ID = uuid.NewString()
		run.Status = storage.RunRunning
		run.StartedAt = time.Now().UTC()
		return nil
	}
	if err := r.store.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// fail marks the run failed. The caller's context may already be
// cancelled, so the update runs detached from it.
func (r *Runner) fail(ctx context.Context, run *storage.Run, cause error) {
	run.Status = storage.RunFailed
	run.Error = cause.Error()
	run.CompletedAt = time.Now().UTC()
	if r.store == nil {
		return
	}
	if err := r.store.FailRun(context.WithoutCancel(ctx), run.ID, cause.Error()); err != nil {
		r.log.Warn().Err(err).Str("run_id", run.ID).Msg("failed to mark run failed")
	}
}

func (r *Runner) complete(ctx context.Context, run *storage.Run, result *analyzer.Result) error {
	if r.store == nil {
		run.Status = storage.RunCompleted
		run.CompletedAt = time.Now().UTC()
		return nil
	}

	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.CompleteRun(ctx, run); err != nil {
		return err
	}
	if err := tx.SaveChunkResults(ctx, run.ID, storage.ChunkRecordsFromResults(run.ID, result.Chunks)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}
