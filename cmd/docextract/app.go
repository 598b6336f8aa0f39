package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/dshills/docextract/internal/analyzer"
	"github.com/dshills/docextract/internal/chunker"
	"github.com/dshills/docextract/internal/config"
	"github.com/dshills/docextract/internal/extractor"
	"github.com/dshills/docextract/internal/ratelimit"
	"github.com/dshills/docextract/internal/runner"
	"github.com/dshills/docextract/internal/storage"
	"github.com/dshills/docextract/internal/tokenizer"
)

// app is the wired pipeline for one command invocation
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	tok       tokenizer.Tokenizer
	chunker   *chunker.Chunker
	limiter   *ratelimit.Limiter
	extractor extractor.Extractor
	analyzer  *analyzer.Analyzer
	runner    *runner.Runner
	store     storage.Storage // nil when storage is disabled
}

func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	tok, err := tokenizer.New(cfg.Tokenizer.Encoding)
	if err != nil {
		return nil, err
	}
	ch := chunker.New(tok, cfg.ChunkerOptions(), chunker.WithLogger(log))

	limiter, err := ratelimit.New(cfg.RateLimiter(), ratelimit.WithLogger(log))
	if err != nil {
		return nil, err
	}

	ext, err := extractor.New(cfg.ExtractorConfig())
	if err != nil {
		return nil, err
	}

	opts := []analyzer.Option{
		analyzer.WithWorkers(cfg.Extraction.Workers),
		analyzer.WithCallTimeout(cfg.Extraction.CallTimeout.Std()),
		analyzer.WithLogger(log),
		analyzer.WithProgress(logProgress(log)),
	}
	if v, ok := ext.(extractor.Validator); ok && cfg.Extraction.Validate {
		opts = append(opts, analyzer.WithValidator(v, cfg.Extraction.MinConfidence))
	}
	a := analyzer.New(tok, ch, limiter, ext, opts...)

	store, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}

	runOpts := []runner.Option{
		runner.WithModel(ext.Provider(), ext.Model()),
		runner.WithLogger(log),
	}
	if store != nil {
		runOpts = append(runOpts, runner.WithStorage(store))
	}

	log.Debug().
		Str("provider", ext.Provider()).
		Str("model", ext.Model()).
		Str("encoding", tok.Name()).
		Int("chunk_size", ch.ChunkSize()).
		Int("overlap", ch.Overlap()).
		Bool("storage", store != nil).
		Msg("pipeline ready")

	return &app{
		cfg:       cfg,
		log:       log,
		tok:       tok,
		chunker:   ch,
		limiter:   limiter,
		extractor: ext,
		analyzer:  a,
		runner:    runner.New(a, runOpts...),
		store:     store,
	}, nil
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// openStorage opens the run database, creating its directory as needed
func openStorage(cfg *config.Config) (storage.Storage, error) {
	if cfg.Storage.Disabled {
		return nil, nil
	}
	path, err := cfg.DBPath()
	if err != nil {
		return nil, err
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

func logProgress(log zerolog.Logger) analyzer.ProgressFunc {
	return func(ev analyzer.ProgressEvent) {
		if !ev.State.Terminal() {
			return
		}
		log.Debug().
			Int("position", ev.Position).
			Stringer("state", ev.State).
			Int("done", ev.Done).
			Int("total", ev.Total).
			Msg("chunk finished")
	}
}
