package storage

import (
	"context"
	"time"

	"github.com/dshills/docextract/pkg/types"
)

// Storage defines the interface for persisting analysis runs
type Storage interface {
	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	CompleteRun(ctx context.Context, run *Run) error
	FailRun(ctx context.Context, id string, reason string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	GetLatestRun(ctx context.Context, key RunKey) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	CountRuns(ctx context.Context) (*RunCounts, error)

	// Chunk result operations
	SaveChunkResults(ctx context.Context, runID string, records []*ChunkRecord) error
	ListChunkResults(ctx context.Context, runID string) ([]*ChunkRecord, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// RunStatus is the lifecycle state of a run
type RunStatus string

// Run states
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one analysis of one document
type Run struct {
	ID              string
	Source          string   // file path or other caller-supplied label
	ContentHash     [32]byte // SHA-256 of the analyzed text
	Provider        string
	Model           string
	Settings        string // fingerprint of the pipeline settings, see RunKey
	Status          RunStatus
	TotalChunks     int
	SucceededChunks int
	FailedChunks    int
	Document        *types.Legislation // nil unless completed
	Error           string
	StartedAt       time.Time
	CompletedAt     time.Time // zero while running
}

// RunKey identifies the runs that may answer a request. A completed run is
// only reused for the same content analyzed by the same provider and model
// under the same settings fingerprint.
type RunKey struct {
	ContentHash [32]byte
	Provider    string
	Model       string
	Settings    string
}

// Key returns the reuse key of the run
func (r *Run) Key() RunKey {
	return RunKey{ContentHash: r.ContentHash, Provider: r.Provider, Model: r.Model, Settings: r.Settings}
}

// Duration returns how long the run took, or zero while running
func (r *Run) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// SuccessRatio returns the fraction of chunks that succeeded
func (r *Run) SuccessRatio() float64 {
	if r.TotalChunks == 0 {
		return 0
	}
	return float64(r.SucceededChunks) / float64(r.TotalChunks)
}

// ChunkStatus is the terminal outcome of one chunk
type ChunkStatus string

// Chunk outcomes
const (
	ChunkSucceeded ChunkStatus = "succeeded"
	ChunkFailed    ChunkStatus = "failed"
)

// ChunkRecord is the stored outcome of one chunk of a run
type ChunkRecord struct {
	RunID      string
	Position   int
	TokenCount int
	Status     ChunkStatus
	Error      string
	Document   *types.Legislation // partial document, nil when failed
}

// RunCounts summarises stored runs by status
type RunCounts struct {
	Total     int
	Running   int
	Completed int
	Failed    int
}

// ChunkRecordsFromResults converts analyzer chunk results for storage
func ChunkRecordsFromResults(runID string, results []types.ChunkResult) []*ChunkRecord {
	records := make([]*ChunkRecord, 0, len(results))
	for _, r := range results {
		rec := &ChunkRecord{
			RunID:      runID,
			Position:   r.Position,
			TokenCount: r.TokenCount,
		}
		if r.Succeeded() {
			rec.Status = ChunkSucceeded
			rec.Document = r.Document
		} else {
			rec.Status = ChunkFailed
			if r.Err != nil {
				rec.Error = r.Err.Error()
			}
		}
		records = append(records, rec)
	}
	return records
}
