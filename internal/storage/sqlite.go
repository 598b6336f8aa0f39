package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/docextract/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a run is not in the running state
	ErrInvalidTransition = errors.New("run is not running")
)

// DefaultListLimit caps ListRuns when no limit is given
const DefaultListLimit = 20

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; this also keeps :memory: on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Run operations

func createRun(ctx context.Context, q querier, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.Status = RunRunning
	run.StartedAt = time.Now().UTC()
	run.CompletedAt = time.Time{}

	query := `
		INSERT INTO runs (id, source, content_hash, provider, model, settings, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		run.ID, run.Source, run.ContentHash[:], run.Provider, run.Model, run.Settings,
		string(run.Status), run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func completeRun(ctx context.Context, q querier, run *Run) error {
	doc, err := marshalDocument(run.Document)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	query := `
		UPDATE runs
		SET status = ?, total_chunks = ?, succeeded_chunks = ?, failed_chunks = ?,
		    document = ?, error = NULL, completed_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := q.ExecContext(ctx, query,
		string(RunCompleted), run.TotalChunks, run.SucceededChunks, run.FailedChunks,
		doc, now, run.ID, string(RunRunning))
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if err := checkTransition(ctx, q, result, run.ID); err != nil {
		return err
	}
	run.Status = RunCompleted
	run.CompletedAt = now
	run.Error = ""
	return nil
}

func failRun(ctx context.Context, q querier, id, reason string) error {
	query := `
		UPDATE runs
		SET status = ?, error = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := q.ExecContext(ctx, query,
		string(RunFailed), reason, time.Now().UTC(), id, string(RunRunning))
	if err != nil {
		return fmt.Errorf("failed to fail run: %w", err)
	}
	return checkTransition(ctx, q, result, id)
}

// checkTransition distinguishes a missing run from one already finished
func checkTransition(ctx context.Context, q querier, result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := getRun(ctx, q, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrInvalidTransition, id)
}

const runColumns = `
	id, source, content_hash, provider, model, settings, status,
	total_chunks, succeeded_chunks, failed_chunks,
	document, error, started_at, completed_at
`

func getRun(ctx context.Context, q querier, id string) (*Run, error) {
	row := q.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

func getLatestRun(ctx context.Context, q querier, key RunKey) (*Run, error) {
	query := "SELECT " + runColumns + `
		FROM runs
		WHERE content_hash = ? AND provider = ? AND model = ? AND settings = ? AND status = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT 1
	`
	run, err := scanRun(q.QueryRowContext(ctx, query,
		key.ContentHash[:], key.Provider, key.Model, key.Settings, string(RunCompleted)))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return run, err
}

func listRuns(ctx context.Context, q querier, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := "SELECT " + runColumns + `
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func countRuns(ctx context.Context, q querier) (*RunCounts, error) {
	rows, err := q.QueryContext(ctx, "SELECT status, COUNT(*) FROM runs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	defer rows.Close()

	counts := &RunCounts{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		switch RunStatus(status) {
		case RunRunning:
			counts.Running = n
		case RunCompleted:
			counts.Completed = n
		case RunFailed:
			counts.Failed = n
		}
		counts.Total += n
	}
	return counts, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var status string
	var hash []byte
	var doc, errMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&run.ID, &run.Source, &hash, &run.Provider, &run.Model, &run.Settings, &status,
		&run.TotalChunks, &run.SucceededChunks, &run.FailedChunks,
		&doc, &errMsg, &run.StartedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	copy(run.ContentHash[:], hash)
	run.Error = errMsg.String
	if completedAt.Valid {
		run.CompletedAt = completedAt.Time
	}
	if run.Document, err = unmarshalDocument(doc); err != nil {
		return nil, fmt.Errorf("run %s: %w", run.ID, err)
	}
	return &run, nil
}

// Chunk result operations

func saveChunkResults(ctx context.Context, q querier, runID string, records []*ChunkRecord) error {
	query := `
		INSERT INTO chunk_results (run_id, position, token_count, status, error, document)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, position) DO UPDATE SET
			token_count = excluded.token_count,
			status = excluded.status,
			error = excluded.error,
			document = excluded.document
	`
	for _, rec := range records {
		doc, err := marshalDocument(rec.Document)
		if err != nil {
			return err
		}
		var errMsg sql.NullString
		if rec.Error != "" {
			errMsg = sql.NullString{String: rec.Error, Valid: true}
		}
		if _, err := q.ExecContext(ctx, query,
			runID, rec.Position, rec.TokenCount, string(rec.Status), errMsg, doc); err != nil {
			return fmt.Errorf("failed to save chunk result at position %d: %w", rec.Position, err)
		}
		rec.RunID = runID
	}
	return nil
}

func listChunkResults(ctx context.Context, q querier, runID string) ([]*ChunkRecord, error) {
	query := `
		SELECT run_id, position, token_count, status, error, document
		FROM chunk_results
		WHERE run_id = ?
		ORDER BY position
	`
	rows, err := q.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk results: %w", err)
	}
	defer rows.Close()

	records := make([]*ChunkRecord, 0)
	for rows.Next() {
		var rec ChunkRecord
		var status string
		var errMsg, doc sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.Position, &rec.TokenCount, &status, &errMsg, &doc); err != nil {
			return nil, err
		}
		rec.Status = ChunkStatus(status)
		rec.Error = errMsg.String
		if rec.Document, err = unmarshalDocument(doc); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", rec.Position, err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func marshalDocument(doc *types.Legislation) (sql.NullString, error) {
	if doc == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode document: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalDocument(s sql.NullString) (*types.Legislation, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	doc := types.NewLegislation()
	if err := json.Unmarshal([]byte(s.String), doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	doc.Normalize()
	return doc, nil
}

// SQLiteStorage methods

func (s *SQLiteStorage) CreateRun(ctx context.Context, run *Run) error {
	return createRun(ctx, s.db, run)
}

func (s *SQLiteStorage) CompleteRun(ctx context.Context, run *Run) error {
	return completeRun(ctx, s.db, run)
}

func (s *SQLiteStorage) FailRun(ctx context.Context, id string, reason string) error {
	return failRun(ctx, s.db, id, reason)
}

func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*Run, error) {
	return getRun(ctx, s.db, id)
}

func (s *SQLiteStorage) GetLatestRun(ctx context.Context, key RunKey) (*Run, error) {
	return getLatestRun(ctx, s.db, key)
}

func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	return listRuns(ctx, s.db, limit)
}

func (s *SQLiteStorage) CountRuns(ctx context.Context) (*RunCounts, error) {
	return countRuns(ctx, s.db)
}

// SaveChunkResults stores records atomically. Use Tx.SaveChunkResults to
// combine it with other writes.
func (s *SQLiteStorage) SaveChunkResults(ctx context.Context, runID string, records []*ChunkRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveChunkResults(ctx, tx, runID, records); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) ListChunkResults(ctx context.Context, runID string) ([]*ChunkRecord, error) {
	return listChunkResults(ctx, s.db, runID)
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) Close() error {
	return nil
}

// BeginTx is not supported inside a transaction
func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions are not supported")
}

func (t *sqliteTx) CreateRun(ctx context.Context, run *Run) error {
	return createRun(ctx, t.tx, run)
}

func (t *sqliteTx) CompleteRun(ctx context.Context, run *Run) error {
	return completeRun(ctx, t.tx, run)
}

func (t *sqliteTx) FailRun(ctx context.Context, id string, reason string) error {
	return failRun(ctx, t.tx, id, reason)
}

func (t *sqliteTx) GetRun(ctx context.Context, id string) (*Run, error) {
	return getRun(ctx, t.tx, id)
}

func (t *sqliteTx) GetLatestRun(ctx context.Context, key RunKey) (*Run, error) {
	return getLatestRun(ctx, t.tx, key)
}

func (t *sqliteTx) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	return listRuns(ctx, t.tx, limit)
}

func (t *sqliteTx) CountRuns(ctx context.Context) (*RunCounts, error) {
	return countRuns(ctx, t.tx)
}

func (t *sqliteTx) SaveChunkResults(ctx context.Context, runID string, records []*ChunkRecord) error {
	return saveChunkResults(ctx, t.tx, runID, records)
}

func (t *sqliteTx) ListChunkResults(ctx context.Context, runID string) ([]*ChunkRecord, error) {
	return listChunkResults(ctx, t.tx, runID)
}
