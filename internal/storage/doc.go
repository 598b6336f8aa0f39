// Package storage persists analysis runs in SQLite.
//
// # Database Schema
//
// Tables:
//   - runs: one row per analysis (source, content hash, provider, status,
//     chunk counts, merged document as JSON)
//   - chunk_results: per-chunk outcome of a run (position, token count,
//     status, failure reason, partial document as JSON)
//   - schema_version: applied migrations
//
// A run starts in the running state and ends either completed, with a
// merged document, or failed, with an error message. Runs are identified
// by UUID.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("runs.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	run := &storage.Run{Source: "hr1234.txt", ContentHash: hash}
//	if err := store.CreateRun(ctx, run); err != nil {
//	    return err
//	}
//	// ... analyze ...
//	run.Document = result.Document
//	err = store.CompleteRun(ctx, run)
//
// # Reuse
//
// GetLatestRun returns the newest completed run matching a RunKey: the
// same content analyzed by the same provider and model under the same
// settings fingerprint. Callers use it to skip re-analysis of a document
// they have already processed.
//
// # Transactions
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.CompleteRun(ctx, run); err != nil {
//	    return err
//	}
//	if err := tx.SaveChunkResults(ctx, run.ID, records); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// # Build Modes
//
// The default build uses modernc.org/sqlite. Building with the sqlite_cgo
// tag switches to github.com/mattn/go-sqlite3.
package storage
