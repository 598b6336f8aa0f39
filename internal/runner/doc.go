// Package runner ties an analysis to its persisted run record.
//
// A Runner hashes the document, serves a previous completed run for the
// same content unless forced, otherwise runs the analyzer and records the
// outcome (the run row plus one row per chunk) in a single transaction.
// Only one analysis runs at a time per Runner; a second caller gets
// ErrBusy instead of queueing behind the first.
package runner
