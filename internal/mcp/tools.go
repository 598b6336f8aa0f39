package mcp

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/docextract/internal/extractor"
	"github.com/dshills/docextract/internal/runner"
	"github.com/dshills/docextract/internal/storage"
	"github.com/dshills/docextract/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeDocumentNotFound   = -32001 // Path does not name a readable text file
	ErrorCodeAnalysisInProgress = -32002 // Another analysis is already running
	ErrorCodeRunNotFound        = -32003 // No run with the given id
	ErrorCodeEmptyDocument      = -32004 // Document has no text
	ErrorCodeNotLegislation     = -32005 // Validation rejected the document
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// handleAnalyzeDocument handles the analyze_document tool invocation
func (s *Server) handleAnalyzeDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	text, err := readDocument(path)
	if err != nil {
		code := ErrorCodeDocumentNotFound
		if errors.Is(err, ErrPathNotAbsolute) {
			code = ErrorCodeInvalidParams
		}
		return nil, newMCPError(code, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	force := getBoolDefault(args, "force", false)

	out, err := s.runner.Analyze(ctx, runner.Request{Source: path, Text: text, Force: force})
	if err != nil {
		return nil, analysisError(err)
	}

	response := runSummary(out.Run)
	response["reused"] = out.Reused
	response["document"] = out.Run.Document
	if out.Result != nil {
		response["failed_positions"] = out.Result.FailedPositions()
		response["success_ratio"] = out.Result.SuccessRatio()
		if out.Result.Stats.Validation != nil {
			response["validation"] = out.Result.Stats.Validation
		}
	} else {
		positions, err := s.failedPositions(ctx, out.Run.ID)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to load chunk results", map[string]interface{}{
				"error": err.Error(),
			})
		}
		response["failed_positions"] = positions
		response["success_ratio"] = out.Run.SuccessRatio()
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetAnalysis handles the get_analysis tool invocation
func (s *Server) handleGetAnalysis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "id parameter is required", map[string]interface{}{
			"param":  "id",
			"reason": "missing or empty",
		})
	}

	run, err := s.storage.GetRun(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeRunNotFound, "run not found", map[string]interface{}{
			"id": id,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get run", map[string]interface{}{
			"error": err.Error(),
		})
	}

	records, err := s.storage.ListChunkResults(ctx, id)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load chunk results", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := runSummary(run)
	response["document"] = run.Document
	response["failed_positions"] = failedPositions(records)

	if getBoolDefault(args, "include_chunks", false) {
		chunks := make([]map[string]interface{}, 0, len(records))
		for _, rec := range records {
			chunk := map[string]interface{}{
				"position":    rec.Position,
				"token_count": rec.TokenCount,
				"status":      rec.Status,
			}
			if rec.Error != "" {
				chunk["error"] = rec.Error
			}
			if rec.Document != nil {
				chunk["document"] = rec.Document
			}
			chunks = append(chunks, chunk)
		}
		response["chunks"] = chunks
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListAnalyses handles the list_analyses tool invocation
func (s *Server) handleListAnalyses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	limit := getIntDefault(args, "limit", defaultListLimit)
	if limit < 1 || limit > maxListLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	runs, err := s.storage.ListRuns(ctx, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list runs", map[string]interface{}{
			"error": err.Error(),
		})
	}

	items := make([]map[string]interface{}, 0, len(runs))
	for _, run := range runs {
		items = append(items, runSummary(run))
	}

	response := map[string]interface{}{
		"runs":  items,
		"count": len(items),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	counts, err := s.storage.CountRuns(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to count runs", map[string]interface{}{
			"error": err.Error(),
		})
	}

	limits := s.limiter.Stats()
	cfg := s.limiter.Config()

	response := map[string]interface{}{
		"busy": s.runner.Busy(),
		"extraction": map[string]interface{}{
			"provider": s.extractor.Provider(),
			"model":    s.extractor.Model(),
		},
		"rate_limit": map[string]interface{}{
			"requests_per_minute": limits.Limit,
			"in_window":           limits.InWindow,
			"admitted":            limits.Admitted,
			"throttled":           limits.Throttled,
			"retried":             limits.Retried,
			"max_retries":         cfg.MaxRetries,
		},
		"runs": map[string]interface{}{
			"total":     counts.Total,
			"running":   counts.Running,
			"completed": counts.Completed,
			"failed":    counts.Failed,
		},
		"storage": map[string]interface{}{
			"driver":     storage.DriverName,
			"build_mode": storage.BuildMode,
		},
	}

	if cached, ok := s.extractor.(*extractor.CachedExtractor); ok {
		stats := cached.Stats()
		response["cache"] = map[string]interface{}{
			"size":   stats.Size,
			"hits":   stats.Hits,
			"misses": stats.Misses,
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

func (s *Server) failedPositions(ctx context.Context, runID string) ([]int, error) {
	records, err := s.storage.ListChunkResults(ctx, runID)
	if err != nil {
		return nil, err
	}
	return failedPositions(records), nil
}

// Helper functions

// analysisError maps analysis failures onto MCP error codes
func analysisError(err error) error {
	data := map[string]interface{}{"error": err.Error()}
	switch {
	case errors.Is(err, runner.ErrBusy):
		return newMCPError(ErrorCodeAnalysisInProgress, "another analysis is already running", nil)
	case errors.Is(err, types.ErrEmptyContent):
		return newMCPError(ErrorCodeEmptyDocument, "document is empty", data)
	case errors.Is(err, types.ErrNotLegislation):
		return newMCPError(ErrorCodeNotLegislation, "document does not look like legislation", data)
	default:
		return newMCPError(ErrorCodeInternalError, "analysis failed", data)
	}
}

// runSummary formats the fields every run response shares
func runSummary(run *storage.Run) map[string]interface{} {
	summary := map[string]interface{}{
		"id":               run.ID,
		"source":           run.Source,
		"content_hash":     hex.EncodeToString(run.ContentHash[:]),
		"provider":         run.Provider,
		"model":            run.Model,
		"status":           run.Status,
		"total_chunks":     run.TotalChunks,
		"succeeded_chunks": run.SucceededChunks,
		"failed_chunks":    run.FailedChunks,
		"started_at":       run.StartedAt.Format(time.RFC3339),
	}
	if !run.CompletedAt.IsZero() {
		summary["completed_at"] = run.CompletedAt.Format(time.RFC3339)
		summary["duration_ms"] = run.Duration().Milliseconds()
	}
	if run.Error != "" {
		summary["error"] = run.Error
	}
	return summary
}

func failedPositions(records []*storage.ChunkRecord) []int {
	positions := []int{}
	for _, rec := range records {
		if rec.Status == storage.ChunkFailed {
			positions = append(positions, rec.Position)
		}
	}
	return positions
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// readDocument checks that path names a readable UTF-8 file and returns its text
func readDocument(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", ErrPathNotFound
	}
	if err != nil {
		return "", ErrPathNotReadable
	}
	if !info.Mode().IsRegular() {
		return "", ErrNotRegularFile
	}
	if info.Size() > MaxDocumentBytes {
		return "", ErrDocumentTooLarge
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", ErrPathNotReadable
	}
	if !utf8.Valid(data) {
		return "", ErrNotText
	}
	return string(data), nil
}

// arguments returns the call arguments, treating absent ones as empty
func arguments(request mcp.CallToolRequest) map[string]interface{} {
	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		return args
	}
	return map[string]interface{}{}
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathNotAbsolute  = errors.New("path must be absolute")
	ErrPathNotFound     = errors.New("path does not exist")
	ErrPathNotReadable  = errors.New("path is not readable")
	ErrNotRegularFile   = errors.New("path is not a regular file")
	ErrDocumentTooLarge = errors.New("document exceeds size limit")
	ErrNotText          = errors.New("document is not valid UTF-8 text")
)
