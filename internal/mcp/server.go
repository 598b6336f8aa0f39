package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/dshills/docextract/internal/extractor"
	"github.com/dshills/docextract/internal/ratelimit"
	"github.com/dshills/docextract/internal/runner"
	"github.com/dshills/docextract/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "docextract"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// MaxDocumentBytes bounds documents read by analyze_document
	MaxDocumentBytes = 32 << 20
)

// Deps are the application components the server exposes
type Deps struct {
	Runner    *runner.Runner
	Storage   storage.Storage
	Limiter   *ratelimit.Limiter
	Extractor extractor.Extractor
	Log       zerolog.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	runner    *runner.Runner
	storage   storage.Storage
	limiter   *ratelimit.Limiter
	extractor extractor.Extractor
	log       zerolog.Logger
}

// NewServer creates a new MCP server instance. The caller owns the
// storage and closes it after Serve returns.
func NewServer(deps Deps) (*Server, error) {
	switch {
	case deps.Runner == nil:
		return nil, errors.New("mcp server requires a runner")
	case deps.Storage == nil:
		return nil, errors.New("mcp server requires storage")
	case deps.Limiter == nil:
		return nil, errors.New("mcp server requires a rate limiter")
	case deps.Extractor == nil:
		return nil, errors.New("mcp server requires an extractor")
	}

	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion),
		runner:    deps.Runner,
		storage:   deps.Storage,
		limiter:   deps.Limiter,
		extractor: deps.Extractor,
		log:       deps.Log,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info().Str("name", ServerName).Str("version", ServerVersion).Msg("serving MCP on stdio")
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(analyzeDocumentTool(), s.handleAnalyzeDocument)
	s.mcp.AddTool(getAnalysisTool(), s.handleGetAnalysis)
	s.mcp.AddTool(listAnalysesTool(), s.handleListAnalyses)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
