package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// analyzeDocumentTool returns the tool definition for analyze_document
func analyzeDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "analyze_document",
		Description: "Extract the structure of a legislative text file into a merged JSON document",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a UTF-8 text file containing the bill",
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, analyze again even when a completed run exists for identical content",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// getAnalysisTool returns the tool definition for get_analysis
func getAnalysisTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_analysis",
		Description: "Fetch a stored analysis run with its merged document",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Run identifier returned by analyze_document",
				},
				"include_chunks": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, include per-chunk outcomes",
					"default":     false,
				},
			},
			Required: []string{"id"},
		},
	}
}

// listAnalysesTool returns the tool definition for list_analyses
func listAnalysesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_analyses",
		Description: "List recent analysis runs, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of runs to return (1-100)",
					"default":     20,
					"minimum":     1,
					"maximum":     100,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report rate limiter activity, stored run counts and the extraction provider",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
