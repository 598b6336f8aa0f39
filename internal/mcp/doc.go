// Package mcp implements the Model Context Protocol (MCP) server for docextract.
//
// The server exposes four tools to MCP clients:
//   - analyze_document: Extract a bill into a merged structured document
//   - get_analysis: Fetch a stored run and its document
//   - list_analyses: List recent runs
//   - get_status: Report rate limiter, storage and provider state
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started by the serve command and reads protocol messages
// from stdin. Logs go to stderr because stdout carries the protocol.
//
//	docextract serve
//
// # Tool: analyze_document
//
//	Request:
//	{
//	  "name": "analyze_document",
//	  "arguments": {"path": "/bills/hr1234.txt", "force": false}
//	}
//
//	Response:
//	{
//	  "id": "0b7c...",
//	  "status": "completed",
//	  "reused": false,
//	  "total_chunks": 12,
//	  "failed_chunks": 1,
//	  "failed_positions": [6000],
//	  "success_ratio": 0.9166,
//	  "document": {"short_title": "...", "sections": [...], "legalese": {...}}
//	}
//
// Identical content is answered from the latest completed run unless force
// is set. A document that is partially extracted still completes; check
// failed_positions before treating it as whole.
//
// # Error Codes
//
//	-32602  invalid parameters
//	-32603  internal error, including a run where every chunk failed
//	-32001  path is not a readable UTF-8 file
//	-32002  another analysis is already running
//	-32003  no run with the given id
//	-32004  document is empty
//	-32005  document rejected by the legislation pre-check
package mcp
