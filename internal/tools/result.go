// Package tools exposes the scraper as agent tools: Browser Use extraction,
// final payload submission and an optional page preview.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// TextResult wraps v as a single JSON text block. isError flags the result
// as a tool failure for the calling agent.
func TextResult(v any, isError bool) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(map[string]string{"error": fmt.Sprintf("encode tool result: %v", err)})
		isError = true
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
		IsError: isError,
	}
}

// ErrorResult is TextResult({"error": msg}, true).
func ErrorResult(msg string) *mcp.CallToolResult {
	return TextResult(map[string]string{"error": msg}, true)
}
