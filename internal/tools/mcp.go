package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	extractDescription = "Use Browser Use Cloud to open a URL in a real browser and extract structured data from dynamic pages."
	submitDescription  = "Submit final structured extraction payload for the current scraping request. Call exactly once per request."
	fetchDescription   = "Render a page in headless Chrome and return its main article text. Use for quick previews, not for extraction."
)

// NewServer builds an MCP server with every tool registered.
func NewServer(t *Tools, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "webscraper", Version: version}, nil)
	t.Register(server)
	return server
}

// Register adds the tools to server.
func (t *Tools) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{Name: "browser_use_extract", Description: extractDescription},
		func(ctx context.Context, _ *mcp.CallToolRequest, in ExtractInput) (*mcp.CallToolResult, any, error) {
			return t.BrowserUseExtract(ctx, in), nil, nil
		})
	mcp.AddTool(server, &mcp.Tool{Name: "submit_extraction", Description: submitDescription},
		func(ctx context.Context, _ *mcp.CallToolRequest, in SubmitInput) (*mcp.CallToolResult, any, error) {
			return t.SubmitExtraction(ctx, in), nil, nil
		})
	if t.fetcher != nil {
		mcp.AddTool(server, &mcp.Tool{Name: "web_fetch", Description: fetchDescription},
			func(ctx context.Context, _ *mcp.CallToolRequest, in FetchInput) (*mcp.CallToolResult, any, error) {
				return t.WebFetch(ctx, in), nil, nil
			})
	}
}
