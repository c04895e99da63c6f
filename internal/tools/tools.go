package tools

import (
	"context"
	"errors"
	"time"

	"github.com/mohammad-safakhou/webscraper/config"
	"github.com/mohammad-safakhou/webscraper/internal/browseruse"
	"github.com/mohammad-safakhou/webscraper/internal/fetch"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

// Runner runs one extraction end to end.
type Runner interface {
	Run(ctx context.Context, req browseruse.ExtractionRequest) browseruse.Outcome
}

// Previewer renders a page preview.
type Previewer interface {
	Exec(ctx context.Context, link string, timeout time.Duration) (fetch.Result, error)
}

type ExtractInput struct {
	URL     string `json:"url" jsonschema:"The exact page URL to open in Browser Use"`
	Request string `json:"request" jsonschema:"What to extract, including fields and filtering rules"`
}

type SubmitInput struct {
	URL     string           `json:"url" jsonschema:"The page URL the data was extracted from"`
	Request string           `json:"request" jsonschema:"The extraction request being answered"`
	Data    []map[string]any `json:"data" jsonschema:"Extracted rows, one object per item"`
	Notes   *string          `json:"notes,omitempty" jsonschema:"Caveats such as login walls, captchas or missing fields"`
}

type FetchInput struct {
	URL       string `json:"url" jsonschema:"Absolute http(s) URL to render"`
	TimeoutMS int    `json:"timeout_ms,omitempty" jsonschema:"Render timeout in milliseconds"`
	MaxChars  int    `json:"max_chars,omitempty" jsonschema:"Maximum characters of article text to return"`
}

// Tools holds the shared dependencies of every tool handler. Fetcher may be nil,
// in which case web_fetch is not registered.
type Tools struct {
	cfg     config.BrowserUseConfig
	runner  Runner
	fetcher Previewer
	logger  zerolog.Logger
}

func New(cfg config.BrowserUseConfig, runner Runner, fetcher Previewer, logger zerolog.Logger) *Tools {
	return &Tools{
		cfg:     cfg,
		runner:  runner,
		fetcher: fetcher,
		logger:  logger.With().Str("component", "tools").Logger(),
	}
}

// BrowserUseExtract runs a Browser Use extraction and reports the outcome.
// A missing API key is reported before any remote call.
func (t *Tools) BrowserUseExtract(ctx context.Context, in ExtractInput) *mcp.CallToolResult {
	if err := t.cfg.Validate(); err != nil {
		return ErrorResult(err.Error())
	}
	out := t.runner.Run(ctx, browseruse.ExtractionRequest{URL: in.URL, Request: in.Request})
	return TextResult(out.View(), out.Failed())
}

// SubmitExtraction normalizes the final payload, falling back to the input
// url and request for missing fields. The url must be absolute and the
// request non-empty.
func (t *Tools) SubmitExtraction(_ context.Context, in SubmitInput) *mcp.CallToolResult {
	if _, err := (browseruse.ExtractionRequest{URL: in.URL, Request: in.Request}).Validate(); err != nil {
		return ErrorResult(err.Error())
	}
	raw := map[string]any{
		"url":     in.URL,
		"request": in.Request,
		"data":    in.Data,
		"notes":   in.Notes,
	}
	if in.Data == nil {
		raw["data"] = []map[string]any{}
	}
	res := browseruse.Normalize(raw, in.URL, in.Request)
	t.logger.Info().Str("url", res.URL).Int("rows", len(res.Data)).Msg("extraction submitted")
	return TextResult(res, false)
}

// WebFetch renders a page preview. Navigation failures come back as status 599.
func (t *Tools) WebFetch(ctx context.Context, in FetchInput) *mcp.CallToolResult {
	if t.fetcher == nil {
		return ErrorResult("web_fetch is not enabled")
	}
	timeout := time.Duration(in.TimeoutMS) * time.Millisecond
	res, err := t.fetcher.Exec(ctx, in.URL, timeout)
	if err != nil {
		if errors.Is(err, fetch.ErrInvalidURL) {
			return ErrorResult("url must be an absolute http(s) url")
		}
		return ErrorResult(err.Error())
	}
	if in.MaxChars > 0 && len(res.Text) > in.MaxChars {
		res.Text = truncateRunes(res.Text, in.MaxChars)
	}
	return TextResult(res, res.Status >= 400)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
