// Package fetch renders a page in headless Chrome and extracts its main
// article with readability. It backs the web_fetch preview tool.
package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"
	"github.com/mohammad-safakhou/webscraper/config"
	"github.com/mohammad-safakhou/webscraper/internal/helpers"
)

// StatusUnreachable is reported when navigation fails.
const StatusUnreachable = 599

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxChars = 12000
)

var ErrInvalidURL = errors.New("invalid url")

type Result struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Byline      string `json:"byline"`
	PublishedAt string `json:"published_at,omitempty"`
	Text        string `json:"text"`
	TopImage    string `json:"top_image"`
	HTMLHash    string `json:"html_hash"`
	Status      int    `json:"status"`
	RenderMS    int    `json:"render_ms"`
}

// Renderer returns the rendered outer HTML of a page.
type Renderer interface {
	OuterHTML(ctx context.Context, link string) (string, error)
}

// Fetcher owns a renderer plus per-call defaults. Construct once; call Exec per URL.
type Fetcher struct {
	render    Renderer
	closeFn   func()
	DefaultTO time.Duration
	MaxChars  int
}

// NewFetcher starts a reusable headless browser. Call Close on shutdown.
func NewFetcher(cfg config.FetchConfig) *Fetcher {
	r := newChromeRenderer(cfg.UserAgent)
	f := NewFetcherWithRenderer(r, cfg.Timeout, cfg.MaxChars)
	f.closeFn = r.close
	return f
}

// NewFetcherWithRenderer clamps the defaults and wraps r.
func NewFetcherWithRenderer(r Renderer, defaultTO time.Duration, maxChars int) *Fetcher {
	if defaultTO <= 0 {
		defaultTO = defaultTimeout
	}
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Fetcher{render: r, DefaultTO: defaultTO, MaxChars: maxChars}
}

// Close tears down Chrome resources.
func (f *Fetcher) Close() {
	if f.closeFn != nil {
		f.closeFn()
	}
}

// Exec navigates to link, extracts main content via readability and returns
// a structured Result. Parse failures return status 200 with empty text;
// navigation failures return 599. Only an invalid link is a hard error.
func (f *Fetcher) Exec(ctx context.Context, link string, timeout time.Duration) (Result, error) {
	u, err := helpers.AbsoluteURL(link)
	if err != nil {
		return Result{}, ErrInvalidURL
	}
	link = u.String()
	if timeout <= 0 {
		timeout = f.DefaultTO
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t0 := time.Now()
	elapsed := func() int { return int(time.Since(t0) / time.Millisecond) }

	html, err := f.render.OuterHTML(ctx, link)
	if err != nil {
		return Result{URL: link, Status: StatusUnreachable, RenderMS: elapsed()}, nil
	}

	sum := sha1.Sum([]byte(html))
	hash := hex.EncodeToString(sum[:])

	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return Result{URL: link, HTMLHash: hash, Status: 200, RenderMS: elapsed()}, nil
	}
	res := Result{
		URL:      link,
		Title:    helpers.PlainText(article.Title),
		Byline:   helpers.PlainText(article.Byline),
		Text:     truncate(strings.TrimSpace(article.TextContent), f.MaxChars),
		TopImage: article.Image,
		HTMLHash: hash,
		Status:   200,
		RenderMS: elapsed(),
	}
	if article.PublishedTime != nil {
		res.PublishedAt = article.PublishedTime.UTC().Format(time.RFC3339)
	}
	return res, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

type chromeRenderer struct {
	startOnce sync.Once
	startErr  error
	brCtx     context.Context
	cancelBr  context.CancelFunc
	cancelAll context.CancelFunc
}

func newChromeRenderer(userAgent string) *chromeRenderer {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
	)
	if strings.TrimSpace(userAgent) != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	actx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	bctx, cancelBr := chromedp.NewContext(actx)
	return &chromeRenderer{brCtx: bctx, cancelBr: cancelBr, cancelAll: cancelAlloc}
}

// OuterHTML opens a tab on the shared browser; the tab is closed when ctx ends.
func (c *chromeRenderer) OuterHTML(ctx context.Context, link string) (string, error) {
	// the browser starts on first use; later tabs attach to it
	c.startOnce.Do(func() { c.startErr = chromedp.Run(c.brCtx) })
	if c.startErr != nil {
		return "", c.startErr
	}
	tabCtx, cancelTab := chromedp.NewContext(c.brCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(link),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return html, err
}

func (c *chromeRenderer) close() {
	c.cancelBr()
	c.cancelAll()
}
