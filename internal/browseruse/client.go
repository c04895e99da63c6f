package browseruse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL        = "https://api.browser-use.com/api/v2"
	DefaultMaxSteps       = 100
	DefaultRequestTimeout = 30 * time.Second

	apiKeyHeader = "X-Browser-Use-API-Key"
	maxBodyBytes = 8 << 20
	maxDetails   = 4096
)

// TaskAPI is the subset of the Browser Use API the extractor drives.
type TaskAPI interface {
	SubmitTask(ctx context.Context, req ExtractionRequest) (string, error)
	TaskStatus(ctx context.Context, taskID string) (TaskStatusResponse, error)
}

// Client talks to the Browser Use cloud task API.
type Client struct {
	baseURL  string
	apiKey   string
	maxSteps int
	http     *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithMaxSteps overrides the step budget handed to the remote agent.
func WithMaxSteps(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}

// WithRequestTimeout bounds each individual API call.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d, Transport: c.http.Transport}
		}
	}
}

// NewClient builds a client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		maxSteps: DefaultMaxSteps,
		http:     &http.Client{Timeout: DefaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createTaskRequest struct {
	Task              string   `json:"task"`
	StartURL          string   `json:"startUrl"`
	StructuredOutput  string   `json:"structuredOutput"`
	MaxSteps          int      `json:"maxSteps"`
	AllowedDomains    []string `json:"allowedDomains"`
	HighlightElements bool     `json:"highlightElements"`
	FlashMode         bool     `json:"flashMode"`
}

type createTaskResponse struct {
	ID string `json:"id"`
}

// TaskPrompt is the instruction handed to the remote browser agent.
func TaskPrompt(req ExtractionRequest) string {
	return strings.Join([]string{
		"Open this URL: " + req.URL,
		"Extraction request: " + req.Request,
		"Return ONLY JSON matching the provided schema.",
		"Set missing values to null instead of guessing.",
		"Include a notes field when blocked by auth/captcha/anti-bot or when data quality is limited.",
	}, "\n")
}

// SubmitTask creates a remote extraction task and returns its id. It makes
// exactly one POST and never retries.
func (c *Client) SubmitTask(ctx context.Context, req ExtractionRequest) (string, error) {
	host, err := req.Validate()
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(createTaskRequest{
		Task:              TaskPrompt(req),
		StartURL:          req.URL,
		StructuredOutput:  StructuredOutputSchema(),
		MaxSteps:          c.maxSteps,
		AllowedDomains:    []string{host},
		HighlightElements: false,
		FlashMode:         false,
	})
	if err != nil {
		return "", &SubmissionFailure{Err: fmt.Errorf("marshal task: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tasks", bytes.NewReader(body))
	if err != nil {
		return "", &SubmissionFailure{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", &SubmissionFailure{Err: err}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &SubmissionFailure{Status: resp.StatusCode, Body: details(raw)}
	}
	var created createTaskResponse
	if err := json.Unmarshal(raw, &created); err != nil {
		return "", &SubmissionFailure{Status: resp.StatusCode, Body: details(raw), Err: fmt.Errorf("decode task: %w", err)}
	}
	if strings.TrimSpace(created.ID) == "" {
		return "", &SubmissionFailure{Status: resp.StatusCode, Body: details(raw), Reason: "Browser Use did not return a task id."}
	}
	return created.ID, nil
}

// TaskStatus fetches the current status of a task. Any transport, HTTP or
// decoding problem is reported as a *PollingFailure.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (TaskStatusResponse, error) {
	endpoint := c.baseURL + "/tasks/" + url.PathEscape(taskID) + "/status"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return TaskStatusResponse{}, &PollingFailure{TaskID: taskID, Err: err}
	}
	httpReq.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return TaskStatusResponse{}, &PollingFailure{TaskID: taskID, Err: err}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TaskStatusResponse{}, &PollingFailure{TaskID: taskID, Status: resp.StatusCode, Body: details(raw)}
	}
	var status TaskStatusResponse
	if err := json.Unmarshal(raw, &status); err != nil {
		return TaskStatusResponse{}, &PollingFailure{TaskID: taskID, Status: resp.StatusCode, Body: details(raw), Err: fmt.Errorf("decode status: %w", err)}
	}
	return status, nil
}

func details(raw []byte) string {
	if len(raw) > maxDetails {
		raw = raw[:maxDetails]
	}
	return string(raw)
}
