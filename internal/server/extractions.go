package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/webscraper/config"
	"github.com/mohammad-safakhou/webscraper/internal/browseruse"
	"github.com/mohammad-safakhou/webscraper/internal/jobs"
)

// Runner runs one extraction end to end.
type Runner interface {
	Run(ctx context.Context, req browseruse.ExtractionRequest) browseruse.Outcome
}

// JobService is the async side of the API. It is nil when Redis is not configured.
type JobService interface {
	Enqueue(ctx context.Context, req browseruse.ExtractionRequest) (jobs.Job, error)
	Get(ctx context.Context, id string) (jobs.Job, error)
	LatestForURL(ctx context.Context, rawURL string) (jobs.Job, error)
}

type ExtractionHandler struct {
	BrowserUse config.BrowserUseConfig
	Runner     Runner
	Jobs       JobService
}

func (h *ExtractionHandler) Register(g *echo.Group) {
	g.POST("/extract", h.extract)
	g.POST("/submissions", h.submit)
	g.POST("/extractions", h.enqueue)
	g.GET("/extractions", h.latest)
	g.GET("/extractions/:id", h.get)
}

type extractResponse struct {
	browseruse.OutcomeView
	IsError bool `json:"is_error"`
}

type enqueueResponse struct {
	ID     string      `json:"id"`
	Status jobs.Status `json:"status"`
}

// Extract
//
//	@Summary	Run a Browser Use extraction and wait for the outcome
//	@Param		payload	body		browseruse.ExtractionRequest	true	"url and request"
//	@Success	200		{object}	extractResponse
//	@Failure	400		{object}	extractResponse
//	@Failure	503		{object}	HTTPError
//	@Router		/api/extract [post]
func (h *ExtractionHandler) extract(c echo.Context) error {
	var req browseruse.ExtractionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.BrowserUse.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	out := h.Runner.Run(c.Request().Context(), req)
	resp := extractResponse{OutcomeView: out.View(), IsError: out.Failed()}
	var verr *browseruse.ValidationError
	if errors.As(out.Err, &verr) {
		return c.JSON(http.StatusBadRequest, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// submit normalizes a caller-assembled payload. url and request are checked up
// front; the remaining fields are decoded loosely so that malformed data reaches
// normalization and produces its fallback notes.
func (h *ExtractionHandler) submit(c echo.Context) error {
	var body map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "body must be a JSON object")
	}
	url, _ := body["url"].(string)
	request, _ := body["request"].(string)
	if _, err := (browseruse.ExtractionRequest{URL: url, Request: request}).Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, browseruse.Normalize(body, url, request))
}

// Enqueue
//
//	@Summary	Queue an extraction for a background worker
//	@Param		payload	body		browseruse.ExtractionRequest	true	"url and request"
//	@Success	202		{object}	enqueueResponse
//	@Failure	400		{object}	HTTPError
//	@Failure	503		{object}	HTTPError
//	@Router		/api/extractions [post]
func (h *ExtractionHandler) enqueue(c echo.Context) error {
	if h.Jobs == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "async extraction requires storage.redis")
	}
	var req browseruse.ExtractionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	job, err := h.Jobs.Enqueue(c.Request().Context(), req)
	if err != nil {
		var verr *browseruse.ValidationError
		if errors.As(err, &verr) {
			return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, enqueueResponse{ID: job.ID, Status: job.Status})
}

func (h *ExtractionHandler) get(c echo.Context) error {
	if h.Jobs == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "async extraction requires storage.redis")
	}
	job, err := h.Jobs.Get(c.Request().Context(), c.Param("id"))
	return jobResponse(c, job, err)
}

func (h *ExtractionHandler) latest(c echo.Context) error {
	if h.Jobs == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "async extraction requires storage.redis")
	}
	url := strings.TrimSpace(c.QueryParam("url"))
	if url == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url query parameter is required")
	}
	job, err := h.Jobs.LatestForURL(c.Request().Context(), url)
	return jobResponse(c, job, err)
}

func jobResponse(c echo.Context, job jobs.Job, err error) error {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "extraction not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, job)
}

// HTTPError is the body of every non-2xx response.
type HTTPError struct {
	Error string `json:"error"`
}
