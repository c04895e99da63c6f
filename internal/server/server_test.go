package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/webscraper/config"
	"github.com/mohammad-safakhou/webscraper/internal/browseruse"
	"github.com/mohammad-safakhou/webscraper/internal/jobs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type stubRunner struct {
	calls int
}

func (s *stubRunner) Run(_ context.Context, req browseruse.ExtractionRequest) browseruse.Outcome {
	s.calls++
	if _, err := req.Validate(); err != nil {
		notes := err.Error()
		return browseruse.Outcome{
			Result: browseruse.ExtractionResult{URL: req.URL, Request: req.Request, Data: []map[string]any{}, Notes: &notes},
			Err:    err,
		}
	}
	return browseruse.Outcome{Result: browseruse.ExtractionResult{
		URL: req.URL, Request: req.Request, Data: []map[string]any{{"title": "A"}},
	}}
}

type stubJobs struct {
	jobs map[string]jobs.Job
}

func (s *stubJobs) Enqueue(_ context.Context, req browseruse.ExtractionRequest) (jobs.Job, error) {
	if _, err := req.Validate(); err != nil {
		return jobs.Job{}, err
	}
	job := jobs.Job{ID: "job-1", URL: req.URL, Request: req.Request, Status: jobs.StatusQueued}
	s.jobs[job.ID] = job
	return job, nil
}

func (s *stubJobs) Get(_ context.Context, id string) (jobs.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return jobs.Job{}, jobs.ErrJobNotFound
	}
	return job, nil
}

func (s *stubJobs) LatestForURL(_ context.Context, rawURL string) (jobs.Job, error) {
	for _, job := range s.jobs {
		if job.URL == rawURL {
			return job, nil
		}
	}
	return jobs.Job{}, jobs.ErrJobNotFound
}

var keyCfg = config.BrowserUseConfig{APIKey: "k", BaseURL: browseruse.DefaultBaseURL}

func jsonRequest(method, target, body string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req, httptest.NewRecorder()
}

func TestExtractHandler(t *testing.T) {
	runner := &stubRunner{}
	h := &ExtractionHandler{BrowserUse: keyCfg, Runner: runner}
	e := echo.New()

	req, rec := jsonRequest(http.MethodPost, "/api/extract", `{"url":"https://example.com","request":"titles"}`)
	if err := h.extract(e.NewContext(req, rec)); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["is_error"] != false || resp["url"] != "https://example.com" || len(resp["data"].([]any)) != 1 {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestExtractHandlerValidationIs400(t *testing.T) {
	h := &ExtractionHandler{BrowserUse: keyCfg, Runner: &stubRunner{}}
	e := echo.New()

	req, rec := jsonRequest(http.MethodPost, "/api/extract", `{"url":"ftp://example.com","request":"titles"}`)
	if err := h.extract(e.NewContext(req, rec)); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["is_error"] != true || !strings.Contains(resp["error"].(string), "invalid url") {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestExtractHandlerMissingKey(t *testing.T) {
	runner := &stubRunner{}
	h := &ExtractionHandler{Runner: runner}
	e := echo.New()

	req, rec := jsonRequest(http.MethodPost, "/api/extract", `{"url":"https://example.com","request":"titles"}`)
	err := h.extract(e.NewContext(req, rec))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %#v", err)
	}
	if runner.calls != 0 {
		t.Fatalf("runner must not be called without a key")
	}
}

func TestSubmitHandler(t *testing.T) {
	h := &ExtractionHandler{}
	e := echo.New()

	req, rec := jsonRequest(http.MethodPost, "/api/submissions",
		`{"url":"https://example.com","request":"titles","data":[{"title":"A","price":null}]}`)
	if err := h.submit(e.NewContext(req, rec)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	var res browseruse.ExtractionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Data) != 1 || res.Notes != nil {
		t.Fatalf("unexpected result: %+v", res)
	}

	req, rec = jsonRequest(http.MethodPost, "/api/submissions", `{"url":"https://example.com","request":"titles","data":"oops"}`)
	if err := h.submit(e.NewContext(req, rec)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	res = browseruse.ExtractionResult{}
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	if len(res.Data) != 0 || res.NotesText() != "Browser Use returned an unexpected output shape." {
		t.Fatalf("expected fallback, got %+v", res)
	}
	if res.URL != "https://example.com" || res.Request != "titles" {
		t.Fatalf("fallback should keep url/request: %+v", res)
	}

	req, rec = jsonRequest(http.MethodPost, "/api/submissions", `[1,2]`)
	err := h.submit(e.NewContext(req, rec))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-object body, got %#v", err)
	}
}

func TestSubmitHandlerRejectsInvalidInput(t *testing.T) {
	h := &ExtractionHandler{}
	e := echo.New()
	for _, body := range []string{
		`{}`,
		`{"url":"","request":""}`,
		`{"url":"not a url","request":"titles"}`,
		`{"url":"https://example.com","request":""}`,
	} {
		req, rec := jsonRequest(http.MethodPost, "/api/submissions", body)
		err := h.submit(e.NewContext(req, rec))
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %#v", body, err)
		}
	}
}

func TestEnqueueAndGetHandlers(t *testing.T) {
	h := &ExtractionHandler{Jobs: &stubJobs{jobs: map[string]jobs.Job{}}}
	e := echo.New()

	req, rec := jsonRequest(http.MethodPost, "/api/extractions", `{"url":"https://example.com","request":"titles"}`)
	if err := h.enqueue(e.NewContext(req, rec)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var created enqueueResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	if created.ID != "job-1" || created.Status != jobs.StatusQueued {
		t.Fatalf("unexpected response: %+v", created)
	}

	req, rec = jsonRequest(http.MethodPost, "/api/extractions", `{"url":"","request":"titles"}`)
	err := h.enqueue(e.NewContext(req, rec))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %#v", err)
	}

	req, rec = jsonRequest(http.MethodGet, "/api/extractions/job-1", "")
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("job-1")
	if err := h.get(ctx); err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req, rec = jsonRequest(http.MethodGet, "/api/extractions/missing", "")
	ctx = e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("missing")
	if err := h.get(ctx); !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %#v", err)
	}

	req, rec = jsonRequest(http.MethodGet, "/api/extractions?url=https://example.com", "")
	if err := h.latest(e.NewContext(req, rec)); err != nil {
		t.Fatalf("latest: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req, rec = jsonRequest(http.MethodGet, "/api/extractions", "")
	if err := h.latest(e.NewContext(req, rec)); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %#v", err)
	}
}

func TestEnqueueWithoutRedis(t *testing.T) {
	h := &ExtractionHandler{}
	e := echo.New()
	req, rec := jsonRequest(http.MethodPost, "/api/extractions", `{"url":"https://example.com","request":"titles"}`)
	err := h.enqueue(e.NewContext(req, rec))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %#v", err)
	}
}

func TestRoutesAuthAndErrors(t *testing.T) {
	secret := []byte("test-secret")
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "webscraper_test_total", Help: "t"}))
	e := New(Deps{
		Logger:     zerolog.Nop(),
		Gatherer:   reg,
		Extraction: &ExtractionHandler{BrowserUse: keyCfg, Runner: &stubRunner{}},
		JWTSecret:  secret,
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "webscraper_test_total") {
		t.Fatalf("metrics missing collector: %s", rec.Body.String())
	}

	req, rec := jsonRequest(http.MethodPost, "/api/extract", `{"url":"https://example.com","request":"titles"}`)
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	var body HTTPError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error != "missing token" {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}

	token, err := SignJWT("user-1", secret, time.Minute)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	req, rec = jsonRequest(http.MethodPost, "/api/extract", `{"url":"https://example.com","request":"titles"}`)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}

	bad, _ := SignJWT("user-1", []byte("other"), time.Minute)
	req, rec = jsonRequest(http.MethodPost, "/api/extract", `{"url":"https://example.com","request":"titles"}`)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+bad)
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong secret, got %d", rec.Code)
	}

	expired, _ := SignJWT("user-1", secret, -time.Minute)
	req, rec = jsonRequest(http.MethodPost, "/api/extract", `{"url":"https://example.com","request":"titles"}`)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+expired)
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}
}

func TestRoutesOpenWithoutSecret(t *testing.T) {
	var logs strings.Builder
	e := New(Deps{Logger: zerolog.New(&logs), Extraction: &ExtractionHandler{BrowserUse: keyCfg, Runner: &stubRunner{}}})
	req, rec := jsonRequest(http.MethodPost, "/api/submissions", `{"url":"https://example.com","request":"titles","data":[]}`)
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(logs.String(), `"level":"warn"`) || !strings.Contains(logs.String(), "without authentication") {
		t.Fatalf("expected an open-api warning, got %q", logs.String())
	}
}
