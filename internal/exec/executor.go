// Package exec implements the Request Executor (spec.md §4.7): variable
// resolution, mock-or-network dispatch, retry with backoff, expectation
// validation, extractor capture, and the strict-capture rule.
package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"github.com/restyrun/resty/internal/block"
	"github.com/restyrun/resty/internal/expect"
	"github.com/restyrun/resty/internal/jsonpath"
	"github.com/restyrun/resty/internal/mock"
	"github.com/restyrun/resty/internal/rerr"
	"github.com/restyrun/resty/internal/result"
	"github.com/restyrun/resty/internal/vars"
)

// Options configures one Executor for the lifetime of a file's execution,
// matching spec.md §5: the HTTP client and mock engine are owned here, and
// neither is mutated concurrently by the core.
type Options struct {
	DefaultTimeout time.Duration // host default
	TimeoutOverride time.Duration // CLI --timeout, 0 means "not set"
	GlobalMock     bool
	RateLimiter    *rate.Limiter // optional, nil disables throttling
}

// Executor runs HTTP tests, delegating to the mock engine first.
type Executor struct {
	opts   Options
	client *fasthttp.Client
	mocks  *mock.Engine
}

func New(opts Options) *Executor {
	return &Executor{
		opts:   opts,
		client: &fasthttp.Client{},
		mocks:  mock.NewEngine(),
	}
}

// Run executes one test against the given store, applying mock.FileMockSet
// when mocking is in play. ctx carries the host-supplied cancellation
// signal (spec.md §5).
func (ex *Executor) Run(ctx context.Context, sourceFile string, line int, t *block.Test, store *vars.Store, mockSet *mock.FileMockSet) result.TestResult {
	tr := result.TestResult{SourceFile: sourceFile, Line: line, Name: t.Name, Start: time.Now()}

	maxAttempts := t.Retry + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var last result.TestResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			tr.Status = result.Skipped
			tr.Status = result.Failed
			tr.Error = "cancelled"
			tr.Cause = rerr.New(rerr.KindCancelled, "test cancelled")
			tr.End = time.Now()
			tr.Snapshot = store.Snapshot()
			return tr
		default:
		}

		attemptResult, retryable := ex.attempt(ctx, sourceFile, line, t, store, mockSet)
		attemptResult.Attempts = attempt
		last = attemptResult

		if attemptResult.Status == result.Passed || !retryable || attempt == maxAttempts {
			break
		}

		backoff := backoffFor(attempt)
		select {
		case <-ctx.Done():
			last.Status = result.Failed
			last.Error = "cancelled during backoff"
			last.Cause = rerr.New(rerr.KindCancelled, "test cancelled during backoff")
			return last
		case <-time.After(backoff):
		}
	}

	last.Start = tr.Start
	last.End = time.Now()
	last.Snapshot = store.Snapshot()
	if last.Status == result.Failed && last.Attempts > 1 {
		last.Error = fmt.Sprintf("%s (after %d attempts)", last.Error, last.Attempts)
	}
	return last
}

// backoffFor implements spec.md §4.7: min(2^(attempt-1) * 1000ms, 30000ms).
func backoffFor(attempt int) time.Duration {
	ms := int64(1000)
	for i := 1; i < attempt; i++ {
		ms *= 2
		if ms >= 30000 {
			return 30000 * time.Millisecond
		}
	}
	return time.Duration(ms) * time.Millisecond
}

// attempt runs exactly one try of the state machine and reports whether a
// failure is retryable.
func (ex *Executor) attempt(ctx context.Context, sourceFile string, line int, t *block.Test, store *vars.Store, mockSet *mock.FileMockSet) (result.TestResult, bool) {
	tr := result.TestResult{SourceFile: sourceFile, Line: line, Name: t.Name}

	req, err := ex.prepareRequest(t, store)
	if err != nil {
		return fail(tr, err, false)
	}
	tr.Request = req

	var resp mockOrNetworkResponse
	served := false
	if mock.Enabled(t, ex.opts.GlobalMock, mockSet) {
		mr, matched, merr := ex.mocks.Serve(sourceFile, t, mockSet, store)
		if merr != nil {
			return fail(tr, merr, false)
		}
		if matched {
			if mr.DelayMs > 0 {
				select {
				case <-ctx.Done():
					return fail(tr, rerr.New(rerr.KindCancelled, "cancelled during mock delay"), false)
				case <-time.After(time.Duration(mr.DelayMs) * time.Millisecond):
				}
			}
			resp = mockOrNetworkResponse{statusCode: mr.StatusCode, headers: mr.Headers, body: mr.Body}
			served = true
		} else if t.MockOnly {
			return fail(tr, rerr.New(rerr.KindMockUnavailable, "mock_only test had no matching mock"), false)
		}
	}

	if !served {
		if ex.opts.RateLimiter != nil {
			if err := ex.opts.RateLimiter.Wait(ctx); err != nil {
				return fail(tr, rerr.Wrap(rerr.KindCancelled, "rate limiter wait cancelled", err), false)
			}
		}
		networkResp, err := ex.sendNetwork(ctx, t, req)
		if err != nil {
			return fail(tr, err, isNetworkRetryable(err))
		}
		resp = networkResp
	}

	tr.StatusCode = resp.statusCode
	tr.Headers = resp.headers
	tr.Body = string(resp.body)

	if !expect.StatusPasses(t.Expect, resp.statusCode) {
		wantDesc := "2xx"
		if t.Expect != nil && t.Expect.Status != nil {
			wantDesc = fmt.Sprintf("%d", *t.Expect.Status)
		}
		msg := fmt.Sprintf("expected status %s, got %d", wantDesc, resp.statusCode)
		return fail(tr, rerr.New(rerr.KindExpectedStatus, msg), rerr.Retryable(rerr.KindExpectedStatus, resp.statusCode))
	}

	evalResult := expect.Evaluate(t.Expect, expect.Response{StatusCode: resp.statusCode, Headers: resp.headers, Body: resp.body}, store)
	if !evalResult.Passed {
		return fail(tr, rerr.New(expectFailureKind(evalResult), joinFailures(evalResult)), false)
	}

	extracted, captureErr := ex.runExtractors(t, resp)
	if captureErr != nil {
		return fail(tr, captureErr, false)
	}

	merged := map[string]string{}
	for k, v := range evalResult.Captured {
		merged[k] = v
	}
	for k, v := range extracted {
		merged[k] = v // extractor keys win over store_as, per spec.md §4.7
	}
	tr.Extracted = merged
	tr.Status = result.Passed
	return tr, false
}

func joinFailures(r expect.Result) string {
	var parts []string
	for _, f := range r.Failures {
		msg := f.Message
		if f.Diff != "" {
			msg += "\n" + f.Diff
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}

// expectFailureKind picks the taxonomy kind for an evaluation failure: a
// header mismatch anywhere in the list takes precedence in the message,
// otherwise it's a value mismatch.
func expectFailureKind(r expect.Result) rerr.Kind {
	for _, f := range r.Failures {
		if f.Kind == "header" {
			return rerr.KindExpectedHeader
		}
	}
	return rerr.KindExpectedValues
}

type mockOrNetworkResponse struct {
	statusCode int
	headers    map[string]string
	body       []byte
}

func fail(tr result.TestResult, err error, retryable bool) (result.TestResult, bool) {
	tr.Status = result.Failed
	tr.Error = err.Error()
	tr.Cause = err
	if re, ok := err.(*rerr.Error); ok {
		retryable = retryable || re.Kind == rerr.KindNetwork
	}
	return tr, retryable
}

func isNetworkRetryable(err error) bool {
	return rerr.Is(err, rerr.KindNetwork)
}

// prepareRequest resolves method/url/headers/body into the concrete
// RequestInfo the Executor will actually send.
func (ex *Executor) prepareRequest(t *block.Test, store *vars.Store) (result.RequestInfo, error) {
	url, err := store.Resolve(t.URL)
	if err != nil {
		return result.RequestInfo{}, err
	}

	headers := map[string]string{}
	for k, v := range t.Headers {
		rv, err := store.Resolve(v)
		if err != nil {
			return result.RequestInfo{}, err
		}
		headers[k] = rv
	}

	contentType := headers["content-type"]
	body, err := store.ResolveBody(contentType, t.Body)
	if err != nil {
		return result.RequestInfo{}, err
	}

	return result.RequestInfo{Method: t.Method, URL: url, Headers: headers, Body: body}, nil
}

// sendNetwork performs the actual fasthttp round-trip, mapping
// connection-class failures to a retryable KindNetwork error.
func (ex *Executor) sendNetwork(ctx context.Context, t *block.Test, req result.RequestInfo) (mockOrNetworkResponse, error) {
	freq := fasthttp.AcquireRequest()
	fresp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(freq)
	defer fasthttp.ReleaseResponse(fresp)

	freq.SetRequestURI(req.URL)
	freq.Header.SetMethod(req.Method)
	for k, v := range req.Headers {
		freq.Header.Set(k, v)
	}
	if req.Body != "" {
		freq.SetBodyString(req.Body)
	}

	timeout := ex.opts.DefaultTimeout
	if t.Timeout > 0 {
		timeout = time.Duration(t.Timeout) * time.Second
	}
	if ex.opts.TimeoutOverride > 0 {
		timeout = ex.opts.TimeoutOverride
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	err := ex.client.DoDeadline(freq, fresp, deadline)
	if err != nil {
		return mockOrNetworkResponse{}, rerr.Wrap(rerr.KindNetwork, "request failed", err)
	}

	headers := map[string]string{}
	fresp.Header.VisitAll(func(k, v []byte) {
		headers[strings.ToLower(string(k))] = string(v)
	})
	body := append([]byte(nil), fresp.Body()...)

	return mockOrNetworkResponse{statusCode: fresp.StatusCode(), headers: headers, body: body}, nil
}

// runExtractors applies every extractor, then enforces the strict-capture
// rule from spec.md §4.7.
func (ex *Executor) runExtractors(t *block.Test, resp mockOrNetworkResponse) (map[string]string, error) {
	if len(t.Extract) == 0 {
		return map[string]string{}, nil
	}

	strict := resp.statusCode >= 200 && resp.statusCode < 300 && resp.statusCode != 204

	var body interface{}
	bodyErr := json.Unmarshal(resp.body, &body)

	extracted := map[string]string{}
	var missing, errored []string

	names := make([]string, 0, len(t.Extract))
	for name := range t.Extract {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := t.Extract[name]
		if bodyErr != nil {
			if strict {
				missing = append(missing, name)
			}
			continue
		}
		tokens, err := jsonpath.Eval(body, path)
		if err != nil {
			if strict {
				errored = append(errored, name)
			}
			continue
		}
		if len(tokens) == 0 {
			if strict {
				missing = append(missing, name)
			}
			continue
		}
		extracted[name] = tokenToString(tokens[0])
	}

	if strict && (len(missing) > 0 || len(errored) > 0 || bodyErr != nil) {
		var parts []string
		if bodyErr != nil {
			parts = append(parts, "response not JSON or empty")
		}
		if len(missing) > 0 {
			parts = append(parts, "missing: "+strings.Join(missing, ", "))
		}
		if len(errored) > 0 {
			parts = append(parts, "errored: "+strings.Join(errored, ", "))
		}
		return nil, rerr.New(rerr.KindCaptureFailed, "capture failed: "+strings.Join(parts, "; "))
	}
	return extracted, nil
}

func tokenToString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}
