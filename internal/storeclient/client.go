// Package storeclient is the judging service's side of the callback contract with the
// submission store.
package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/logger"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

var tracer = otel.Tracer("github.com/Ashutoshbind15/dev-iterate-sub000/internal/storeclient")

const (
	PathTestCases         = "/coding/testcases/"
	PathSubmissionRunning = "/coding/submission-running/"
	PathSubmissionResult  = "/coding/submission-result/"
)

// The store does not know the question or submission
var ErrNotFound = errors.New("not found in submission store")

type StatusError struct {
	Path       string
	Body       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("store %s returned %d: %s", e.Path, e.StatusCode, e.Body)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	// Retries for reads. Result reports are sent once.
	RetryMax int
}

type Client struct {
	reads   *retryablehttp.Client
	writes  *retryablehttp.Client
	baseURL string
	timeout time.Duration
}

func newHTTPClient(retryMax int) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 100 * time.Millisecond
	c.RetryWaitMax = time.Second
	c.Logger = logger.Logger
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return c
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		reads:   newHTTPClient(cfg.RetryMax),
		writes:  newHTTPClient(0),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
	}
}

func (c *Client) post(
	ctx context.Context,
	httpClient *retryablehttp.Client,
	path string,
	body any,
	out any,
) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, raw)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Path: path, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(text))}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("malformed store response from %s: %w", path, err)
	}

	return nil
}

// FetchTestCases returns the question's judging settings and its test cases.
// ErrNotFound when the question does not exist.
func (c *Client) FetchTestCases(ctx context.Context, questionID string) (*types.TestCasesResponse, error) {
	ctx, span := tracer.Start(ctx, "Client.FetchTestCases", trace.WithAttributes(
		attribute.String("questionID", questionID),
	))
	defer span.End()

	out := &types.TestCasesResponse{}
	err := c.post(ctx, c.reads, PathTestCases, types.TestCasesRequest{QuestionID: questionID}, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch test cases")
		return nil, err
	}

	span.SetAttributes(attribute.Int("testCases", len(out.TestCases)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "fetched test cases")
	return out, nil
}

func (c *Client) MarkRunning(ctx context.Context, running types.SubmissionRunning) error {
	ctx, span := tracer.Start(ctx, "Client.MarkRunning", trace.WithAttributes(
		attribute.String("submissionID", running.SubmissionID),
	))
	defer span.End()

	if err := c.post(ctx, c.reads, PathSubmissionRunning, running, &types.OK{}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to mark running")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "marked running")
	return nil
}

// ReportResult sends the final result once. Callers log a failure, there is no retry.
func (c *Client) ReportResult(ctx context.Context, result types.SubmissionResult) error {
	ctx, span := tracer.Start(ctx, "Client.ReportResult", trace.WithAttributes(
		attribute.String("submissionID", result.SubmissionID),
		attribute.String("status", string(result.Status)),
	))
	defer span.End()

	if err := c.post(ctx, c.writes, PathSubmissionResult, result, &types.OK{}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to report result")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "reported result")
	return nil
}
