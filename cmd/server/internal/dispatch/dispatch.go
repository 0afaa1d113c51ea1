// Package dispatch hands a new submission to the judging service. A dispatch is sent
// once and never retried.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
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

var tracer = otel.Tracer("github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/dispatch")

const PathJudgeQuestion = "/v1/judge-question"

// Dispatch was not acknowledged. StatusCode is 0 when the judging service could not be reached.
type Error struct {
	Err        error
	Body       string
	StatusCode int
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("judging service unreachable: %v", e.Err)
	}
	return fmt.Sprintf("judging service returned %d: %s", e.StatusCode, e.Body)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Client struct {
	http    *retryablehttp.Client
	baseURL string
	timeout time.Duration
}

func New(baseURL string, timeout time.Duration) *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 0
	c.Logger = logger.Logger
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		http:    c,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

// Dispatch posts the judging request. Any non 2xx answer or transport failure is an *Error.
func (c *Client) Dispatch(ctx context.Context, req types.JudgeQuestion) (*types.JudgeQuestionResponse, error) {
	ctx, span := tracer.Start(ctx, "Client.Dispatch", trace.WithAttributes(
		attribute.String("submissionID", req.SubmissionID),
		attribute.String("questionID", req.QuestionID),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := json.Marshal(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal request")
		return nil, err
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathJudgeQuestion, raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build request")
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		dispatchErr := &Error{Err: err}
		span.RecordError(dispatchErr)
		span.SetStatus(codes.Error, "judging service unreachable")
		return nil, dispatchErr
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	span.SetAttributes(attribute.Int("statusCode", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		dispatchErr := &Error{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
		span.RecordError(dispatchErr)
		span.SetStatus(codes.Error, "dispatch rejected")
		return nil, dispatchErr
	}

	ack := &types.JudgeQuestionResponse{}
	if err := json.Unmarshal(body, ack); err != nil {
		// the status code is the acknowledgement, the body is informational
		span.AddEvent("unparseable_ack", trace.WithAttributes(attribute.String("error", err.Error())))
		ack = &types.JudgeQuestionResponse{Status: types.JudgeStatusAccepted, SubmissionID: req.SubmissionID}
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "dispatched")
	return ack, nil
}
