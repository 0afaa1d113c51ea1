// Package forward hands analysis jobs from the queue to the analysis webhook
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/logger"
	internalotel "github.com/Ashutoshbind15/dev-iterate-sub000/internal/otel"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/queue"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/workererrors"
)

var tracer = otel.Tracer("github.com/Ashutoshbind15/dev-iterate-sub000/worker/internal/forward")

type Target struct {
	URL      *url.URL
	Username string
	Password string
}

func (t *Target) makeRequestObject(ctx context.Context, payload []byte) (*retryablehttp.Request, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, t.URL.String(), payload)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if t.Username != "" || t.Password != "" {
		req.SetBasicAuth(t.Username, t.Password)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	return req, nil
}

// Forwarder is a queue.MessageHandler posting each analysis job to a webhook
type Forwarder struct {
	http   *retryablehttp.Client
	target Target
}

var _ queue.MessageHandler = (*Forwarder)(nil)

func New(target Target, retryMax int, timeout time.Duration) *Forwarder {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 250 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	c.HTTPClient.Timeout = timeout
	c.Logger = logger.Logger
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Forwarder{http: c, target: target}
}

// Handle delivers one job. Malformed jobs and permanent rejections are poisoned, anything
// else is returned so the queue redelivers the message.
func (f *Forwarder) Handle(ctx context.Context, message []byte) error {
	var job types.AnalysisJob
	if err := json.Unmarshal(message, &job); err != nil {
		logger.Logger.ErrorContext(ctx, "dropping malformed analysis job", "error", err)
		return queue.WrapPoisonError(fmt.Errorf("malformed analysis job: %w", err))
	}

	claimed := internalotel.ExtractMessage(context.Background(), job.TraceContext)
	ctx, span := tracer.Start(ctx, "Forwarder.Handle", trace.WithLinks(trace.LinkFromContext(claimed)),
		trace.WithAttributes(
			attribute.String("executionID", job.ExecutionID),
			attribute.String("userID", job.UserID),
			attribute.Int("submissions", len(job.Submissions)),
		))
	defer span.End()

	if job.ExecutionID == "" || job.UserID == "" {
		err := errors.New("analysis job without execution or user")
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid job")
		return queue.WrapPoisonError(err)
	}

	// trace context is internal plumbing, the webhook gets the job alone
	job.TraceContext = nil
	payload, err := json.Marshal(job)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal job")
		return queue.WrapPoisonError(err)
	}

	err = f.deliver(ctx, payload)
	var de workererrors.DeliveryError
	if errors.As(err, &de) && de.Permanent() {
		logger.Logger.ErrorContext(ctx, "webhook rejected analysis job",
			"executionID", job.ExecutionID, "status", de.StatusCode, "error", de.Err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook rejected job")
		return queue.WrapPoisonError(err)
	}
	if err != nil {
		logger.Logger.WarnContext(ctx, "analysis job will be redelivered", "executionID", job.ExecutionID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deliver job")
		return err
	}

	logger.Logger.InfoContext(ctx, "forwarded analysis job", "executionID", job.ExecutionID, "userID", job.UserID)
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "forwarded job")
	return nil
}

func (f *Forwarder) deliver(ctx context.Context, payload []byte) error {
	req, err := f.target.makeRequestObject(ctx, payload)
	if err != nil {
		return err
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return workererrors.DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		body = []byte{}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return workererrors.DeliveryError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("webhook answered: %s", bytes.TrimSpace(body)),
		}
	}

	return nil
}
