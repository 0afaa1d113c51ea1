package taskrunner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/logger"
)

var tracer = otel.Tracer("github.com/Ashutoshbind15/dev-iterate-sub000/internal/taskrunner")

var ErrShutdownTimeout = errors.New("background tasks did not finish before shutdown deadline")

// Tracks fire and forget work so shutdown can wait on it
type Client struct {
	running sync.WaitGroup
	active  atomic.Int64
}

func Create() *Client {
	return &Client{}
}

// Number of tasks still running
func (c *Client) Active() int64 {
	return c.active.Load()
}

// Runs `task` on its own goroutine. The task's context keeps the caller's values and
// trace but is never cancelled, so it outlives the request that started it.
func (c *Client) Run(ctx context.Context, name string, task func(context.Context)) {
	c.running.Add(1)
	c.active.Add(1)
	go func() {
		defer c.running.Done()
		defer c.active.Add(-1)

		//nolint:govet // shadow: the task gets the span's context
		ctx, span := tracer.Start(ctx, "Run", trace.WithAttributes(
			attribute.String("task", name),
		))
		defer span.End()

		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("task %s panicked: %v", name, r)
				logger.Logger.ErrorContext(ctx, "background task panicked", "task", name, "error", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, "task panicked")
			}
		}()

		task(context.WithoutCancel(ctx))

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "ran task")
	}()
}

// Waits for running tasks or for ctx to be done, whichever comes first
func (c *Client) Shutdown(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Shutdown", trace.WithAttributes(
		attribute.Int64("active", c.Active()),
	))
	defer span.End()

	done := make(chan struct{})
	go func() {
		c.running.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		span.AddEvent("hit_timeout")
		span.RecordError(ErrShutdownTimeout)
		span.SetStatus(codes.Error, "tasks still running at deadline")
		return ErrShutdownTimeout
	case <-done:
		span.AddEvent("done")
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "finished shutting down")
		return nil
	}
}
