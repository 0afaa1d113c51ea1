package cmds

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/worker/internal/common"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/worker/internal/forward"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/queue"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/workererrors"
)

var (
	queueBackend   string
	webhookURL     string
	webhookAuth    string
	consumers      int
	once           bool
	handlerTimeout time.Duration
	retryMax       int
)

// remembers the last handler outcome so --once can report it
type recordingHandler struct {
	next queue.MessageHandler
	mu   sync.Mutex
	err  error
}

func (r *recordingHandler) Handle(ctx context.Context, message []byte) error {
	err := r.next.Handle(ctx, message)

	r.mu.Lock()
	r.err = err
	r.mu.Unlock()

	return err
}

func (r *recordingHandler) last() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func consume(ctx context.Context, id int, q queue.Queuer, handler queue.MessageHandler) error {
	for {
		err := q.Dequeue(ctx, handlerTimeout, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			workerLog.ErrorContext(ctx, "failed to dequeue", "consumer", id, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Forward queued analysis jobs to the analysis webhook",
	Long: `
- Malformed jobs and jobs the webhook rejects with a 4xx are dropped.
- Jobs that fail for any other reason stay queued and are delivered again.
- With --once a single job is handled, exiting 1 if it was not delivered.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "analyzeCmd")
		defer span.End()

		span.SetAttributes(
			attribute.String("queueBackend", queueBackend),
			attribute.Int("consumers", consumers),
			attribute.Bool("once", once),
		)

		target, err := common.GetTarget(webhookURL, webhookAuth)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid webhook")
			return workererrors.ExitErrorWrap(types.ExitUsage, err)
		}

		if queueBackend == common.BackendKafka && consumers > 1 {
			workerLog.WarnContext(ctx, "kafka consumers share one group reader, using a single consumer")
			consumers = 1
		}
		if consumers < 1 {
			consumers = 1
		}

		q, err := common.GetQueueClient(queueBackend)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to make queue")
			return workererrors.ExitErrorWrap(types.ExitUsage, err)
		}
		if closer, ok := q.(io.Closer); ok {
			defer func() {
				if err := closer.Close(); err != nil {
					workerLog.WarnContext(ctx, "failed to close queue", "error", err)
				}
			}()
		}

		handler := &recordingHandler{next: forward.New(target, retryMax, handlerTimeout)}

		workerLog.InfoContext(ctx, "forwarding analysis jobs",
			"queueBackend", queueBackend,
			"webhook", target.URL.Redacted(),
			"consumers", consumers,
			"once", once,
		)

		if once {
			if err := q.Dequeue(ctx, handlerTimeout, handler); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to dequeue")
				return err
			}

			var pe *queue.PoisonError
			if err := handler.last(); err != nil && !errors.As(err, &pe) {
				span.RecordError(err)
				span.SetStatus(codes.Error, "job not delivered")
				return workererrors.ExitErrorWrap(types.ExitErrored, err)
			}

			span.RecordError(nil)
			span.SetStatus(codes.Ok, "handled one job")
			return nil
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := range consumers {
			g.Go(func() error { return consume(gctx, i, q, handler) })
		}
		if err := g.Wait(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "consumer failed")
			return err
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "stopped forwarding")
		return nil
	},
}

func envOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func init() {
	analyzeCmd.Flags().StringVar(&queueBackend, "queue-backend", envOr("ANALYSIS_QUEUE_BACKEND", common.BackendAzure), "azure or kafka")
	analyzeCmd.Flags().StringVar(&webhookURL, "webhook-url", os.Getenv("ANALYSIS_WEBHOOK_URL"), "analysis webhook to post jobs to")
	analyzeCmd.Flags().StringVar(&webhookAuth, "webhook-basic-auth", os.Getenv("ANALYSIS_WEBHOOK_BASIC_AUTH"), "user:password for the webhook")
	analyzeCmd.Flags().IntVar(&consumers, "consumers", 1, "concurrent queue consumers")
	analyzeCmd.Flags().BoolVar(&once, "once", false, "handle a single job and exit")
	analyzeCmd.Flags().DurationVar(&handlerTimeout, "timeout", 2*time.Minute, "time allowed to deliver one job")
	analyzeCmd.Flags().IntVar(&retryMax, "retry-max", 3, "webhook retries before the job is left for redelivery")

	rootCmd.AddCommand(analyzeCmd)
}
