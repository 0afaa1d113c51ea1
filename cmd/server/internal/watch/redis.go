package watch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

const channelPrefix = "judgestore-submission-"

// Broker shared by every store replica through redis pub/sub
type RedisBroker struct {
	db *redis.Client
}

var _ Broker = (*RedisBroker)(nil)

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{db: client}
}

func (b *RedisBroker) Publish(ctx context.Context, submission types.Submission) error {
	ctx, span := tracer.Start(ctx, "RedisBroker.Publish", trace.WithAttributes(
		attribute.String("submissionID", submission.ID),
		attribute.String("status", string(submission.Status)),
	))
	defer span.End()

	raw, err := json.Marshal(submission)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal submission")
		return err
	}

	if err := b.db.Publish(ctx, channelPrefix+submission.ID, raw).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "published")
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, submissionID string) (<-chan types.Submission, func(), error) {
	pubsub := b.db.Subscribe(ctx, channelPrefix+submissionID)

	// wait for the subscription to be confirmed so no publish after this call is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan types.Submission, subscriberBuffer)
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)

		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				var submission types.Submission
				if err := json.Unmarshal([]byte(msg.Payload), &submission); err != nil {
					slog.Warn("dropping malformed watch update", "submissionID", submissionID, "error", err)
					continue
				}
				deliver(out, submission)
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
			wg.Wait()
		})
	}

	return out, cancel, nil
}
