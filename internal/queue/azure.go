package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type AzureConfig struct {
	AccountName string
	AccountKey  string
	ServiceURL  string
	QueueName   string
	// How long Dequeue sleeps when the queue is empty. Defaults to 30s.
	EmptyPollInterval time.Duration
}

// Azure storage queue backed queuer
type AzureQueuer struct {
	az                *azqueue.QueueClient
	emptyPollInterval time.Duration
}

var _ Queuer = (*AzureQueuer)(nil)

func NewAzureQueuer(cfg AzureConfig) (*AzureQueuer, error) {
	cred, err := azqueue.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, err
	}
	serviceClient, err := azqueue.NewServiceClientWithSharedKeyCredential(
		cfg.ServiceURL,
		cred,
		&azqueue.ClientOptions{
			ClientOptions: policy.ClientOptions{
				Retry: policy.RetryOptions{
					MaxRetries: 5,
					RetryDelay: 500 * time.Millisecond,
				},
			},
		},
	)
	if err != nil {
		return nil, err
	}

	interval := cfg.EmptyPollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &AzureQueuer{
		az:                serviceClient.NewQueueClient(cfg.QueueName),
		emptyPollInterval: interval,
	}, nil
}

// Creates the queue, an existing queue is not an error
func (q *AzureQueuer) Ensure(ctx context.Context) error {
	_, err := q.az.Create(ctx, nil)
	if err != nil && !isQueueAlreadyExists(err) {
		return err
	}
	return nil
}

func isQueueAlreadyExists(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists"
}

func (q *AzureQueuer) Enqueue(ctx context.Context, message any) error {
	ctx, span := tracer.Start(ctx, "Azure.Enqueue")
	defer span.End()

	msgJSON, err := json.Marshal(message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal message")
		return err
	}

	span.AddEvent("serialized_message", trace.WithAttributes(
		attribute.Int("message.bytes", len(msgJSON)),
	))

	_, err = q.az.EnqueueMessage(ctx, string(msgJSON), &azqueue.EnqueueMessageOptions{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to enqueue message")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "enqueued message")
	return nil
}

// blocks until one message is visible or ctx is done
func (q *AzureQueuer) nextMessage(
	ctx context.Context,
	visibility int32,
) (*azqueue.DequeuedMessage, error) {
	for {
		resp, err := q.az.DequeueMessage(ctx, &azqueue.DequeueMessageOptions{
			VisibilityTimeout: &visibility,
		})
		if err != nil {
			return nil, err
		}

		switch len(resp.Messages) {
		case 1:
			return resp.Messages[0], nil
		case 0:
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(q.emptyPollInterval):
			}
		default:
			return nil, fmt.Errorf("unexpected number of messages: %d", len(resp.Messages))
		}
	}
}

func (q *AzureQueuer) Dequeue(
	ctx context.Context,
	timeout time.Duration,
	handler MessageHandler,
) error {
	ctx, span := tracer.Start(ctx, "Azure.Dequeue", trace.WithAttributes(
		attribute.Int64("timeoutSecs", int64(timeout.Seconds())),
	))
	defer span.End()

	// the extra seconds let the handler wind down before the message becomes visible again
	visibility := int32(timeout.Seconds()) + 5

	msg, err := q.nextMessage(ctx, visibility)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to dequeue message")
		return err
	}

	span.AddEvent("got_message", trace.WithAttributes(
		attribute.String("messageID", *msg.MessageID),
		attribute.Int64("dequeueCount", derefInt64(msg.DequeueCount)),
	))

	handlerCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err = handler.Handle(handlerCtx, []byte(*msg.MessageText))
	if err != nil {
		var pe *PoisonError
		if !errors.As(err, &pe) {
			// left in place, it reappears once the visibility timeout lapses
			span.AddEvent("failed_message_handler", trace.WithAttributes(
				attribute.String("error", err.Error()),
			))
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "dequeued message but failed to handle")
			return nil
		}
		span.AddEvent("poisoned_message", trace.WithAttributes(
			attribute.String("error", err.Error()),
		))
	}

	_, err = q.az.DeleteMessage(ctx, *msg.MessageID, *msg.PopReceipt, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove message")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "dequeued message")
	return nil
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
