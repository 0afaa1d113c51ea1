// Package queue carries analysis jobs from the store to the worker. Azure storage queues
// and Kafka topics are interchangeable behind Queuer.
package queue

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer(
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/queue",
)

//go:generate mockgen -destination ./mock/mock.go -package mock . Queuer,MessageHandler

type Queuer interface {
	// Enqueue serializes message as JSON and publishes it
	Enqueue(ctx context.Context, message any) error
	// Dequeue waits for one message and runs handler on it with the given timeout. A
	// handled or poisoned message is removed, any other handler error leaves it for
	// redelivery and is not returned.
	Dequeue(ctx context.Context, timeout time.Duration, handler MessageHandler) error
}

type MessageHandler interface {
	Handle(ctx context.Context, message []byte) error
}

// PoisonError marks a message that can never be handled. It is dropped.
type PoisonError struct {
	Err error
}

func (p PoisonError) Error() string {
	return fmt.Sprintf("poisoned message: %v", p.Err)
}

func (p PoisonError) Unwrap() error {
	return p.Err
}

func WrapPoisonError(err error) error {
	return &PoisonError{Err: err}
}
