// Package watch fans submission changes out to the clients following them
package watch

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

var tracer = otel.Tracer("github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/watch")

// Updates buffered per subscriber before the oldest is dropped
const subscriberBuffer = 16

type Broker interface {
	Publish(ctx context.Context, submission types.Submission) error
	// Subscribe delivers every update published for the submission until cancel is called
	Subscribe(ctx context.Context, submissionID string) (updates <-chan types.Submission, cancel func(), err error)
}

// In process broker, enough for a single replica
type LocalBroker struct {
	subs map[string]map[chan types.Submission]struct{}
	mu   sync.Mutex
}

var _ Broker = (*LocalBroker)(nil)

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[chan types.Submission]struct{})}
}

func (b *LocalBroker) Publish(_ context.Context, submission types.Submission) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[submission.ID] {
		deliver(ch, submission)
	}
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, submissionID string) (<-chan types.Submission, func(), error) {
	ch := make(chan types.Submission, subscriberBuffer)

	b.mu.Lock()
	if b.subs[submissionID] == nil {
		b.subs[submissionID] = make(map[chan types.Submission]struct{})
	}
	b.subs[submissionID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			delete(b.subs[submissionID], ch)
			if len(b.subs[submissionID]) == 0 {
				delete(b.subs, submissionID)
			}
			close(ch)
		})
	}

	return ch, cancel, nil
}

// never blocks the publisher; a full subscriber loses its oldest update
func deliver(ch chan types.Submission, submission types.Submission) {
	for {
		select {
		case ch <- submission:
			return
		default:
		}

		select {
		case <-ch:
		default:
		}
	}
}
