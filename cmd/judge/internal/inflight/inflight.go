// Package inflight stops the same submission from being judged twice at once when the
// store re-dispatches it while a previous run is still going.
package inflight

import (
	"context"
	"sync"
)

type Guard interface {
	// Acquire claims the submission. False when another run already holds it.
	Acquire(ctx context.Context, submissionID string) (bool, error)
	Release(ctx context.Context, submissionID string) error
}

// Single process guard
type LocalGuard struct {
	held map[string]struct{}
	mu   sync.Mutex
}

var _ Guard = (*LocalGuard)(nil)

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{held: make(map[string]struct{})}
}

func (g *LocalGuard) Acquire(_ context.Context, submissionID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[submissionID]; ok {
		return false, nil
	}
	g.held[submissionID] = struct{}{}
	return true, nil
}

func (g *LocalGuard) Release(_ context.Context, submissionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.held, submissionID)
	return nil
}
