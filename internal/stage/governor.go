package stage

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/franky-devOps/eventbridge-etl/internal/messaging"
)

// Governor bounds how many invocations of a stage run at once. One
// upload can fan out into many transform and load invocations; the
// ceiling protects the store and the job execution service. The
// observer is deliberately never placed behind a Governor.
type Governor struct {
	sem *semaphore.Weighted
}

// NewGovernor creates a Governor with the given ceiling. A limit of
// zero or less means unbounded.
func NewGovernor(limit int) *Governor {
	if limit <= 0 {
		return &Governor{}
	}
	return &Governor{sem: semaphore.NewWeighted(int64(limit))}
}

// Wrap returns a handler that runs h under the ceiling, blocking until
// a slot frees up or ctx is cancelled.
func (g *Governor) Wrap(h messaging.MessageHandler) messaging.MessageHandler {
	if g == nil || g.sem == nil {
		return h
	}
	return func(ctx context.Context, msg *messaging.Message) error {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer g.sem.Release(1)
		return h(ctx, msg)
	}
}
