package coordinator

import (
	"context"

	"github.com/rs/zerolog"
)

// Loop is the single-threaded notification pump: one notification is fully
// processed, side effects included, before the next is dequeued. There is no
// preemption and no concurrent reconciliation.
type Loop struct {
	logger zerolog.Logger
	c      *Coordinator
	ch     chan NotificationKind
}

// NewLoop creates a notification loop with the given queue depth.
func NewLoop(logger zerolog.Logger, c *Coordinator, buffer int) *Loop {
	return &Loop{
		logger: logger.With().Str("component", "event-loop").Logger(),
		c:      c,
		ch:     make(chan NotificationKind, buffer),
	}
}

// Notify enqueues a notification. It blocks when the queue is full, which
// backpressures the delivery substrate rather than dropping events.
func (l *Loop) Notify(kind NotificationKind) {
	l.ch <- kind
}

// Run processes notifications in arrival order until the context is done.
// Handler errors are logged and do not stop the loop; the next notification
// recomputes from current state anyway.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("event loop stopped")
			return ctx.Err()
		case kind := <-l.ch:
			if err := l.c.Handle(kind); err != nil {
				l.logger.Error().Err(err).Str("kind", string(kind)).Msg("notification handling failed")
			}
		}
	}
}
