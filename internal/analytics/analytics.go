// Package analytics builds the lifecycle callbacks handed to tour machines.
// Callbacks run right after each state transition, so none of them may block.
package analytics

import (
	"context"
	"log/slog"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/tour"
)

const publishTimeout = 5 * time.Second

// Publisher is the slice of the AMQP client used here.
type Publisher interface {
	PublishLifecycle(ctx context.Context, msg *amqp.LifecycleMessage) error
}

// Log returns a callback that writes each event to logger.
func Log(logger *slog.Logger, user string) tour.AnalyticsFunc {
	return func(e core.LifecycleEvent) {
		attrs := []any{"user", user, "type", e.Type, "tour_id", e.TourID}
		if e.StepIndex != nil {
			attrs = append(attrs, "step_id", e.StepID, "step_index", *e.StepIndex)
		}
		logger.Info("Tour lifecycle", attrs...)
	}
}

// AMQP returns a fire-and-forget callback publishing each event. Publish
// runs on its own goroutine; failures are logged and dropped.
func AMQP(pub Publisher, user string, logger *slog.Logger) tour.AnalyticsFunc {
	return func(e core.LifecycleEvent) {
		msg := amqp.NewLifecycleMessage(user, e)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			if err := pub.PublishLifecycle(ctx, msg); err != nil {
				logger.Warn("Lifecycle publish failed", "message_id", msg.ID, "tour_id", msg.TourID, "error", err)
			}
		}()
	}
}

// FanOut calls every non-nil callback in order.
func FanOut(callbacks ...tour.AnalyticsFunc) tour.AnalyticsFunc {
	live := make([]tour.AnalyticsFunc, 0, len(callbacks))
	for _, cb := range callbacks {
		if cb != nil {
			live = append(live, cb)
		}
	}
	return func(e core.LifecycleEvent) {
		for _, cb := range live {
			cb(e)
		}
	}
}
