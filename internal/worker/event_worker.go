// Package worker persists tour lifecycle messages consumed from the broker.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// EventStore is the part of the SQLite repository the worker writes to.
type EventStore interface {
	AppendEvent(ctx context.Context, e storage.TourEvent) (bool, error)
	CountByType(ctx context.Context, typ core.LifecycleType) (map[string]int, error)
}

// EventWorker appends lifecycle messages to the event log. Redelivered
// messages are recognised by id and counted as duplicates.
type EventWorker struct {
	store  EventStore
	logger *slog.Logger

	stored     atomic.Int64
	duplicates atomic.Int64
}

func NewEventWorker(store EventStore, logger *slog.Logger) *EventWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventWorker{store: store, logger: logger}
}

// HandleLifecycle is an amqp.Handler. A storage failure is returned so the
// message is requeued.
func (w *EventWorker) HandleLifecycle(ctx context.Context, msg *amqp.LifecycleMessage) error {
	inserted, err := w.store.AppendEvent(ctx, storage.TourEvent{
		MessageID:  msg.ID,
		User:       msg.User,
		Type:       msg.Type,
		TourID:     msg.TourID,
		StepID:     msg.StepID,
		StepIndex:  msg.StepIndex,
		OccurredAt: msg.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("append event %s: %w", msg.ID, err)
	}
	if !inserted {
		w.duplicates.Add(1)
		w.logger.DebugContext(ctx, "Duplicate lifecycle message", "message_id", msg.ID)
		return nil
	}
	w.stored.Add(1)
	w.logger.DebugContext(ctx, "Stored lifecycle event",
		"message_id", msg.ID,
		"user", msg.User,
		"type", msg.Type,
		"tour_id", msg.TourID)
	return nil
}

type Stats struct {
	Stored     int64
	Duplicates int64
	// Completed and Skipped count persisted events per tour.
	Completed map[string]int
	Skipped   map[string]int
}

func (w *EventWorker) Stats(ctx context.Context) (Stats, error) {
	s := Stats{Stored: w.stored.Load(), Duplicates: w.duplicates.Load()}
	var err error
	if s.Completed, err = w.store.CountByType(ctx, core.EventCompleted); err != nil {
		return s, err
	}
	if s.Skipped, err = w.store.CountByType(ctx, core.EventSkipped); err != nil {
		return s, err
	}
	return s, nil
}

// ReportStats logs Stats every interval until ctx is done.
func (w *EventWorker) ReportStats(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s, err := w.Stats(ctx)
			if err != nil {
				w.logger.WarnContext(ctx, "Failed to read tour stats", "error", err)
				continue
			}
			w.logger.InfoContext(ctx, "Tour event stats",
				"stored", s.Stored,
				"duplicates", s.Duplicates,
				"completed", s.Completed,
				"skipped", s.Skipped)
		}
	}
}
