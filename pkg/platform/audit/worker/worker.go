package worker

import (
	"context"
	"log/slog"

	audit "pulsegate/pkg/platform/audit"
)

// Worker consumes audit events from a channel and persists them. A failed
// append is logged and the event dropped; audit never blocks governance.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run persists events until ctx ends or the inbox is closed and drained.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.WarnContext(ctx, "failed to persist audit event",
					"action", event.Action,
					"session_id", event.SessionID,
					"error", err,
				)
			}
		}
	}
}
