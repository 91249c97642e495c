// Package ports declares the stores and publishers the governance service
// depends on. Implementations live under internal/governance/store.
package ports

import (
	"context"
	"log/slog"

	"pulsegate/internal/governance/models"
	"pulsegate/pkg/attrs"
	"pulsegate/pkg/platform/audit"
	"pulsegate/pkg/requestcontext"
)

//go:generate mockgen -source=ports.go -destination=mocks/ports-mocks.go -package=mocks

// SnapshotStore keeps the latest snapshot per session so other devices can
// render the lock screen without talking to the engine.
type SnapshotStore interface {
	// Save replaces the session's latest snapshot. Older sequence numbers
	// must not overwrite newer ones.
	Save(ctx context.Context, sessionID string, snap models.Snapshot) error

	// Latest returns sentinel.ErrNotFound when nothing has been saved.
	Latest(ctx context.Context, sessionID string) (models.Snapshot, error)

	// Delete forgets the session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, sessionID string) error
}

// SnapshotPublisher fans a snapshot out to subscribers.
type SnapshotPublisher interface {
	Publish(ctx context.Context, sessionID string, snap models.Snapshot) error
}

// EpisodeStore persists lock episode history.
type EpisodeStore interface {
	// Save inserts or replaces an episode by id.
	Save(ctx context.Context, episode models.Episode) error

	// ListBySession returns a session's episodes oldest first.
	ListBySession(ctx context.Context, sessionID string) ([]models.Episode, error)
}

// AuditPublisher records governance audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LogAudit logs an audit event and emits it to the publisher when one is set.
// session_id, reason and participants attributes are lifted onto the event;
// the subject is participant_id, falling back to content_id.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.AuditEvent, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}
	args := append(attrList, "event", string(event), "log_type", "audit")

	if logger != nil {
		logger.InfoContext(ctx, string(event), args...)
	}
	if publisher == nil {
		return
	}
	err := publisher.Emit(ctx, audit.Event{
		Action:       string(event),
		SessionID:    attrs.ExtractString(attrList, "session_id"),
		Subject:      attrs.FirstString(attrList, "participant_id", "content_id"),
		Reason:       attrs.ExtractString(attrList, "reason"),
		Participants: attrs.ExtractStrings(attrList, "participants"),
		RequestID:    requestID,
	})
	if err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
