package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so stores
// can apply different retention.
type EventCategory string

const (
	// CategoryGovernance covers playback gating decisions: locks, releases
	// and the warnings leading up to them.
	CategoryGovernance EventCategory = "governance"

	// CategoryOperations covers session lifecycle and configuration changes.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	SessionID string
	// Subject is the entity acted on: a participant id, content id or the
	// session itself.
	Subject string
	Action  string
	Reason  string
	// Participants lists everyone the action applies to, e.g. the lock
	// cohort.
	Participants []string
	RequestID    string
}

type AuditEvent string

const (
	// Session events
	EventSessionConfigured AuditEvent = "session_configured"
	EventSessionTornDown   AuditEvent = "session_torn_down"
	EventRosterUpdated     AuditEvent = "roster_updated"

	// Content events
	EventContentStarted AuditEvent = "content_started"
	EventContentEnded   AuditEvent = "content_ended"

	// Governance events
	EventGraceStarted     AuditEvent = "governance_grace_started"
	EventWarningIssued    AuditEvent = "governance_warning_issued"
	EventLockTriggered    AuditEvent = "governance_lock_triggered"
	EventChallengeStarted AuditEvent = "governance_challenge_started"
	EventChallengeFailed  AuditEvent = "governance_challenge_failed"
	EventLockReleased     AuditEvent = "governance_lock_released"
	EventPlaybackResumed  AuditEvent = "governance_playback_resumed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventGraceStarted:     CategoryGovernance,
	EventWarningIssued:    CategoryGovernance,
	EventLockTriggered:    CategoryGovernance,
	EventChallengeStarted: CategoryGovernance,
	EventChallengeFailed:  CategoryGovernance,
	EventLockReleased:     CategoryGovernance,
	EventPlaybackResumed:  CategoryGovernance,

	EventSessionConfigured: CategoryOperations,
	EventSessionTornDown:   CategoryOperations,
	EventRosterUpdated:     CategoryOperations,
	EventContentStarted:    CategoryOperations,
	EventContentEnded:      CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySession(ctx context.Context, sessionID string) ([]Event, error)
}
