package handler

import (
	"strings"
	"time"

	"pulsegate/internal/governance/models"
	dErrors "pulsegate/pkg/domain-errors"
)

const maxContentLabels = 64

// StartContentRequest is the body of POST .../content.
type StartContentRequest struct {
	ID     string   `json:"id"`
	Title  string   `json:"title,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

// Validate trims and checks the request.
func (r *StartContentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.ID = strings.TrimSpace(r.ID)
	if r.ID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	if len(r.Labels) > maxContentLabels {
		return dErrors.New(dErrors.CodeInvalidInput, "too many labels")
	}
	return nil
}

func (r *StartContentRequest) item() models.ContentItem {
	return models.ContentItem{ID: r.ID, Title: r.Title, Labels: r.Labels}
}

// UpdateRosterRequest is the body of PUT .../roster.
type UpdateRosterRequest struct {
	Participants models.Roster `json:"participants"`
}

// Validate checks the request. Roster rules themselves are enforced by
// the engine.
func (r *UpdateRosterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Participants == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "participants is required")
	}
	return nil
}

// TelemetryRequest is the body of POST .../telemetry.
type TelemetryRequest struct {
	ParticipantID string `json:"participant_id"`
	HeartRate     int    `json:"heart_rate"`
	// TimestampMs is the sample time in Unix milliseconds. Zero means now.
	TimestampMs int64 `json:"timestamp_ms,omitempty"`
}

// Validate trims and checks the request.
func (r *TelemetryRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.ParticipantID = strings.TrimSpace(r.ParticipantID)
	if r.ParticipantID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "participant_id is required")
	}
	if !models.ValidHeartRate(r.HeartRate) {
		return dErrors.New(dErrors.CodeInvalidInput, "heart_rate out of range")
	}
	if r.TimestampMs < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "timestamp_ms cannot be negative")
	}
	return nil
}

func (r *TelemetryRequest) at() time.Time {
	if r.TimestampMs == 0 {
		return time.Time{}
	}
	return time.UnixMilli(r.TimestampMs).UTC()
}
