package handler

import "pulsegate/internal/governance/models"

// StartContentResponse reports whether the item is governed and the
// resulting lock screen.
type StartContentResponse struct {
	Governed bool            `json:"governed"`
	Snapshot models.Snapshot `json:"snapshot"`
}

// TelemetryResponse echoes the reading the sample produced.
type TelemetryResponse struct {
	ParticipantID string `json:"participant_id"`
	HeartRate     int    `json:"heart_rate"`
	ZoneID        string `json:"zone_id,omitempty"`
}

// SessionListResponse lists the sessions a node owns.
type SessionListResponse[T any] struct {
	Sessions []T `json:"sessions"`
}

// EpisodeListResponse lists a session's lock episodes.
type EpisodeListResponse struct {
	Episodes []models.Episode `json:"episodes"`
}
