package models

import "time"

// EpisodeOutcome records how a lock episode ended.
type EpisodeOutcome string

const (
	EpisodeOpen         EpisodeOutcome = "open"
	EpisodeRecovered    EpisodeOutcome = "recovered"
	EpisodeCleared      EpisodeOutcome = "cleared"
	EpisodeContentEnded EpisodeOutcome = "content_ended"
	EpisodeTornDown     EpisodeOutcome = "torn_down"
)

// Episode is one non-compliance window, from the grace period opening until
// the engine is unlocked again. Only episodes are persisted; live state is
// never stored.
type Episode struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	ContentID string         `json:"content_id,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	WarnedAt  *time.Time     `json:"warned_at,omitempty"`
	LockedAt  *time.Time     `json:"locked_at,omitempty"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
	PeakPhase Phase          `json:"peak_phase"`
	Outcome   EpisodeOutcome `json:"outcome"`
	Cohort    []string       `json:"cohort,omitempty"`
}

// Locked reports whether playback was halted during the episode.
func (e Episode) Locked() bool {
	return e.LockedAt != nil
}

// Duration is how long the episode lasted, or zero while open.
func (e Episode) Duration() time.Duration {
	if e.EndedAt == nil {
		return 0
	}
	return e.EndedAt.Sub(e.StartedAt)
}
