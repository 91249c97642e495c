package models

import "time"

// LockRow is one line of the lock screen: a participant (or the shell
// requirement) and what they must reach.
type LockRow struct {
	ParticipantID     string     `json:"participant_id"`
	DisplayName       string     `json:"display_name"`
	TargetZoneID      string     `json:"target_zone_id"`
	TargetZoneLabel   string     `json:"target_zone_label"`
	TargetZoneColor   string     `json:"target_zone_color,omitempty"`
	RuleLabel         string     `json:"rule_label,omitempty"`
	Deadline          *time.Time `json:"deadline"`
	SatisfiedOnce     bool       `json:"satisfied_once"`
	IsOffender        bool       `json:"is_offender"`
	CurrentZoneID     string     `json:"current_zone_id,omitempty"`
	CurrentZoneLabel  string     `json:"current_zone_label,omitempty"`
	HeartRate         int        `json:"heart_rate,omitempty"`
	ChallengeProgress int        `json:"challenge_progress,omitempty"`
	ChallengeTarget   int        `json:"challenge_target,omitempty"`
	Shell             bool       `json:"shell,omitempty"`
}

// Snapshot is the read-only projection consumed by the rendering layer.
type Snapshot struct {
	Status            Phase      `json:"status"`
	Seq               uint64     `json:"seq"`
	PhaseEnteredAt    time.Time  `json:"phase_entered_at"`
	Deadline          *time.Time `json:"deadline"`
	PlaybackPermitted bool       `json:"playback_permitted"`
	// Blocking lists the participants currently keeping playback blocked.
	Blocking    []string     `json:"blocking"`
	LockRows    []LockRow    `json:"lock_rows"`
	Content     *ContentItem `json:"content,omitempty"`
	EvaluatedAt time.Time    `json:"evaluated_at"`
}

// Offenders returns rows flagged as offenders.
func (s Snapshot) Offenders() []LockRow {
	var out []LockRow
	for _, r := range s.LockRows {
		if r.IsOffender {
			out = append(out, r)
		}
	}
	return out
}
