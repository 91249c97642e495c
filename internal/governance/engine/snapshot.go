package engine

import (
	"slices"
	"time"

	"pulsegate/internal/governance/models"
)

// buildSnapshot projects the current state for the rendering layer. Must
// hold mu.
func (e *Engine) buildSnapshot(now time.Time) models.Snapshot {
	s := e.state
	v := e.view(now, e.requirements)

	snap := models.Snapshot{
		Status:            s.Phase,
		Seq:               s.Seq,
		PhaseEnteredAt:    s.PhaseEnteredAt,
		PlaybackPermitted: s.Phase.PlaybackPermitted(),
		Blocking:          []string{},
		LockRows:          make([]models.LockRow, 0, len(e.requirements)),
		EvaluatedAt:       now,
	}
	if s.Phase.HasDeadline() && s.Deadline != nil {
		d := *s.Deadline
		snap.Deadline = &d
	}
	if s.Content != nil {
		c := *s.Content
		c.Labels = slices.Clone(s.Content.Labels)
		snap.Content = &c
	}

	for _, req := range e.requirements {
		row := models.LockRow{
			ParticipantID:   req.ParticipantID,
			DisplayName:     req.DisplayName,
			TargetZoneID:    req.TargetZoneID,
			TargetZoneLabel: req.TargetZoneLabel,
			RuleLabel:       req.RuleLabel,
			Deadline:        req.Deadline,
			SatisfiedOnce:   req.SatisfiedOnce,
			Shell:           req.Shell,
		}
		if z, ok := e.catalog.Resolve(req.TargetZoneID); ok {
			row.TargetZoneColor = z.Color
		}
		if !req.Shell {
			st := v.standings[req.ParticipantID]
			row.IsOffender = s.Offenders.Has(req.ParticipantID)
			if st.fresh && st.reading.HasZone() {
				row.CurrentZoneID = st.reading.ZoneID
				if z, ok := e.catalog.Resolve(st.reading.ZoneID); ok {
					row.CurrentZoneLabel = z.Name
				}
				row.HeartRate = st.reading.HeartRate
			}
			if s.LockCohort.Has(req.ParticipantID) {
				row.ChallengeProgress = s.ChallengeCounters[req.ParticipantID]
				row.ChallengeTarget = e.rule.ChallengeHoldTicks
			}
			if e.blocks(req.ParticipantID, st) {
				snap.Blocking = append(snap.Blocking, req.ParticipantID)
			}
		}
		snap.LockRows = append(snap.LockRows, row)
	}
	slices.Sort(snap.Blocking)
	return snap
}

// blocks reports whether a participant is currently holding playback back.
// Must hold mu.
func (e *Engine) blocks(participantID string, st standing) bool {
	switch e.state.Phase {
	case models.PhaseGrace:
		return !st.compliant
	case models.PhaseWarning, models.PhaseLocked:
		return e.state.Offenders.Has(participantID) || e.state.LockCohort.Has(participantID)
	case models.PhaseChallenge:
		return e.state.LockCohort.Has(participantID) &&
			e.state.ChallengeCounters[participantID] < e.rule.ChallengeHoldTicks
	}
	return false
}

func cloneSnapshot(s models.Snapshot) models.Snapshot {
	out := s
	out.Blocking = slices.Clone(s.Blocking)
	out.LockRows = slices.Clone(s.LockRows)
	for i := range out.LockRows {
		if d := out.LockRows[i].Deadline; d != nil {
			dd := *d
			out.LockRows[i].Deadline = &dd
		}
	}
	if s.Deadline != nil {
		d := *s.Deadline
		out.Deadline = &d
	}
	if s.Content != nil {
		c := *s.Content
		c.Labels = slices.Clone(s.Content.Labels)
		out.Content = &c
	}
	return out
}
