package engine

import (
	"time"

	"pulsegate/internal/governance/models"
	"pulsegate/internal/governance/requirement"
	"pulsegate/internal/governance/zones"
)

// maxSteps bounds the fixed-point loop. Every phase can be left at most once
// per evaluation, so this is never reached with a consistent table.
const maxSteps = 8

// standing is one participant's compliance on this evaluation.
type standing struct {
	requirement models.Requirement
	reading     models.Reading
	fresh       bool
	rank        int
	compliant   bool
}

// view is the compliance picture the transition table reads.
type view struct {
	requirements []models.Requirement
	standings    map[string]standing
	// allCompliant is false for an empty roster.
	allCompliant bool
}

func (v view) nonCompliant() []string {
	var out []string
	for _, req := range v.requirements {
		if req.Shell {
			continue
		}
		if !v.standings[req.ParticipantID].compliant {
			out = append(out, req.ParticipantID)
		}
	}
	return out
}

// step applies the transition table until the phase stops changing. Must
// hold mu.
func (e *Engine) step(now time.Time) []models.Transition {
	var out []models.Transition
	var v view
	for range maxSteps {
		e.requirements = e.resolve(e.requirements)
		v = e.view(now, e.requirements)
		e.trackHolds(now, v)

		from := e.state.Phase
		reason, moved := e.next(now, v)
		e.refreshOffenders(v)
		if !moved {
			break
		}
		out = append(out, e.transition(from, now, reason))
	}
	return out
}

// next evaluates one row of the transition table. Must hold mu.
func (e *Engine) next(now time.Time, v view) (string, bool) {
	s := &e.state
	switch s.Phase {
	case models.PhaseUnlocked:
		if s.ContentActive && !v.allCompliant {
			e.openEpisode(now)
			return models.ReasonEpisodeOpened, true
		}
	case models.PhaseGrace:
		if v.allCompliant {
			e.resetToUnlocked(now)
			return models.ReasonAllCompliant, true
		}
		if deadlinePassed(s.Deadline, now) {
			e.enter(models.PhaseWarning, now)
			deadline := now.Add(e.rule.WarningPeriod)
			s.Deadline = &deadline
			return models.ReasonGraceExpired, true
		}
	case models.PhaseWarning:
		if v.allCompliant {
			e.resetToUnlocked(now)
			return models.ReasonAllCompliant, true
		}
		if deadlinePassed(s.Deadline, now) {
			e.enter(models.PhaseLocked, now)
			s.Deadline = nil
			s.LockCohort = models.NewIDSet(v.nonCompliant()...)
			return models.ReasonWarningExpired, true
		}
	case models.PhaseLocked:
		e.joinCohort(v)
		if v.allCompliant {
			e.enter(models.PhaseChallenge, now)
			return models.ReasonCohortRecovered, true
		}
	case models.PhaseChallenge:
		if !v.allCompliant {
			e.joinCohort(v)
			e.enter(models.PhaseLocked, now)
			return models.ReasonHoldBroken, true
		}
		if e.holdComplete() {
			e.resetToUnlocked(now)
			return models.ReasonHoldComplete, true
		}
	}
	return "", false
}

func deadlinePassed(deadline *time.Time, now time.Time) bool {
	return deadline != nil && !now.Before(*deadline)
}

// enter switches phase. Must hold mu.
func (e *Engine) enter(phase models.Phase, now time.Time) {
	e.state.Phase = phase
	e.state.PhaseEnteredAt = now
}

// openEpisode starts a fresh grace window. Must hold mu.
func (e *Engine) openEpisode(now time.Time) {
	e.enter(models.PhaseGrace, now)
	deadline := now.Add(e.rule.GracePeriod)
	e.state.Deadline = &deadline
	e.state.EpisodeStartedAt = now
	e.state.LockCohort = models.IDSet{}
	e.state.ChallengeCounters = map[string]int{}
	e.state.ChallengeTicks = map[string]time.Time{}
	e.requirements = nil
}

// resetToUnlocked ends the episode. satisfiedOnce starts over with the next
// one. Must hold mu.
func (e *Engine) resetToUnlocked(now time.Time) {
	e.enter(models.PhaseUnlocked, now)
	e.state.Deadline = nil
	e.state.EpisodeStartedAt = time.Time{}
	e.state.Offenders = models.IDSet{}
	e.state.LockCohort = models.IDSet{}
	e.state.ChallengeCounters = map[string]int{}
	e.state.ChallengeTicks = map[string]time.Time{}
	e.requirements = nil
}

// joinCohort adds anyone currently failing to the lock cohort. Must hold mu.
func (e *Engine) joinCohort(v view) {
	for _, id := range v.nonCompliant() {
		e.state.LockCohort[id] = struct{}{}
	}
}

// trackHolds maintains the sustained-hold counters while locked or in
// challenge. A member's counter is the number of ticks since their current
// compliant hold began, inclusive, so evaluating twice at the same instant
// never advances it. Members who leave the active roster leave the cohort.
// Must hold mu.
func (e *Engine) trackHolds(now time.Time, v view) {
	s := &e.state
	if s.Phase != models.PhaseLocked && s.Phase != models.PhaseChallenge {
		return
	}
	for id := range s.LockCohort {
		st, ok := v.standings[id]
		if !ok {
			delete(s.LockCohort, id)
			delete(s.ChallengeCounters, id)
			delete(s.ChallengeTicks, id)
			continue
		}
		if !st.compliant {
			delete(s.ChallengeTicks, id)
			s.ChallengeCounters[id] = 0
			continue
		}
		began, ok := s.ChallengeTicks[id]
		if !ok || now.Before(began) {
			began = now
			s.ChallengeTicks[id] = began
		}
		s.ChallengeCounters[id] = int(now.Sub(began)/e.cfg.TickInterval) + 1
	}
}

// holdComplete reports whether every cohort member has held long enough.
// Must hold mu.
func (e *Engine) holdComplete() bool {
	for id := range e.state.LockCohort {
		if e.state.ChallengeCounters[id] < e.rule.ChallengeHoldTicks {
			return false
		}
	}
	return true
}

// refreshOffenders recomputes the offender set: participants failing their
// requirement while the phase tracks offenders. Must hold mu.
func (e *Engine) refreshOffenders(v view) {
	if !e.state.Phase.TracksOffenders() {
		e.state.Offenders = models.IDSet{}
		return
	}
	e.state.Offenders = models.NewIDSet(v.nonCompliant()...)
}

func (e *Engine) transition(from models.Phase, now time.Time, reason string) models.Transition {
	return models.Transition{
		From:      from,
		To:        e.state.Phase,
		At:        now,
		Seq:       e.state.Seq,
		Offenders: e.state.Offenders.Sorted(),
		Cohort:    e.state.LockCohort.Sorted(),
		Reason:    reason,
	}
}

// resolve computes this tick's requirements. Must hold mu.
func (e *Engine) resolve(previous []models.Requirement) []models.Requirement {
	since := e.state.EpisodeStartedAt
	if since.IsZero() {
		since = e.state.PhaseEnteredAt
	}
	var deadline *time.Time
	if e.state.Phase.HasDeadline() {
		deadline = e.state.Deadline
	}
	return e.resolver.Resolve(requirement.Input{
		Rule:         e.rule,
		Roster:       e.inputs.Roster,
		Profiles:     e.inputs.Profiles,
		Catalog:      e.catalog,
		Previous:     previous,
		EpisodeStart: since,
		Deadline:     deadline,
	})
}

// view scores every requirement against live telemetry. Missing or stale
// readings rank below every zone.
func (e *Engine) view(now time.Time, reqs []models.Requirement) view {
	v := view{
		requirements: reqs,
		standings:    make(map[string]standing, len(reqs)),
		allCompliant: len(reqs) > 0,
	}
	for _, req := range reqs {
		if req.Shell {
			v.allCompliant = false
			continue
		}
		st := standing{requirement: req, rank: zones.UnknownRank}
		if e.inputs.Profiles != nil {
			if reading, ok := e.inputs.Profiles.Latest(req.ParticipantID); ok {
				st.reading = reading
				st.fresh = now.Sub(reading.At) <= e.cfg.StaleAfter
				if st.fresh && reading.HasZone() {
					st.rank = e.catalog.Rank(reading.ZoneID)
				}
			}
		}
		st.compliant = req.TargetZoneRank >= 0 && st.rank >= req.TargetZoneRank
		if !st.compliant {
			v.allCompliant = false
		}
		v.standings[req.ParticipantID] = st
	}
	return v
}
