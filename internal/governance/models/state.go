package models

import (
	"maps"
	"slices"
	"time"
)

// IDSet is a set of participant ids.
type IDSet map[string]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Equal reports whether both sets hold the same ids.
func (s IDSet) Equal(o IDSet) bool {
	if len(s) != len(o) {
		return false
	}
	for id := range s {
		if _, ok := o[id]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the ids in lexical order.
func (s IDSet) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// Clone copies the set.
func (s IDSet) Clone() IDSet {
	return maps.Clone(s)
}

// State is the engine's own governance state. It is created at configure
// time and only mutated by evaluation.
type State struct {
	Phase          Phase
	PhaseEnteredAt time.Time
	// Deadline is set while in grace or warning.
	Deadline *time.Time
	// EpisodeStartedAt bounds "reached" history scans; zero outside an episode.
	EpisodeStartedAt time.Time
	// Offenders are participants failing their requirement in warning or locked.
	Offenders IDSet
	// LockCohort is frozen when the lock engages; members must clear the
	// challenge before playback resumes.
	LockCohort IDSet
	// ChallengeCounters holds consecutive compliant ticks per cohort member.
	ChallengeCounters map[string]int
	// ChallengeTicks remembers when each member's current compliant hold
	// began. Counters derive from it, so repeated evaluations at the same
	// instant never advance a counter.
	ChallengeTicks map[string]time.Time
	// ContentActive is true while a governed item is playing.
	ContentActive bool
	Content       *ContentItem
	// Seq increases whenever the phase or the offender set changes.
	Seq uint64
}

// NewState returns the initial unlocked state.
func NewState(now time.Time) State {
	return State{
		Phase:             PhaseUnlocked,
		PhaseEnteredAt:    now,
		Offenders:         IDSet{},
		LockCohort:        IDSet{},
		ChallengeCounters: map[string]int{},
		ChallengeTicks:    map[string]time.Time{},
	}
}

// Clone returns a deep copy safe to hand to readers.
func (s State) Clone() State {
	out := s
	if s.Deadline != nil {
		d := *s.Deadline
		out.Deadline = &d
	}
	if s.Content != nil {
		c := *s.Content
		c.Labels = slices.Clone(s.Content.Labels)
		out.Content = &c
	}
	out.Offenders = s.Offenders.Clone()
	out.LockCohort = s.LockCohort.Clone()
	out.ChallengeCounters = maps.Clone(s.ChallengeCounters)
	out.ChallengeTicks = maps.Clone(s.ChallengeTicks)
	return out
}
