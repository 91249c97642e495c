package models

// Phase is the governance state machine phase.
type Phase string

const (
	PhaseUnlocked  Phase = "unlocked"
	PhaseGrace     Phase = "grace"
	PhaseWarning   Phase = "warning"
	PhaseLocked    Phase = "locked"
	PhaseChallenge Phase = "challenge"
)

// IsValid reports whether p is one of the known phases.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseUnlocked, PhaseGrace, PhaseWarning, PhaseLocked, PhaseChallenge:
		return true
	}
	return false
}

// PlaybackPermitted is true only while unlocked; every other phase blocks.
func (p Phase) PlaybackPermitted() bool {
	return p == PhaseUnlocked
}

// TracksOffenders reports whether non-compliant participants count as
// offenders in this phase.
func (p Phase) TracksOffenders() bool {
	return p == PhaseWarning || p == PhaseLocked
}

// HasDeadline reports whether the phase runs against a countdown.
func (p Phase) HasDeadline() bool {
	return p == PhaseGrace || p == PhaseWarning
}

func (p Phase) String() string {
	return string(p)
}
