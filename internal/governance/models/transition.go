package models

import "time"

// Transition reasons.
const (
	ReasonContentStarted  = "content_started"
	ReasonContentEnded    = "content_ended"
	ReasonTornDown        = "torn_down"
	ReasonEpisodeOpened   = "participant_below_target"
	ReasonAllCompliant    = "all_compliant"
	ReasonGraceExpired    = "grace_expired"
	ReasonWarningExpired  = "warning_expired"
	ReasonCohortRecovered = "cohort_in_target"
	ReasonHoldBroken      = "hold_broken"
	ReasonHoldComplete    = "hold_complete"
)

// Transition describes one phase change, emitted after evaluation.
type Transition struct {
	From      Phase
	To        Phase
	At        time.Time
	Seq       uint64
	Offenders []string
	Cohort    []string
	Reason    string
}
