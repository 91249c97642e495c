package engine

import (
	"time"

	"pulsegate/internal/governance/models"
	"pulsegate/internal/governance/profile"
	"pulsegate/internal/governance/requirement"
)

// Config holds engine timings.
type Config struct {
	// TickInterval is the steady-state evaluation cadence and the unit the
	// challenge hold is counted in.
	TickInterval time.Duration
	// DebounceDelay is the quiet period after telemetry before a triggered
	// evaluation runs.
	DebounceDelay time.Duration
	// StaleAfter is how old a reading may be before it stops counting.
	StaleAfter time.Duration
	// HistorySize bounds each participant's zone history.
	HistorySize int
	// ConfirmSamples is how many agreeing samples commit a zone change.
	ConfirmSamples int
}

// DefaultConfig returns the default engine timings.
func DefaultConfig() Config {
	return Config{
		TickInterval:   time.Second,
		DebounceDelay:  50 * time.Millisecond,
		StaleAfter:     30 * time.Second,
		HistorySize:    profile.DefaultHistorySize,
		ConfirmSamples: 1,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.DebounceDelay <= 0 {
		c.DebounceDelay = def.DebounceDelay
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = def.StaleAfter
	}
	if c.HistorySize <= 0 {
		c.HistorySize = def.HistorySize
	}
	if c.ConfirmSamples <= 0 {
		c.ConfirmSamples = def.ConfirmSamples
	}
	return c
}

// Inputs are the explicit inputs to an evaluation. Nil fields fall back to
// the last inputs the engine saw.
type Inputs struct {
	Roster   models.Roster
	Profiles requirement.ProfileReader
}

// Change is emitted after an evaluation that bumped the change sequence.
type Change struct {
	Snapshot    models.Snapshot
	Transitions []models.Transition
}

// Metrics is the subset of governance metrics the engine records.
type Metrics interface {
	ObserveEvaluation(d time.Duration)
	IncrementTransition(from, to string)
	IncrementLabelFallback(zoneID string)
	AddOffenders(delta int)
}
