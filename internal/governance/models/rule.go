package models

import (
	"sort"
	"time"

	pstrings "pulsegate/pkg/platform/strings"
)

// DefaultChallengeHoldTicks is used when a rule leaves the hold unset.
const DefaultChallengeHoldTicks = 5

// TargetOverride replaces the rule's target zone for one participant.
type TargetOverride struct {
	ZoneID string
	Label  string
}

// Rule is the governance configuration for a content item. It is read-only
// for the lifetime of a session.
type Rule struct {
	Label          string
	GovernedLabels []string
	TargetZone     string
	// ZoneLabel is an explicit user-facing label for TargetZone.
	ZoneLabel     string
	GracePeriod   time.Duration
	WarningPeriod time.Duration
	// ChallengeHoldTicks is how many consecutive compliant ticks every lock
	// cohort member needs before a challenge clears.
	ChallengeHoldTicks int
	Overrides          map[string]TargetOverride
}

// Normalized returns a copy with defaults applied and labels cleaned up.
func (r Rule) Normalized() Rule {
	out := r
	out.GovernedLabels = pstrings.DedupeAndTrimLower(r.GovernedLabels)
	if out.ChallengeHoldTicks <= 0 {
		out.ChallengeHoldTicks = DefaultChallengeHoldTicks
	}
	if r.Overrides != nil {
		out.Overrides = make(map[string]TargetOverride, len(r.Overrides))
		for k, v := range r.Overrides {
			out.Overrides[k] = v
		}
	}
	return out
}

// Validate checks the rule on its own, without a zone catalog.
func (r Rule) Validate() error {
	if r.TargetZone == "" {
		return NewConfigurationError("rule target zone is required")
	}
	if r.GracePeriod < 0 {
		return NewConfigurationError("grace period cannot be negative")
	}
	if r.WarningPeriod < 0 {
		return NewConfigurationError("warning period cannot be negative")
	}
	if r.ChallengeHoldTicks < 0 {
		return NewConfigurationError("challenge hold ticks cannot be negative")
	}
	for pid, o := range r.Overrides {
		if pid == "" || o.ZoneID == "" {
			return NewConfigurationError("rule override needs a participant and a zone")
		}
	}
	return nil
}

// Applies reports whether the rule governs an item carrying labels. A rule
// without governed labels governs every item.
func (r Rule) Applies(labels []string) bool {
	governed := pstrings.DedupeAndTrimLower(r.GovernedLabels)
	if len(governed) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(labels))
	for _, l := range pstrings.DedupeAndTrimLower(labels) {
		have[l] = struct{}{}
	}
	for _, g := range governed {
		if _, ok := have[g]; ok {
			return true
		}
	}
	return false
}

// TargetFor resolves the cascading target for a participant: participant
// override first, then the rule target.
func (r Rule) TargetFor(participantID string) TargetOverride {
	if o, ok := r.Overrides[participantID]; ok && o.ZoneID != "" {
		return o
	}
	return TargetOverride{ZoneID: r.TargetZone, Label: r.ZoneLabel}
}

// Targets returns the distinct configured target zones, rule target first.
func (r Rule) Targets() []TargetOverride {
	out := []TargetOverride{{ZoneID: r.TargetZone, Label: r.ZoneLabel}}
	seen := map[string]struct{}{r.TargetZone: {}}
	extra := make([]TargetOverride, 0, len(r.Overrides))
	for _, o := range r.Overrides {
		if _, ok := seen[o.ZoneID]; ok {
			continue
		}
		seen[o.ZoneID] = struct{}{}
		extra = append(extra, o)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].ZoneID < extra[j].ZoneID })
	return append(out, extra...)
}

// ContentItem is a playable item that may fall under governance.
type ContentItem struct {
	ID     string   `json:"id"`
	Title  string   `json:"title,omitempty"`
	Labels []string `json:"labels,omitempty"`
}
