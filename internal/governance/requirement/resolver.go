// Package requirement computes what every participant must satisfy on the
// current evaluation tick.
package requirement

import (
	"fmt"
	"log/slog"
	"time"

	"pulsegate/internal/governance/models"
	"pulsegate/internal/governance/zones"
)

// ProfileReader is the read side of the zone profile store.
type ProfileReader interface {
	Latest(participantID string) (models.Reading, bool)
	HasReached(participantID, zoneID string, catalog *zones.Catalog, since time.Time) bool
}

// ShellDisplayName labels shell rows when the rule carries no label.
const ShellDisplayName = "Everyone"

// Input bundles everything a resolution depends on.
type Input struct {
	Rule     models.Rule
	Roster   models.Roster
	Profiles ProfileReader
	Catalog  *zones.Catalog
	// Previous is the last tick's output, for satisfiedOnce carry-over.
	Previous []models.Requirement
	// EpisodeStart bounds the "reached" history scan.
	EpisodeStart time.Time
	Deadline     *time.Time
}

// Resolver holds no state between calls apart from its label chain.
type Resolver struct {
	labels LabelChain
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for fallback diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithLabelChain replaces the default label chain.
func WithLabelChain(chain LabelChain) Option {
	return func(r *Resolver) {
		r.labels = chain
	}
}

// New builds a resolver. onFallback, when set, runs in addition to the WARN
// log every time the literal fallback label is used.
func New(onFallback func(LabelInput), opts ...Option) *Resolver {
	r := &Resolver{logger: slog.Default()}
	r.labels = DefaultLabelChain(func(in LabelInput) {
		if r.logger != nil {
			r.logger.Warn("governance_label_fallback",
				"zone_id", in.ZoneID,
				"label", models.FallbackZoneLabel,
			)
		}
		if onFallback != nil {
			onFallback(in)
		}
	})
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve builds one requirement per active participant, or the shell set
// when nobody is active. It never fails on missing or partial data.
func (r *Resolver) Resolve(in Input) []models.Requirement {
	previous := make(map[string]bool, len(in.Previous))
	for _, req := range in.Previous {
		previous[req.Key()] = req.SatisfiedOnce
	}

	active := in.Roster.ActiveParticipants()
	if len(active) == 0 {
		return r.shell(in)
	}

	out := make([]models.Requirement, 0, len(active))
	for _, p := range active {
		target := in.Rule.TargetFor(p.ID)
		req := r.build(in, target)
		req.ParticipantID = p.ID
		req.DisplayName = p.Name()
		req.SatisfiedOnce = previous[req.Key()] || r.reached(in, p.ID, target.ZoneID)
		out = append(out, req)
	}
	return out
}

func (r *Resolver) shell(in Input) []models.Requirement {
	name := in.Rule.Label
	if name == "" {
		name = ShellDisplayName
	}
	targets := in.Rule.Targets()
	out := make([]models.Requirement, 0, len(targets))
	for _, target := range targets {
		req := r.build(in, target)
		req.DisplayName = name
		req.Shell = true
		out = append(out, req)
	}
	return out
}

func (r *Resolver) build(in Input, target models.TargetOverride) models.Requirement {
	label, source := r.labels.Resolve(LabelInput{
		ZoneID:   target.ZoneID,
		Explicit: target.Label,
		Catalog:  in.Catalog,
	})
	var deadline *time.Time
	if in.Deadline != nil {
		d := *in.Deadline
		deadline = &d
	}
	return models.Requirement{
		TargetZoneID:    target.ZoneID,
		TargetZoneRank:  in.Catalog.Rank(target.ZoneID),
		TargetZoneLabel: label,
		LabelSource:     source,
		RuleLabel:       in.Rule.Label,
		Deadline:        deadline,
	}
}

// reached reports whether the participant hit zoneID during the current
// episode. Readings taken before EpisodeStart never count.
func (r *Resolver) reached(in Input, participantID, zoneID string) bool {
	if in.Profiles == nil {
		return false
	}
	reading, ok := in.Profiles.Latest(participantID)
	if ok && !reading.At.Before(in.EpisodeStart) && in.Catalog.AtLeast(reading.ZoneID, zoneID) {
		return true
	}
	return in.Profiles.HasReached(participantID, zoneID, in.Catalog, in.EpisodeStart)
}

// ValidateRule checks a rule against the catalog. It is the only place the
// resolver reports errors, and it runs at configure time.
func ValidateRule(rule models.Rule, catalog *zones.Catalog) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if catalog == nil || catalog.Len() == 0 {
		return models.NewConfigurationError("zone catalog is empty")
	}
	if !catalog.Contains(rule.TargetZone) {
		return models.NewConfigurationError(fmt.Sprintf("target zone %q is not in the zone catalog", rule.TargetZone))
	}
	for pid, o := range rule.Overrides {
		if !catalog.Contains(o.ZoneID) {
			return models.NewConfigurationError(fmt.Sprintf("override zone %q for participant %q is not in the zone catalog", o.ZoneID, pid))
		}
	}
	return nil
}
