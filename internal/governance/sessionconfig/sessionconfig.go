// Package sessionconfig reads governed-session configuration files. A file
// carries the zone catalog, the governance rule, the roster and optional
// engine timings, in YAML or JSON.
package sessionconfig

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"pulsegate/internal/governance/engine"
	"pulsegate/internal/governance/models"
	"pulsegate/internal/governance/requirement"
	"pulsegate/internal/governance/zones"
)

// Format selects the decoder.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// File is the on-disk shape of a session configuration.
type File struct {
	Zones  []zones.Definition `json:"zones,omitempty" yaml:"zones,omitempty"`
	Rule   Rule               `json:"rule" yaml:"rule"`
	Roster models.Roster      `json:"roster" yaml:"roster"`
	Engine *Timings           `json:"engine,omitempty" yaml:"engine,omitempty"`
}

// Rule is the serialized governance rule. Periods are in seconds.
type Rule struct {
	Label              string              `json:"label" yaml:"label"`
	GovernedLabels     []string            `json:"governed_labels,omitempty" yaml:"governed_labels,omitempty"`
	TargetZone         string              `json:"target_zone" yaml:"target_zone"`
	ZoneLabel          string              `json:"zone_label,omitempty" yaml:"zone_label,omitempty"`
	GracePeriodSec     float64             `json:"grace_period_seconds" yaml:"grace_period_seconds"`
	WarningPeriodSec   float64             `json:"warning_period_seconds" yaml:"warning_period_seconds"`
	ChallengeHoldTicks int                 `json:"challenge_hold_ticks,omitempty" yaml:"challenge_hold_ticks,omitempty"`
	Overrides          map[string]Override `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// Override is a per-participant target zone.
type Override struct {
	Zone  string `json:"zone" yaml:"zone"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Timings overrides engine defaults. Durations are in milliseconds.
type Timings struct {
	TickIntervalMs int `json:"tick_interval_ms,omitempty" yaml:"tick_interval_ms,omitempty"`
	DebounceMs     int `json:"debounce_ms,omitempty" yaml:"debounce_ms,omitempty"`
	StaleAfterMs   int `json:"stale_after_ms,omitempty" yaml:"stale_after_ms,omitempty"`
	HistorySize    int `json:"history_size,omitempty" yaml:"history_size,omitempty"`
	ConfirmSamples int `json:"confirm_samples,omitempty" yaml:"confirm_samples,omitempty"`
}

// Load reads and parses a config file, picking the format from its
// extension. Unknown extensions are read as YAML.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session config: %w", err)
	}
	return Parse(data, FormatFor(path))
}

// FormatFor maps a file name to a format.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Parse decodes data. Unknown fields are rejected so typos surface as
// configuration errors instead of silently using defaults.
func Parse(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, models.NewConfigurationError("invalid session config: " + err.Error())
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, models.NewConfigurationError("invalid session config: " + err.Error())
		}
	}
	return &f, nil
}

// ZoneDefinitions returns the configured catalog, or the stock catalog when
// the file carries none.
func (f *File) ZoneDefinitions() []zones.Definition {
	if len(f.Zones) == 0 {
		return zones.DefaultDefinitions()
	}
	return f.Zones
}

// GovernanceRule converts the serialized rule.
func (f *File) GovernanceRule() models.Rule {
	r := models.Rule{
		Label:              f.Rule.Label,
		GovernedLabels:     f.Rule.GovernedLabels,
		TargetZone:         f.Rule.TargetZone,
		ZoneLabel:          f.Rule.ZoneLabel,
		GracePeriod:        seconds(f.Rule.GracePeriodSec),
		WarningPeriod:      seconds(f.Rule.WarningPeriodSec),
		ChallengeHoldTicks: f.Rule.ChallengeHoldTicks,
	}
	if len(f.Rule.Overrides) > 0 {
		r.Overrides = make(map[string]models.TargetOverride, len(f.Rule.Overrides))
		for pid, o := range f.Rule.Overrides {
			r.Overrides[pid] = models.TargetOverride{ZoneID: o.Zone, Label: o.Label}
		}
	}
	return r
}

// EngineConfig returns the engine timings. Unset fields keep the defaults.
func (f *File) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if f.Engine == nil {
		return cfg
	}
	t := f.Engine
	if t.TickIntervalMs > 0 {
		cfg.TickInterval = time.Duration(t.TickIntervalMs) * time.Millisecond
	}
	if t.DebounceMs > 0 {
		cfg.DebounceDelay = time.Duration(t.DebounceMs) * time.Millisecond
	}
	if t.StaleAfterMs > 0 {
		cfg.StaleAfter = time.Duration(t.StaleAfterMs) * time.Millisecond
	}
	if t.HistorySize > 0 {
		cfg.HistorySize = t.HistorySize
	}
	if t.ConfirmSamples > 0 {
		cfg.ConfirmSamples = t.ConfirmSamples
	}
	return cfg
}

// Validate runs every check Configure would, without building an engine.
func (f *File) Validate() error {
	catalog, err := zones.NewCatalog(f.ZoneDefinitions())
	if err != nil {
		return models.NewConfigurationError(err.Error())
	}
	if err := requirement.ValidateRule(f.GovernanceRule().Normalized(), catalog); err != nil {
		return err
	}
	if f.Engine != nil {
		t := f.Engine
		if t.TickIntervalMs < 0 || t.DebounceMs < 0 || t.StaleAfterMs < 0 || t.HistorySize < 0 || t.ConfirmSamples < 0 {
			return models.NewConfigurationError("engine timings cannot be negative")
		}
	}
	return f.Roster.Validate()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
