package models

import (
	"strings"

	"pulsegate/internal/governance/zones"
)

// Participant is one member of a session roster. Participants are never
// removed mid-session; they go inactive instead.
type Participant struct {
	ID            string         `json:"id" yaml:"id"`
	DisplayName   string         `json:"display_name" yaml:"display_name"`
	Guest         bool           `json:"guest,omitempty" yaml:"guest,omitempty"`
	Primary       bool           `json:"primary,omitempty" yaml:"primary,omitempty"`
	DeviceID      string         `json:"device_id,omitempty" yaml:"device_id,omitempty"`
	Inactive      bool           `json:"inactive,omitempty" yaml:"inactive,omitempty"`
	Age           int            `json:"age,omitempty" yaml:"age,omitempty"`
	MaxHeartRate  int            `json:"max_heart_rate,omitempty" yaml:"max_heart_rate,omitempty"`
	ZoneOverrides map[string]int `json:"zone_overrides,omitempty" yaml:"zone_overrides,omitempty"`
}

// Active reports whether the participant currently counts toward governance.
func (p Participant) Active() bool {
	return !p.Inactive
}

// Name returns the display name, falling back to the id.
func (p Participant) Name() string {
	if n := strings.TrimSpace(p.DisplayName); n != "" {
		return n
	}
	return p.ID
}

// Personalization exposes the attributes used to build zone boundaries.
func (p Participant) Personalization() zones.Personalization {
	return zones.Personalization{
		MaxHeartRate: p.MaxHeartRate,
		Age:          p.Age,
		Overrides:    p.ZoneOverrides,
	}
}

// Roster is an ordered participant list.
type Roster []Participant

// Validate enforces unique, non-empty participant ids.
func (r Roster) Validate() error {
	seen := make(map[string]struct{}, len(r))
	for _, p := range r {
		if strings.TrimSpace(p.ID) == "" {
			return NewConfigurationError("participant id cannot be empty")
		}
		if _, dup := seen[p.ID]; dup {
			return NewConfigurationError("duplicate participant id " + p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// ActiveParticipants returns the active members in roster order.
func (r Roster) ActiveParticipants() Roster {
	out := make(Roster, 0, len(r))
	for _, p := range r {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out
}

// Find returns the participant with id.
func (r Roster) Find(id string) (Participant, bool) {
	for _, p := range r {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// Clone returns a deep-enough copy for caching.
func (r Roster) Clone() Roster {
	if r == nil {
		return nil
	}
	out := make(Roster, len(r))
	copy(out, r)
	return out
}
