package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "pulsegate/pkg/domain-errors"
)

func TestPhase(t *testing.T) {
	for _, p := range []Phase{PhaseUnlocked, PhaseGrace, PhaseWarning, PhaseLocked, PhaseChallenge} {
		assert.True(t, p.IsValid(), p)
		assert.Equal(t, p == PhaseUnlocked, p.PlaybackPermitted(), p)
	}
	assert.False(t, Phase("paused").IsValid())
	assert.True(t, PhaseWarning.TracksOffenders())
	assert.True(t, PhaseLocked.TracksOffenders())
	assert.False(t, PhaseChallenge.TracksOffenders())
	assert.False(t, PhaseGrace.TracksOffenders())
}

func TestRule_Validate(t *testing.T) {
	valid := Rule{TargetZone: "active", GracePeriod: 30 * time.Second, WarningPeriod: 30 * time.Second}
	require.NoError(t, valid.Validate())

	cases := map[string]Rule{
		"missing target":   {},
		"negative grace":   {TargetZone: "active", GracePeriod: -time.Second},
		"negative warning": {TargetZone: "active", WarningPeriod: -time.Second},
		"blank override":   {TargetZone: "active", Overrides: map[string]TargetOverride{"p1": {}}},
	}
	for name, rule := range cases {
		t.Run(name, func(t *testing.T) {
			err := rule.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidConfig))
			assert.True(t, IsConfigurationError(err))
		})
	}
}

func TestRule_Applies(t *testing.T) {
	open := Rule{TargetZone: "active"}
	assert.True(t, open.Applies(nil), "a rule without labels governs everything")

	kids := Rule{TargetZone: "active", GovernedLabels: []string{" Kids ", "cartoon"}}
	assert.True(t, kids.Applies([]string{"KIDS"}))
	assert.False(t, kids.Applies([]string{"documentary"}))
	assert.False(t, kids.Applies(nil))
}

func TestRule_TargetFor(t *testing.T) {
	rule := Rule{
		TargetZone: "active",
		ZoneLabel:  "Get moving",
		Overrides:  map[string]TargetOverride{"dad": {ZoneID: "warm"}},
	}
	assert.Equal(t, TargetOverride{ZoneID: "active", Label: "Get moving"}, rule.TargetFor("kid"))
	assert.Equal(t, TargetOverride{ZoneID: "warm"}, rule.TargetFor("dad"))

	targets := rule.Targets()
	require.Len(t, targets, 2)
	assert.Equal(t, "active", targets[0].ZoneID)
	assert.Equal(t, "warm", targets[1].ZoneID)
}

func TestRule_Normalized(t *testing.T) {
	rule := Rule{TargetZone: "active", GovernedLabels: []string{"Kids", "kids "}}.Normalized()
	assert.Equal(t, DefaultChallengeHoldTicks, rule.ChallengeHoldTicks)
	assert.Equal(t, []string{"kids"}, rule.GovernedLabels)
}

func TestRoster(t *testing.T) {
	roster := Roster{
		{ID: "a", DisplayName: "Alice"},
		{ID: "b", Inactive: true},
		{ID: "c"},
	}
	require.NoError(t, roster.Validate())
	active := roster.ActiveParticipants()
	require.Len(t, active, 2)
	assert.Equal(t, "Alice", active[0].Name())
	assert.Equal(t, "c", active[1].Name(), "name falls back to id")

	dup := Roster{{ID: "a"}, {ID: "a"}}
	assert.True(t, IsConfigurationError(dup.Validate()))
	assert.True(t, IsConfigurationError(Roster{{ID: ""}}.Validate()))
}

func TestIDSet(t *testing.T) {
	a := NewIDSet("x", "y")
	b := NewIDSet("y", "x")
	assert.True(t, a.Equal(b))
	assert.Equal(t, []string{"x", "y"}, b.Sorted())

	c := a.Clone()
	c["z"] = struct{}{}
	assert.False(t, a.Equal(c))
	assert.False(t, a.Has("z"))
}

func TestState_CloneIsDeep(t *testing.T) {
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	s := NewState(now)
	deadline := now.Add(time.Minute)
	s.Deadline = &deadline
	s.Offenders["a"] = struct{}{}
	s.ChallengeCounters["a"] = 2

	c := s.Clone()
	c.Offenders["b"] = struct{}{}
	c.ChallengeCounters["a"] = 9
	*c.Deadline = now

	assert.False(t, s.Offenders.Has("b"))
	assert.Equal(t, 2, s.ChallengeCounters["a"])
	assert.Equal(t, deadline, *s.Deadline)
}
