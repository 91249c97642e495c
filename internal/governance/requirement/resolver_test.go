package requirement

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsegate/internal/governance/models"
	"pulsegate/internal/governance/profile"
	"pulsegate/internal/governance/zones"
)

var t0 = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func newCatalog(t *testing.T) *zones.Catalog {
	t.Helper()
	c, err := zones.NewCatalog(zones.DefaultDefinitions())
	require.NoError(t, err)
	return c
}

func TestLabelChain_EachLink(t *testing.T) {
	catalog := newCatalog(t)
	bare, err := zones.NewCatalog([]zones.Definition{{ID: "active"}, {ID: "42"}})
	require.NoError(t, err)

	cases := []struct {
		name       string
		in         LabelInput
		wantLabel  string
		wantSource models.LabelSource
	}{
		{
			name:       "explicit label wins",
			in:         LabelInput{ZoneID: "active", Explicit: "Keep moving", Catalog: catalog},
			wantLabel:  "Keep moving",
			wantSource: models.LabelSourceExplicit,
		},
		{
			name:       "catalog name",
			in:         LabelInput{ZoneID: "fire", Catalog: catalog},
			wantLabel:  "On Fire",
			wantSource: models.LabelSourceCatalog,
		},
		{
			name:       "capitalized id when catalog has no name",
			in:         LabelInput{ZoneID: "active", Catalog: bare},
			wantLabel:  "Active",
			wantSource: models.LabelSourceCapitalized,
		},
		{
			name:       "capitalized id when zone is unknown",
			in:         LabelInput{ZoneID: "lava", Catalog: catalog},
			wantLabel:  "Lava",
			wantSource: models.LabelSourceCapitalized,
		},
		{
			name:       "literal fallback when capitalizing changes nothing",
			in:         LabelInput{ZoneID: "42", Catalog: bare},
			wantLabel:  models.FallbackZoneLabel,
			wantSource: models.LabelSourceFallback,
		},
		{
			name:       "literal fallback for empty id",
			in:         LabelInput{Catalog: catalog},
			wantLabel:  models.FallbackZoneLabel,
			wantSource: models.LabelSourceFallback,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fallbacks := 0
			chain := DefaultLabelChain(func(LabelInput) { fallbacks++ })
			label, source := chain.Resolve(tc.in)
			assert.Equal(t, tc.wantLabel, label)
			assert.Equal(t, tc.wantSource, source)
			if tc.wantSource == models.LabelSourceFallback {
				assert.Equal(t, 1, fallbacks, "fallback use is reported")
			} else {
				assert.Zero(t, fallbacks)
			}
		})
	}
}

func TestLabelChain_IndividualStrategies(t *testing.T) {
	catalog := newCatalog(t)

	_, ok := ExplicitLabel{}.Label(LabelInput{ZoneID: "active"})
	assert.False(t, ok)

	label, ok := CatalogName{}.Label(LabelInput{ZoneID: "warm", Catalog: catalog})
	assert.True(t, ok)
	assert.Equal(t, "Warm", label)

	label, ok = CapitalizedID{}.Label(LabelInput{ZoneID: "warm_up"})
	assert.True(t, ok)
	assert.Equal(t, "Warm up", label)

	label, ok = LiteralFallback{}.Label(LabelInput{})
	assert.True(t, ok)
	assert.Equal(t, models.FallbackZoneLabel, label)
}

func TestLabelChain_EmptyChainStillAnswers(t *testing.T) {
	called := false
	label, source := NewLabelChain(func(LabelInput) { called = true }).Resolve(LabelInput{ZoneID: "active"})
	assert.Equal(t, models.FallbackZoneLabel, label)
	assert.Equal(t, models.LabelSourceFallback, source)
	assert.True(t, called)
}

func TestResolver_ShellRequirementWhenRosterEmpty(t *testing.T) {
	catalog := newCatalog(t)
	r := New(nil)

	for _, roster := range []models.Roster{nil, {{ID: "gone", Inactive: true}}} {
		reqs := r.Resolve(Input{
			Rule:    models.Rule{TargetZone: "active"},
			Roster:  roster,
			Catalog: catalog,
		})
		require.Len(t, reqs, 1)
		assert.True(t, reqs[0].Shell)
		assert.Equal(t, "Active", reqs[0].TargetZoneLabel)
		assert.NotEqual(t, "Target", reqs[0].TargetZoneLabel)
		assert.Equal(t, ShellDisplayName, reqs[0].DisplayName)
		assert.Equal(t, 1, reqs[0].TargetZoneRank)
	}
}

func TestResolver_ShellCoversEveryConfiguredTarget(t *testing.T) {
	catalog := newCatalog(t)
	rule := models.Rule{
		Label:      "Cartoons",
		TargetZone: "active",
		Overrides:  map[string]models.TargetOverride{"dad": {ZoneID: "hot"}},
	}

	reqs := New(nil).Resolve(Input{Rule: rule, Catalog: catalog})
	require.Len(t, reqs, 2)
	for _, req := range reqs {
		assert.True(t, req.Shell)
		assert.Equal(t, "Cartoons", req.DisplayName)
		assert.NotEqual(t, req.TargetZoneID, req.TargetZoneLabel)
	}
	assert.Equal(t, "Hot", reqs[1].TargetZoneLabel)
}

func TestResolver_PerParticipantRequirements(t *testing.T) {
	catalog := newCatalog(t)
	roster := models.Roster{
		{ID: "kid", DisplayName: "Milo"},
		{ID: "dad"},
		{ID: "guest", Inactive: true},
	}
	rule := models.Rule{
		Label:      "Cartoons",
		TargetZone: "active",
		Overrides:  map[string]models.TargetOverride{"dad": {ZoneID: "warm", Label: "Sweat it out"}},
	}
	deadline := t0.Add(30 * time.Second)

	reqs := New(nil).Resolve(Input{Rule: rule, Roster: roster, Catalog: catalog, Deadline: &deadline})
	require.Len(t, reqs, 2, "inactive participants are skipped")

	assert.Equal(t, "kid", reqs[0].ParticipantID)
	assert.Equal(t, "Milo", reqs[0].DisplayName)
	assert.Equal(t, "active", reqs[0].TargetZoneID)
	assert.Equal(t, "Active", reqs[0].TargetZoneLabel)
	assert.Equal(t, "Cartoons", reqs[0].RuleLabel)
	require.NotNil(t, reqs[0].Deadline)
	assert.Equal(t, deadline, *reqs[0].Deadline)

	assert.Equal(t, "warm", reqs[1].TargetZoneID)
	assert.Equal(t, "Sweat it out", reqs[1].TargetZoneLabel)
	assert.Equal(t, models.LabelSourceExplicit, reqs[1].LabelSource)
}

func TestResolver_SatisfiedOnce(t *testing.T) {
	catalog := newCatalog(t)
	store := profile.New(profile.NewRosterBoundaries(catalog, nil))
	roster := models.Roster{{ID: "kid"}}
	rule := models.Rule{TargetZone: "active"}
	r := New(nil)

	in := Input{Rule: rule, Roster: roster, Profiles: store, Catalog: catalog, EpisodeStart: t0}
	reqs := r.Resolve(in)
	assert.False(t, reqs[0].SatisfiedOnce, "no telemetry yet")

	store.Update("kid", 110, t0.Add(time.Second))
	reqs = r.Resolve(in)
	assert.True(t, reqs[0].SatisfiedOnce, "current zone meets the target")

	store.Update("kid", 80, t0.Add(2*time.Second))
	in.Previous = reqs
	in.EpisodeStart = t0.Add(2 * time.Second)
	reqs = r.Resolve(in)
	assert.True(t, reqs[0].SatisfiedOnce, "carried over from the previous tick")

	in.Previous = nil
	reqs = r.Resolve(in)
	assert.False(t, reqs[0].SatisfiedOnce, "history before the episode start does not count")
}

func TestResolver_LabelNeverRawID(t *testing.T) {
	catalog := newCatalog(t)
	r := New(nil, WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))

	for _, zone := range []string{"cool", "active", "warm", "hot", "fire"} {
		reqs := r.Resolve(Input{
			Rule:    models.Rule{TargetZone: zone},
			Roster:  models.Roster{{ID: "p"}},
			Catalog: catalog,
		})
		for _, req := range reqs {
			assert.NotEqual(t, req.TargetZoneID, req.TargetZoneLabel)
			z, _ := catalog.Resolve(zone)
			assert.Equal(t, z.Name, req.TargetZoneLabel)
		}
	}
}

func TestResolver_FallbackIsLogged(t *testing.T) {
	bare, err := zones.NewCatalog([]zones.Definition{{ID: "1"}})
	require.NoError(t, err)
	var buf bytes.Buffer
	hooked := 0
	r := New(func(LabelInput) { hooked++ }, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	reqs := r.Resolve(Input{Rule: models.Rule{TargetZone: "1"}, Catalog: bare})
	require.Len(t, reqs, 1)
	assert.Equal(t, models.FallbackZoneLabel, reqs[0].TargetZoneLabel)
	assert.Equal(t, 1, hooked)
	assert.True(t, strings.Contains(buf.String(), "governance_label_fallback"))
	assert.True(t, strings.Contains(buf.String(), "level=WARN"))
}

func TestValidateRule(t *testing.T) {
	catalog := newCatalog(t)

	require.NoError(t, ValidateRule(models.Rule{TargetZone: "active"}, catalog))

	err := ValidateRule(models.Rule{TargetZone: "lava"}, catalog)
	require.Error(t, err)
	assert.True(t, models.IsConfigurationError(err))

	err = ValidateRule(models.Rule{
		TargetZone: "active",
		Overrides:  map[string]models.TargetOverride{"dad": {ZoneID: "lava"}},
	}, catalog)
	assert.True(t, models.IsConfigurationError(err))

	err = ValidateRule(models.Rule{TargetZone: "active"}, nil)
	assert.True(t, models.IsConfigurationError(err))
}

func TestResolver_LatestReadingBeforeEpisodeDoesNotSatisfy(t *testing.T) {
	catalog := newCatalog(t)
	store := profile.New(profile.NewRosterBoundaries(catalog, nil))
	store.Update("kid", 110, t0.Add(-time.Minute))
	r := New(nil)

	in := Input{
		Rule:         models.Rule{TargetZone: "active"},
		Roster:       models.Roster{{ID: "kid"}},
		Profiles:     store,
		Catalog:      catalog,
		EpisodeStart: t0,
	}
	reqs := r.Resolve(in)
	require.Len(t, reqs, 1)
	assert.False(t, reqs[0].SatisfiedOnce)

	in.EpisodeStart = t0.Add(-2 * time.Minute)
	assert.True(t, r.Resolve(in)[0].SatisfiedOnce, "same reading counts once it falls inside the episode")
}
