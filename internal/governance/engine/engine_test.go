package engine

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"pulsegate/internal/governance/models"
	"pulsegate/internal/governance/zones"
	dErrors "pulsegate/pkg/domain-errors"
	"pulsegate/pkg/platform/clock"
)

const (
	hrCool   = 80
	hrActive = 110
)

var t0 = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return t0.Add(time.Duration(seconds) * time.Second)
}

type countingMetrics struct {
	mu          sync.Mutex
	evaluations int
	transitions map[string]int
	fallbacks   int
	offenders   int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{transitions: map[string]int{}}
}

func (m *countingMetrics) ObserveEvaluation(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations++
}

func (m *countingMetrics) IncrementTransition(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[from+"->"+to]++
}

func (m *countingMetrics) IncrementLabelFallback(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks++
}

func (m *countingMetrics) AddOffenders(delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offenders += delta
}

func (m *countingMetrics) offenderGauge() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offenders
}

func (m *countingMetrics) evaluationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evaluations
}

type EngineSuite struct {
	suite.Suite
	clock   *clock.FakeClock
	metrics *countingMetrics
	changes []Change
	mu      sync.Mutex
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.clock = clock.Fake(t0)
	s.metrics = newCountingMetrics()
	s.changes = nil
}

func (s *EngineSuite) rule() models.Rule {
	return models.Rule{
		Label:              "Cartoons",
		GovernedLabels:     []string{"kids"},
		TargetZone:         "active",
		GracePeriod:        30 * time.Second,
		WarningPeriod:      30 * time.Second,
		ChallengeHoldTicks: 3,
	}
}

func (s *EngineSuite) newEngine(rule models.Rule, roster models.Roster, opts ...Option) *Engine {
	base := []Option{
		WithClock(s.clock),
		WithLogger(slog.New(slog.DiscardHandler)),
		WithMetrics(s.metrics),
		WithChangeHook(func(c Change) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.changes = append(s.changes, c)
		}),
	}
	e, err := Configure(rule, roster, zones.DefaultDefinitions(), append(base, opts...)...)
	s.Require().NoError(err)
	s.T().Cleanup(e.Teardown)
	return e
}

func (s *EngineSuite) start(e *Engine) {
	s.Require().True(e.StartContent(t0, models.ContentItem{ID: "ep1", Labels: []string{"Kids"}}))
}

// lock drives a single-participant engine to locked at t=62.
func (s *EngineSuite) lock(e *Engine) {
	s.driveTo(e, models.PhaseLocked)
}

func (s *EngineSuite) TestConfigure() {
	s.Run("unknown target zone is a configuration error", func() {
		rule := s.rule()
		rule.TargetZone = "lava"
		e, err := Configure(rule, nil, zones.DefaultDefinitions())
		s.Require().Error(err)
		s.Nil(e)
		s.True(models.IsConfigurationError(err))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidConfig))
	})

	s.Run("unknown override zone is a configuration error", func() {
		rule := s.rule()
		rule.Overrides = map[string]models.TargetOverride{"dad": {ZoneID: "lava"}}
		_, err := Configure(rule, nil, zones.DefaultDefinitions())
		s.True(models.IsConfigurationError(err))
	})

	s.Run("empty catalog is rejected", func() {
		_, err := Configure(s.rule(), nil, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidConfig))
	})

	s.Run("duplicate participants are rejected", func() {
		_, err := Configure(s.rule(), models.Roster{{ID: "kid"}, {ID: "kid"}}, zones.DefaultDefinitions())
		s.True(models.IsConfigurationError(err))
	})

	s.Run("starts unlocked with a pre-seeded snapshot", func() {
		e := s.newEngine(s.rule(), nil)
		snap := e.Snapshot()
		s.Equal(models.PhaseUnlocked, snap.Status)
		s.True(snap.PlaybackPermitted)
		s.Require().Len(snap.LockRows, 1)
		s.Equal("Active", snap.LockRows[0].TargetZoneLabel)
		s.Equal(uint64(0), snap.Seq)
	})

	s.Run("hold ticks default when unset", func() {
		rule := s.rule()
		rule.ChallengeHoldTicks = 0
		e := s.newEngine(rule, nil)
		s.Equal(models.DefaultChallengeHoldTicks, e.Rule().ChallengeHoldTicks)
	})
}

func (s *EngineSuite) TestTransitionTable() {
	s.Run("unlocked to grace when governed content starts", func() {
		e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}})
		s.start(e)
		st := e.State()
		s.Equal(models.PhaseGrace, st.Phase)
		s.Require().NotNil(st.Deadline)
		s.Equal(at(30), *st.Deadline)
		s.Equal(t0, st.EpisodeStartedAt)
		s.True(st.ContentActive)
	})

	s.Run("ungoverned content leaves the engine unlocked", func() {
		e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}})
		s.False(e.StartContent(t0, models.ContentItem{ID: "news", Labels: []string{"adult"}}))
		s.Equal(models.PhaseUnlocked, e.State().Phase)
		s.False(e.State().ContentActive)
	})

	s.Run("grace to unlocked when everyone reaches the target", func() {
		e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}})
		s.start(e)
		e.IngestTelemetry("kid", hrActive, at(5))
		snap := e.Evaluate(at(5), nil)
		s.Equal(models.PhaseUnlocked, snap.Status)
		s.Nil(snap.Deadline)
		s.Empty(e.State().Offenders)
		s.True(e.PlaybackPermitted())
	})

	s.Run("grace to warning when the deadline passes", func() {
		e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}})
		s.start(e)
		e.Evaluate(at(29), nil)
		s.Equal(models.PhaseGrace, e.State().Phase)

		snap := e.Evaluate(at(31), nil)
		s.Equal(models.PhaseWarning, snap.Status)
		s.Require().NotNil(snap.Deadline)
		s.Equal(at(61), *snap.Deadline)
	})

	s.Run("warning to unlocked when everyone reaches the target", func() {
		e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}})
		s.start(e)
		e.Evaluate(at(31), nil)
		e.IngestTelemetry("kid", hrActive, at(40))
		snap := e.Evaluate(at(40), nil)
		s.Equal(models.PhaseUnlocked, snap.Status)
		s.Nil(snap.Deadline)
		s.Empty(snap.Blocking)
	})

	s.Run("warning to locked when the deadline passes", func() {
		e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}})
		s.lock(e)
		st := e.State()
		s.Nil(st.Deadline)
		s.Equal([]string{"kid"}, st.Offenders.Sorted())
		s.Equal([]string{"kid"}, st.LockCohort.Sorted())
		s.False(e.PlaybackPermitted())
	})

	s.Run("locked to challenge when the cohort reaches the target", func() {
		e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}})
		s.lock(e)
		e.IngestTelemetry("kid", hrActive, at(70))
		snap := e.Evaluate(at(70), nil)
		s.Equal(models.PhaseChallenge, snap.Status)
		s.Nil(snap.Deadline)
		s.Equal(1, e.State().ChallengeCounters["kid"])
		s.Require().Len(snap.LockRows, 1)
		s.Equal(1, snap.LockRows[0].ChallengeProgress)
		s.Equal(3, snap.LockRows[0].ChallengeTarget)
		s.False(snap.LockRows[0].IsOffender)
		s.Equal([]string{"kid"}, snap.Blocking)
	})

	s.Run("challenge to unlocked after a sustained hold", func() {
		e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}})
		s.lock(e)
		for i, sec := range []int{70, 71, 72} {
			e.IngestTelemetry("kid", hrActive, at(sec))
			snap := e.Evaluate(at(sec), nil)
			if i < 2 {
				s.Equal(models.PhaseChallenge, snap.Status)
			} else {
				s.Equal(models.PhaseUnlocked, snap.Status)
			}
		}
		st := e.State()
		s.True(st.EpisodeStartedAt.IsZero())
		s.Empty(st.LockCohort)
		s.Empty(st.ChallengeCounters)
		s.Empty(st.Offenders)
	})

	s.Run("challenge to locked when a member drops", func() {
		e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}})
		s.lock(e)
		e.IngestTelemetry("kid", hrActive, at(70))
		e.Evaluate(at(70), nil)
		e.IngestTelemetry("kid", hrCool, at(71))
		snap := e.Evaluate(at(71), nil)
		s.Equal(models.PhaseLocked, snap.Status)
		s.Equal(0, e.State().ChallengeCounters["kid"])
	})

	for _, phase := range []models.Phase{models.PhaseGrace, models.PhaseWarning, models.PhaseLocked, models.PhaseChallenge} {
		s.Run("content end from "+phase.String()+" unlocks", func() {
			e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}})
			now := s.driveTo(e, phase)
			e.EndContent(now)
			st := e.State()
			s.Equal(models.PhaseUnlocked, st.Phase)
			s.False(st.ContentActive)
			s.Nil(st.Deadline)
			s.Empty(st.Offenders)
			s.Empty(st.LockCohort)
		})
	}
}

// driveTo brings a single-participant engine to phase and returns the time
// of the last evaluation.
func (s *EngineSuite) driveTo(e *Engine, phase models.Phase) time.Time {
	s.start(e)
	switch phase {
	case models.PhaseGrace:
		return t0
	case models.PhaseWarning:
		e.Evaluate(at(31), nil)
		return at(31)
	case models.PhaseLocked:
		e.Evaluate(at(31), nil)
		e.IngestTelemetry("kid", hrCool, at(40))
		s.Require().Equal(models.PhaseLocked, e.Evaluate(at(62), nil).Status)
		return at(62)
	case models.PhaseChallenge:
		e.Evaluate(at(31), nil)
		e.Evaluate(at(62), nil)
		e.IngestTelemetry("kid", hrActive, at(70))
		e.Evaluate(at(70), nil)
		s.Require().Equal(models.PhaseChallenge, e.State().Phase)
		return at(70)
	}
	return t0
}

func (s *EngineSuite) TestScenarios() {
	s.Run("no telemetry through grace and warning locks the participant", func() {
		e := s.newEngine(s.rule(), models.Roster{{ID: "kid", DisplayName: "Milo"}})
		s.start(e)
		s.Equal(models.PhaseWarning, e.Evaluate(at(31), nil).Status)
		e.IngestTelemetry("kid", hrCool, at(45))
		snap := e.Evaluate(at(62), nil)
		s.Equal(models.PhaseLocked, snap.Status)
		s.Equal([]string{"kid"}, e.State().Offenders.Sorted())
		s.Require().Len(snap.Offenders(), 1)
		row := snap.Offenders()[0]
		s.Equal("Milo", row.DisplayName)
		s.Equal("Active", row.TargetZoneLabel)
		s.Equal("cool", row.CurrentZoneID)
		s.Equal("Cool", row.CurrentZoneLabel)
	})

	s.Run("two participants lock only the one below target", func() {
		e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}, {ID: "dad"}})
		s.start(e)
		e.Evaluate(at(31), nil)
		e.IngestTelemetry("kid", hrActive, at(55))
		e.IngestTelemetry("dad", hrCool, at(55))
		snap := e.Evaluate(at(61), nil)
		s.Equal(models.PhaseLocked, snap.Status)
		s.Require().Len(snap.LockRows, 2)
		rows := map[string]models.LockRow{}
		for _, r := range snap.LockRows {
			rows[r.ParticipantID] = r
		}
		s.True(rows["dad"].IsOffender)
		s.False(rows["kid"].IsOffender)
		s.True(rows["kid"].SatisfiedOnce)
		s.Equal([]string{"dad"}, snap.Blocking)
		s.Equal([]string{"dad"}, e.State().LockCohort.Sorted())
	})

	s.Run("empty roster shows the catalog name of the target", func() {
		e := s.newEngine(s.rule(), nil)
		s.start(e)
		snap := e.Snapshot()
		s.Require().NotEmpty(snap.LockRows)
		s.Equal("Active", snap.LockRows[0].TargetZoneLabel)
		s.NotEqual("Target", snap.LockRows[0].TargetZoneLabel)
		s.NotEqual("active", snap.LockRows[0].TargetZoneLabel)
		s.True(snap.LockRows[0].Shell)
		s.False(snap.LockRows[0].IsOffender)
	})

	s.Run("a single compliant tick does not clear the lock", func() {
		e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}})
		s.lock(e)
		e.IngestTelemetry("kid", hrActive, at(70))
		e.Evaluate(at(70), nil)
		e.IngestTelemetry("kid", hrCool, at(71))
		e.Evaluate(at(71), nil)
		e.Evaluate(at(75), nil)
		st := e.State()
		s.Equal(models.PhaseLocked, st.Phase)
		s.Equal(0, st.ChallengeCounters["kid"])
		s.NotContains(st.ChallengeTicks, "kid")
	})
}

func (s *EngineSuite) TestIdempotence() {
	for _, phase := range []models.Phase{models.PhaseGrace, models.PhaseWarning, models.PhaseLocked, models.PhaseChallenge} {
		s.Run(phase.String(), func() {
			e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}})
			now := s.driveTo(e, phase)
			first := e.Evaluate(now, nil)
			st1 := e.State()
			second := e.Evaluate(now, nil)
			st2 := e.State()
			s.Equal(st1, st2)
			s.Equal(first.Seq, second.Seq)
			s.Equal(first, second)
		})
	}
}

func (s *EngineSuite) TestChangeSequence() {
	e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}, {ID: "dad"}})
	s.start(e)
	seq := e.State().Seq
	s.Equal(uint64(1), seq)

	e.Evaluate(at(10), nil)
	s.Equal(seq, e.State().Seq, "no phase or offender change")

	e.Evaluate(at(31), nil)
	s.Equal(seq+1, e.State().Seq, "phase change")

	e.IngestTelemetry("kid", hrActive, at(40))
	e.Evaluate(at(40), nil)
	s.Equal(seq+2, e.State().Seq, "offender set shrank")
	s.Equal([]string{"dad"}, e.State().Offenders.Sorted())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Require().Len(s.changes, 3)
	s.Equal(models.PhaseGrace, s.changes[0].Transitions[0].To)
	s.Empty(s.changes[2].Transitions)
	s.Equal(seq+2, s.changes[2].Snapshot.Seq)
}

func (s *EngineSuite) TestOffenderCorrectness() {
	e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}, {ID: "dad"}})
	catalog := e.Catalog()
	s.start(e)

	script := []struct {
		sec      int
		kid, dad int
	}{
		{5, hrCool, 0}, {20, hrActive, hrCool}, {31, hrCool, hrCool}, {45, hrActive, 0},
		{61, hrActive, hrCool}, {62, hrCool, hrCool}, {70, hrActive, hrActive},
		{71, hrActive, hrCool}, {72, hrActive, hrActive}, {73, hrActive, hrActive},
		{74, hrActive, hrActive}, {75, hrCool, hrActive},
	}
	for _, step := range script {
		if step.kid > 0 {
			e.IngestTelemetry("kid", step.kid, at(step.sec))
		}
		if step.dad > 0 {
			e.IngestTelemetry("dad", step.dad, at(step.sec))
		}
		snap := e.Evaluate(at(step.sec), nil)
		tracks := snap.Status == models.PhaseWarning || snap.Status == models.PhaseLocked
		for _, row := range snap.LockRows {
			below := catalog.Rank(row.CurrentZoneID) < catalog.Rank(row.TargetZoneID)
			s.Equal(tracks && below, row.IsOffender, "t=%d %s in %s", step.sec, row.ParticipantID, snap.Status)
		}
	}
}

func (s *EngineSuite) TestStaleTelemetryIsNonCompliant() {
	e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}})
	s.start(e)
	e.IngestTelemetry("kid", hrActive, at(1))
	s.Equal(models.PhaseUnlocked, e.Evaluate(at(1), nil).Status)

	// the reading goes stale and reopens an episode
	snap := e.Evaluate(at(40), nil)
	s.Equal(models.PhaseGrace, snap.Status)
	s.Equal(at(40), e.State().EpisodeStartedAt)
	s.Require().Len(snap.LockRows, 1)
	s.Empty(snap.LockRows[0].CurrentZoneID)
}

func (s *EngineSuite) TestPreEpisodeReadingDoesNotSatisfyTarget() {
	e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}})
	e.IngestTelemetry("kid", hrActive, at(-60))
	s.start(e)

	snap := e.Evaluate(at(1), nil)
	s.Equal(models.PhaseGrace, snap.Status)
	s.Require().Len(snap.LockRows, 1)
	row := snap.LockRows[0]
	s.False(row.SatisfiedOnce, "reading predates the episode")
	s.Empty(row.CurrentZoneID, "reading is stale")
	s.Equal([]string{"kid"}, snap.Blocking)

	e.IngestTelemetry("kid", hrActive, at(2))
	snap = e.Evaluate(at(2), nil)
	s.Equal(models.PhaseUnlocked, snap.Status)
}

// TestConcurrentEvaluation drives ticks, debounced telemetry and roster
// updates from several goroutines. Run with -race.
func (s *EngineSuite) TestConcurrentEvaluation() {
	roster := models.Roster{{ID: "kid"}, {ID: "dad"}}
	e := s.newEngine(s.rule(), roster)
	s.start(e)

	const workers, rounds = 4, 300
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := roster[w%len(roster)].ID
			for i := range rounds {
				hr := hrCool
				if (i+w)%3 == 0 {
					hr = hrActive
				}
				e.IngestTelemetry(id, hr, at(5+i))
				e.Evaluate(at(5+i), nil)
			}
		}()
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range rounds {
			next := roster.Clone()
			next[1].Inactive = i%2 == 0
			_ = e.UpdateRoster(at(5+i), next)
		}
	}()
	go func() {
		defer wg.Done()
		for range rounds {
			s.clock.Advance(50 * time.Millisecond)
		}
	}()
	wg.Wait()

	st := e.State()
	s.Equal(len(st.Offenders), s.metrics.offenderGauge(), "offender gauge matches state")
	s.Positive(st.Seq)
}

func (s *EngineSuite) TestRosterChanges() {
	s.Run("inactive cohort members leave the cohort", func() {
		e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}, {ID: "dad"}})
		s.start(e)
		e.Evaluate(at(31), nil)
		e.IngestTelemetry("kid", hrActive, at(60))
		e.Evaluate(at(62), nil)
		s.Require().Equal([]string{"dad"}, e.State().LockCohort.Sorted())

		// with dad gone nobody is left to hold, so the challenge clears at once
		s.Require().NoError(e.UpdateRoster(at(63), models.Roster{{ID: "kid"}, {ID: "dad", Inactive: true}}))
		st := e.State()
		s.Equal(models.PhaseUnlocked, st.Phase)
		s.Empty(st.LockCohort)
		s.Empty(st.Offenders)
	})

	s.Run("new offenders join the cohort while locked", func() {
		e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}})
		s.lock(e)
		s.Require().NoError(e.UpdateRoster(at(63), models.Roster{{ID: "kid"}, {ID: "dad"}}))
		s.Equal([]string{"dad", "kid"}, e.State().LockCohort.Sorted())
	})

	s.Run("invalid roster is rejected", func() {
		e := s.newEngine(s.rule(), nil)
		err := e.UpdateRoster(at(1), models.Roster{{ID: ""}})
		s.True(models.IsConfigurationError(err))
	})
}

func (s *EngineSuite) TestDebouncedTelemetry() {
	s.Run("a burst collapses into one evaluation", func() {
		e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}, {ID: "dad"}})
		s.start(e)
		before := s.metrics.evaluationCount()

		e.IngestTelemetry("kid", hrActive, s.clock.Now())
		s.clock.Advance(10 * time.Millisecond)
		e.IngestTelemetry("dad", hrActive, s.clock.Now())
		s.clock.Advance(10 * time.Millisecond)
		e.IngestTelemetry("kid", hrActive, s.clock.Now())
		s.Equal(before, s.metrics.evaluationCount())
		s.Equal(models.PhaseGrace, e.State().Phase)

		s.clock.Advance(50 * time.Millisecond)
		s.Equal(before+1, s.metrics.evaluationCount())
		s.Equal(models.PhaseUnlocked, e.State().Phase)
	})

	s.Run("disconnect drops the profile and re-evaluates", func() {
		e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}})
		s.start(e)
		e.IngestTelemetry("kid", hrActive, s.clock.Now())
		s.clock.Advance(50 * time.Millisecond)
		s.Equal(models.PhaseUnlocked, e.State().Phase)

		e.Disconnect("kid")
		s.clock.Advance(50 * time.Millisecond)
		s.Equal(models.PhaseGrace, e.State().Phase)
	})
}

func (s *EngineSuite) TestTeardown() {
	e := s.newEngine(s.rule(), models.Roster{{ID: "kid"}})
	s.lock(e)
	e.IngestTelemetry("kid", hrActive, at(62))
	s.Equal(1, s.clock.Pending(), "debounce armed")

	e.Teardown()
	s.Equal(0, s.clock.Pending(), "debounce released")
	snap := e.Snapshot()
	s.Equal(models.PhaseUnlocked, snap.Status)
	s.True(snap.PlaybackPermitted)

	seq := e.State().Seq
	e.Evaluate(at(100), nil)
	s.Equal(seq, e.State().Seq)
	s.False(e.StartContent(at(100), models.ContentItem{ID: "ep2", Labels: []string{"kids"}}))
	_, ok := e.Profiles().Latest("kid")
	s.False(ok)

	select {
	case <-e.Done():
	default:
		s.Fail("done channel not closed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.changes[len(s.changes)-1]
	s.Require().Len(last.Transitions, 1)
	s.Equal(models.PhaseLocked, last.Transitions[0].From)
	s.Equal(models.PhaseUnlocked, last.Transitions[0].To)
	s.Equal(models.ReasonTornDown, last.Transitions[0].Reason)
	s.Equal(0, s.metrics.offenders)
}

func TestRun_TicksUntilTeardown(t *testing.T) {
	fc := clock.Fake(t0)
	e, err := Configure(models.Rule{
		TargetZone:    "active",
		GracePeriod:   3 * time.Second,
		WarningPeriod: 3 * time.Second,
	}, models.Roster{{ID: "kid"}}, zones.DefaultDefinitions(),
		WithClock(fc),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, err)
	require.True(t, e.StartContent(t0, models.ContentItem{ID: "ep"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool { return fc.Pending() == 1 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool {
		fc.Advance(time.Second)
		return e.State().Phase == models.PhaseLocked
	}, 2*time.Second, 5*time.Millisecond)

	e.Teardown()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not stop after teardown")
	}
}

func TestLabelFallbackIsCounted(t *testing.T) {
	m := newCountingMetrics()
	e, err := Configure(models.Rule{TargetZone: "7"}, nil, []zones.Definition{{ID: "7"}},
		WithMetrics(m),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, err)
	defer e.Teardown()

	snap := e.Snapshot()
	require.Len(t, snap.LockRows, 1)
	assert.Equal(t, models.FallbackZoneLabel, snap.LockRows[0].TargetZoneLabel)
	assert.Positive(t, m.fallbacks)
}
