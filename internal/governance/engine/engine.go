// Package engine runs the governance state machine for one governed-content
// session. All governance state lives on the Engine instance; nothing is
// shared between sessions.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pulsegate/internal/governance/models"
	"pulsegate/internal/governance/profile"
	"pulsegate/internal/governance/requirement"
	"pulsegate/internal/governance/zones"
	"pulsegate/pkg/platform/clock"
	"pulsegate/pkg/platform/debounce"
)

const evaluateKey = "evaluate"

// Engine gates playback behind zone compliance.
//
// Evaluate is the only place governance state changes. Calls are serialized
// by mu, and scheduler-driven evaluations additionally collapse through a
// single-flight group so a tick and a debounced trigger never queue up twice.
type Engine struct {
	mu     sync.Mutex
	emitMu sync.Mutex

	cfg      Config
	clock    clock.Clock
	logger   *slog.Logger
	metrics  Metrics
	onChange func(Change)

	catalog    *zones.Catalog
	rule       models.Rule
	boundaries *profile.RosterBoundaries
	store      *profile.Store
	resolver   *requirement.Resolver
	debouncer  *debounce.Debouncer
	flight     singleflight.Group

	inputs       Inputs
	state        models.State
	requirements []models.Requirement
	snapshot     models.Snapshot
	pending      []contentEvent

	tornDown bool
	done     chan struct{}
}

type contentEvent struct {
	start bool
	item  models.ContentItem
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig overrides the default timings. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg.withDefaults()
	}
}

// WithClock overrides the real clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithChangeHook registers fn to run after every evaluation that bumps the
// change sequence. Hooks run in evaluation order, outside the state lock, and
// must not block.
func WithChangeHook(fn func(Change)) Option {
	return func(e *Engine) {
		e.onChange = fn
	}
}

// Configure validates the session configuration and returns a ready engine.
// Configuration problems are reported here and never at evaluation time; on
// error no engine exists to evaluate.
func Configure(rule models.Rule, roster models.Roster, zoneDefs []zones.Definition, opts ...Option) (*Engine, error) {
	catalog, err := zones.NewCatalog(zoneDefs)
	if err != nil {
		return nil, models.NewConfigurationError(err.Error())
	}
	rule = rule.Normalized()
	if err := requirement.ValidateRule(rule, catalog); err != nil {
		return nil, err
	}
	if err := roster.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     DefaultConfig(),
		clock:   clock.Real(),
		logger:  slog.Default(),
		catalog: catalog,
		rule:    rule,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.boundaries = profile.NewRosterBoundaries(catalog, roster)
	e.store = profile.New(e.boundaries,
		profile.WithHistorySize(e.cfg.HistorySize),
		profile.WithConfirmSamples(e.cfg.ConfirmSamples),
	)
	e.resolver = requirement.New(func(in requirement.LabelInput) {
		if e.metrics != nil {
			e.metrics.IncrementLabelFallback(in.ZoneID)
		}
	}, requirement.WithLogger(e.logger))
	e.debouncer = debounce.New(e.cfg.DebounceDelay, e.trigger, debounce.WithClock(e.clock))
	e.store.SetChangeNotifier(func(string) { e.debouncer.Trigger() })

	now := e.clock.Now()
	e.inputs = Inputs{Roster: roster.Clone(), Profiles: e.store}
	e.state = models.NewState(now)
	e.requirements = e.resolve(nil)
	e.snapshot = e.buildSnapshot(now)
	return e, nil
}

// Catalog returns the session's zone catalog.
func (e *Engine) Catalog() *zones.Catalog {
	return e.catalog
}

// Rule returns the normalized rule.
func (e *Engine) Rule() models.Rule {
	return e.rule
}

// Config returns the effective timings.
func (e *Engine) Config() Config {
	return e.cfg
}

// StartContent begins a content item. It reports whether the rule governs
// the item; ungoverned items leave the engine untouched.
func (e *Engine) StartContent(now time.Time, item models.ContentItem) bool {
	if !e.rule.Applies(item.Labels) {
		return false
	}
	e.mu.Lock()
	if e.tornDown {
		e.mu.Unlock()
		return false
	}
	e.pending = append(e.pending, contentEvent{start: true, item: item})
	e.mu.Unlock()
	e.Evaluate(now, nil)
	return true
}

// EndContent ends the governed item and returns the engine to unlocked.
func (e *Engine) EndContent(now time.Time) {
	e.mu.Lock()
	if e.tornDown {
		e.mu.Unlock()
		return
	}
	e.pending = append(e.pending, contentEvent{start: false})
	e.mu.Unlock()
	e.Evaluate(now, nil)
}

// UpdateRoster replaces the roster and re-evaluates. Participants leave by
// being marked inactive.
func (e *Engine) UpdateRoster(now time.Time, roster models.Roster) error {
	if err := roster.Validate(); err != nil {
		return err
	}
	e.Evaluate(now, &Inputs{Roster: roster})
	return nil
}

// IngestTelemetry records a heart-rate sample. The evaluation it prompts is
// debounced.
func (e *Engine) IngestTelemetry(participantID string, heartRate int, at time.Time) models.Reading {
	e.mu.Lock()
	gone := e.tornDown
	e.mu.Unlock()
	if gone {
		return models.Reading{}
	}
	return e.store.Update(participantID, heartRate, at)
}

// Disconnect drops a participant's live profile, for example when their
// device goes away.
func (e *Engine) Disconnect(participantID string) {
	e.mu.Lock()
	gone := e.tornDown
	e.mu.Unlock()
	if gone {
		return
	}
	e.store.Reset(participantID)
}

// Profiles exposes the live profile store for read-side queries.
func (e *Engine) Profiles() *profile.Store {
	return e.store
}

// Snapshot returns the projection from the last evaluation.
func (e *Engine) Snapshot() models.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSnapshot(e.snapshot)
}

// State returns a copy of the governance state.
func (e *Engine) State() models.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// PlaybackPermitted reports whether playback may continue.
func (e *Engine) PlaybackPermitted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Phase.PlaybackPermitted()
}

// Run drives the periodic tick until ctx ends or the engine is torn down.
func (e *Engine) Run(ctx context.Context) error {
	ticker := e.clock.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.done:
			return nil
		case <-ticker.C():
			e.trigger()
		}
	}
}

// Done is closed once the engine is torn down.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// trigger runs a scheduler-driven evaluation at the clock's current time.
func (e *Engine) trigger() {
	_, _, _ = e.flight.Do(evaluateKey, func() (any, error) {
		e.Evaluate(e.clock.Now(), nil)
		return nil, nil
	})
}

// Teardown stops the engine synchronously. Any pending debounce timer is
// released, the phase returns to unlocked, and later evaluations are no-ops.
func (e *Engine) Teardown() {
	e.mu.Lock()
	if e.tornDown {
		e.mu.Unlock()
		return
	}
	e.tornDown = true
	e.debouncer.Stop()
	close(e.done)

	now := e.clock.Now()
	prevOffenders := len(e.state.Offenders)
	var transitions []models.Transition
	if e.state.Phase != models.PhaseUnlocked {
		from := e.state.Phase
		e.resetToUnlocked(now)
		e.state.Seq++
		transitions = append(transitions, e.transition(from, now, models.ReasonTornDown))
	}
	e.state.ContentActive = false
	e.state.Content = nil
	e.pending = nil
	e.requirements = e.resolve(nil)
	e.snapshot = e.buildSnapshot(now)
	change := Change{Snapshot: cloneSnapshot(e.snapshot), Transitions: transitions}
	status := e.snapshot.Status

	e.emitMu.Lock()
	e.mu.Unlock()
	defer e.emitMu.Unlock()

	e.store.ResetAll()
	if e.metrics != nil {
		e.metrics.AddOffenders(-prevOffenders)
	}
	if len(transitions) > 0 {
		e.emit(change)
	}
	e.logger.Info("governance_engine_torn_down", "phase", status)
}

// Evaluate is the single entry point for state changes. When in is nil the
// inputs from the previous call are reused. Repeated calls with the same now
// and unchanged telemetry leave the state and change sequence untouched.
func (e *Engine) Evaluate(now time.Time, in *Inputs) models.Snapshot {
	e.mu.Lock()
	if e.tornDown {
		snap := cloneSnapshot(e.snapshot)
		e.mu.Unlock()
		return snap
	}
	started := time.Now()

	if in != nil {
		if in.Roster != nil {
			e.inputs.Roster = in.Roster.Clone()
			e.boundaries.SetRoster(e.inputs.Roster)
		}
		if in.Profiles != nil {
			e.inputs.Profiles = in.Profiles
		}
	}

	before := e.state.Clone()
	transitions := e.applyContentEvents(now)
	transitions = append(transitions, e.step(now)...)

	changed := before.Phase != e.state.Phase || !before.Offenders.Equal(e.state.Offenders) || len(transitions) > 0
	if changed {
		e.state.Seq++
		for i := range transitions {
			transitions[i].Seq = e.state.Seq
		}
	}
	e.snapshot = e.buildSnapshot(now)
	snap := cloneSnapshot(e.snapshot)
	offenderDelta := len(e.state.Offenders) - len(before.Offenders)

	// Only locals below: mu is released and another evaluation may run.
	e.emitMu.Lock()
	e.mu.Unlock()
	defer e.emitMu.Unlock()

	if e.metrics != nil {
		e.metrics.ObserveEvaluation(time.Since(started))
		e.metrics.AddOffenders(offenderDelta)
	}
	for _, t := range transitions {
		e.logger.Info("governance_phase_transition",
			"from", t.From,
			"to", t.To,
			"seq", t.Seq,
			"reason", t.Reason,
			"offenders", t.Offenders,
		)
		if e.metrics != nil {
			e.metrics.IncrementTransition(string(t.From), string(t.To))
		}
	}
	if changed {
		e.emit(Change{Snapshot: snap, Transitions: transitions})
	}
	return snap
}

func (e *Engine) emit(change Change) {
	if e.onChange != nil {
		e.onChange(change)
	}
}

// applyContentEvents consumes queued content start/end events. Must hold mu.
func (e *Engine) applyContentEvents(now time.Time) []models.Transition {
	var out []models.Transition
	for _, ev := range e.pending {
		from := e.state.Phase
		if from != models.PhaseUnlocked {
			e.resetToUnlocked(now)
			out = append(out, e.transition(from, now, models.ReasonContentEnded))
		}
		e.state.ContentActive = false
		e.state.Content = nil
		if !ev.start {
			continue
		}
		item := ev.item
		e.state.ContentActive = true
		e.state.Content = &item
		e.openEpisode(now)
		out = append(out, e.transition(models.PhaseUnlocked, now, models.ReasonContentStarted))
	}
	e.pending = nil
	return out
}
