// Package service owns the governed sessions of a node: one engine per
// session, plus the recorder that turns engine changes into stored
// snapshots, lock episodes and audit events.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pulsegate/internal/governance/engine"
	"pulsegate/internal/governance/metrics"
	"pulsegate/internal/governance/models"
	"pulsegate/internal/governance/ports"
	"pulsegate/internal/governance/sessionconfig"
	dErrors "pulsegate/pkg/domain-errors"
	"pulsegate/pkg/platform/audit"
	"pulsegate/pkg/platform/clock"
	"pulsegate/pkg/platform/sentinel"
	"pulsegate/pkg/requestcontext"
)

const (
	tracerName = "pulsegate/internal/governance/service"

	defaultRecorderBuffer = 256
	teardownEnqueueWait   = 2 * time.Second
)

// Service manages governed sessions.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*session

	snapshots ports.SnapshotStore
	publisher ports.SnapshotPublisher
	episodes  ports.EpisodeStore
	auditor   ports.AuditPublisher

	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   clock.Clock
	tracer  trace.Tracer

	recorder *recorder
	ticking  bool

	runCtx    context.Context
	cancelRun context.CancelFunc
	engines   sync.WaitGroup
}

type session struct {
	info   SessionInfo
	engine *engine.Engine
}

// SessionInfo describes a configured session.
type SessionInfo struct {
	ID           string    `json:"id"`
	RuleLabel    string    `json:"rule_label"`
	TargetZone   string    `json:"target_zone"`
	Participants int       `json:"participants"`
	ConfiguredAt time.Time `json:"configured_at"`
}

// PlaybackStatus is the playback signal for a session.
type PlaybackStatus struct {
	Permitted bool         `json:"permitted"`
	Status    models.Phase `json:"status"`
	Seq       uint64       `json:"seq"`
}

// TelemetrySample is one heart-rate reading addressed to a session.
type TelemetrySample struct {
	SessionID     string
	ParticipantID string
	HeartRate     int
	At            time.Time
	// Source names the bridge the sample came through, for metrics.
	Source string
}

// Option configures a Service.
type Option func(*Service)

// WithSnapshotStore sets where the latest snapshot is kept.
func WithSnapshotStore(store ports.SnapshotStore) Option {
	return func(s *Service) {
		s.snapshots = store
	}
}

// WithSnapshotPublisher sets the fan-out target for snapshots.
func WithSnapshotPublisher(p ports.SnapshotPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithEpisodeStore sets where lock episodes are persisted.
func WithEpisodeStore(store ports.EpisodeStore) Option {
	return func(s *Service) {
		s.episodes = store
	}
}

// WithAuditPublisher sets the audit sink.
func WithAuditPublisher(p ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock sets the clock engines evaluate against.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithRecorderBuffer sets the recorder queue size. Zero records inline on
// the evaluating goroutine, which tests and the CLI use for determinism.
func WithRecorderBuffer(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.recorder.buffer = n
		}
	}
}

// New constructs a Service. Stores default to nothing: without them the
// service still governs, it just records nothing.
func New(opts ...Option) *Service {
	s := &Service{
		sessions: make(map[string]*session),
		logger:   slog.Default(),
		clock:    clock.Real(),
		tracer:   otel.Tracer(tracerName),
		ticking:  true,
		recorder: &recorder{buffer: defaultRecorderBuffer, open: make(map[string]*models.Episode)},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recorder.svc = s
	if s.recorder.buffer > 0 {
		s.recorder.queue = make(chan record, s.recorder.buffer)
	}
	s.runCtx, s.cancelRun = context.WithCancel(context.Background())
	return s
}

// Configure validates a session configuration and starts an engine for it.
func (s *Service) Configure(ctx context.Context, cfg *sessionconfig.File) (*SessionInfo, error) {
	ctx, span := s.startSpan(ctx, "governance.Configure")
	defer span.End()

	if cfg == nil {
		return nil, s.fail(span, dErrors.New(dErrors.CodeBadRequest, "session config is required"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, s.fail(span, err)
	}

	sessionID := uuid.NewString()
	rule := cfg.GovernanceRule()
	eng, err := engine.Configure(rule, cfg.Roster, cfg.ZoneDefinitions(),
		engine.WithConfig(cfg.EngineConfig()),
		engine.WithClock(s.clock),
		engine.WithLogger(s.logger.With("session_id", sessionID)),
		engine.WithMetrics(s.metrics),
		engine.WithChangeHook(func(c engine.Change) {
			s.recorder.enqueue(record{sessionID: sessionID, change: c})
		}),
	)
	if err != nil {
		return nil, s.fail(span, err)
	}

	info := SessionInfo{
		ID:           sessionID,
		RuleLabel:    eng.Rule().Label,
		TargetZone:   eng.Rule().TargetZone,
		Participants: len(cfg.Roster),
		ConfiguredAt: requestcontext.Now(ctx),
	}
	s.mu.Lock()
	s.sessions[sessionID] = &session{info: info, engine: eng}
	active := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SetActiveSessions(active)

	if s.ticking {
		s.engines.Add(1)
		go func() {
			defer s.engines.Done()
			_ = eng.Run(s.runCtx)
		}()
	}

	span.SetAttributes(attribute.String("session.id", sessionID))
	s.recorder.save(ctx, sessionID, eng.Snapshot())
	ports.LogAudit(ctx, s.logger, s.auditor, audit.EventSessionConfigured,
		"session_id", sessionID,
		"reason", rule.Label,
		"participants", participantIDs(cfg.Roster),
	)
	return &info, nil
}

// StartContent starts a content item. governed is false when the session's
// rule does not apply to the item; playback then proceeds untouched.
func (s *Service) StartContent(ctx context.Context, sessionID string, item models.ContentItem) (governed bool, snap models.Snapshot, err error) {
	ctx, span := s.startSpan(ctx, "governance.StartContent", attribute.String("session.id", sessionID))
	defer span.End()

	sess, err := s.session(sessionID)
	if err != nil {
		return false, models.Snapshot{}, s.fail(span, err)
	}
	if item.ID == "" {
		return false, models.Snapshot{}, s.fail(span, dErrors.New(dErrors.CodeInvalidInput, "content id is required"))
	}
	governed = sess.engine.StartContent(s.clock.Now(), item)
	span.SetAttributes(attribute.Bool("content.governed", governed))
	if governed {
		ports.LogAudit(ctx, s.logger, s.auditor, audit.EventContentStarted,
			"session_id", sessionID,
			"content_id", item.ID,
			"reason", sess.engine.Rule().Label,
		)
	}
	return governed, sess.engine.Snapshot(), nil
}

// EndContent ends the governed item and unlocks.
func (s *Service) EndContent(ctx context.Context, sessionID string) (models.Snapshot, error) {
	ctx, span := s.startSpan(ctx, "governance.EndContent", attribute.String("session.id", sessionID))
	defer span.End()

	sess, err := s.session(sessionID)
	if err != nil {
		return models.Snapshot{}, s.fail(span, err)
	}
	sess.engine.EndContent(s.clock.Now())
	ports.LogAudit(ctx, s.logger, s.auditor, audit.EventContentEnded, "session_id", sessionID)
	return sess.engine.Snapshot(), nil
}

// UpdateRoster replaces a session's roster.
func (s *Service) UpdateRoster(ctx context.Context, sessionID string, roster models.Roster) (models.Snapshot, error) {
	ctx, span := s.startSpan(ctx, "governance.UpdateRoster", attribute.String("session.id", sessionID))
	defer span.End()

	sess, err := s.session(sessionID)
	if err != nil {
		return models.Snapshot{}, s.fail(span, err)
	}
	if err := sess.engine.UpdateRoster(s.clock.Now(), roster); err != nil {
		return models.Snapshot{}, s.fail(span, err)
	}
	s.mu.Lock()
	sess.info.Participants = len(roster)
	s.mu.Unlock()
	ports.LogAudit(ctx, s.logger, s.auditor, audit.EventRosterUpdated,
		"session_id", sessionID,
		"participants", participantIDs(roster.ActiveParticipants()),
	)
	return sess.engine.Snapshot(), nil
}

// IngestTelemetry feeds a heart-rate sample to the session's profile store.
// Samples for participants outside the roster are kept but never govern.
func (s *Service) IngestTelemetry(ctx context.Context, sample TelemetrySample) (models.Reading, error) {
	_, span := s.startSpan(ctx, "governance.IngestTelemetry",
		attribute.String("session.id", sample.SessionID),
		attribute.String("participant.id", sample.ParticipantID),
	)
	defer span.End()

	if sample.ParticipantID == "" {
		return models.Reading{}, s.fail(span, dErrors.New(dErrors.CodeInvalidInput, "participant id is required"))
	}
	if !models.ValidHeartRate(sample.HeartRate) {
		return models.Reading{}, s.fail(span, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("heart rate must be in (0, %d]", models.MaxHeartRate)))
	}
	sess, err := s.session(sample.SessionID)
	if err != nil {
		return models.Reading{}, s.fail(span, err)
	}
	at := sample.At
	if at.IsZero() {
		at = s.clock.Now()
	}
	source := sample.Source
	if source == "" {
		source = "unknown"
	}
	s.metrics.IncrementTelemetry(source)
	return sess.engine.IngestTelemetry(sample.ParticipantID, sample.HeartRate, at), nil
}

// Disconnect drops a participant's live profile.
func (s *Service) Disconnect(ctx context.Context, sessionID, participantID string) error {
	_, span := s.startSpan(ctx, "governance.Disconnect", attribute.String("session.id", sessionID))
	defer span.End()

	sess, err := s.session(sessionID)
	if err != nil {
		return s.fail(span, err)
	}
	sess.engine.Disconnect(participantID)
	return nil
}

// Snapshot returns the session's lock screen projection. Sessions owned by
// another node are served from the shared snapshot store.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (models.Snapshot, error) {
	ctx, span := s.startSpan(ctx, "governance.Snapshot", attribute.String("session.id", sessionID))
	defer span.End()

	sess, err := s.session(sessionID)
	if err == nil {
		return sess.engine.Snapshot(), nil
	}
	if s.snapshots == nil {
		return models.Snapshot{}, s.fail(span, err)
	}
	snap, serr := s.snapshots.Latest(ctx, sessionID)
	if serr != nil {
		if errors.Is(serr, sentinel.ErrNotFound) {
			return models.Snapshot{}, s.fail(span, err)
		}
		return models.Snapshot{}, s.fail(span, dErrors.Wrap(serr, dErrors.CodeUnavailable, "snapshot store unavailable"))
	}
	return snap, nil
}

// Playback returns whether playback may continue.
func (s *Service) Playback(ctx context.Context, sessionID string) (PlaybackStatus, error) {
	snap, err := s.Snapshot(ctx, sessionID)
	if err != nil {
		return PlaybackStatus{}, err
	}
	return PlaybackStatus{Permitted: snap.PlaybackPermitted, Status: snap.Status, Seq: snap.Seq}, nil
}

// Episodes lists a session's lock episodes.
func (s *Service) Episodes(ctx context.Context, sessionID string) ([]models.Episode, error) {
	ctx, span := s.startSpan(ctx, "governance.Episodes", attribute.String("session.id", sessionID))
	defer span.End()

	if s.episodes == nil {
		return []models.Episode{}, nil
	}
	eps, err := s.episodes.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeUnavailable, "episode store unavailable"))
	}
	if eps == nil {
		eps = []models.Episode{}
	}
	return eps, nil
}

// Sessions lists the sessions this node owns, oldest first.
func (s *Service) Sessions(_ context.Context) []SessionInfo {
	s.mu.RLock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.info)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConfiguredAt.Equal(out[j].ConfiguredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConfiguredAt.Before(out[j].ConfiguredAt)
	})
	return out
}

// Teardown stops a session's engine and forgets the session.
func (s *Service) Teardown(ctx context.Context, sessionID string) error {
	ctx, span := s.startSpan(ctx, "governance.Teardown", attribute.String("session.id", sessionID))
	defer span.End()

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	active := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return s.fail(span, errSessionNotFound(sessionID))
	}
	s.metrics.SetActiveSessions(active)

	sess.engine.Teardown()
	s.recorder.enqueueFinal(ctx, record{sessionID: sessionID, final: true})
	ports.LogAudit(ctx, s.logger, s.auditor, audit.EventSessionTornDown, "session_id", sessionID)
	return nil
}

// Run drains the recorder queue until ctx ends. With an inline recorder it
// simply blocks.
func (s *Service) Run(ctx context.Context) error {
	return s.recorder.run(ctx)
}

// Close tears every session down and waits for the engine loops to exit.
func (s *Service) Close(ctx context.Context) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	for _, id := range ids {
		_ = s.Teardown(ctx, id)
	}
	s.cancelRun()
	s.engines.Wait()
}

func (s *Service) session(sessionID string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, errSessionNotFound(sessionID)
	}
	return sess, nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func errSessionNotFound(sessionID string) error {
	return dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "session "+sessionID+" not found")
}

func participantIDs(roster models.Roster) []string {
	out := make([]string, 0, len(roster))
	for _, p := range roster {
		out = append(out, p.ID)
	}
	return out
}
