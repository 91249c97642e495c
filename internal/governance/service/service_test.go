package service_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"pulsegate/internal/governance/metrics"
	"pulsegate/internal/governance/models"
	"pulsegate/internal/governance/ports/mocks"
	"pulsegate/internal/governance/service"
	"pulsegate/internal/governance/sessionconfig"
	"pulsegate/internal/governance/store/episode"
	"pulsegate/internal/governance/store/snapshot"
	dErrors "pulsegate/pkg/domain-errors"
	"pulsegate/pkg/platform/audit"
	"pulsegate/pkg/platform/clock"
	"pulsegate/pkg/platform/sentinel"
)

const (
	hrCool   = 80
	hrActive = 110
)

var t0 = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	clock     *clock.FakeClock
	snapshots *snapshot.InMemoryStore
	episodes  *episode.InMemoryStore
	publisher *mocks.MockSnapshotPublisher
	auditor   *mocks.MockAuditPublisher
	metrics   *metrics.Metrics

	mu      sync.Mutex
	actions []string
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.ctx = context.Background()
	s.clock = clock.Fake(t0)
	s.snapshots = snapshot.NewInMemoryStore()
	s.episodes = episode.NewInMemoryStore()
	s.publisher = mocks.NewMockSnapshotPublisher(ctrl)
	s.auditor = mocks.NewMockAuditPublisher(ctrl)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	s.actions = nil

	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev audit.Event) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.actions = append(s.actions, ev.Action)
		return nil
	}).AnyTimes()
}

func (s *ServiceSuite) newService(opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithClock(s.clock),
		service.WithLogger(slog.New(slog.DiscardHandler)),
		service.WithMetrics(s.metrics),
		service.WithSnapshotStore(s.snapshots),
		service.WithSnapshotPublisher(s.publisher),
		service.WithEpisodeStore(s.episodes),
		service.WithAuditPublisher(s.auditor),
		service.WithRecorderBuffer(0),
		service.WithoutTicker(),
	}
	svc := service.New(append(base, opts...)...)
	s.T().Cleanup(func() { svc.Close(context.Background()) })
	return svc
}

func familyConfig() *sessionconfig.File {
	return &sessionconfig.File{
		Rule: sessionconfig.Rule{
			Label:              "Cartoons",
			GovernedLabels:     []string{"kids"},
			TargetZone:         "active",
			GracePeriodSec:     30,
			WarningPeriodSec:   30,
			ChallengeHoldTicks: 3,
		},
		Roster: models.Roster{{ID: "felix", DisplayName: "Felix"}},
	}
}

func (s *ServiceSuite) configure(svc *service.Service) string {
	info, err := svc.Configure(s.ctx, familyConfig())
	s.Require().NoError(err)
	return info.ID
}

func (s *ServiceSuite) startCartoon(svc *service.Service, id string) {
	governed, snap, err := svc.StartContent(s.ctx, id, models.ContentItem{ID: "cartoon-1", Labels: []string{"Kids"}})
	s.Require().NoError(err)
	s.Require().True(governed)
	s.Require().Equal(models.PhaseGrace, snap.Status)
}

func (s *ServiceSuite) advance(svc *service.Service, id string, d time.Duration) models.Snapshot {
	s.clock.Advance(d)
	svc.EvaluateNow(id)
	snap, err := svc.Snapshot(s.ctx, id)
	s.Require().NoError(err)
	return snap
}

func (s *ServiceSuite) ingest(svc *service.Service, id string, hr int) {
	_, err := svc.IngestTelemetry(s.ctx, service.TelemetrySample{
		SessionID:     id,
		ParticipantID: "felix",
		HeartRate:     hr,
		At:            s.clock.Now(),
		Source:        "test",
	})
	s.Require().NoError(err)
}

func (s *ServiceSuite) recordedActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.actions...)
}

func (s *ServiceSuite) TestConfigure() {
	s.Run("invalid config creates no session", func() {
		svc := s.newService()
		cfg := familyConfig()
		cfg.Rule.TargetZone = "lava"

		info, err := svc.Configure(s.ctx, cfg)
		s.Require().Error(err)
		s.Nil(info)
		s.True(models.IsConfigurationError(err))
		s.Empty(svc.Sessions(s.ctx))
	})

	s.Run("valid config stores an initial snapshot", func() {
		svc := s.newService()
		id := s.configure(svc)

		stored, err := s.snapshots.Latest(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(models.PhaseUnlocked, stored.Status)
		s.Len(svc.Sessions(s.ctx), 1)
		s.Equal(1.0, promtest.ToFloat64(s.metrics.ActiveSessions))
		s.Contains(s.recordedActions(), string(audit.EventSessionConfigured))
	})
}

func (s *ServiceSuite) TestLockEpisodeLifecycle() {
	svc := s.newService()
	id := s.configure(svc)
	s.startCartoon(svc, id)

	snap := s.advance(svc, id, 30*time.Second)
	s.Equal(models.PhaseWarning, snap.Status)

	snap = s.advance(svc, id, 30*time.Second)
	s.Equal(models.PhaseLocked, snap.Status)
	s.False(snap.PlaybackPermitted)

	s.ingest(svc, id, hrActive)
	svc.EvaluateNow(id)
	snap, err := svc.Snapshot(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.PhaseChallenge, snap.Status)

	snap = s.advance(svc, id, 2*time.Second)
	s.Equal(models.PhaseUnlocked, snap.Status)

	playback, err := svc.Playback(s.ctx, id)
	s.Require().NoError(err)
	s.True(playback.Permitted)

	eps, err := svc.Episodes(s.ctx, id)
	s.Require().NoError(err)
	s.Require().Len(eps, 1)
	ep := eps[0]
	s.Equal(models.EpisodeCleared, ep.Outcome)
	s.Equal(models.PhaseLocked, ep.PeakPhase)
	s.Equal("cartoon-1", ep.ContentID)
	s.Equal([]string{"felix"}, ep.Cohort)
	s.Require().NotNil(ep.WarnedAt)
	s.Require().NotNil(ep.LockedAt)
	s.True(ep.WarnedAt.Equal(t0.Add(30 * time.Second)))
	s.True(ep.LockedAt.Equal(t0.Add(60 * time.Second)))

	s.Equal([]string{
		string(audit.EventSessionConfigured),
		string(audit.EventGraceStarted),
		string(audit.EventContentStarted),
		string(audit.EventWarningIssued),
		string(audit.EventLockTriggered),
		string(audit.EventChallengeStarted),
		string(audit.EventLockReleased),
		string(audit.EventPlaybackResumed),
	}, s.recordedActions())

	stored, err := s.snapshots.Latest(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(snap.Seq, stored.Seq)
}

func (s *ServiceSuite) TestRecoveryDuringGrace() {
	svc := s.newService()
	id := s.configure(svc)
	s.startCartoon(svc, id)

	s.clock.Advance(10 * time.Second)
	s.ingest(svc, id, hrActive)
	svc.EvaluateNow(id)

	snap, err := svc.Snapshot(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.PhaseUnlocked, snap.Status)

	eps, err := svc.Episodes(s.ctx, id)
	s.Require().NoError(err)
	s.Require().Len(eps, 1)
	s.Equal(models.EpisodeRecovered, eps[0].Outcome)
	s.Equal(10*time.Second, eps[0].Duration())
	s.False(eps[0].Locked())
}

func (s *ServiceSuite) TestUngovernedContent() {
	svc := s.newService()
	id := s.configure(svc)

	governed, snap, err := svc.StartContent(s.ctx, id, models.ContentItem{ID: "news", Labels: []string{"news"}})
	s.Require().NoError(err)
	s.False(governed)
	s.True(snap.PlaybackPermitted)

	eps, err := svc.Episodes(s.ctx, id)
	s.Require().NoError(err)
	s.Empty(eps)
}

func (s *ServiceSuite) TestEndContentClosesEpisode() {
	svc := s.newService()
	id := s.configure(svc)
	s.startCartoon(svc, id)
	s.advance(svc, id, 30*time.Second)

	snap, err := svc.EndContent(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.PhaseUnlocked, snap.Status)

	eps, err := svc.Episodes(s.ctx, id)
	s.Require().NoError(err)
	s.Require().Len(eps, 1)
	s.Equal(models.EpisodeContentEnded, eps[0].Outcome)
	s.Equal(models.PhaseWarning, eps[0].PeakPhase)
	s.NotContains(s.recordedActions(), string(audit.EventPlaybackResumed))
}

func (s *ServiceSuite) TestUpdateRoster() {
	svc := s.newService()
	id := s.configure(svc)
	s.startCartoon(svc, id)

	snap, err := svc.UpdateRoster(s.ctx, id, models.Roster{{ID: "felix", Inactive: true}})
	s.Require().NoError(err)
	s.Equal(models.PhaseGrace, snap.Status, "an empty active roster is never compliant")

	_, err = svc.UpdateRoster(s.ctx, id, models.Roster{{ID: "a"}, {ID: "a"}})
	s.True(models.IsConfigurationError(err))
	s.Contains(s.recordedActions(), string(audit.EventRosterUpdated))
}

func (s *ServiceSuite) TestTeardown() {
	svc := s.newService()
	id := s.configure(svc)
	s.startCartoon(svc, id)

	s.Require().NoError(svc.Teardown(s.ctx, id))

	eps, err := svc.Episodes(s.ctx, id)
	s.Require().NoError(err)
	s.Require().Len(eps, 1)
	s.Equal(models.EpisodeTornDown, eps[0].Outcome)
	s.NotNil(eps[0].EndedAt)

	_, err = s.snapshots.Latest(s.ctx, id)
	s.ErrorIs(err, sentinel.ErrNotFound)

	err = svc.Teardown(s.ctx, id)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal(0.0, promtest.ToFloat64(s.metrics.ActiveSessions))
	s.Contains(s.recordedActions(), string(audit.EventSessionTornDown))
}

func (s *ServiceSuite) TestUnknownSession() {
	svc := s.newService()
	const id = "missing"

	_, _, err := svc.StartContent(s.ctx, id, models.ContentItem{ID: "x"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = svc.EndContent(s.ctx, id)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = svc.UpdateRoster(s.ctx, id, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = svc.IngestTelemetry(s.ctx, service.TelemetrySample{SessionID: id, ParticipantID: "felix", HeartRate: 90})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.True(dErrors.HasCode(svc.Disconnect(s.ctx, id, "felix"), dErrors.CodeNotFound))
	_, err = svc.Snapshot(s.ctx, id)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = svc.Playback(s.ctx, id)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestSnapshotOfRemoteSession() {
	svc := s.newService()
	remote := models.Snapshot{Status: models.PhaseLocked, Seq: 9}
	s.Require().NoError(s.snapshots.Save(s.ctx, "remote", remote))

	snap, err := svc.Snapshot(s.ctx, "remote")
	s.Require().NoError(err)
	s.Equal(uint64(9), snap.Seq)

	playback, err := svc.Playback(s.ctx, "remote")
	s.Require().NoError(err)
	s.False(playback.Permitted)
	s.Equal(models.PhaseLocked, playback.Status)
}

func (s *ServiceSuite) TestSnapshotStoreOutage() {
	ctrl := gomock.NewController(s.T())
	store := mocks.NewMockSnapshotStore(ctrl)
	store.EXPECT().Latest(gomock.Any(), "remote").Return(models.Snapshot{}, errors.New("connection refused"))
	svc := s.newService(service.WithSnapshotStore(store))

	_, err := svc.Snapshot(s.ctx, "remote")
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestIngestTelemetryValidation() {
	svc := s.newService()
	id := s.configure(svc)

	for _, hr := range []int{-1, 0, models.MaxHeartRate + 1} {
		_, err := svc.IngestTelemetry(s.ctx, service.TelemetrySample{SessionID: id, ParticipantID: "felix", HeartRate: hr})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), "heart rate %d", hr)
	}
	_, err := svc.IngestTelemetry(s.ctx, service.TelemetrySample{SessionID: id, ParticipantID: "felix", HeartRate: models.MaxHeartRate})
	s.Require().NoError(err)

	_, err = svc.IngestTelemetry(s.ctx, service.TelemetrySample{SessionID: id, HeartRate: 100})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	reading, err := svc.IngestTelemetry(s.ctx, service.TelemetrySample{SessionID: id, ParticipantID: "felix", HeartRate: hrCool})
	s.Require().NoError(err)
	s.Equal("cool", reading.ZoneID)
	s.True(reading.At.Equal(t0), "missing timestamp defaults to the service clock")
	s.Equal(2.0, promtest.ToFloat64(s.metrics.TelemetrySamples.WithLabelValues("unknown")))
}

func (s *ServiceSuite) TestPublishFailureIsCounted() {
	ctrl := gomock.NewController(s.T())
	publisher := mocks.NewMockSnapshotPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down")).AnyTimes()
	svc := s.newService(service.WithSnapshotPublisher(publisher))

	id := s.configure(svc)
	s.startCartoon(svc, id)

	s.Equal(2.0, promtest.ToFloat64(s.metrics.SnapshotPublishFails))
}

func (s *ServiceSuite) TestFullRecorderQueueDrops() {
	svc := s.newService(service.WithRecorderBuffer(1))
	id := s.configure(svc)

	s.startCartoon(svc, id)
	s.advance(svc, id, 30*time.Second)

	s.Equal(1.0, promtest.ToFloat64(s.metrics.RecorderDropped))
}

func (s *ServiceSuite) TestRunDrainsQueue() {
	svc := s.newService(service.WithRecorderBuffer(8))
	id := s.configure(svc)
	s.startCartoon(svc, id)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	s.Eventually(func() bool {
		eps, err := s.episodes.ListBySession(s.ctx, id)
		return err == nil && len(eps) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	s.NoError(<-done)

	stored, err := s.snapshots.Latest(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.PhaseGrace, stored.Status)
}
