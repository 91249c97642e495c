package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"pulsegate/internal/governance/engine"
	"pulsegate/internal/governance/models"
	"pulsegate/internal/governance/ports"
	"pulsegate/pkg/platform/audit"
)

// record is one unit of recorder work: an engine change, or the marker that
// a session has been torn down.
type record struct {
	sessionID string
	change    engine.Change
	final     bool
}

// recorder performs the I/O that follows an evaluation. Engines hand it
// changes through a buffered queue so evaluation never waits on a store.
type recorder struct {
	svc    *Service
	buffer int
	queue  chan record

	// mu guards open. It is only contended when recording inline, where
	// several sessions evaluate on their own goroutines.
	mu   sync.Mutex
	open map[string]*models.Episode
}

// enqueue hands a change to the recorder. A full queue drops the change;
// the next change carries a complete snapshot, so only episode detail and
// audit for the dropped transitions are lost.
func (r *recorder) enqueue(rec record) {
	if r.queue == nil {
		r.process(context.Background(), rec)
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.svc.metrics.IncrementRecorderDropped()
		r.svc.logger.Warn("governance_recorder_dropped",
			"session_id", rec.sessionID,
			"seq", rec.change.Snapshot.Seq,
		)
	}
}

// enqueueFinal waits for room so teardown is always recorded.
func (r *recorder) enqueueFinal(ctx context.Context, rec record) {
	if r.queue == nil {
		r.process(ctx, rec)
		return
	}
	timer := time.NewTimer(teardownEnqueueWait)
	defer timer.Stop()
	select {
	case r.queue <- rec:
	case <-ctx.Done():
		r.svc.metrics.IncrementRecorderDropped()
	case <-timer.C:
		r.svc.metrics.IncrementRecorderDropped()
		r.svc.logger.Warn("governance_recorder_teardown_dropped", "session_id", rec.sessionID)
	}
}

func (r *recorder) run(ctx context.Context) error {
	if r.queue == nil {
		<-ctx.Done()
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return nil
		case rec := <-r.queue:
			r.process(ctx, rec)
		}
	}
}

// drain records whatever is already queued, on a fresh context.
func (r *recorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case rec := <-r.queue:
			r.process(ctx, rec)
		default:
			return
		}
	}
}

func (r *recorder) process(ctx context.Context, rec record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.final {
		r.finish(ctx, rec.sessionID)
		return
	}
	for _, t := range rec.change.Transitions {
		r.track(ctx, rec.sessionID, rec.change.Snapshot, t)
	}
	r.save(ctx, rec.sessionID, rec.change.Snapshot)
}

// save stores and fans out a snapshot.
func (r *recorder) save(ctx context.Context, sessionID string, snap models.Snapshot) {
	s := r.svc
	if s.snapshots != nil {
		if err := s.snapshots.Save(ctx, sessionID, snap); err != nil {
			s.logger.WarnContext(ctx, "governance_snapshot_save_failed",
				"session_id", sessionID,
				"seq", snap.Seq,
				"error", err,
			)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, sessionID, snap); err != nil {
			s.metrics.IncrementSnapshotPublishFailure()
			s.logger.WarnContext(ctx, "governance_snapshot_publish_failed",
				"session_id", sessionID,
				"seq", snap.Seq,
				"error", err,
			)
		}
	}
}

// track folds one transition into the session's episode and audit trail.
func (r *recorder) track(ctx context.Context, sessionID string, snap models.Snapshot, t models.Transition) {
	s := r.svc
	at := t.At
	ep := r.open[sessionID]

	switch t.To {
	case models.PhaseGrace:
		ep = &models.Episode{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			StartedAt: at,
			PeakPhase: models.PhaseGrace,
			Outcome:   models.EpisodeOpen,
		}
		if snap.Content != nil {
			ep.ContentID = snap.Content.ID
		}
		r.open[sessionID] = ep
		r.audit(ctx, audit.EventGraceStarted, sessionID, t, blockingIDs(snap))
	case models.PhaseWarning:
		if ep != nil {
			ep.WarnedAt = &at
			ep.PeakPhase = models.PhaseWarning
		}
		r.audit(ctx, audit.EventWarningIssued, sessionID, t, t.Offenders)
	case models.PhaseLocked:
		if ep != nil {
			if ep.LockedAt == nil {
				ep.LockedAt = &at
			}
			ep.PeakPhase = models.PhaseLocked
			ep.Cohort = mergeCohort(ep.Cohort, t.Cohort)
		}
		if t.From == models.PhaseChallenge {
			r.audit(ctx, audit.EventChallengeFailed, sessionID, t, t.Cohort)
		} else {
			r.audit(ctx, audit.EventLockTriggered, sessionID, t, t.Cohort)
		}
	case models.PhaseChallenge:
		r.audit(ctx, audit.EventChallengeStarted, sessionID, t, t.Cohort)
	case models.PhaseUnlocked:
		if ep != nil {
			ep.EndedAt = &at
			ep.Outcome = outcomeFor(t)
			delete(r.open, sessionID)
		}
		switch t.From {
		case models.PhaseChallenge, models.PhaseLocked:
			r.audit(ctx, audit.EventLockReleased, sessionID, t, t.Cohort)
		}
		if t.Reason == models.ReasonAllCompliant || t.Reason == models.ReasonHoldComplete {
			r.audit(ctx, audit.EventPlaybackResumed, sessionID, t, nil)
		}
	}

	if ep != nil && s.episodes != nil {
		if err := s.episodes.Save(ctx, *ep); err != nil {
			s.logger.WarnContext(ctx, "governance_episode_save_failed",
				"session_id", sessionID,
				"episode_id", ep.ID,
				"error", err,
			)
		}
	}
}

// finish closes any episode left open and forgets the session's snapshot.
func (r *recorder) finish(ctx context.Context, sessionID string) {
	s := r.svc
	if ep, ok := r.open[sessionID]; ok {
		now := s.clock.Now()
		ep.EndedAt = &now
		ep.Outcome = models.EpisodeTornDown
		delete(r.open, sessionID)
		if s.episodes != nil {
			if err := s.episodes.Save(ctx, *ep); err != nil {
				s.logger.WarnContext(ctx, "governance_episode_save_failed",
					"session_id", sessionID,
					"episode_id", ep.ID,
					"error", err,
				)
			}
		}
	}
	if s.snapshots != nil {
		if err := s.snapshots.Delete(ctx, sessionID); err != nil {
			s.logger.WarnContext(ctx, "governance_snapshot_delete_failed",
				"session_id", sessionID,
				"error", err,
			)
		}
	}
}

func (r *recorder) audit(ctx context.Context, event audit.AuditEvent, sessionID string, t models.Transition, participants []string) {
	ports.LogAudit(ctx, r.svc.logger, r.svc.auditor, event,
		"session_id", sessionID,
		"reason", t.Reason,
		"from", string(t.From),
		"to", string(t.To),
		"seq", t.Seq,
		"participants", participants,
	)
}

func outcomeFor(t models.Transition) models.EpisodeOutcome {
	switch t.Reason {
	case models.ReasonHoldComplete:
		return models.EpisodeCleared
	case models.ReasonAllCompliant:
		return models.EpisodeRecovered
	case models.ReasonTornDown:
		return models.EpisodeTornDown
	default:
		return models.EpisodeContentEnded
	}
}

func mergeCohort(have, add []string) []string {
	out := append(slices.Clone(have), add...)
	slices.Sort(out)
	return slices.Compact(out)
}

func blockingIDs(snap models.Snapshot) []string {
	return slices.Clone(snap.Blocking)
}
