// Package profile keeps the live zone state of every participant: the latest
// heart-rate reading, the committed zone and a bounded zone history.
package profile

import (
	"sync"
	"time"

	"pulsegate/internal/governance/models"
	"pulsegate/internal/governance/zones"
)

// DefaultHistorySize bounds the per-participant zone history.
const DefaultHistorySize = 30

// BoundaryProvider resolves the heart-rate table for a participant.
type BoundaryProvider interface {
	Boundaries(participantID string) zones.Boundaries
}

// Store is the ZoneProfileStore. It is written by telemetry ingestion only
// and read by the engine on every evaluation.
type Store struct {
	mu             sync.RWMutex
	boundaries     BoundaryProvider
	historySize    int
	confirmSamples int
	onChange       func(participantID string)
	profiles       map[string]*zoneProfile
}

type zoneProfile struct {
	latest    models.Reading
	hasSample bool
	// candidate is a zone seen in the latest samples but not yet committed.
	candidate      string
	candidateCount int
	history        ring
}

// Option configures a Store.
type Option func(*Store)

// WithHistorySize overrides DefaultHistorySize.
func WithHistorySize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.historySize = n
		}
	}
}

// WithConfirmSamples requires n consecutive samples in a new zone before the
// committed zone changes. 1 commits every sample.
func WithConfirmSamples(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.confirmSamples = n
		}
	}
}

// WithChangeNotifier registers fn to run after every Update.
func WithChangeNotifier(fn func(participantID string)) Option {
	return func(s *Store) {
		s.onChange = fn
	}
}

// New creates an empty store.
func New(boundaries BoundaryProvider, opts ...Option) *Store {
	s := &Store{
		boundaries:     boundaries,
		historySize:    DefaultHistorySize,
		confirmSamples: 1,
		profiles:       make(map[string]*zoneProfile),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetChangeNotifier replaces the change notifier.
func (s *Store) SetChangeNotifier(fn func(participantID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Update ingests one heart-rate sample. Samples are assumed to arrive in
// timestamp order per participant. A sample that maps to no zone (for
// example hr <= 0) clears the committed zone.
func (s *Store) Update(participantID string, heartRate int, at time.Time) models.Reading {
	s.mu.Lock()
	p := s.profiles[participantID]
	if p == nil {
		p = &zoneProfile{history: newRing(s.historySize)}
		s.profiles[participantID] = p
	}

	var zoneID string
	if s.boundaries != nil {
		zoneID, _ = s.boundaries.Boundaries(participantID).ZoneFor(heartRate)
	}

	committed := s.commit(p, zoneID)
	p.latest = models.Reading{HeartRate: heartRate, ZoneID: committed, At: at}
	p.hasSample = true
	if zoneID != "" {
		p.history.push(models.ZoneSample{At: at, ZoneID: zoneID})
	}
	reading := p.latest
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(participantID)
	}
	return reading
}

// commit applies confirm-sample smoothing and returns the committed zone.
// Must be called while holding s.mu.
func (s *Store) commit(p *zoneProfile, zoneID string) string {
	if zoneID == "" {
		p.candidate, p.candidateCount = "", 0
		return ""
	}
	if !p.hasSample || p.latest.ZoneID == "" || s.confirmSamples <= 1 {
		p.candidate, p.candidateCount = "", 0
		return zoneID
	}
	if zoneID == p.latest.ZoneID {
		p.candidate, p.candidateCount = "", 0
		return zoneID
	}
	if zoneID == p.candidate {
		p.candidateCount++
	} else {
		p.candidate, p.candidateCount = zoneID, 1
	}
	if p.candidateCount >= s.confirmSamples {
		p.candidate, p.candidateCount = "", 0
		return zoneID
	}
	return p.latest.ZoneID
}

// Latest returns the most recent reading for a participant.
func (s *Store) Latest(participantID string) (models.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.profiles[participantID]
	if p == nil || !p.hasSample {
		return models.Reading{}, false
	}
	return p.latest, true
}

// HasReached reports whether any raw history sample at or after since was
// at or above zoneID. The engine passes the episode start so "reached"
// resets at episode boundaries.
func (s *Store) HasReached(participantID, zoneID string, catalog *zones.Catalog, since time.Time) bool {
	target := catalog.Rank(zoneID)
	if target == zones.UnknownRank {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.profiles[participantID]
	if p == nil {
		return false
	}
	reached := false
	p.history.each(func(z models.ZoneSample) bool {
		if z.At.Before(since) {
			return true
		}
		if catalog.Rank(z.ZoneID) >= target {
			reached = true
			return false
		}
		return true
	})
	return reached
}

// History returns a copy of the participant's zone history, oldest first.
func (s *Store) History(participantID string) []models.ZoneSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.profiles[participantID]
	if p == nil {
		return nil
	}
	var out []models.ZoneSample
	p.history.each(func(z models.ZoneSample) bool {
		out = append(out, z)
		return true
	})
	return out
}

// Reset drops a participant's profile, e.g. when their device disconnects.
func (s *Store) Reset(participantID string) {
	s.mu.Lock()
	delete(s.profiles, participantID)
	notify := s.onChange
	s.mu.Unlock()
	if notify != nil {
		notify(participantID)
	}
}

// ResetAll drops every profile; used when a new session starts.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = make(map[string]*zoneProfile)
}
