// Package episode persists lock episode history.
package episode

import (
	"context"
	"slices"
	"sort"
	"sync"

	"pulsegate/internal/governance/models"
)

// InMemoryStore keeps episodes in process.
type InMemoryStore struct {
	mu       sync.RWMutex
	episodes map[string]models.Episode
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{episodes: make(map[string]models.Episode)}
}

func (s *InMemoryStore) Save(_ context.Context, ep models.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.episodes[ep.ID] = clone(ep)
	return nil
}

func (s *InMemoryStore) ListBySession(_ context.Context, sessionID string) ([]models.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Episode
	for _, ep := range s.episodes {
		if ep.SessionID == sessionID {
			out = append(out, clone(ep))
		}
	}
	sortEpisodes(out)
	return out, nil
}

// ListByParticipant returns every episode whose lock cohort included
// participantID, oldest first.
func (s *InMemoryStore) ListByParticipant(_ context.Context, participantID string) ([]models.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Episode
	for _, ep := range s.episodes {
		if slices.Contains(ep.Cohort, participantID) {
			out = append(out, clone(ep))
		}
	}
	sortEpisodes(out)
	return out, nil
}

func sortEpisodes(eps []models.Episode) {
	sort.Slice(eps, func(i, j int) bool {
		if eps[i].StartedAt.Equal(eps[j].StartedAt) {
			return eps[i].ID < eps[j].ID
		}
		return eps[i].StartedAt.Before(eps[j].StartedAt)
	})
}

func clone(ep models.Episode) models.Episode {
	out := ep
	out.Cohort = slices.Clone(ep.Cohort)
	return out
}
