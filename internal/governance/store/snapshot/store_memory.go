// Package snapshot stores the latest governance snapshot per session.
package snapshot

import (
	"context"
	"sync"

	"pulsegate/internal/governance/models"
	"pulsegate/pkg/platform/sentinel"
)

// InMemoryStore keeps snapshots in process. It backs single-node
// deployments and is the fallback when Redis is unavailable.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]models.Snapshot
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[string]models.Snapshot)}
}

// Save keeps snap unless a snapshot with a higher sequence is already held.
func (s *InMemoryStore) Save(_ context.Context, sessionID string, snap models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.snapshots[sessionID]; ok && cur.Seq > snap.Seq {
		return nil
	}
	s.snapshots[sessionID] = snap
	return nil
}

func (s *InMemoryStore) Latest(_ context.Context, sessionID string) (models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[sessionID]
	if !ok {
		return models.Snapshot{}, sentinel.ErrNotFound
	}
	return snap, nil
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, sessionID)
	return nil
}
