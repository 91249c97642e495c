package profile

import (
	"sync"

	"pulsegate/internal/governance/models"
	"pulsegate/internal/governance/zones"
)

// RosterBoundaries builds boundary tables from the zone catalog and each
// participant's personalization, caching them per participant.
type RosterBoundaries struct {
	mu      sync.RWMutex
	catalog *zones.Catalog
	roster  map[string]models.Participant
	cache   map[string]zones.Boundaries
}

// NewRosterBoundaries creates a provider for roster.
func NewRosterBoundaries(catalog *zones.Catalog, roster models.Roster) *RosterBoundaries {
	b := &RosterBoundaries{catalog: catalog}
	b.SetRoster(roster)
	return b
}

// SetRoster replaces the roster and clears cached tables.
func (b *RosterBoundaries) SetRoster(roster models.Roster) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roster = make(map[string]models.Participant, len(roster))
	for _, p := range roster {
		b.roster[p.ID] = p
	}
	b.cache = make(map[string]zones.Boundaries, len(roster))
}

// Boundaries returns the table for participantID. Unknown participants get
// the catalog's default bounds.
func (b *RosterBoundaries) Boundaries(participantID string) zones.Boundaries {
	b.mu.RLock()
	cached, ok := b.cache[participantID]
	b.mu.RUnlock()
	if ok {
		return cached
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if cached, ok := b.cache[participantID]; ok {
		return cached
	}
	p := b.roster[participantID]
	table := b.catalog.Boundaries(p.Personalization())
	b.cache[participantID] = table
	return table
}
