// Package zones holds the heart-rate zone catalog: the ordered list of zones
// every comparison in the governance engine is made against.
package zones

import (
	"fmt"
	"strings"

	dErrors "pulsegate/pkg/domain-errors"
)

// UnknownRank is the rank of any zone id the catalog does not know. It is
// below every configured zone so it never satisfies a requirement.
const UnknownRank = -1

// Definition is one entry of the zone catalog configuration.
type Definition struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Color string `json:"color" yaml:"color"`
	// MinHeartRate is the default lower bound in bpm for this zone.
	MinHeartRate int `json:"min_heart_rate,omitempty" yaml:"min_heart_rate,omitempty"`
	// MinPercent is the lower bound as a fraction of a participant's HR max.
	// It takes precedence over MinHeartRate when the participant's HR max is known.
	MinPercent float64 `json:"min_percent,omitempty" yaml:"min_percent,omitempty"`
}

// Zone is an immutable catalog entry.
type Zone struct {
	ID           string
	Name         string
	Color        string
	Rank         int
	MinHeartRate int
	MinPercent   float64
}

// Catalog is the single source of truth for zone metadata and ordering.
type Catalog struct {
	zones []Zone
	byID  map[string]int
}

// NewCatalog builds a catalog from definitions listed in ascending intensity.
// The rank of each zone is its index.
func NewCatalog(defs []Definition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidConfig, "zone catalog must define at least one zone")
	}
	c := &Catalog{
		zones: make([]Zone, 0, len(defs)),
		byID:  make(map[string]int, len(defs)),
	}
	for i, def := range defs {
		id := strings.TrimSpace(def.ID)
		if id == "" {
			return nil, dErrors.New(dErrors.CodeInvalidConfig, fmt.Sprintf("zone at index %d has no id", i))
		}
		if _, dup := c.byID[id]; dup {
			return nil, dErrors.New(dErrors.CodeInvalidConfig, fmt.Sprintf("duplicate zone id %q", id))
		}
		if def.MinPercent < 0 || def.MinPercent > 1.5 {
			return nil, dErrors.New(dErrors.CodeInvalidConfig, fmt.Sprintf("zone %q min_percent out of range", id))
		}
		c.byID[id] = i
		c.zones = append(c.zones, Zone{
			ID:           id,
			Name:         def.Name,
			Color:        def.Color,
			Rank:         i,
			MinHeartRate: def.MinHeartRate,
			MinPercent:   def.MinPercent,
		})
	}
	return c, nil
}

// Resolve returns the zone for id. Unknown ids report false; callers fall
// back to a label derived from the raw id.
func (c *Catalog) Resolve(id string) (Zone, bool) {
	if c == nil {
		return Zone{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return Zone{}, false
	}
	return c.zones[i], true
}

// Contains reports whether id is a configured zone.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.Resolve(id)
	return ok
}

// Rank returns the rank of id, or UnknownRank.
func (c *Catalog) Rank(id string) int {
	z, ok := c.Resolve(id)
	if !ok {
		return UnknownRank
	}
	return z.Rank
}

// Compare orders two zone ids by rank: -1 when a is less intense than b,
// 1 when more intense, 0 when equal.
func (c *Catalog) Compare(a, b string) int {
	ra, rb := c.Rank(a), c.Rank(b)
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether zone id is at or above target.
func (c *Catalog) AtLeast(id, target string) bool {
	r := c.Rank(id)
	return r != UnknownRank && r >= c.Rank(target)
}

// ZoneAt returns the zone with rank i.
func (c *Catalog) ZoneAt(i int) (Zone, bool) {
	if c == nil || i < 0 || i >= len(c.zones) {
		return Zone{}, false
	}
	return c.zones[i], true
}

// Len is the number of configured zones.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.zones)
}

// Zones returns a copy of all zones in rank order.
func (c *Catalog) Zones() []Zone {
	if c == nil {
		return nil
	}
	out := make([]Zone, len(c.zones))
	copy(out, c.zones)
	return out
}
