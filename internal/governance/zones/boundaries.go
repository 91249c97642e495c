package zones

import "sort"

// Threshold is the lower heart-rate bound of a zone for one participant.
type Threshold struct {
	ZoneID string
	MinBPM int
}

// Boundaries maps heart rate to zone for a single participant. Thresholds
// are kept sorted by MinBPM ascending.
type Boundaries struct {
	thresholds []Threshold
}

// Personalization carries the participant attributes that shape boundaries.
type Personalization struct {
	// MaxHeartRate is the participant's HR max. Zero derives it from Age.
	MaxHeartRate int
	Age          int
	// Overrides pins a zone's lower bound in bpm for this participant.
	Overrides map[string]int
}

// HeartRateMax resolves the participant's HR max, 0 when unknown.
func (p Personalization) HeartRateMax() int {
	if p.MaxHeartRate > 0 {
		return p.MaxHeartRate
	}
	if p.Age > 0 && p.Age < 120 {
		return 220 - p.Age
	}
	return 0
}

// Boundaries builds the heart-rate table for a participant. Per zone the
// lower bound is the participant override, then MinPercent of HR max when HR
// max is known, then the zone's MinHeartRate.
func (c *Catalog) Boundaries(p Personalization) Boundaries {
	if c == nil {
		return Boundaries{}
	}
	hrMax := p.HeartRateMax()
	out := make([]Threshold, 0, c.Len())
	for _, z := range c.zones {
		minBPM := z.MinHeartRate
		if hrMax > 0 && z.MinPercent > 0 {
			minBPM = int(float64(hrMax)*z.MinPercent + 0.5)
		}
		if v, ok := p.Overrides[z.ID]; ok {
			minBPM = v
		}
		out = append(out, Threshold{ZoneID: z.ID, MinBPM: minBPM})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MinBPM < out[j].MinBPM
	})
	return Boundaries{thresholds: out}
}

// ZoneFor returns the highest zone whose lower bound is at or below hr.
// Heart rates at or below zero are treated as no reading. A positive reading
// under every bound lands in the lowest zone.
func (b Boundaries) ZoneFor(hr int) (string, bool) {
	if hr <= 0 || len(b.thresholds) == 0 {
		return "", false
	}
	zone := b.thresholds[0].ZoneID
	for _, t := range b.thresholds {
		if hr < t.MinBPM {
			break
		}
		zone = t.ZoneID
	}
	return zone, true
}

// Thresholds returns a copy of the table.
func (b Boundaries) Thresholds() []Threshold {
	out := make([]Threshold, len(b.thresholds))
	copy(out, b.thresholds)
	return out
}
