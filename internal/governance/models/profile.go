package models

import "time"

// MaxHeartRate is the highest accepted sample. Anything above it is a
// sensor fault.
const MaxHeartRate = 300

// ValidHeartRate reports whether bpm lies in (0, MaxHeartRate]. Devices
// report 0 when they lose skin contact, so zero is not a reading.
func ValidHeartRate(bpm int) bool {
	return bpm > 0 && bpm <= MaxHeartRate
}

// ZoneSample is one history entry of a zone profile.
type ZoneSample struct {
	At     time.Time
	ZoneID string
}

// Reading is the latest telemetry-derived state of a participant.
type Reading struct {
	HeartRate int
	ZoneID    string
	At        time.Time
}

// HasZone reports whether the reading produced a zone.
func (r Reading) HasZone() bool {
	return r.ZoneID != ""
}
