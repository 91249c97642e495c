package models

import "time"

// LabelSource records which link of the label chain produced a zone label.
type LabelSource string

const (
	LabelSourceExplicit    LabelSource = "explicit"
	LabelSourceCatalog     LabelSource = "catalog"
	LabelSourceCapitalized LabelSource = "capitalized"
	LabelSourceFallback    LabelSource = "fallback"
)

// FallbackZoneLabel is the last-resort label. Seeing it means the catalog or
// rule is missing data.
const FallbackZoneLabel = "Target zone"

// Requirement is what one participant must satisfy on the current tick. It
// is recomputed on every evaluation and is only exposed with a resolved
// label.
type Requirement struct {
	ParticipantID   string
	DisplayName     string
	TargetZoneID    string
	TargetZoneRank  int
	TargetZoneLabel string
	LabelSource     LabelSource
	RuleLabel       string
	Deadline        *time.Time
	SatisfiedOnce   bool
	// Shell marks a requirement built from configuration alone because no
	// active participant exists yet.
	Shell bool
}

// Key identifies the requirement across ticks for satisfiedOnce carry-over.
func (r Requirement) Key() string {
	return r.ParticipantID + "|" + r.TargetZoneID
}
