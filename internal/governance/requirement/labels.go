package requirement

import (
	"pulsegate/internal/governance/models"
	"pulsegate/internal/governance/zones"
	pstrings "pulsegate/pkg/platform/strings"
)

// LabelInput is what every label strategy sees.
type LabelInput struct {
	ZoneID   string
	Explicit string
	Catalog  *zones.Catalog
}

// LabelStrategy is one link of the label chain.
type LabelStrategy interface {
	Source() models.LabelSource
	Label(in LabelInput) (string, bool)
}

// ExplicitLabel uses the label carried by the rule or override.
type ExplicitLabel struct{}

func (ExplicitLabel) Source() models.LabelSource { return models.LabelSourceExplicit }

func (ExplicitLabel) Label(in LabelInput) (string, bool) {
	return in.Explicit, in.Explicit != ""
}

// CatalogName uses the zone's catalog display name.
type CatalogName struct{}

func (CatalogName) Source() models.LabelSource { return models.LabelSourceCatalog }

func (CatalogName) Label(in LabelInput) (string, bool) {
	z, ok := in.Catalog.Resolve(in.ZoneID)
	if !ok || z.Name == "" {
		return "", false
	}
	return z.Name, true
}

// CapitalizedID derives a label from the raw id. It declines when the
// result would be indistinguishable from the raw id.
type CapitalizedID struct{}

func (CapitalizedID) Source() models.LabelSource { return models.LabelSourceCapitalized }

func (CapitalizedID) Label(in LabelInput) (string, bool) {
	label := pstrings.Capitalize(in.ZoneID)
	if label == "" || label == in.ZoneID {
		return "", false
	}
	return label, true
}

// LiteralFallback always answers with models.FallbackZoneLabel.
type LiteralFallback struct{}

func (LiteralFallback) Source() models.LabelSource { return models.LabelSourceFallback }

func (LiteralFallback) Label(LabelInput) (string, bool) {
	return models.FallbackZoneLabel, true
}

// LabelChain tries strategies in order; the first that answers wins.
type LabelChain struct {
	strategies []LabelStrategy
	onFallback func(LabelInput)
}

// NewLabelChain builds a chain. onFallback runs whenever the literal
// fallback answers.
func NewLabelChain(onFallback func(LabelInput), strategies ...LabelStrategy) LabelChain {
	return LabelChain{strategies: strategies, onFallback: onFallback}
}

// DefaultLabelChain is explicit, catalog name, capitalized id, literal.
func DefaultLabelChain(onFallback func(LabelInput)) LabelChain {
	return NewLabelChain(onFallback, ExplicitLabel{}, CatalogName{}, CapitalizedID{}, LiteralFallback{})
}

// Resolve returns the label and which strategy produced it.
func (c LabelChain) Resolve(in LabelInput) (string, models.LabelSource) {
	for _, s := range c.strategies {
		label, ok := s.Label(in)
		if !ok {
			continue
		}
		if s.Source() == models.LabelSourceFallback && c.onFallback != nil {
			c.onFallback(in)
		}
		return label, s.Source()
	}
	if c.onFallback != nil {
		c.onFallback(in)
	}
	return models.FallbackZoneLabel, models.LabelSourceFallback
}
