package stages

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoOffers is returned when sourcing finds nothing for the intent.
var ErrNoOffers = errors.New("stages: no offers for intent")

// CatalogSourcing sources candidates from a local catalog.
type CatalogSourcing struct {
	catalog *Catalog
	topK    int
}

// NewCatalogSourcing creates a catalog-backed sourcing stage. topK bounds the
// result size; zero means the default of 5.
func NewCatalogSourcing(catalog *Catalog, topK int) *CatalogSourcing {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if topK <= 0 {
		topK = 5
	}
	return &CatalogSourcing{catalog: catalog, topK: topK}
}

// Source implements Sourcing.
func (s *CatalogSourcing) Source(_ context.Context, intent *Intent) ([]Candidate, error) {
	if intent == nil || intent.Item == "" {
		return nil, fmt.Errorf("stages: sourcing requires an intent with an item")
	}
	candidates := s.catalog.Search(intent)
	if len(candidates) == 0 {
		return nil, ErrNoOffers
	}
	if len(candidates) > s.topK {
		candidates = candidates[:s.topK]
	}
	return candidates, nil
}
