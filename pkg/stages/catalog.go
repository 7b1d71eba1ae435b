package stages

import (
	"sort"
	"strings"
)

// CatalogEntry is one purchasable item known to the local sourcing stage.
type CatalogEntry struct {
	ID              string
	Vendor          string
	Title           string
	PriceUSD        float64
	ShippingETADays int
	URL             string
	Keywords        []string
	Attributes      map[string]string
}

// Catalog is the offer source the heuristic sourcing stage queries.
type Catalog struct {
	entries []CatalogEntry
}

// NewCatalog creates a catalog from the given entries.
func NewCatalog(entries []CatalogEntry) *Catalog {
	return &Catalog{entries: entries}
}

// DefaultCatalog returns a small built-in catalog covering the label
// vocabulary the heuristic vision stage emits.
func DefaultCatalog() *Catalog {
	return NewCatalog([]CatalogEntry{
		{ID: "acme-bottle-25", Vendor: "AcmeDirect", Title: "Acme Steel Bottle 750ml", PriceUSD: 25.00, ShippingETADays: 3, URL: "https://acmedirect.example/bottle-750", Keywords: []string{"bottle", "acme", "steel"}},
		{ID: "hydra-bottle-30", Vendor: "HydraGoods", Title: "Hydra Insulated Bottle", PriceUSD: 30.00, ShippingETADays: 2, URL: "https://hydragoods.example/insulated", Keywords: []string{"bottle", "insulated"}},
		{ID: "bulk-bottle-45", Vendor: "UnknownMart", Title: "Premium Bottle Bundle", PriceUSD: 45.00, ShippingETADays: 9, URL: "https://unknownmart.example/bundle", Keywords: []string{"bottle", "bundle"}},
		{ID: "lumina-mug-14", Vendor: "LuminaHome", Title: "Lumina Ceramic Mug", PriceUSD: 14.50, ShippingETADays: 4, URL: "https://luminahome.example/mug", Keywords: []string{"mug", "ceramic", "lumina"}},
		{ID: "peak-pack-60", Vendor: "NorthPeak", Title: "NorthPeak Trail Backpack 28L", PriceUSD: 60.00, ShippingETADays: 5, URL: "https://northpeak.example/trail-28", Keywords: []string{"backpack", "northpeak", "trail"}},
		{ID: "orbit-phones-89", Vendor: "OrbitAudio", Title: "Orbit Over-Ear Headphones", PriceUSD: 89.00, ShippingETADays: 2, URL: "https://orbitaudio.example/over-ear", Keywords: []string{"headphones", "orbit", "audio"}},
		{ID: "vertex-watch-120", Vendor: "VertexTime", Title: "Vertex Field Watch", PriceUSD: 120.00, ShippingETADays: 6, URL: "https://vertextime.example/field", Keywords: []string{"watch", "vertex", "field"}},
		{ID: "cheap-phones-35", Vendor: "ScamSupply", Title: "Wireless Headphones Deal", PriceUSD: 35.00, ShippingETADays: 14, URL: "https://scamsupply.example/deal", Keywords: []string{"headphones", "wireless"}},
	})
}

// Search scores entries against an intent and returns matches, best first.
// Scoring favors keyword hits on the item, then brand and color agreement;
// offers over budget are excluded outright.
func (c *Catalog) Search(intent *Intent) []Candidate {
	if intent == nil {
		return nil
	}
	item := strings.ToLower(intent.Item)
	brand := strings.ToLower(intent.Brand)
	color := strings.ToLower(intent.Color)

	out := make([]Candidate, 0, len(c.entries))
	for _, e := range c.entries {
		score := 0.0
		for _, kw := range e.Keywords {
			if kw == item {
				score += 1.0
			}
			if brand != "" && kw == brand {
				score += 0.5
			}
			if color != "" && kw == color {
				score += 0.25
			}
		}
		if score == 0 && item != "" && strings.Contains(strings.ToLower(e.Title), item) {
			score = 0.5
		}
		if score == 0 {
			continue
		}
		unitBudget := intent.BudgetUSD
		if unitBudget > 0 && e.PriceUSD > unitBudget {
			continue
		}
		out = append(out, Candidate{
			ID:              e.ID,
			Vendor:          e.Vendor,
			Title:           e.Title,
			PriceUSD:        e.PriceUSD,
			ShippingETADays: e.ShippingETADays,
			URL:             e.URL,
			Score:           score,
			Attributes:      e.Attributes,
		})
	}

	// Best-first ordering: score desc, then price asc.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].PriceUSD < out[j].PriceUSD
	})
	return out
}
