package entities

import (
	"time"
)

// Tier is one of the three price/quality bands of a recommendation.
type Tier string

const (
	TierGood   Tier = "GOOD"
	TierBetter Tier = "BETTER"
	TierBest   Tier = "BEST"
)

// Valid reports whether t is a known tier label.
func (t Tier) Valid() bool {
	switch t {
	case TierGood, TierBetter, TierBest:
		return true
	}
	return false
}

// CatalogProduct is a tenant-specific sellable item. Catalog rows are owned
// by the tenant catalog; the engine reads them and never writes.
type CatalogProduct struct {
	ID             string          `json:"id" db:"id"`
	TenantID       string          `json:"tenant_id" db:"tenant_id"`
	SKU            string          `json:"sku" db:"sku"`
	Name           string          `json:"name" db:"name"`
	Brand          string          `json:"brand" db:"brand"`
	LensType       string          `json:"lens_type" db:"lens_type"`
	LensMaterial   string          `json:"lens_material" db:"lens_material"`
	Coating        string          `json:"coating" db:"coating"`
	Features       map[string]bool `json:"features"`
	RetailPrice    float64         `json:"retail_price" db:"retail_price"`
	WholesalePrice float64         `json:"wholesale_price" db:"wholesale_price"`
	StockCount     int             `json:"stock_count" db:"stock_count"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// InStock reports whether the product can currently be dispensed.
func (p *CatalogProduct) InStock() bool {
	return p.StockCount > 0
}

// FeatureList returns the names of the enabled product features, useful when
// rendering coating descriptors.
func (p *CatalogProduct) FeatureList() []string {
	features := make([]string, 0, len(p.Features))
	for name, enabled := range p.Features {
		if enabled {
			features = append(features, name)
		}
	}
	return features
}

// PricedMatch is a catalog product scored against a target configuration.
type PricedMatch struct {
	Product    *CatalogProduct `json:"product"`
	MatchScore float64         `json:"match_score"`
	Tier       Tier            `json:"tier"`
}
