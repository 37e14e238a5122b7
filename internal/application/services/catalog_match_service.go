package services

import (
	"context"
	"sort"
	"strings"

	"github.com/optivista/lensadvisor/internal/domain/entities"
)

const (
	maxRetainedMatches = 30
	tierSize           = 5
)

// Additive match-score weights, capped at 1.0 in total.
const (
	lensTypeExactWeight   = 0.40
	lensTypePartialWeight = 0.20
	materialMatchWeight   = 0.30
	materialPresentWeight = 0.10
	coatingMatchWeight    = 0.20
	coatingPresentWeight  = 0.05
	characteristicsWeight = 0.10
	inStockBonus          = 0.05
)

// CatalogMatchService scores tenant catalog products against a target lens
// configuration and groups the top matches into price/quality tiers. Scoring
// is deterministic; ties keep input order.
type CatalogMatchService struct{}

// NewCatalogMatchService creates a new catalog match service.
func NewCatalogMatchService() *CatalogMatchService {
	return &CatalogMatchService{}
}

// Match scores each product and assigns the top matches to tiers: the top
// five are BEST, the next five BETTER, the next five GOOD. A thin catalog
// produces smaller or empty tiers; tiers are never padded, and a product
// that matches nothing is excluded outright. An empty catalog yields an
// empty result, not an error.
func (s *CatalogMatchService) Match(ctx context.Context, products []*entities.CatalogProduct, target entities.LensConfiguration, characteristics map[string]bool) []*entities.PricedMatch {
	if len(products) == 0 {
		return nil
	}

	matches := make([]*entities.PricedMatch, 0, len(products))
	for _, p := range products {
		score := productScore(p, target, characteristics)
		if score <= 0 {
			continue
		}
		matches = append(matches, &entities.PricedMatch{Product: p, MatchScore: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
	if len(matches) > maxRetainedMatches {
		matches = matches[:maxRetainedMatches]
	}

	for i, m := range matches {
		switch {
		case i < tierSize:
			m.Tier = entities.TierBest
		case i < 2*tierSize:
			m.Tier = entities.TierBetter
		case i < 3*tierSize:
			m.Tier = entities.TierGood
		}
	}

	return matches
}

func productScore(p *entities.CatalogProduct, target entities.LensConfiguration, characteristics map[string]bool) float64 {
	score := 0.0

	score += fieldScore(p.LensType, target.LensType, lensTypeExactWeight, lensTypePartialWeight)
	score += presenceScore(p.LensMaterial, target.LensMaterial, materialMatchWeight, materialPresentWeight)
	score += presenceScore(p.Coating, target.Coating, coatingMatchWeight, coatingPresentWeight)
	score += characteristicsWeight * characteristicsFraction(p, characteristics)

	if p.InStock() {
		score += inStockBonus
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// fieldScore awards full weight on an exact (case-insensitive) match and the
// partial weight when one value merely contains the other.
func fieldScore(have, want string, exact, partial float64) float64 {
	h := strings.ToLower(strings.TrimSpace(have))
	w := strings.ToLower(strings.TrimSpace(want))
	if h == "" || w == "" {
		return 0
	}
	if h == w {
		return exact
	}
	if strings.Contains(h, w) || strings.Contains(w, h) {
		return partial
	}
	return 0
}

// presenceScore awards the match weight on a substring match and a small
// consolation weight when the product specifies the field at all.
func presenceScore(have, want string, match, present float64) float64 {
	h := strings.ToLower(strings.TrimSpace(have))
	w := strings.ToLower(strings.TrimSpace(want))
	if h == "" {
		return 0
	}
	if w != "" && (strings.Contains(h, w) || strings.Contains(w, h)) {
		return match
	}
	return present
}

// characteristicsFraction is the fraction of requested characteristics the
// product's feature map satisfies.
func characteristicsFraction(p *entities.CatalogProduct, characteristics map[string]bool) float64 {
	requested := 0
	satisfied := 0
	for name, wanted := range characteristics {
		if !wanted {
			continue
		}
		requested++
		if p.Features[name] {
			satisfied++
		}
	}
	if requested == 0 {
		return 0
	}
	return float64(satisfied) / float64(requested)
}
