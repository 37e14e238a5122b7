package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/optivista/lensadvisor/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func progressiveTarget() entities.LensConfiguration {
	return entities.LensConfiguration{
		LensType:     "progressive",
		LensMaterial: "1.67 high-index",
		Coating:      "premium ar",
	}
}

func TestMatch_EmptyCatalog(t *testing.T) {
	svc := NewCatalogMatchService()

	matches := svc.Match(context.Background(), nil, progressiveTarget(), nil)

	assert.Empty(t, matches)
}

func TestMatch_ExactConfigurationScoresHighest(t *testing.T) {
	svc := NewCatalogMatchService()
	products := []*entities.CatalogProduct{
		{
			SKU: "EXACT", LensType: "progressive", LensMaterial: "1.67 high-index",
			Coating: "premium ar", StockCount: 10,
		},
		{
			SKU: "PARTIAL", LensType: "progressive", LensMaterial: "polycarbonate",
			Coating: "standard ar", StockCount: 10,
		},
		{
			SKU: "UNRELATED", LensType: "bifocal", LensMaterial: "", Coating: "",
		},
	}

	matches := svc.Match(context.Background(), products, progressiveTarget(), nil)

	require.Len(t, matches, 2)
	assert.Equal(t, "EXACT", matches[0].Product.SKU)
	// 0.40 type + 0.30 material + 0.20 coating + 0.05 stock.
	assert.InDelta(t, 0.95, matches[0].MatchScore, 1e-9)
	assert.Equal(t, "PARTIAL", matches[1].Product.SKU)
}

func TestMatch_ZeroScoreExcluded(t *testing.T) {
	svc := NewCatalogMatchService()
	products := []*entities.CatalogProduct{
		{SKU: "NOPE", LensType: "bifocal"},
	}

	matches := svc.Match(context.Background(), products, entities.LensConfiguration{LensType: "progressive"}, nil)

	assert.Empty(t, matches)
}

func TestMatch_ScoreCappedAtOne(t *testing.T) {
	svc := NewCatalogMatchService()
	products := []*entities.CatalogProduct{
		{
			SKU: "LOADED", LensType: "progressive", LensMaterial: "1.67 high-index",
			Coating: "premium ar", StockCount: 5,
			Features: map[string]bool{entities.CharBlueLight: true, entities.CharPremium: true},
		},
	}
	characteristics := map[string]bool{entities.CharBlueLight: true, entities.CharPremium: true}

	matches := svc.Match(context.Background(), products, progressiveTarget(), characteristics)

	require.Len(t, matches, 1)
	// 0.40 + 0.30 + 0.20 + 0.10 + 0.05 exceeds the cap.
	assert.Equal(t, 1.0, matches[0].MatchScore)
}

func TestMatch_CharacteristicsFraction(t *testing.T) {
	svc := NewCatalogMatchService()
	products := []*entities.CatalogProduct{
		{
			SKU: "HALF", LensType: "progressive",
			Features: map[string]bool{entities.CharBlueLight: true},
		},
	}
	characteristics := map[string]bool{
		entities.CharBlueLight:      true,
		entities.CharAntiReflective: true,
	}

	matches := svc.Match(context.Background(), products, entities.LensConfiguration{LensType: "progressive"}, characteristics)

	require.Len(t, matches, 1)
	// 0.40 type + half of the 0.10 characteristics weight.
	assert.InDelta(t, 0.45, matches[0].MatchScore, 1e-9)
}

func TestMatch_MonotonicInMatchedFields(t *testing.T) {
	svc := NewCatalogMatchService()
	target := progressiveTarget()

	base := &entities.CatalogProduct{SKU: "A", LensType: "progressive"}
	withMaterial := &entities.CatalogProduct{SKU: "B", LensType: "progressive", LensMaterial: "1.67 high-index"}
	withCoating := &entities.CatalogProduct{SKU: "C", LensType: "progressive", LensMaterial: "1.67 high-index", Coating: "premium ar"}

	matches := svc.Match(context.Background(), []*entities.CatalogProduct{base, withMaterial, withCoating}, target, nil)

	require.Len(t, matches, 3)
	assert.Equal(t, "C", matches[0].Product.SKU)
	assert.Equal(t, "B", matches[1].Product.SKU)
	assert.Equal(t, "A", matches[2].Product.SKU)
	assert.Greater(t, matches[0].MatchScore, matches[1].MatchScore)
	assert.Greater(t, matches[1].MatchScore, matches[2].MatchScore)
}

func TestMatch_TierAssignment(t *testing.T) {
	svc := NewCatalogMatchService()

	// 18 products with strictly decreasing match quality via stock and
	// characteristics so ordering is unambiguous.
	products := []*entities.CatalogProduct{}
	for i := 0; i < 18; i++ {
		p := &entities.CatalogProduct{
			SKU:      fmt.Sprintf("SKU-%02d", i),
			LensType: "progressive",
		}
		if i < 9 {
			p.LensMaterial = "1.67 high-index"
		}
		if i < 6 {
			p.Coating = "premium ar"
		}
		if i < 3 {
			p.StockCount = 10
		}
		products = append(products, p)
	}

	matches := svc.Match(context.Background(), products, progressiveTarget(), nil)

	require.Len(t, matches, 18)
	for i, m := range matches {
		switch {
		case i < 5:
			assert.Equal(t, entities.TierBest, m.Tier, i)
		case i < 10:
			assert.Equal(t, entities.TierBetter, m.Tier, i)
		case i < 15:
			assert.Equal(t, entities.TierGood, m.Tier, i)
		default:
			assert.Equal(t, entities.Tier(""), m.Tier, i)
		}
	}
}

func TestMatch_ThinCatalogNeverPadded(t *testing.T) {
	svc := NewCatalogMatchService()
	products := []*entities.CatalogProduct{
		{SKU: "ONLY", LensType: "progressive", StockCount: 1},
	}

	matches := svc.Match(context.Background(), products, progressiveTarget(), nil)

	require.Len(t, matches, 1)
	assert.Equal(t, entities.TierBest, matches[0].Tier)
}

func TestMatch_CapsAtThirty(t *testing.T) {
	svc := NewCatalogMatchService()
	products := []*entities.CatalogProduct{}
	for i := 0; i < 40; i++ {
		products = append(products, &entities.CatalogProduct{
			SKU:      fmt.Sprintf("SKU-%02d", i),
			LensType: "progressive",
		})
	}

	matches := svc.Match(context.Background(), products, progressiveTarget(), nil)

	assert.Len(t, matches, 30)
}
