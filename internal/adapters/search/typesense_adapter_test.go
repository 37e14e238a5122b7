package search

import (
	"testing"

	"github.com/optivista/lensadvisor/internal/domain/entities"
	"github.com/stretchr/testify/assert"
)

func TestBuildProductTags(t *testing.T) {
	product := &entities.CatalogProduct{
		Brand:        " Essilor ",
		LensType:     "Progressive",
		LensMaterial: "1.67 High-Index",
		Coating:      "Premium AR",
		Features: map[string]bool{
			"blueLight":    true,
			"photochromic": false,
			"uvProtection": true,
		},
	}

	tags := buildProductTags(product)

	assert.ElementsMatch(t, []string{
		"essilor",
		"progressive",
		"1.67 high-index",
		"premium ar",
		"bluelight",
		"uvprotection",
	}, tags)
}

func TestBuildProductTagsDeterministic(t *testing.T) {
	product := &entities.CatalogProduct{
		Brand:        "Zeiss",
		LensType:     "single_vision",
		LensMaterial: "polycarbonate",
		Features:     map[string]bool{"antiGlare": true, "impactResistant": true},
	}

	first := buildProductTags(product)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, buildProductTags(product))
	}
}

func TestBuildProductTagsNil(t *testing.T) {
	assert.Nil(t, buildProductTags(nil))
}
