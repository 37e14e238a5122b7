package search

import (
	"sort"
	"strings"

	"github.com/optivista/lensadvisor/internal/domain/entities"
)

const MaxIndexedTags = 50

// buildProductTags collects the searchable attribute terms of a product into
// a lowercase, deduplicated tag list. Tags feed the optional "tags" field of
// the index so dispensers can find products by brand, material or feature.
func buildProductTags(product *entities.CatalogProduct) []string {
	if product == nil {
		return nil
	}

	set := make(map[string]struct{})
	addTags(set, product.Brand, product.LensType, product.LensMaterial, product.Coating)
	addTags(set, product.FeatureList()...)

	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	if len(tags) > MaxIndexedTags {
		tags = tags[:MaxIndexedTags]
	}
	return tags
}

func addTags(set map[string]struct{}, terms ...string) {
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			set[t] = struct{}{}
		}
	}
}
