package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/optivista/lensadvisor/internal/domain/entities"
	"github.com/optivista/lensadvisor/internal/domain/repositories"
	tsclient "github.com/optivista/lensadvisor/internal/infrastructure/clients/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
)

// TypesenseAdapter implements catalog product search using Typesense. It is
// used to pre-filter large tenant catalogs before deterministic scoring.
type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements CatalogSearchRepository
var _ repositories.CatalogSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the product collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	return a.client.InitSchema(ctx)
}

// Index indexes a catalog product
func (a *TypesenseAdapter) Index(ctx context.Context, product *entities.CatalogProduct) error {
	document := map[string]interface{}{
		"id":            product.ID,
		"tenant_id":     product.TenantID,
		"sku":           product.SKU,
		"name":          product.Name,
		"brand":         product.Brand,
		"lens_type":     strings.ToLower(product.LensType),
		"lens_material": strings.ToLower(product.LensMaterial),
		"coating":       strings.ToLower(product.Coating),
		"features":      product.FeatureList(),
		"tags":          buildProductTags(product),
		"retail_price":  product.RetailPrice,
		"stock_count":   product.StockCount,
		"is_active":     product.IsActive,
		"created_at":    product.CreatedAt.Unix(),
	}

	if err := a.client.IndexProduct(ctx, document); err != nil {
		return fmt.Errorf("failed to index product: %w", err)
	}

	return nil
}

// Delete removes a product from the index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.ProductsCollection).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete product from index: %w", err)
	}
	return nil
}

// Search retrieves active products for a tenant matching a lens-type query.
// An empty query returns all active products for the tenant up to limit.
func (a *TypesenseAdapter) Search(ctx context.Context, tenantID, query string, limit int) ([]*entities.CatalogProduct, error) {
	q := strings.TrimSpace(strings.ToLower(query))
	if q == "" {
		q = "*"
	}

	searchParams := &api.SearchCollectionParams{
		Q:        pointer.String(q),
		QueryBy:  pointer.String("lens_type,name,lens_material,tags"),
		FilterBy: pointer.String(fmt.Sprintf("tenant_id:=%s && is_active:=true", tenantID)),
		PerPage:  pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(tsclient.ProductsCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}

	products := []*entities.CatalogProduct{}
	if result.Hits == nil {
		return products, nil
	}

	for _, hit := range *result.Hits {
		doc := *hit.Document

		// Typesense returns map[string]interface{}, so cast defensively;
		// numeric fields come back as float64.
		product := &entities.CatalogProduct{
			ID:       doc["id"].(string),
			TenantID: doc["tenant_id"].(string),
			SKU:      doc["sku"].(string),
			Name:     doc["name"].(string),
			IsActive: doc["is_active"].(bool),
			Features: map[string]bool{},
		}

		if val, ok := doc["brand"].(string); ok {
			product.Brand = val
		}
		if val, ok := doc["lens_type"].(string); ok {
			product.LensType = val
		}
		if val, ok := doc["lens_material"].(string); ok {
			product.LensMaterial = val
		}
		if val, ok := doc["coating"].(string); ok {
			product.Coating = val
		}
		if val, ok := doc["retail_price"].(float64); ok {
			product.RetailPrice = val
		}
		if val, ok := doc["stock_count"].(float64); ok {
			product.StockCount = int(val)
		}
		if features, ok := doc["features"].([]interface{}); ok {
			for _, f := range features {
				if name, ok := f.(string); ok {
					product.Features[name] = true
				}
			}
		}

		products = append(products, product)
	}

	return products, nil
}
