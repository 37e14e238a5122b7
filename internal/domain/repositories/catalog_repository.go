package repositories

import (
	"context"

	"github.com/optivista/lensadvisor/internal/domain/entities"
)

// CatalogRepository defines read access to a tenant's product catalog.
// Catalog rows are owned by the upstream catalog service; the engine only
// reads them.
type CatalogRepository interface {
	// ListByTenant retrieves all active products for a tenant
	ListByTenant(ctx context.Context, tenantID string) ([]*entities.CatalogProduct, error)

	// ListByTenantAndLensType retrieves active products of a given lens type
	ListByTenantAndLensType(ctx context.Context, tenantID, lensType string) ([]*entities.CatalogProduct, error)
}

// CatalogSearchRepository defines the search-engine view of a catalog, used
// to pre-filter large catalogs before deterministic scoring.
type CatalogSearchRepository interface {
	// InitSchema ensures the product collection exists
	InitSchema(ctx context.Context) error

	// Index indexes a catalog product
	Index(ctx context.Context, product *entities.CatalogProduct) error

	// Delete removes a product from the index
	Delete(ctx context.Context, id string) error

	// Search retrieves products for a tenant matching a lens-type query
	Search(ctx context.Context, tenantID, query string, limit int) ([]*entities.CatalogProduct, error)
}
