package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/optivista/lensadvisor/internal/domain/entities"
	"github.com/optivista/lensadvisor/internal/domain/repositories"
	"github.com/optivista/lensadvisor/internal/infrastructure/clients/postgres"
	apperrors "github.com/optivista/lensadvisor/pkg/errors"
)

// CatalogAdapter implements CatalogRepository. The engine only reads catalog
// rows; writes belong to the upstream catalog service.
type CatalogAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewCatalogAdapter creates a new catalog adapter
func NewCatalogAdapter(client *postgres.Client) repositories.CatalogRepository {
	return &CatalogAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// ListByTenant retrieves all active products for a tenant
func (a *CatalogAdapter) ListByTenant(ctx context.Context, tenantID string) ([]*entities.CatalogProduct, error) {
	return a.list(ctx, goqu.Ex{"tenant_id": tenantID, "is_active": true})
}

// ListByTenantAndLensType retrieves active products of a given lens type
func (a *CatalogAdapter) ListByTenantAndLensType(ctx context.Context, tenantID, lensType string) ([]*entities.CatalogProduct, error) {
	return a.list(ctx, goqu.Ex{
		"tenant_id": tenantID,
		"is_active": true,
		"lens_type": strings.ToLower(strings.TrimSpace(lensType)),
	})
}

func (a *CatalogAdapter) list(ctx context.Context, where goqu.Ex) ([]*entities.CatalogProduct, error) {
	query, args, err := a.db.Select(
		"id", "tenant_id", "sku", "name", "brand",
		"lens_type", "lens_material", "coating", "features",
		"retail_price", "wholesale_price", "stock_count", "is_active",
		"created_at", "updated_at",
	).From("lens_products").
		Where(where).
		Order(goqu.C("sku").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list catalog products", err)
	}
	defer rows.Close()

	var products []*entities.CatalogProduct
	for rows.Next() {
		product := &entities.CatalogProduct{}
		var (
			brand    sql.NullString
			coating  sql.NullString
			features []byte
		)

		err := rows.Scan(
			&product.ID,
			&product.TenantID,
			&product.SKU,
			&product.Name,
			&brand,
			&product.LensType,
			&product.LensMaterial,
			&coating,
			&features,
			&product.RetailPrice,
			&product.WholesalePrice,
			&product.StockCount,
			&product.IsActive,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan product row", err)
		}

		product.Brand = brand.String
		product.Coating = coating.String
		if len(features) > 0 {
			if err := json.Unmarshal(features, &product.Features); err != nil {
				return nil, apperrors.NewInternalError("failed to decode product features", err)
			}
		}

		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate product rows", err)
	}

	return products, nil
}
