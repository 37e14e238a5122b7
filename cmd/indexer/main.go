package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/optivista/lensadvisor/internal/adapters/database"
	"github.com/optivista/lensadvisor/internal/adapters/search"
	"github.com/optivista/lensadvisor/internal/infrastructure/clients/postgres"
	"github.com/optivista/lensadvisor/internal/infrastructure/clients/typesense"
	"github.com/optivista/lensadvisor/pkg/config"
)

// Typesense caps per_page at 250; one page covers the catalog sizes this
// indexer serves.
const maxIndexPageSize = 250

func main() {
	var reset bool
	var tenantsFlag string
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete existing Typesense collection before reindexing")
	flag.StringVar(&tenantsFlag, "tenants", "", "comma-separated tenant IDs to index")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	tenantsValue := strings.TrimSpace(tenantsFlag)
	if tenantsValue == "" {
		tenantsValue = strings.TrimSpace(os.Getenv("INDEX_TENANTS"))
	}
	if tenantsValue == "" {
		log.Fatal("No tenants specified: use -tenants or INDEX_TENANTS")
	}

	tenants := []string{}
	for _, tenant := range strings.Split(tenantsValue, ",") {
		if tenant = strings.TrimSpace(tenant); tenant != "" {
			tenants = append(tenants, tenant)
		}
	}

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	var err error
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatalf("Invalid interval %q: %v", intervalValue, err)
		}
		if interval <= 0 {
			log.Fatalf("Interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, tenants, reset); err != nil {
			log.Printf("Reindex failed: %v", err)
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Printf("Reindex complete. Next run in %s.", interval)

		select {
		case <-ctx.Done():
			log.Println("Reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, tenants []string, reset bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	catalogRepo := database.NewCatalogAdapter(pgClient)

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Println("Reset requested, deleting lens_products collection")
		_, err := tsClient.Client().Collection(typesense.ProductsCollection).Delete(ctx)
		if err != nil {
			log.Printf("Warning: failed to delete collection: %v", err)
		}
	}

	searchRepo := search.NewTypesenseAdapter(tsClient)
	if err := searchRepo.InitSchema(ctx); err != nil {
		return err
	}

	for _, tenantID := range tenants {
		products, err := catalogRepo.ListByTenant(ctx, tenantID)
		if err != nil {
			log.Printf("Warning: failed to list catalog for tenant %s: %v", tenantID, err)
			continue
		}

		log.Printf("Indexing %d products for tenant %s...", len(products), tenantID)

		active := make(map[string]struct{}, len(products))
		indexed := 0
		for _, product := range products {
			if product == nil {
				continue
			}
			active[product.ID] = struct{}{}
			if err := searchRepo.Index(ctx, product); err != nil {
				log.Printf("Failed to index product %s: %v", product.SKU, err)
				continue
			}
			indexed++
		}

		// Documents for products deactivated since the last run still carry
		// their indexed is_active flag, so they only disappear when swept.
		removed := 0
		if stale, err := searchRepo.Search(ctx, tenantID, "", maxIndexPageSize); err != nil {
			log.Printf("Warning: failed to sweep stale documents for tenant %s: %v", tenantID, err)
		} else {
			for _, doc := range stale {
				if _, ok := active[doc.ID]; ok {
					continue
				}
				if err := searchRepo.Delete(ctx, doc.ID); err != nil {
					log.Printf("Failed to remove stale document %s: %v", doc.ID, err)
					continue
				}
				removed++
			}
		}

		log.Printf("Indexed %d/%d products for tenant %s (%d stale removed)", indexed, len(products), tenantID, removed)
	}

	log.Println("Indexing complete.")
	return nil
}
