package repositories

import (
	"context"

	"github.com/optivista/lensadvisor/internal/domain/entities"
)

// RecommendationRepository defines persistence for fusion results. A result
// is written once; only status metadata is ever updated afterwards.
type RecommendationRepository interface {
	// Create persists a new fusion result
	Create(ctx context.Context, result *entities.FusionResult) error

	// GetByID retrieves a fusion result by its record ID
	GetByID(ctx context.Context, id string) (*entities.FusionResult, error)

	// GetByOrderID retrieves the fusion result for an order
	GetByOrderID(ctx context.Context, orderID string) (*entities.FusionResult, error)

	// UpdateStatus performs a partial update of status/acceptance metadata.
	// The recommendation content itself is immutable.
	UpdateStatus(ctx context.Context, id string, status entities.RecommendationStatus, chosenTier *entities.Tier, customizationNote string) error
}

// IntentRecordRepository persists intent extraction results as immutable
// audit records.
type IntentRecordRepository interface {
	// Create persists a new extraction record
	Create(ctx context.Context, record *entities.IntentExtractionResult) error

	// GetByOrderID retrieves the extraction record for an order
	GetByOrderID(ctx context.Context, orderID string) (*entities.IntentExtractionResult, error)
}
