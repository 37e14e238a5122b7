package repositories

import (
	"context"

	"github.com/optivista/lensadvisor/internal/domain/entities"
)

// OutcomeRepository defines access to the historical-outcomes corpus, keyed
// by (lens type, material, coating).
type OutcomeRepository interface {
	// ListEligible retrieves corpus rows with at least minSamples recorded
	// orders. Rows below the threshold are statistically thin and must not
	// surface in recommendations.
	ListEligible(ctx context.Context, minSamples int) ([]*entities.HistoricalOutcome, error)

	// GetByKey retrieves the corpus row for a configuration key
	GetByKey(ctx context.Context, key entities.ConfigurationKey) (*entities.HistoricalOutcome, error)

	// RecordOutcome applies one observed outcome to the row for key,
	// creating the row if it does not exist. Implementations must make the
	// increment-and-recompute atomic per key: two concurrent writers must
	// never both read the same prior count.
	RecordOutcome(ctx context.Context, key entities.ConfigurationKey, outcome entities.Outcome) error
}
