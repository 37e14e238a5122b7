package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/optivista/lensadvisor/internal/domain/entities"
	"github.com/optivista/lensadvisor/internal/domain/repositories"
	apperrors "github.com/optivista/lensadvisor/pkg/errors"
)

// OutcomeAdapter is an in-memory OutcomeRepository used in tests and local
// development. A single mutex guards the map so that concurrent
// RecordOutcome calls for the same key serialize, matching the atomicity
// contract of the Postgres adapter.
type OutcomeAdapter struct {
	mu   sync.Mutex
	rows map[entities.ConfigurationKey]*entities.HistoricalOutcome
}

// NewOutcomeAdapter creates an empty in-memory corpus
func NewOutcomeAdapter() *OutcomeAdapter {
	return &OutcomeAdapter{
		rows: make(map[entities.ConfigurationKey]*entities.HistoricalOutcome),
	}
}

var _ repositories.OutcomeRepository = (*OutcomeAdapter)(nil)

// Seed loads a prepared corpus row, keyed by its configuration.
func (a *OutcomeAdapter) Seed(row *entities.HistoricalOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	copied := *row
	a.rows[row.Configuration.Key()] = &copied
}

// ListEligible retrieves rows with at least minSamples recorded orders,
// best success rate first.
func (a *OutcomeAdapter) ListEligible(ctx context.Context, minSamples int) ([]*entities.HistoricalOutcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var eligible []*entities.HistoricalOutcome
	for _, row := range a.rows {
		if row.TotalOrdersAnalyzed >= minSamples {
			copied := *row
			eligible = append(eligible, &copied)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].SuccessRate != eligible[j].SuccessRate {
			return eligible[i].SuccessRate > eligible[j].SuccessRate
		}
		return eligible[i].Configuration.Key().String() < eligible[j].Configuration.Key().String()
	})
	return eligible, nil
}

// GetByKey retrieves the row for a configuration key
func (a *OutcomeAdapter) GetByKey(ctx context.Context, key entities.ConfigurationKey) (*entities.HistoricalOutcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	row, ok := a.rows[key]
	if !ok {
		return nil, apperrors.NewNotFoundError("outcome not found for configuration " + key.String())
	}
	copied := *row
	return &copied, nil
}

// RecordOutcome applies one observed outcome under the store lock
func (a *OutcomeAdapter) RecordOutcome(ctx context.Context, key entities.ConfigurationKey, outcome entities.Outcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	row, ok := a.rows[key]
	if !ok {
		row = &entities.HistoricalOutcome{
			ID: uuid.New().String(),
			Configuration: entities.LensConfiguration{
				LensType:     key.LensType,
				LensMaterial: key.LensMaterial,
				Coating:      key.Coating,
			},
		}
		a.rows[key] = row
	}
	row.Record(outcome)
	row.UpdatedAt = time.Now().UTC()
	return nil
}
