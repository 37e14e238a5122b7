package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/optivista/lensadvisor/internal/domain/entities"
	"github.com/optivista/lensadvisor/internal/domain/repositories"
	"github.com/optivista/lensadvisor/internal/infrastructure/clients/postgres"
	"github.com/optivista/lensadvisor/internal/infrastructure/observability"
	apperrors "github.com/optivista/lensadvisor/pkg/errors"
)

// OutcomeAdapter implements OutcomeRepository on PostgreSQL. The corpus is
// the one shared mutable resource of the engine, so the write path locks the
// configuration row for the duration of the increment-and-recompute.
type OutcomeAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

var _ repositories.OutcomeRepository = (*OutcomeAdapter)(nil)

// NewOutcomeAdapter creates a new outcome adapter
func NewOutcomeAdapter(client *postgres.Client) *OutcomeAdapter {
	return &OutcomeAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// SetMetrics enables query duration recording.
func (a *OutcomeAdapter) SetMetrics(metrics *observability.Metrics) {
	a.metrics = metrics
}

func (a *OutcomeAdapter) observe(ctx context.Context, operation string, started time.Time) {
	if a.metrics != nil {
		observability.RecordDBMetric(ctx, a.metrics, operation, time.Since(started))
	}
}

// ListEligible retrieves corpus rows with at least minSamples recorded orders
func (a *OutcomeAdapter) ListEligible(ctx context.Context, minSamples int) ([]*entities.HistoricalOutcome, error) {
	defer a.observe(ctx, "outcomes.list_eligible", time.Now())

	query, args, err := a.db.Select(
		"id", "lens_type", "lens_material", "coating", "wrap_angle",
		"total_orders_analyzed", "success_count", "non_adapt_count", "remake_count",
		"success_rate", "non_adapt_rate", "remake_rate",
		"context_tags", "good_for_scenarios", "worst_for_scenarios", "pattern_insights", "updated_at",
	).From("historical_outcomes").
		Where(goqu.C("total_orders_analyzed").Gte(minSamples)).
		Order(goqu.C("success_rate").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list eligible outcomes", err)
	}
	defer rows.Close()

	var outcomes []*entities.HistoricalOutcome
	for rows.Next() {
		outcome, err := scanOutcome(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan outcome row", err)
		}
		outcomes = append(outcomes, outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate outcome rows", err)
	}

	return outcomes, nil
}

// GetByKey retrieves the corpus row for a configuration key
func (a *OutcomeAdapter) GetByKey(ctx context.Context, key entities.ConfigurationKey) (*entities.HistoricalOutcome, error) {
	defer a.observe(ctx, "outcomes.get_by_key", time.Now())

	query, args, err := a.db.Select(
		"id", "lens_type", "lens_material", "coating", "wrap_angle",
		"total_orders_analyzed", "success_count", "non_adapt_count", "remake_count",
		"success_rate", "non_adapt_rate", "remake_rate",
		"context_tags", "good_for_scenarios", "worst_for_scenarios", "pattern_insights", "updated_at",
	).From("historical_outcomes").
		Where(goqu.Ex{
			"lens_type":     key.LensType,
			"lens_material": key.LensMaterial,
			"coating":       key.Coating,
		}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get outcome", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, apperrors.NewNotFoundError("outcome not found for configuration " + key.String())
	}
	outcome, err := scanOutcome(rows)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to scan outcome row", err)
	}
	return outcome, nil
}

// RecordOutcome applies one observed outcome inside a transaction that locks
// the configuration row. Two concurrent writers serialize on the row lock,
// so neither increment is lost.
func (a *OutcomeAdapter) RecordOutcome(ctx context.Context, key entities.ConfigurationKey, outcome entities.Outcome) error {
	defer a.observe(ctx, "outcomes.record", time.Now())

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	id, current, found, err := lockOutcomeCounters(ctx, tx, key)
	if err != nil {
		return apperrors.NewInternalError("failed to lock outcome row", err)
	}

	if !found {
		inserted, err := insertFirstSample(ctx, tx, key, outcome)
		if err != nil {
			return apperrors.NewInternalError("failed to insert outcome row", err)
		}
		if inserted {
			if err := tx.Commit(); err != nil {
				return apperrors.NewInternalError("failed to commit outcome", err)
			}
			return nil
		}
		// Lost the first-sample race. The winner has committed by now, so
		// the row exists and the lock attempt succeeds this time.
		id, current, found, err = lockOutcomeCounters(ctx, tx, key)
		if err != nil {
			return apperrors.NewInternalError("failed to lock outcome row", err)
		}
		if !found {
			return apperrors.NewInternalError("outcome row missing after insert conflict", sql.ErrNoRows)
		}
	}

	current.Record(outcome)
	_, err = tx.ExecContext(ctx, `
		UPDATE historical_outcomes SET
			total_orders_analyzed = $1, success_count = $2,
			non_adapt_count = $3, remake_count = $4,
			success_rate = $5, non_adapt_rate = $6, remake_rate = $7,
			updated_at = $8
		WHERE id = $9`,
		current.TotalOrdersAnalyzed, current.SuccessCount,
		current.NonAdaptCount, current.RemakeCount,
		current.SuccessRate, current.NonAdaptRate, current.RemakeRate,
		time.Now().UTC(), id,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to update outcome row", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit outcome", err)
	}
	return nil
}

func lockOutcomeCounters(ctx context.Context, tx *sql.Tx, key entities.ConfigurationKey) (string, *entities.HistoricalOutcome, bool, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, total_orders_analyzed, success_count, non_adapt_count, remake_count
		FROM historical_outcomes
		WHERE lens_type = $1 AND lens_material = $2 AND coating = $3
		FOR UPDATE`,
		key.LensType, key.LensMaterial, key.Coating,
	)

	var id string
	current := &entities.HistoricalOutcome{}
	err := row.Scan(&id, &current.TotalOrdersAnalyzed, &current.SuccessCount, &current.NonAdaptCount, &current.RemakeCount)
	if err == sql.ErrNoRows {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, err
	}
	return id, current, true, nil
}

// insertFirstSample creates the row for a configuration's first observation.
// FOR UPDATE takes no lock on an absent row, so two first-sample writers can
// both reach this insert; ON CONFLICT DO NOTHING arbitrates, and the loser
// reports false to retry as an update.
func insertFirstSample(ctx context.Context, tx *sql.Tx, key entities.ConfigurationKey, outcome entities.Outcome) (bool, error) {
	current := &entities.HistoricalOutcome{
		ID: uuid.New().String(),
		Configuration: entities.LensConfiguration{
			LensType:     key.LensType,
			LensMaterial: key.LensMaterial,
			Coating:      key.Coating,
		},
	}
	current.Record(outcome)

	result, err := tx.ExecContext(ctx, `
		INSERT INTO historical_outcomes (
			id, lens_type, lens_material, coating,
			total_orders_analyzed, success_count, non_adapt_count, remake_count,
			success_rate, non_adapt_rate, remake_rate,
			context_tags, good_for_scenarios, worst_for_scenarios, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (lens_type, lens_material, coating) DO NOTHING`,
		current.ID, key.LensType, key.LensMaterial, key.Coating,
		current.TotalOrdersAnalyzed, current.SuccessCount, current.NonAdaptCount, current.RemakeCount,
		current.SuccessRate, current.NonAdaptRate, current.RemakeRate,
		pq.Array([]string{}), pq.Array([]string{}), pq.Array([]string{}), time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Upsert writes a complete corpus row, replacing any existing row for the
// same configuration. Used when loading a prepared baseline corpus.
func (a *OutcomeAdapter) Upsert(ctx context.Context, outcome *entities.HistoricalOutcome) error {
	defer a.observe(ctx, "outcomes.upsert", time.Now())

	if outcome.ID == "" {
		outcome.ID = uuid.New().String()
	}

	patternInsights, err := json.Marshal(outcome.PatternInsights)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal pattern insights", err)
	}

	var wrapAngle sql.NullFloat64
	if outcome.Configuration.WrapAngle != nil {
		wrapAngle = sql.NullFloat64{Float64: *outcome.Configuration.WrapAngle, Valid: true}
	}

	_, err = a.client.DB().ExecContext(ctx, `
		INSERT INTO historical_outcomes (
			id, lens_type, lens_material, coating, wrap_angle,
			total_orders_analyzed, success_count, non_adapt_count, remake_count,
			success_rate, non_adapt_rate, remake_rate,
			context_tags, good_for_scenarios, worst_for_scenarios, pattern_insights, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (lens_type, lens_material, coating) DO UPDATE SET
			wrap_angle = EXCLUDED.wrap_angle,
			total_orders_analyzed = EXCLUDED.total_orders_analyzed,
			success_count = EXCLUDED.success_count,
			non_adapt_count = EXCLUDED.non_adapt_count,
			remake_count = EXCLUDED.remake_count,
			success_rate = EXCLUDED.success_rate,
			non_adapt_rate = EXCLUDED.non_adapt_rate,
			remake_rate = EXCLUDED.remake_rate,
			context_tags = EXCLUDED.context_tags,
			good_for_scenarios = EXCLUDED.good_for_scenarios,
			worst_for_scenarios = EXCLUDED.worst_for_scenarios,
			pattern_insights = EXCLUDED.pattern_insights,
			updated_at = EXCLUDED.updated_at`,
		outcome.ID,
		outcome.Configuration.LensType, outcome.Configuration.LensMaterial, outcome.Configuration.Coating,
		wrapAngle,
		outcome.TotalOrdersAnalyzed, outcome.SuccessCount, outcome.NonAdaptCount, outcome.RemakeCount,
		outcome.SuccessRate, outcome.NonAdaptRate, outcome.RemakeRate,
		pq.Array(outcome.ContextTags), pq.Array(outcome.GoodForScenarios), pq.Array(outcome.WorstForScenarios),
		patternInsights, time.Now().UTC(),
	)
	if err != nil {
		return apperrors.NewInternalError("failed to upsert outcome row", err)
	}
	return nil
}

type outcomeScanner interface {
	Scan(dest ...interface{}) error
}

func scanOutcome(row outcomeScanner) (*entities.HistoricalOutcome, error) {
	outcome := &entities.HistoricalOutcome{}
	var (
		wrapAngle       sql.NullFloat64
		contextTags     pq.StringArray
		goodFor         pq.StringArray
		worstFor        pq.StringArray
		patternInsights []byte
	)

	err := row.Scan(
		&outcome.ID,
		&outcome.Configuration.LensType,
		&outcome.Configuration.LensMaterial,
		&outcome.Configuration.Coating,
		&wrapAngle,
		&outcome.TotalOrdersAnalyzed,
		&outcome.SuccessCount,
		&outcome.NonAdaptCount,
		&outcome.RemakeCount,
		&outcome.SuccessRate,
		&outcome.NonAdaptRate,
		&outcome.RemakeRate,
		&contextTags,
		&goodFor,
		&worstFor,
		&patternInsights,
		&outcome.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if wrapAngle.Valid {
		v := wrapAngle.Float64
		outcome.Configuration.WrapAngle = &v
	}
	outcome.ContextTags = contextTags
	outcome.GoodForScenarios = goodFor
	outcome.WorstForScenarios = worstFor
	if len(patternInsights) > 0 {
		if err := json.Unmarshal(patternInsights, &outcome.PatternInsights); err != nil {
			return nil, err
		}
	}

	return outcome, nil
}
