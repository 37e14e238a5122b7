package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/optivista/lensadvisor/internal/domain/entities"
	"github.com/optivista/lensadvisor/internal/infrastructure/clients/postgres"
	apperrors "github.com/optivista/lensadvisor/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupOutcomeAdapter(t *testing.T) (*OutcomeAdapter, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return NewOutcomeAdapter(postgres.NewClientWithDB(mockDB)), mock
}

func outcomeColumns() []string {
	return []string{
		"id", "lens_type", "lens_material", "coating", "wrap_angle",
		"total_orders_analyzed", "success_count", "non_adapt_count", "remake_count",
		"success_rate", "non_adapt_rate", "remake_rate",
		"context_tags", "good_for_scenarios", "worst_for_scenarios", "pattern_insights", "updated_at",
	}
}

func TestOutcomeAdapter_ListEligible(t *testing.T) {
	adapter, mock := setupOutcomeAdapter(t)

	rows := sqlmock.NewRows(outcomeColumns()).
		AddRow(
			"row-1", "progressive", "1.67 high-index", "premium ar", 4.0,
			1200, 1104, 60, 36,
			0.92, 0.05, 0.03,
			"{presbyopic,screen_use}", "{high_add_presbyopia}", "{high_astigmatism}",
			[]byte(`{"high_add":{"name":"high_add","applicable":true,"non_adapt_rate":0.14}}`),
			time.Now(),
		).
		AddRow(
			"row-2", "single_vision", "cr-39", "uncoated", nil,
			2000, 1880, 40, 80,
			0.94, 0.02, 0.04,
			"{}", "{single_vision}", "{}", nil,
			time.Now(),
		)

	mock.ExpectQuery(`SELECT .+ FROM "historical_outcomes" WHERE \("total_orders_analyzed" >= 50\) ORDER BY "success_rate" DESC`).
		WillReturnRows(rows)

	outcomes, err := adapter.ListEligible(context.Background(), 50)

	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	first := outcomes[0]
	assert.Equal(t, "progressive", first.Configuration.LensType)
	require.NotNil(t, first.Configuration.WrapAngle)
	assert.Equal(t, 4.0, *first.Configuration.WrapAngle)
	assert.Equal(t, []string{"presbyopic", "screen_use"}, []string(first.ContextTags))
	require.Contains(t, first.PatternInsights, "high_add")
	assert.InDelta(t, 0.14, first.PatternInsights["high_add"].NonAdaptRate, 1e-9)

	assert.Nil(t, outcomes[1].Configuration.WrapAngle)
	assert.Empty(t, outcomes[1].PatternInsights)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutcomeAdapter_GetByKey_NotFound(t *testing.T) {
	adapter, mock := setupOutcomeAdapter(t)

	mock.ExpectQuery(`SELECT .+ FROM "historical_outcomes"`).
		WillReturnRows(sqlmock.NewRows(outcomeColumns()))

	_, err := adapter.GetByKey(context.Background(), entities.ConfigurationKey{
		LensType: "progressive", LensMaterial: "trivex", Coating: "ar",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutcomeAdapter_RecordOutcome_ExistingRow(t *testing.T) {
	adapter, mock := setupOutcomeAdapter(t)
	key := entities.ConfigurationKey{LensType: "progressive", LensMaterial: "polycarbonate", Coating: "ar"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, total_orders_analyzed, success_count, non_adapt_count, remake_count\s+FROM historical_outcomes\s+WHERE lens_type = \$1 AND lens_material = \$2 AND coating = \$3\s+FOR UPDATE`).
		WithArgs("progressive", "polycarbonate", "ar").
		WillReturnRows(sqlmock.NewRows([]string{"id", "total_orders_analyzed", "success_count", "non_adapt_count", "remake_count"}).
			AddRow("row-1", 10, 9, 1, 0))
	mock.ExpectExec(`UPDATE historical_outcomes SET`).
		WithArgs(11, 10, 1, 0, float64(10)/11, float64(1)/11, 0.0, sqlmock.AnyArg(), "row-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := adapter.RecordOutcome(context.Background(), key, entities.OutcomeSuccess)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutcomeAdapter_RecordOutcome_FirstSample(t *testing.T) {
	adapter, mock := setupOutcomeAdapter(t)
	key := entities.ConfigurationKey{LensType: "office", LensMaterial: "trivex", Coating: "blue light filter"}

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("office", "trivex", "blue light filter").
		WillReturnRows(sqlmock.NewRows([]string{"id", "total_orders_analyzed", "success_count", "non_adapt_count", "remake_count"}))
	mock.ExpectExec(`INSERT INTO historical_outcomes[\s\S]+ON CONFLICT \(lens_type, lens_material, coating\) DO NOTHING`).
		WithArgs(
			sqlmock.AnyArg(), "office", "trivex", "blue light filter",
			1, 0, 1, 0,
			0.0, 1.0, 0.0,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := adapter.RecordOutcome(context.Background(), key, entities.OutcomeNonAdapt)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutcomeAdapter_RecordOutcome_FirstSampleInsertRace(t *testing.T) {
	adapter, mock := setupOutcomeAdapter(t)
	key := entities.ConfigurationKey{LensType: "office", LensMaterial: "trivex", Coating: "blue light filter"}

	mock.ExpectBegin()
	// Row absent on the first lock attempt.
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("office", "trivex", "blue light filter").
		WillReturnRows(sqlmock.NewRows([]string{"id", "total_orders_analyzed", "success_count", "non_adapt_count", "remake_count"}))
	// A concurrent writer created and committed the row first, so the
	// guarded insert affects nothing.
	mock.ExpectExec(`INSERT INTO historical_outcomes[\s\S]+DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// Second lock attempt now sees the winner's row.
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("office", "trivex", "blue light filter").
		WillReturnRows(sqlmock.NewRows([]string{"id", "total_orders_analyzed", "success_count", "non_adapt_count", "remake_count"}).
			AddRow("row-9", 1, 1, 0, 0))
	mock.ExpectExec(`UPDATE historical_outcomes SET`).
		WithArgs(2, 1, 1, 0, 0.5, 0.5, 0.0, sqlmock.AnyArg(), "row-9").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := adapter.RecordOutcome(context.Background(), key, entities.OutcomeNonAdapt)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutcomeAdapter_RecordOutcome_RollsBackOnUpdateFailure(t *testing.T) {
	adapter, mock := setupOutcomeAdapter(t)
	key := entities.ConfigurationKey{LensType: "progressive", LensMaterial: "polycarbonate", Coating: "ar"}

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("progressive", "polycarbonate", "ar").
		WillReturnRows(sqlmock.NewRows([]string{"id", "total_orders_analyzed", "success_count", "non_adapt_count", "remake_count"}).
			AddRow("row-1", 10, 9, 1, 0))
	mock.ExpectExec(`UPDATE historical_outcomes SET`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := adapter.RecordOutcome(context.Background(), key, entities.OutcomeSuccess)

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
