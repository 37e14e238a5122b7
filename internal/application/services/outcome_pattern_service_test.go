package services

import (
	"context"
	"testing"

	"github.com/optivista/lensadvisor/internal/adapters/memory"
	"github.com/optivista/lensadvisor/internal/domain/entities"
	apperrors "github.com/optivista/lensadvisor/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRow(adapter *memory.OutcomeAdapter, row entities.HistoricalOutcome) {
	adapter.Seed(&row)
}

func TestAnalyze_EmptyPrescription(t *testing.T) {
	svc := NewOutcomePatternService(memory.NewOutcomeAdapter())

	_, err := svc.Analyze(context.Background(), entities.Prescription{}, nil)

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestAnalyze_MinSampleFilter(t *testing.T) {
	adapter := memory.NewOutcomeAdapter()
	seedRow(adapter, entities.HistoricalOutcome{
		Configuration:       entities.LensConfiguration{LensType: "progressive", LensMaterial: "polycarbonate", Coating: "ar"},
		TotalOrdersAnalyzed: 60, SuccessCount: 54, SuccessRate: 0.90,
	})
	seedRow(adapter, entities.HistoricalOutcome{
		Configuration:       entities.LensConfiguration{LensType: "progressive", LensMaterial: "trivex", Coating: "ar"},
		TotalOrdersAnalyzed: 40, SuccessCount: 40, SuccessRate: 1.0,
	})
	svc := NewOutcomePatternService(adapter)

	analysis, err := svc.Analyze(context.Background(), entities.Prescription{ODSphere: "-1.00"}, nil)

	require.NoError(t, err)
	require.Len(t, analysis.RankedConfigurations, 1)
	assert.Equal(t, "polycarbonate", analysis.RankedConfigurations[0].Configuration.LensMaterial)
}

func TestAnalyze_ContextAndScenarioScoring(t *testing.T) {
	adapter := memory.NewOutcomeAdapter()
	seedRow(adapter, entities.HistoricalOutcome{
		Configuration:       entities.LensConfiguration{LensType: "progressive", LensMaterial: "1.67 high-index", Coating: "premium ar"},
		TotalOrdersAnalyzed: 1200,
		SuccessRate:         0.92, NonAdaptRate: 0.05,
		ContextTags:      []string{"presbyopic"},
		GoodForScenarios: []string{"high_add_presbyopia"},
	})
	seedRow(adapter, entities.HistoricalOutcome{
		Configuration:       entities.LensConfiguration{LensType: "single_vision", LensMaterial: "cr-39", Coating: "uncoated"},
		TotalOrdersAnalyzed: 2000,
		SuccessRate:         0.94, NonAdaptRate: 0.02,
		GoodForScenarios:    []string{"single_vision"},
	})
	svc := NewOutcomePatternService(adapter)

	rx := entities.Prescription{ODSphere: "+1.00", ODAdd: "+2.25"}
	analysis, err := svc.Analyze(context.Background(), rx, nil)

	require.NoError(t, err)
	require.Len(t, analysis.RankedConfigurations, 2)

	top := analysis.RankedConfigurations[0]
	assert.Equal(t, "progressive", top.Configuration.LensType)
	// 50*0.92 - 30*0.05 + 10 context + 5 scenario fit.
	assert.InDelta(t, 59.5, top.Score, 1e-9)

	// 50*0.94 - 30*0.02 - 10 for the missing presbyopic context key.
	assert.InDelta(t, 36.4, analysis.RankedConfigurations[1].Score, 1e-9)
}

func TestAnalyze_WrapAnglePenalty(t *testing.T) {
	wrap8 := 8.0
	adapter := memory.NewOutcomeAdapter()
	seedRow(adapter, entities.HistoricalOutcome{
		Configuration: entities.LensConfiguration{
			LensType: "single_vision", LensMaterial: "polycarbonate", Coating: "photochromic",
			WrapAngle: &wrap8,
		},
		TotalOrdersAnalyzed: 250,
		SuccessRate:         1.0,
	})
	svc := NewOutcomePatternService(adapter)

	frameWrap := 2.0
	analysis, err := svc.Analyze(context.Background(), entities.Prescription{ODSphere: "-1.00"}, &frameWrap)

	require.NoError(t, err)
	require.Len(t, analysis.RankedConfigurations, 1)
	// 50*1.0 minus 0.5 per degree of wrap difference.
	assert.InDelta(t, 47.0, analysis.RankedConfigurations[0].Score, 1e-9)
}

func TestAnalyze_RiskFactorTable(t *testing.T) {
	svc := NewOutcomePatternService(memory.NewOutcomeAdapter())

	rx := entities.Prescription{
		ODSphere:   "+2.50",
		ODCylinder: "-3.00",
		ODAxis:     "85",
		ODAdd:      "+2.00",
	}
	wrap := 7.0
	analysis, err := svc.Analyze(context.Background(), rx, &wrap)

	require.NoError(t, err)
	require.Len(t, analysis.RiskFactors, 5)

	increases := []float64{}
	for _, factor := range analysis.RiskFactors {
		increases = append(increases, factor.RiskIncrease)
	}
	assert.Equal(t, []float64{0.08, 0.12, 0.05, 0.15, 0.03}, increases)
}

func TestAnalyze_NoRiskFactorsForPlainPrescription(t *testing.T) {
	svc := NewOutcomePatternService(memory.NewOutcomeAdapter())

	analysis, err := svc.Analyze(context.Background(), entities.Prescription{ODSphere: "-1.50", ODAxis: "180"}, nil)

	require.NoError(t, err)
	assert.Empty(t, analysis.RiskFactors)
}

func TestAnalyze_PatternsSortedAndCapped(t *testing.T) {
	adapter := memory.NewOutcomeAdapter()
	seedRow(adapter, entities.HistoricalOutcome{
		Configuration:       entities.LensConfiguration{LensType: "progressive", LensMaterial: "polycarbonate", Coating: "ar"},
		TotalOrdersAnalyzed: 500,
		SuccessRate:         0.9,
		PatternInsights: map[string]entities.PatternInsight{
			"high_add":     {Name: "high_add", Applicable: true, NonAdaptRate: 0.14},
			"wrap_frame":   {Name: "wrap_frame", Applicable: true, NonAdaptRate: 0.12},
			"first_timer":  {Name: "first_timer", Applicable: true, NonAdaptRate: 0.08},
			"thin_edge":    {Name: "thin_edge", Applicable: true, NonAdaptRate: 0.03},
			"small_frame":  {Name: "small_frame", Applicable: true, NonAdaptRate: 0.06},
			"night_driver": {Name: "night_driver", Applicable: true, NonAdaptRate: 0.05},
			"retired":      {Name: "retired", Applicable: false, NonAdaptRate: 0.99},
		},
	})
	svc := NewOutcomePatternService(adapter)

	analysis, err := svc.Analyze(context.Background(), entities.Prescription{ODSphere: "-1.00"}, nil)

	require.NoError(t, err)
	require.Len(t, analysis.ClinicalPatterns, 5)

	names := []string{}
	for _, pattern := range analysis.ClinicalPatterns {
		names = append(names, pattern.Name)
	}
	assert.Equal(t, []string{"high_add", "wrap_frame", "first_timer", "small_frame", "night_driver"}, names)
}

func TestAnalyze_EmptyCorpus(t *testing.T) {
	svc := NewOutcomePatternService(memory.NewOutcomeAdapter())

	analysis, err := svc.Analyze(context.Background(), entities.Prescription{ODSphere: "-1.00"}, nil)

	require.NoError(t, err)
	assert.Empty(t, analysis.RankedConfigurations)
	assert.Equal(t, "No historical configuration has enough recorded orders to rank.", analysis.Summary)
}

func TestRecordOutcome_Validation(t *testing.T) {
	svc := NewOutcomePatternService(memory.NewOutcomeAdapter())
	key := entities.ConfigurationKey{LensType: "progressive", LensMaterial: "polycarbonate", Coating: "ar"}

	err := svc.RecordOutcome(context.Background(), key, entities.Outcome("shattered"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	err = svc.RecordOutcome(context.Background(), entities.ConfigurationKey{LensType: "progressive"}, entities.OutcomeSuccess)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestRecordOutcome_Delegates(t *testing.T) {
	adapter := memory.NewOutcomeAdapter()
	svc := NewOutcomePatternService(adapter)
	key := entities.ConfigurationKey{LensType: "progressive", LensMaterial: "polycarbonate", Coating: "ar"}

	require.NoError(t, svc.RecordOutcome(context.Background(), key, entities.OutcomeSuccess))
	require.NoError(t, svc.RecordOutcome(context.Background(), key, entities.OutcomeNonAdapt))

	row, err := adapter.GetByKey(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 2, row.TotalOrdersAnalyzed)
	assert.Equal(t, 1, row.SuccessCount)
	assert.Equal(t, 1, row.NonAdaptCount)
}
