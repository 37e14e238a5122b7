package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/optivista/lensadvisor/internal/domain/entities"
	"github.com/optivista/lensadvisor/internal/domain/repositories"
	"github.com/optivista/lensadvisor/internal/infrastructure/observability"
	apperrors "github.com/optivista/lensadvisor/pkg/errors"
)

const (
	// Corpus rows with fewer recorded orders than this are statistically
	// thin and never surface in recommendations.
	MinSampleSize = 50

	maxRankedConfigurations = 10
	maxClinicalPatterns     = 5
)

// OutcomePatternService scores known lens configurations against a
// prescription using the historical-outcomes corpus, and derives risk
// factors from the prescription itself.
type OutcomePatternService struct {
	outcomes   repositories.OutcomeRepository
	metrics    *observability.Metrics
	minSamples int
}

// NewOutcomePatternService creates a new outcome pattern service.
func NewOutcomePatternService(outcomes repositories.OutcomeRepository) *OutcomePatternService {
	return &OutcomePatternService{outcomes: outcomes, minSamples: MinSampleSize}
}

// SetMinSampleSize overrides the eligibility threshold. Values below one are
// ignored.
func (s *OutcomePatternService) SetMinSampleSize(n int) {
	if n > 0 {
		s.minSamples = n
	}
}

// SetMetrics enables outcome metrics recording.
func (s *OutcomePatternService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// Analyze ranks eligible historical configurations for a prescription.
// An empty ranking is a valid low-data outcome, not an error.
func (s *OutcomePatternService) Analyze(ctx context.Context, rx entities.Prescription, wrapAngle *float64) (*entities.OutcomeAnalysis, error) {
	if rx.IsEmpty() {
		return nil, apperrors.NewValidationError("prescription has no refractive values")
	}

	rows, err := s.outcomes.ListEligible(ctx, s.minSamples)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to load outcomes corpus", err)
	}

	scenario := prescriptionScenario(rx)
	contextKeys := prescriptionContextKeys(rx)

	scored := make([]entities.ConfigurationScore, 0, len(rows))
	for _, row := range rows {
		scored = append(scored, entities.ConfigurationScore{
			Configuration: row.Configuration,
			SuccessRate:   row.SuccessRate,
			NonAdaptRate:  row.NonAdaptRate,
			RemakeRate:    row.RemakeRate,
			SampleCount:   row.TotalOrdersAnalyzed,
			ContextTags:   row.ContextTags,
			Score:         configurationScore(row, contextKeys, scenario, wrapAngle),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > maxRankedConfigurations {
		scored = scored[:maxRankedConfigurations]
	}

	analysis := &entities.OutcomeAnalysis{
		RankedConfigurations: scored,
		ClinicalPatterns:     extractPatterns(rows),
		RiskFactors:          deriveRiskFactors(rx, wrapAngle),
	}
	analysis.Summary = analysisSummary(analysis)

	return analysis, nil
}

// RecordOutcome applies one dispensed-order result to the corpus. Atomicity
// of the increment-and-recompute is the repository's contract.
func (s *OutcomePatternService) RecordOutcome(ctx context.Context, key entities.ConfigurationKey, outcome entities.Outcome) error {
	if !outcome.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown outcome %q", outcome))
	}
	if key.LensType == "" || key.LensMaterial == "" {
		return apperrors.NewValidationError("configuration key requires lens type and material")
	}
	if err := s.outcomes.RecordOutcome(ctx, key, outcome); err != nil {
		return apperrors.NewExternalError("failed to record outcome", err)
	}
	if s.metrics != nil {
		observability.RecordOutcomeMetric(ctx, s.metrics, string(outcome))
	}
	return nil
}

// configurationScore implements the corpus scoring rule:
// 50*success - 30*nonAdapt, +-10 per clinical-context key, minus a wrap-angle
// distance penalty of 0.5 per degree, +5/-15 for scenario fit.
func configurationScore(row *entities.HistoricalOutcome, contextKeys []string, scenario string, wrapAngle *float64) float64 {
	score := 50*row.SuccessRate - 30*row.NonAdaptRate

	rowTags := make(map[string]struct{}, len(row.ContextTags))
	for _, t := range row.ContextTags {
		rowTags[strings.ToLower(t)] = struct{}{}
	}
	for _, key := range contextKeys {
		if _, ok := rowTags[key]; ok {
			score += 10
		} else {
			score -= 10
		}
	}

	if wrapAngle != nil && row.Configuration.WrapAngle != nil {
		score -= 0.5 * math.Abs(*wrapAngle-*row.Configuration.WrapAngle)
	}

	if scenario != "" {
		for _, good := range row.GoodForScenarios {
			if strings.EqualFold(good, scenario) {
				score += 5
				break
			}
		}
		for _, worst := range row.WorstForScenarios {
			if strings.EqualFold(worst, scenario) {
				score -= 15
				break
			}
		}
	}

	return score
}

// prescriptionContextKeys derives the clinical-context keys a prescription
// asserts, matched against the context tags stored with each corpus row.
func prescriptionContextKeys(rx entities.Prescription) []string {
	var keys []string
	if rx.MaxAdd() > 0 {
		keys = append(keys, "presbyopic")
	}
	if math.Abs(entities.ParseDiopter(rx.ODCylinder)) > 2.0 || math.Abs(entities.ParseDiopter(rx.OSCylinder)) > 2.0 {
		keys = append(keys, "high_cylinder")
	}
	if rx.MaxSphere() > 4.0 || rx.MaxSphere() < -4.0 {
		keys = append(keys, "high_power")
	}
	return keys
}

// prescriptionScenario buckets a prescription into the named dispensing
// scenario used by the goodFor/worstFor lists on corpus rows.
func prescriptionScenario(rx entities.Prescription) string {
	add := rx.MaxAdd()
	switch {
	case add > 2.0:
		return "high_add_presbyopia"
	case add > 0:
		return "early_presbyopia"
	case math.Abs(entities.ParseDiopter(rx.ODCylinder)) > 2.5 || math.Abs(entities.ParseDiopter(rx.OSCylinder)) > 2.5:
		return "high_astigmatism"
	default:
		return "single_vision"
	}
}

// Risk-factor rule table. Independent of configuration scoring; each entry
// carries a fixed mitigation string.
func deriveRiskFactors(rx entities.Prescription, wrapAngle *float64) []entities.RiskFactor {
	var factors []entities.RiskFactor

	odAxis := entities.ParseDiopter(rx.ODAxis)
	osAxis := entities.ParseDiopter(rx.OSAxis)
	if axisNear90(odAxis) || axisNear90(osAxis) {
		factors = append(factors, entities.RiskFactor{
			Factor:       "high axis near 90 degrees",
			RiskIncrease: 0.08,
			Mitigation:   "Verify axis alignment at dispense; small rotation errors are most visible near 90.",
		})
	}

	if math.Abs(entities.ParseDiopter(rx.ODCylinder)) > 2.5 || math.Abs(entities.ParseDiopter(rx.OSCylinder)) > 2.5 {
		factors = append(factors, entities.RiskFactor{
			Factor:       "high cylinder",
			RiskIncrease: 0.12,
			Mitigation:   "Counsel on peripheral distortion and recommend a precise frame fit.",
		})
	}

	if rx.MaxSphere() > 2.0 && rx.MaxAdd() > 1.5 {
		factors = append(factors, entities.RiskFactor{
			Factor:       "strong presbyopia with high add",
			RiskIncrease: 0.05,
			Mitigation:   "Consider a soft progressive design with a wider intermediate corridor.",
		})
	}

	if wrapAngle != nil && *wrapAngle > 6.0 {
		factors = append(factors, entities.RiskFactor{
			Factor:       "high wrap-angle frame",
			RiskIncrease: 0.15,
			Mitigation:   "Order wrap-compensated lenses or steer to a flatter frame.",
		})
	}

	if rx.MaxAdd() > 0 && entities.ParseDiopter(rx.ODSphere) >= 0 && entities.ParseDiopter(rx.OSSphere) >= 0 {
		factors = append(factors, entities.RiskFactor{
			Factor:       "presbyopic pattern",
			RiskIncrease: 0.03,
			Mitigation:   "Set expectations on near-zone adaptation during the first two weeks.",
		})
	}

	return factors
}

func axisNear90(axis float64) bool {
	return axis != 0 && math.Abs(axis-90) <= 10
}

// extractPatterns pulls the named clinical patterns embedded in corpus rows,
// keeps only applicable ones, and returns the worst adapters first.
func extractPatterns(rows []*entities.HistoricalOutcome) []entities.ClinicalPattern {
	var patterns []entities.ClinicalPattern
	seen := make(map[string]struct{})
	for _, row := range rows {
		for name, insight := range row.PatternInsights {
			if !insight.Applicable {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			patterns = append(patterns, entities.ClinicalPattern{
				Name:         name,
				NonAdaptRate: insight.NonAdaptRate,
				Description:  insight.Description,
			})
		}
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		if patterns[i].NonAdaptRate != patterns[j].NonAdaptRate {
			return patterns[i].NonAdaptRate > patterns[j].NonAdaptRate
		}
		return patterns[i].Name < patterns[j].Name
	})
	if len(patterns) > maxClinicalPatterns {
		patterns = patterns[:maxClinicalPatterns]
	}
	return patterns
}

func analysisSummary(a *entities.OutcomeAnalysis) string {
	if len(a.RankedConfigurations) == 0 {
		return "No historical configuration has enough recorded orders to rank."
	}
	top := a.RankedConfigurations[0]
	return fmt.Sprintf(
		"%d configurations ranked; best candidate %s (%.0f%% success over %d orders); %d risk factors identified.",
		len(a.RankedConfigurations),
		top.Configuration.Key().String(),
		top.SuccessRate*100,
		top.SampleCount,
		len(a.RiskFactors),
	)
}
