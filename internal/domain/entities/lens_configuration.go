package entities

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the recorded result of a dispensed order for a configuration.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeNonAdapt Outcome = "non_adapt"
	OutcomeRemake   Outcome = "remake"
)

// Valid reports whether o is one of the three recordable outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeNonAdapt, OutcomeRemake:
		return true
	}
	return false
}

// LensConfiguration is a (lens type, material, coating) triple, optionally
// qualified by the frame wrap angle it was dispensed with.
type LensConfiguration struct {
	LensType     string   `json:"lens_type" db:"lens_type"`
	LensMaterial string   `json:"lens_material" db:"lens_material"`
	Coating      string   `json:"coating" db:"coating"`
	WrapAngle    *float64 `json:"wrap_angle,omitempty" db:"wrap_angle"`
}

// Key returns the corpus key for this configuration.
func (c LensConfiguration) Key() ConfigurationKey {
	return ConfigurationKey{
		LensType:     strings.ToLower(strings.TrimSpace(c.LensType)),
		LensMaterial: strings.ToLower(strings.TrimSpace(c.LensMaterial)),
		Coating:      strings.ToLower(strings.TrimSpace(c.Coating)),
	}
}

// ConfigurationKey identifies a row in the historical-outcomes corpus.
type ConfigurationKey struct {
	LensType     string `json:"lens_type"`
	LensMaterial string `json:"lens_material"`
	Coating      string `json:"coating"`
}

// String renders the key in the canonical "type/material/coating" form used
// for logging and cache keys.
func (k ConfigurationKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.LensType, k.LensMaterial, k.Coating)
}

// PatternInsight is a named clinical pattern stored with a corpus row.
type PatternInsight struct {
	Name         string  `json:"name"`
	Applicable   bool    `json:"applicable"`
	NonAdaptRate float64 `json:"non_adapt_rate"`
	Description  string  `json:"description,omitempty"`
}

// HistoricalOutcome is one row of the historical-outcomes corpus: aggregate
// order results for a configuration plus the clinical context it was
// dispensed under.
type HistoricalOutcome struct {
	ID                  string                    `json:"id" db:"id"`
	Configuration       LensConfiguration         `json:"configuration"`
	TotalOrdersAnalyzed int                       `json:"total_orders_analyzed" db:"total_orders_analyzed"`
	SuccessCount        int                       `json:"success_count" db:"success_count"`
	NonAdaptCount       int                       `json:"non_adapt_count" db:"non_adapt_count"`
	RemakeCount         int                       `json:"remake_count" db:"remake_count"`
	SuccessRate         float64                   `json:"success_rate" db:"success_rate"`
	NonAdaptRate        float64                   `json:"non_adapt_rate" db:"non_adapt_rate"`
	RemakeRate          float64                   `json:"remake_rate" db:"remake_rate"`
	ContextTags         []string                  `json:"context_tags"`
	GoodForScenarios    []string                  `json:"good_for_scenarios"`
	WorstForScenarios   []string                  `json:"worst_for_scenarios"`
	PatternInsights     map[string]PatternInsight `json:"pattern_insights,omitempty"`
	UpdatedAt           time.Time                 `json:"updated_at" db:"updated_at"`
}

// Record applies one more observed outcome and recomputes the ratio rates.
// Callers are responsible for making the surrounding read-modify-write atomic.
func (h *HistoricalOutcome) Record(outcome Outcome) {
	switch outcome {
	case OutcomeSuccess:
		h.SuccessCount++
	case OutcomeNonAdapt:
		h.NonAdaptCount++
	case OutcomeRemake:
		h.RemakeCount++
	}
	h.TotalOrdersAnalyzed++
	h.recomputeRates()
}

func (h *HistoricalOutcome) recomputeRates() {
	if h.TotalOrdersAnalyzed == 0 {
		h.SuccessRate, h.NonAdaptRate, h.RemakeRate = 0, 0, 0
		return
	}
	total := float64(h.TotalOrdersAnalyzed)
	h.SuccessRate = float64(h.SuccessCount) / total
	h.NonAdaptRate = float64(h.NonAdaptCount) / total
	h.RemakeRate = float64(h.RemakeCount) / total
}

// ConfigurationScore is the pattern matcher's verdict on one configuration.
type ConfigurationScore struct {
	Configuration LensConfiguration `json:"configuration"`
	SuccessRate   float64           `json:"success_rate"`
	NonAdaptRate  float64           `json:"non_adapt_rate"`
	RemakeRate    float64           `json:"remake_rate"`
	SampleCount   int               `json:"sample_count"`
	ContextTags   []string          `json:"context_tags,omitempty"`
	Score         float64           `json:"score"`
}

// RiskFactor names a risk contributor for a prescription with its mitigation.
type RiskFactor struct {
	Factor       string  `json:"factor"`
	RiskIncrease float64 `json:"risk_increase"`
	Mitigation   string  `json:"mitigation,omitempty"`
}

// ClinicalPattern is a named adaptation pattern surfaced from corpus insights.
type ClinicalPattern struct {
	Name         string  `json:"name"`
	NonAdaptRate float64 `json:"non_adapt_rate"`
	Description  string  `json:"description,omitempty"`
}

// OutcomeAnalysis is the full output of the outcome pattern matcher.
type OutcomeAnalysis struct {
	RankedConfigurations []ConfigurationScore `json:"ranked_configurations"`
	ClinicalPatterns     []ClinicalPattern    `json:"clinical_patterns"`
	RiskFactors          []RiskFactor         `json:"risk_factors"`
	Summary              string               `json:"summary"`
}
