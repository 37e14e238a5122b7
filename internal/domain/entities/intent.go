package entities

import (
	"time"
)

// TagName identifies a clinical signal detected from free text. The set is
// closed; new tags require a pattern-table entry.
type TagName string

const (
	TagFirstTimeProgressive  TagName = "first_time_progressive"
	TagNewWearer             TagName = "new_wearer"
	TagComputerHeavyUse      TagName = "computer_heavy_use"
	TagNightDrivingComplaint TagName = "night_driving_complaint"
	TagGlareSensitivity      TagName = "glare_sensitivity"
	TagEyeStrain             TagName = "eye_strain"
	TagOutdoorLifestyle      TagName = "outdoor_lifestyle"
	TagSportsActive          TagName = "sports_active"
	TagPresbyopia            TagName = "presbyopia"
	TagPriorNonAdapt         TagName = "prior_non_adapt"
	TagSmallFramePreference  TagName = "small_frame_preference"
	TagBudgetConscious       TagName = "budget_conscious"
	TagPremiumSeeker         TagName = "premium_seeker"
	TagDryEyes               TagName = "dry_eyes"
	TagLightSensitivity      TagName = "light_sensitivity"
	TagReadingHeavy          TagName = "reading_heavy"
)

// IntentTag is one detected clinical signal with its confidence.
type IntentTag struct {
	Name       TagName `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Characteristic names used in recommended-characteristics maps. These line
// up with catalog product feature keys.
const (
	CharSoftDesign     = "softDesign"
	CharPremium        = "premium"
	CharBlueLight      = "blueLight"
	CharAntiReflective = "antiReflective"
	CharAntiGlare      = "antiGlare"
	CharPhotochromic   = "photochromic"
	CharUVProtection   = "uvProtection"
	CharImpactRes      = "impactResistant"
	CharThinLens       = "thinLens"
	CharBudget         = "budget"
)

// IntentExtractionResult is the immutable audit record of one extraction run.
type IntentExtractionResult struct {
	ID                string          `json:"id" db:"id"`
	OrderID           string          `json:"order_id,omitempty" db:"order_id"`
	TenantID          string          `json:"tenant_id,omitempty" db:"tenant_id"`
	Tags              []IntentTag     `json:"tags"`
	Lifestyle         string          `json:"lifestyle"`
	Complaints        []string        `json:"complaints"`
	ClinicalFlags     []string        `json:"clinical_flags"`
	Characteristics   map[string]bool `json:"characteristics"`
	Summary           string          `json:"summary"`
	OverallConfidence float64         `json:"overall_confidence"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// HasTag reports whether a tag was detected, regardless of confidence.
func (r *IntentExtractionResult) HasTag(name TagName) bool {
	for _, t := range r.Tags {
		if t.Name == name {
			return true
		}
	}
	return false
}

// TagNames returns the detected tag names in detection order.
func (r *IntentExtractionResult) TagNames() []string {
	names := make([]string, 0, len(r.Tags))
	for _, t := range r.Tags {
		names = append(names, string(t.Name))
	}
	return names
}
