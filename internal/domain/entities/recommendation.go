package entities

import (
	"sort"
	"time"
)

// RecommendationStatus is the lifecycle state of a persisted recommendation.
type RecommendationStatus string

const (
	StatusPending    RecommendationStatus = "pending"
	StatusAccepted   RecommendationStatus = "accepted"
	StatusRejected   RecommendationStatus = "rejected"
	StatusCustomized RecommendationStatus = "customized"
)

// Valid reports whether s is an assignable status. StatusPending is the
// initial state and is never assigned through UpdateStatus.
func (s RecommendationStatus) Valid() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusCustomized:
		return true
	}
	return false
}

// TagJustification pairs a detected tag with the reason it supports a tier.
type TagJustification struct {
	Tag           string `json:"tag"`
	Justification string `json:"justification"`
}

// RecommendationTier is one Good/Better/Best entry of the final output.
type RecommendationTier struct {
	Tier                   Tier               `json:"tier"`
	LensDescriptor         string             `json:"lens_descriptor"`
	CoatingDescriptor      string             `json:"coating_descriptor"`
	Features               []string           `json:"features,omitempty"`
	SKU                    string             `json:"sku"`
	ProductName            string             `json:"product_name"`
	RetailPrice            float64            `json:"retail_price"`
	MatchScore             float64            `json:"match_score"`
	ClinicalJustification  string             `json:"clinical_justification"`
	LifestyleJustification string             `json:"lifestyle_justification"`
	TagJustifications      []TagJustification `json:"tag_justifications,omitempty"`
}

// FusionMetadata captures provenance for downstream analytics.
type FusionMetadata struct {
	NLPConfidence   float64  `json:"nlp_confidence"`
	MatchCount      int      `json:"match_count"`
	MatchedPatterns []string `json:"matched_patterns,omitempty"`
}

// FusionResult is the full recommendation response for one order, persisted
// immutably and keyed by order id. Status fields are the only mutable part.
type FusionResult struct {
	ID                string               `json:"id" db:"id"`
	OrderID           string               `json:"order_id" db:"order_id"`
	TenantID          string               `json:"tenant_id" db:"tenant_id"`
	Tiers             []RecommendationTier `json:"tiers"`
	Confidence        float64              `json:"confidence" db:"confidence"`
	Metadata          FusionMetadata       `json:"metadata"`
	Status            RecommendationStatus `json:"status" db:"status"`
	ChosenTier        *Tier                `json:"chosen_tier,omitempty" db:"chosen_tier"`
	CustomizationNote string               `json:"customization_note,omitempty" db:"customization_note"`
	CreatedAt         time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at" db:"updated_at"`
}

// SortTiers orders tiers BEST, BETTER, GOOD for presentation.
func (r *FusionResult) SortTiers() {
	rank := map[Tier]int{TierBest: 0, TierBetter: 1, TierGood: 2}
	sort.SliceStable(r.Tiers, func(i, j int) bool {
		return rank[r.Tiers[i].Tier] < rank[r.Tiers[j].Tier]
	})
}

// RecommendationEvent is published on the event bus when a recommendation is
// generated or its status changes.
type RecommendationEvent struct {
	ID               string               `json:"id"`
	Type             string               `json:"type"` // generated, status_changed
	RecommendationID string               `json:"recommendation_id"`
	OrderID          string               `json:"order_id"`
	TenantID         string               `json:"tenant_id"`
	Status           RecommendationStatus `json:"status,omitempty"`
	Timestamp        time.Time            `json:"timestamp"`
}

const (
	EventRecommendationGenerated = "recommendation.generated"
	EventRecommendationStatus    = "recommendation.status_changed"
)
