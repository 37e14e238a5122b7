package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/optivista/lensadvisor/internal/domain/entities"
	"github.com/optivista/lensadvisor/internal/domain/providers"
	"github.com/optivista/lensadvisor/internal/domain/repositories"
	"github.com/optivista/lensadvisor/internal/infrastructure/observability"
	apperrors "github.com/optivista/lensadvisor/pkg/errors"
)

// Boost applied to a configuration's score for every clinical-context key it
// shares with the extracted tag set. A boost on top of the matcher's own
// score, never a replacement.
const contextKeyBoost = 0.1

// Upper bound on products pulled from the search index per tier. Wide enough
// that the scorer's own cap is the effective limit.
const searchPrefilterLimit = 100

// AnalyzeOrderRequest carries everything the fusion pipeline needs for one
// order.
type AnalyzeOrderRequest struct {
	OrderID      string                `json:"order_id"`
	TenantID     string                `json:"tenant_id"`
	Prescription entities.Prescription `json:"prescription"`
	Note         entities.ClinicalNote `json:"note"`
	Frame        *entities.FrameData   `json:"frame,omitempty"`
}

// RecommendationFusionService sequences intent extraction, outcome pattern
// matching, and catalog matching into one ranked, justified recommendation
// set, persisting the result and its extraction record.
type RecommendationFusionService struct {
	intent          *IntentExtractionService
	patterns        *OutcomePatternService
	matcher         *CatalogMatchService
	catalog         repositories.CatalogRepository
	search          repositories.CatalogSearchRepository
	recommendations repositories.RecommendationRepository
	intentRecords   repositories.IntentRecordRepository
	events          providers.EventBus
	metrics         *observability.Metrics
}

// NewRecommendationFusionService creates the fusion orchestrator.
func NewRecommendationFusionService(
	intent *IntentExtractionService,
	patterns *OutcomePatternService,
	matcher *CatalogMatchService,
	catalog repositories.CatalogRepository,
	recommendations repositories.RecommendationRepository,
	intentRecords repositories.IntentRecordRepository,
) *RecommendationFusionService {
	return &RecommendationFusionService{
		intent:          intent,
		patterns:        patterns,
		matcher:         matcher,
		catalog:         catalog,
		recommendations: recommendations,
		intentRecords:   intentRecords,
	}
}

// SetEventBus enables best-effort lifecycle event publishing.
func (s *RecommendationFusionService) SetEventBus(bus providers.EventBus) {
	s.events = bus
}

// SetCatalogSearch enables search-index pre-filtering of tenant catalogs
// before scoring. The database remains the source of truth; the index is a
// narrowing accelerator and the pipeline falls back to it being absent.
func (s *RecommendationFusionService) SetCatalogSearch(search repositories.CatalogSearchRepository) {
	s.search = search
}

// SetMetrics enables analysis metrics recording.
func (s *RecommendationFusionService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// AnalyzeOrder runs the full fusion pipeline for one order. Any failure
// before persistence aborts the call; partial results are never persisted or
// returned. Insufficient data is not a failure: the result simply carries
// fewer tiers.
func (s *RecommendationFusionService) AnalyzeOrder(ctx context.Context, req AnalyzeOrderRequest) (*entities.FusionResult, error) {
	if req.OrderID == "" || req.TenantID == "" {
		return nil, apperrors.NewValidationError("order id and tenant id are required")
	}

	logger := observability.LoggerFromContext(ctx)
	started := time.Now()

	ctx, span := observability.StartSpan(ctx, "fusion.analyze_order")
	defer span.End()

	var wrapAngle *float64
	if req.Frame != nil {
		wrapAngle = req.Frame.WrapAngle
	}

	// Intent extraction reads only the note and pattern analysis reads only
	// the prescription, so the two leaf calls run concurrently. Catalog
	// matching below is strictly sequential: it needs the re-ranked list.
	intentCh := make(chan *entities.IntentExtractionResult, 1)
	go func() {
		intentCh <- s.intent.Extract(ctx, req.Note)
	}()

	analysis, err := s.patterns.Analyze(ctx, req.Prescription, wrapAngle)
	extraction := <-intentCh
	if err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.NewInternalError("analysis failed", err)
	}

	extraction.OrderID = req.OrderID
	extraction.TenantID = req.TenantID

	ranked := rerankByIntent(analysis.RankedConfigurations, extraction)

	result := &entities.FusionResult{
		ID:       uuid.New().String(),
		OrderID:  req.OrderID,
		TenantID: req.TenantID,
		Status:   entities.StatusPending,
		Metadata: entities.FusionMetadata{
			NLPConfidence:   extraction.OverallConfidence,
			MatchedPatterns: patternNames(analysis.ClinicalPatterns),
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	tierOrder := []entities.Tier{entities.TierBest, entities.TierBetter, entities.TierGood}
	for rank, tier := range tierOrder {
		if rank >= len(ranked) {
			break
		}
		cfg := ranked[rank]

		products, err := s.loadCatalog(ctx, req.TenantID, cfg.Configuration.LensType)
		if err != nil {
			return nil, apperrors.NewInternalError("analysis failed", err)
		}

		matches := s.matcher.Match(ctx, products, cfg.Configuration, extraction.Characteristics)
		pick := pickForTier(matches, tier)
		if pick == nil {
			// Tier is dropped rather than padded when the catalog has no
			// scoring product for this configuration.
			continue
		}

		result.Tiers = append(result.Tiers, buildTier(tier, cfg, pick, extraction))
		result.Metadata.MatchCount += len(matches)
	}

	result.Confidence = aggregateConfidence(extraction, ranked)

	if err := s.recommendations.Create(ctx, result); err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.NewInternalError("analysis failed", err)
	}
	if err := s.intentRecords.Create(ctx, extraction); err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.NewInternalError("analysis failed", err)
	}

	s.publish(ctx, &entities.RecommendationEvent{
		ID:               uuid.New().String(),
		Type:             entities.EventRecommendationGenerated,
		RecommendationID: result.ID,
		OrderID:          result.OrderID,
		TenantID:         result.TenantID,
		Status:           result.Status,
		Timestamp:        time.Now().UTC(),
	})

	if s.metrics != nil {
		observability.RecordAnalysisMetric(ctx, s.metrics, req.TenantID, len(result.Tiers), time.Since(started))
	}

	logger.Info().
		Str("order_id", req.OrderID).
		Int("tiers", len(result.Tiers)).
		Float64("confidence", result.Confidence).
		Msg("recommendation generated")

	return result, nil
}

// UpdateStatus records acceptance metadata on a persisted recommendation.
// The recommendation content itself is never altered.
func (s *RecommendationFusionService) UpdateStatus(ctx context.Context, recommendationID string, status entities.RecommendationStatus, chosenTier *entities.Tier, customizationNote string) error {
	if !status.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown status %q", status))
	}
	if chosenTier != nil && !chosenTier.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown tier %q", *chosenTier))
	}

	if err := s.recommendations.UpdateStatus(ctx, recommendationID, status, chosenTier, customizationNote); err != nil {
		return apperrors.NewInternalError("failed to update recommendation status", err)
	}

	rec, err := s.recommendations.GetByID(ctx, recommendationID)
	if err == nil {
		s.publish(ctx, &entities.RecommendationEvent{
			ID:               uuid.New().String(),
			Type:             entities.EventRecommendationStatus,
			RecommendationID: recommendationID,
			OrderID:          rec.OrderID,
			TenantID:         rec.TenantID,
			Status:           status,
			Timestamp:        time.Now().UTC(),
		})
	}

	return nil
}

// GetByOrderID retrieves a previously generated recommendation.
func (s *RecommendationFusionService) GetByOrderID(ctx context.Context, orderID string) (*entities.FusionResult, error) {
	rec, err := s.recommendations.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to load recommendation", err)
	}
	return rec, nil
}

func (s *RecommendationFusionService) loadCatalog(ctx context.Context, tenantID, lensType string) ([]*entities.CatalogProduct, error) {
	if s.search != nil {
		products, err := s.search.Search(ctx, tenantID, lensType, searchPrefilterLimit)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("tenant_id", tenantID).
				Msg("catalog search unavailable, falling back to database")
		} else if len(products) > 0 {
			return products, nil
		}
	}

	products, err := s.catalog.ListByTenantAndLensType(ctx, tenantID, lensType)
	if err != nil {
		return nil, err
	}
	if len(products) > 0 {
		return products, nil
	}
	// Fall back to the full catalog so substring type matches still score.
	return s.catalog.ListByTenant(ctx, tenantID)
}

func (s *RecommendationFusionService) publish(ctx context.Context, event *entities.RecommendationEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, providers.EventChannelRecommendations, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to publish recommendation event")
	}
}

// tagContextKeys maps detected intent tags onto the clinical-context keys
// stored with corpus rows.
var tagContextKeys = map[entities.TagName]string{
	entities.TagPresbyopia:            "presbyopic",
	entities.TagFirstTimeProgressive:  "presbyopic",
	entities.TagComputerHeavyUse:      "screen_use",
	entities.TagEyeStrain:             "screen_use",
	entities.TagNightDrivingComplaint: "glare_sensitive",
	entities.TagGlareSensitivity:      "glare_sensitive",
	entities.TagOutdoorLifestyle:      "outdoor",
	entities.TagSportsActive:          "active",
}

// rerankByIntent boosts each configuration's matcher score by a flat amount
// per context key it shares with the extracted tag set, then re-sorts.
func rerankByIntent(configs []entities.ConfigurationScore, extraction *entities.IntentExtractionResult) []entities.ConfigurationScore {
	wanted := make(map[string]struct{})
	for _, t := range extraction.Tags {
		if key, ok := tagContextKeys[t.Name]; ok {
			wanted[key] = struct{}{}
		}
	}

	ranked := make([]entities.ConfigurationScore, len(configs))
	copy(ranked, configs)
	for i := range ranked {
		for _, tag := range ranked[i].ContextTags {
			if _, ok := wanted[strings.ToLower(tag)]; ok {
				ranked[i].Score += contextKeyBoost
			}
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// pickForTier prefers the best product already labeled with the wanted tier
// and falls back to the top-scoring match overall.
func pickForTier(matches []*entities.PricedMatch, tier entities.Tier) *entities.PricedMatch {
	if len(matches) == 0 {
		return nil
	}
	for _, m := range matches {
		if m.Tier == tier {
			return m
		}
	}
	return matches[0]
}

// Fixed per-tag justification texts used when assembling tier output.
var tagJustificationTexts = map[entities.TagName]string{
	entities.TagFirstTimeProgressive:  "A forgiving soft design eases the first progressive adaptation.",
	entities.TagNewWearer:             "A gentle design shortens the adjustment period for a first pair.",
	entities.TagComputerHeavyUse:      "Blue-light filtering and anti-reflective coating reduce screen fatigue.",
	entities.TagNightDrivingComplaint: "Anti-glare coating cuts headlight halos when driving at night.",
	entities.TagGlareSensitivity:      "Anti-reflective treatment reduces distracting reflections.",
	entities.TagEyeStrain:             "Reduced reflections and screen filtering relieve visual fatigue.",
	entities.TagOutdoorLifestyle:      "UV protection and light-adaptive tint suit time spent outdoors.",
	entities.TagSportsActive:          "Impact-resistant material stands up to an active routine.",
	entities.TagPresbyopia:            "The near-zone design matches the measured reading addition.",
	entities.TagPriorNonAdapt:         "A softer corridor lowers the chance of repeat non-adaptation.",
	entities.TagLightSensitivity:      "Light-adaptive lenses ease photophobia across environments.",
	entities.TagSmallFramePreference:  "A thinner lens profile fits compact frames cleanly.",
	entities.TagBudgetConscious:       "Solid coverage of the clinical needs at a contained price.",
	entities.TagPremiumSeeker:         "Premium materials and coatings for the best optical quality.",
}

var tierHeadlines = map[entities.Tier]string{
	entities.TierBest:   "Strongest historical fit",
	entities.TierBetter: "Strong alternative",
	entities.TierGood:   "Reliable value option",
}

func buildTier(tier entities.Tier, cfg entities.ConfigurationScore, pick *entities.PricedMatch, extraction *entities.IntentExtractionResult) entities.RecommendationTier {
	p := pick.Product

	clinical := fmt.Sprintf(
		"%s: %s in %s has a %.0f%% success rate over %d dispensed orders (%.0f%% non-adapt).",
		tierHeadlines[tier],
		cfg.Configuration.LensType,
		cfg.Configuration.LensMaterial,
		cfg.SuccessRate*100,
		cfg.SampleCount,
		cfg.NonAdaptRate*100,
	)

	lifestyle := fmt.Sprintf("Selected for a patient with a %s profile.", strings.ToLower(extraction.Lifestyle))

	var tagJusts []entities.TagJustification
	for _, t := range extraction.Tags {
		if text, ok := tagJustificationTexts[t.Name]; ok {
			tagJusts = append(tagJusts, entities.TagJustification{
				Tag:           string(t.Name),
				Justification: text,
			})
		}
	}

	features := p.FeatureList()
	sort.Strings(features)

	coating := p.Coating
	if coating == "" {
		coating = "uncoated"
	}

	return entities.RecommendationTier{
		Tier:                   tier,
		LensDescriptor:         fmt.Sprintf("%s %s (%s)", p.Brand, p.Name, cfg.Configuration.LensType),
		CoatingDescriptor:      coating,
		Features:               features,
		SKU:                    p.SKU,
		ProductName:            p.Name,
		RetailPrice:            p.RetailPrice,
		MatchScore:             pick.MatchScore,
		ClinicalJustification:  clinical,
		LifestyleJustification: lifestyle,
		TagJustifications:      tagJusts,
	}
}

// aggregateConfidence blends the extraction confidence with the top
// configuration's historical success rate. The blend is a documented rule
// downstream acceptance analytics depend on; with no ranked configuration it
// degrades to half the extraction confidence.
func aggregateConfidence(extraction *entities.IntentExtractionResult, ranked []entities.ConfigurationScore) float64 {
	top := 0.0
	if len(ranked) > 0 {
		top = ranked[0].SuccessRate
	}
	conf := (extraction.OverallConfidence + top) / 2
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}

func patternNames(patterns []entities.ClinicalPattern) []string {
	names := make([]string, 0, len(patterns))
	for _, p := range patterns {
		names = append(names, p.Name)
	}
	return names
}
