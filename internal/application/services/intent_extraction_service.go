package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/optivista/lensadvisor/internal/domain/entities"
	"github.com/optivista/lensadvisor/internal/domain/providers"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Confidence floor reported when no pattern matched anything in the note.
// Deliberately low but non-zero: downstream treats it as a low-information
// extraction, not an error.
const noSignalConfidence = 0.5

const intentCacheTTLSeconds = 86400 // 24 hours

var (
	noSignalCounterOnce sync.Once
	noSignalCounter     metric.Int64Counter
)

// IntentExtractionService parses free-text clinical notes into weighted
// intent tags, lifestyle classification, complaints, clinical flags, and
// recommended lens characteristics. Extraction is total over its input
// domain: malformed or empty text yields an empty tag list, never an error.
type IntentExtractionService struct {
	cache    providers.CacheProvider
	cacheTTL int
}

// NewIntentExtractionService creates a new intent extraction service.
func NewIntentExtractionService() *IntentExtractionService {
	return &IntentExtractionService{cacheTTL: intentCacheTTLSeconds}
}

// SetCache sets the cache provider for extraction results.
func (s *IntentExtractionService) SetCache(cache providers.CacheProvider) {
	s.cache = cache
}

// SetCacheTTL overrides the result cache lifetime in seconds.
func (s *IntentExtractionService) SetCacheTTL(seconds int) {
	if seconds > 0 {
		s.cacheTTL = seconds
	}
}

// Extract runs the full extraction pipeline over one clinical note.
func (s *IntentExtractionService) Extract(ctx context.Context, note entities.ClinicalNote) *entities.IntentExtractionResult {
	cacheKey := ""
	if s.cache != nil {
		cacheKey = intentCacheKey(note)
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cached entities.IntentExtractionResult
			if json.Unmarshal(data, &cached) == nil {
				// Cached entries hold only the derived extraction. Every
				// call produces its own audit record, so identity is minted
				// per call, never replayed from the cache.
				cached.ID = uuid.New().String()
				cached.CreatedAt = time.Now().UTC()
				return &cached
			}
		}
	}

	text := strings.ToLower(note.Text)

	result := &entities.IntentExtractionResult{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
	}

	// Step 1: tag detection from note text. First matching substring wins
	// per tag; a tag is recorded at most once.
	for _, p := range tagPatterns {
		for _, kw := range p.Keywords {
			if strings.Contains(text, kw) {
				result.Tags = append(result.Tags, entities.IntentTag{Name: p.Name, Confidence: p.Confidence})
				break
			}
		}
	}

	// Step 2: demographic fallback. Presbyopia is assumed from age 40 when
	// the note itself never mentioned it, at lower confidence than text
	// detection.
	if note.PatientAge != nil && *note.PatientAge >= presbyopiaInferenceAge && !result.HasTag(entities.TagPresbyopia) {
		result.Tags = append(result.Tags, entities.IntentTag{
			Name:       entities.TagPresbyopia,
			Confidence: presbyopiaInferenceConfidence,
		})
	}

	// Step 3: occupation inference, only for tags the text did not produce.
	if occ := strings.ToLower(strings.TrimSpace(note.Occupation)); occ != "" {
		for _, rule := range occupationRules {
			if result.HasTag(rule.Tag) {
				continue
			}
			for _, kw := range rule.Keywords {
				if strings.Contains(occ, kw) {
					result.Tags = append(result.Tags, entities.IntentTag{Name: rule.Tag, Confidence: rule.Confidence})
					break
				}
			}
		}
	}

	// Step 4: lifestyle classification, first matching category wins.
	result.Lifestyle = classifyLifestyle(text)

	// Step 5: complaints and clinical flags, recorded at most once each.
	result.Complaints = matchKeywordEntries(text, complaintEntries)
	result.ClinicalFlags = matchKeywordEntries(text, clinicalFlagEntries)

	// Step 6: recommended characteristics from the fixed rule table.
	result.Characteristics = deriveCharacteristics(result)

	// Step 7: overall confidence and summary.
	result.OverallConfidence = overallConfidence(result.Tags, len(result.ClinicalFlags))
	result.Summary = buildSummary(result)

	if len(result.Tags) == 0 {
		recordNoSignal(ctx)
	}

	if s.cache != nil {
		cacheable := *result
		cacheable.ID = ""
		cacheable.CreatedAt = time.Time{}
		if data, err := json.Marshal(&cacheable); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}

	return result
}

func classifyLifestyle(text string) string {
	for _, cat := range lifestyleCategories {
		for _, kw := range cat.Keywords {
			if strings.Contains(text, kw) {
				return cat.Label
			}
		}
	}
	return defaultLifestyle
}

func matchKeywordEntries(text string, entries []keywordEntry) []string {
	var matched []string
	for _, e := range entries {
		for _, kw := range e.Keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, e.Label)
				break
			}
		}
	}
	return matched
}

func deriveCharacteristics(r *entities.IntentExtractionResult) map[string]bool {
	complaints := make(map[string]struct{}, len(r.Complaints))
	for _, c := range r.Complaints {
		complaints[c] = struct{}{}
	}
	flags := make(map[string]struct{}, len(r.ClinicalFlags))
	for _, f := range r.ClinicalFlags {
		flags[f] = struct{}{}
	}

	chars := make(map[string]bool)
	for _, rule := range characteristicRules {
		hit := false
		for _, tag := range rule.Tags {
			if r.HasTag(tag) {
				hit = true
				break
			}
		}
		if !hit {
			for _, c := range rule.Complaints {
				if _, ok := complaints[c]; ok {
					hit = true
					break
				}
			}
		}
		if !hit {
			for _, f := range rule.Flags {
				if _, ok := flags[f]; ok {
					hit = true
					break
				}
			}
		}
		if hit {
			chars[rule.Characteristic] = true
		}
	}
	return chars
}

// overallConfidence is the mean tag confidence plus a small bonus per
// clinical flag, capped at 0.15 and clamped to 1.0. With no tags at all the
// extraction reports exactly the no-signal floor. Downstream acceptance-rate
// analytics depend on this exact shape; do not rework it without migrating
// those.
func overallConfidence(tags []entities.IntentTag, flagCount int) float64 {
	if len(tags) == 0 {
		return noSignalConfidence
	}
	sum := 0.0
	for _, t := range tags {
		sum += t.Confidence
	}
	conf := sum / float64(len(tags))

	bonus := 0.05 * float64(flagCount)
	if bonus > 0.15 {
		bonus = 0.15
	}
	conf += bonus
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

// buildSummary renders a byte-reproducible summary of the extraction:
// lifestyle, complaints, flags, then high-confidence tags in detection order.
func buildSummary(r *entities.IntentExtractionResult) string {
	var b strings.Builder
	b.WriteString(r.Lifestyle)
	b.WriteString(".")

	if len(r.Complaints) > 0 {
		b.WriteString(" Complaints: ")
		b.WriteString(strings.Join(r.Complaints, ", "))
		b.WriteString(".")
	}
	if len(r.ClinicalFlags) > 0 {
		b.WriteString(" Clinical flags: ")
		b.WriteString(strings.Join(r.ClinicalFlags, ", "))
		b.WriteString(".")
	}

	var strong []string
	for _, t := range r.Tags {
		if t.Confidence >= 0.85 {
			strong = append(strong, string(t.Name))
		}
	}
	if len(strong) > 0 {
		b.WriteString(" Key signals: ")
		b.WriteString(strings.Join(strong, ", "))
		b.WriteString(".")
	}

	return b.String()
}

func intentCacheKey(note entities.ClinicalNote) string {
	age := -1
	if note.PatientAge != nil {
		age = *note.PatientAge
	}
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", note.Text, age, note.Occupation)))
	return "intent_extract:" + hex.EncodeToString(h[:])
}

func initNoSignalCounter() {
	meter := otel.Meter("github.com/optivista/lensadvisor/intent_extraction")
	counter, err := meter.Int64Counter(
		"intent.no_signal.count",
		metric.WithDescription("Count of clinical notes that matched no intent pattern"),
	)
	if err == nil {
		noSignalCounter = counter
	}
}

func recordNoSignal(ctx context.Context) {
	noSignalCounterOnce.Do(initNoSignalCounter)
	if noSignalCounter == nil {
		return
	}
	noSignalCounter.Add(ctx, 1)
}
