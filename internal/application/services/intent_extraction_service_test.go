package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/optivista/lensadvisor/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

// --- Tag detection tests ---

func TestExtract_NewProgressiveWearerScenario(t *testing.T) {
	svc := NewIntentExtractionService()
	note := entities.ClinicalNote{
		Text:       "First-time progressive wearer. Works 8+ hours on computer. Complains of eye strain and difficulty driving at night due to glare.",
		PatientAge: intPtr(48),
	}

	result := svc.Extract(context.Background(), note)

	require.NotNil(t, result)
	assert.Equal(t, []string{
		"first_time_progressive",
		"computer_heavy_use",
		"night_driving_complaint",
		"glare_sensitivity",
		"eye_strain",
		"presbyopia",
	}, result.TagNames())

	// Presbyopia came from the age fallback, not the text.
	for _, tag := range result.Tags {
		if tag.Name == entities.TagPresbyopia {
			assert.InDelta(t, 0.70, tag.Confidence, 1e-9)
		}
	}

	assert.Equal(t, "Office / screen-focused lifestyle", result.Lifestyle)
	assert.Equal(t, []string{"glare at night", "eye strain"}, result.Complaints)
	assert.Empty(t, result.ClinicalFlags)

	for _, characteristic := range []string{
		entities.CharSoftDesign,
		entities.CharPremium,
		entities.CharBlueLight,
		entities.CharAntiReflective,
		entities.CharAntiGlare,
	} {
		assert.True(t, result.Characteristics[characteristic], characteristic)
	}
	assert.False(t, result.Characteristics[entities.CharUVProtection])

	// Mean of 0.95, 0.90, 0.90, 0.85, 0.85, 0.70 with no flag bonus.
	assert.InDelta(t, 5.15/6.0, result.OverallConfidence, 1e-9)
}

func TestExtract_TagRecordedOnce(t *testing.T) {
	svc := NewIntentExtractionService()
	note := entities.ClinicalNote{
		Text: "Spends all day on a computer and a laptop, lots of screen time.",
	}

	result := svc.Extract(context.Background(), note)

	count := 0
	for _, tag := range result.Tags {
		if tag.Name == entities.TagComputerHeavyUse {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExtract_NoSignal(t *testing.T) {
	svc := NewIntentExtractionService()
	note := entities.ClinicalNote{Text: "Patient seen for routine follow up."}

	result := svc.Extract(context.Background(), note)

	assert.Empty(t, result.Tags)
	assert.Equal(t, 0.5, result.OverallConfidence)
	assert.Equal(t, "General lifestyle", result.Lifestyle)
	assert.Equal(t, "General lifestyle.", result.Summary)
}

// --- Inference tests ---

func TestExtract_AgeFallbackSkippedWhenTextMentionsPresbyopia(t *testing.T) {
	svc := NewIntentExtractionService()
	note := entities.ClinicalNote{
		Text:       "Early presbyopia, trouble reading up close.",
		PatientAge: intPtr(52),
	}

	result := svc.Extract(context.Background(), note)

	count := 0
	for _, tag := range result.Tags {
		if tag.Name == entities.TagPresbyopia {
			count++
			assert.InDelta(t, 0.90, tag.Confidence, 1e-9)
		}
	}
	assert.Equal(t, 1, count)
}

func TestExtract_OccupationInference(t *testing.T) {
	svc := NewIntentExtractionService()
	note := entities.ClinicalNote{
		Text:       "Complains of headaches in the evening.",
		Occupation: "Software Developer",
	}

	result := svc.Extract(context.Background(), note)

	require.True(t, result.HasTag(entities.TagComputerHeavyUse))
	for _, tag := range result.Tags {
		if tag.Name == entities.TagComputerHeavyUse {
			assert.InDelta(t, 0.75, tag.Confidence, 1e-9)
		}
	}
}

func TestExtract_OccupationDoesNotOverrideTextDetection(t *testing.T) {
	svc := NewIntentExtractionService()
	note := entities.ClinicalNote{
		Text:       "Long days at the computer.",
		Occupation: "accountant",
	}

	result := svc.Extract(context.Background(), note)

	count := 0
	for _, tag := range result.Tags {
		if tag.Name == entities.TagComputerHeavyUse {
			count++
			assert.InDelta(t, 0.90, tag.Confidence, 1e-9)
		}
	}
	assert.Equal(t, 1, count)
}

// --- Confidence tests ---

func TestExtract_FlagBonusCapped(t *testing.T) {
	svc := NewIntentExtractionService()
	note := entities.ClinicalNote{
		Text: "Wants premium lenses. History of diabetes, cataract, glaucoma and macular degeneration.",
	}

	result := svc.Extract(context.Background(), note)

	require.Len(t, result.ClinicalFlags, 4)
	// Single 0.80 tag plus the capped 0.15 flag bonus.
	assert.InDelta(t, 0.95, result.OverallConfidence, 1e-9)
}

func TestExtract_ConfidenceBounds(t *testing.T) {
	svc := NewIntentExtractionService()
	notes := []string{
		"",
		"First-time progressive wearer with diabetes, cataract, glaucoma, macular degeneration and lasik history.",
		"computer screen glare eye strain night driving outdoors sports premium budget",
	}

	for _, text := range notes {
		result := svc.Extract(context.Background(), entities.ClinicalNote{Text: text})
		assert.GreaterOrEqual(t, result.OverallConfidence, 0.5, text)
		assert.LessOrEqual(t, result.OverallConfidence, 1.0, text)
	}
}

// --- Determinism and caching ---

func TestExtract_Deterministic(t *testing.T) {
	svc := NewIntentExtractionService()
	note := entities.ClinicalNote{
		Text:       "First-time progressive wearer. Works on a computer. Eye strain and glare at night.",
		PatientAge: intPtr(48),
	}

	first := svc.Extract(context.Background(), note)
	for i := 0; i < 5; i++ {
		next := svc.Extract(context.Background(), note)
		assert.Equal(t, first.Tags, next.Tags)
		assert.Equal(t, first.Summary, next.Summary)
		assert.Equal(t, first.Characteristics, next.Characteristics)
		assert.Equal(t, first.OverallConfidence, next.OverallConfidence)
	}
}

type fakeCache struct {
	data map[string][]byte
	sets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	if data, ok := c.data[key]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("key not found: %s", key)
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	c.data[key] = value
	c.sets++
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func (c *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := c.data[key]
	return ok, nil
}

func TestExtract_CachesResult(t *testing.T) {
	svc := NewIntentExtractionService()
	cache := newFakeCache()
	svc.SetCache(cache)

	note := entities.ClinicalNote{Text: "Computer work all day, eye strain."}

	first := svc.Extract(context.Background(), note)
	second := svc.Extract(context.Background(), note)

	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, first.Tags, second.Tags)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.OverallConfidence, second.OverallConfidence)
}

func TestExtract_CacheHitMintsFreshIdentity(t *testing.T) {
	svc := NewIntentExtractionService()
	cache := newFakeCache()
	svc.SetCache(cache)

	note := entities.ClinicalNote{Text: "Computer work all day, eye strain."}

	first := svc.Extract(context.Background(), note)
	second := svc.Extract(context.Background(), note)

	// Each extraction is persisted as its own audit record downstream, so a
	// cache hit must never hand out the identity of an earlier call.
	require.NotEmpty(t, first.ID)
	require.NotEmpty(t, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, second.CreatedAt.IsZero())
}
