package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/optivista/lensadvisor/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() entities.ConfigurationKey {
	return entities.ConfigurationKey{
		LensType:     "progressive",
		LensMaterial: "polycarbonate",
		Coating:      "anti-reflective",
	}
}

func TestRecordOutcome_FirstSeenCreatesRow(t *testing.T) {
	adapter := NewOutcomeAdapter()
	ctx := context.Background()

	err := adapter.RecordOutcome(ctx, testKey(), entities.OutcomeSuccess)
	require.NoError(t, err)

	row, err := adapter.GetByKey(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, 1, row.TotalOrdersAnalyzed)
	assert.Equal(t, 1, row.SuccessCount)
	assert.Equal(t, 1.0, row.SuccessRate)
}

func TestRecordOutcome_RatesAreSimpleRatios(t *testing.T) {
	adapter := NewOutcomeAdapter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, adapter.RecordOutcome(ctx, testKey(), entities.OutcomeSuccess))
	}
	require.NoError(t, adapter.RecordOutcome(ctx, testKey(), entities.OutcomeNonAdapt))

	row, err := adapter.GetByKey(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, 4, row.TotalOrdersAnalyzed)
	assert.InDelta(t, 0.75, row.SuccessRate, 1e-9)
	assert.InDelta(t, 0.25, row.NonAdaptRate, 1e-9)
}

// Two concurrent writers for the same configuration key must not lose an
// update: the final counts reflect both outcomes.
func TestRecordOutcome_ConcurrentWritersNoLostUpdate(t *testing.T) {
	adapter := NewOutcomeAdapter()
	ctx := context.Background()

	prior := 10
	for i := 0; i < prior; i++ {
		require.NoError(t, adapter.RecordOutcome(ctx, testKey(), entities.OutcomeSuccess))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = adapter.RecordOutcome(ctx, testKey(), entities.OutcomeSuccess)
	}()
	go func() {
		defer wg.Done()
		_ = adapter.RecordOutcome(ctx, testKey(), entities.OutcomeNonAdapt)
	}()
	wg.Wait()

	row, err := adapter.GetByKey(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, prior+2, row.TotalOrdersAnalyzed)
	assert.Equal(t, 1, row.NonAdaptCount)
	assert.Equal(t, prior+1, row.SuccessCount)
}

func TestRecordOutcome_ManyConcurrentWriters(t *testing.T) {
	adapter := NewOutcomeAdapter()
	ctx := context.Background()

	const writers = 100
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		outcome := entities.OutcomeSuccess
		if i%2 == 0 {
			outcome = entities.OutcomeRemake
		}
		go func(o entities.Outcome) {
			defer wg.Done()
			_ = adapter.RecordOutcome(ctx, testKey(), o)
		}(outcome)
	}
	wg.Wait()

	row, err := adapter.GetByKey(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, writers, row.TotalOrdersAnalyzed)
	assert.Equal(t, writers/2, row.RemakeCount)
}

func TestListEligible_FiltersThinRows(t *testing.T) {
	adapter := NewOutcomeAdapter()
	ctx := context.Background()

	thin := entities.ConfigurationKey{LensType: "bifocal", LensMaterial: "cr-39", Coating: "uncoated"}
	for i := 0; i < 10; i++ {
		require.NoError(t, adapter.RecordOutcome(ctx, thin, entities.OutcomeSuccess))
	}
	for i := 0; i < 60; i++ {
		require.NoError(t, adapter.RecordOutcome(ctx, testKey(), entities.OutcomeSuccess))
	}

	eligible, err := adapter.ListEligible(ctx, 50)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "progressive", eligible[0].Configuration.LensType)
}

func TestGetByKey_NotFound(t *testing.T) {
	adapter := NewOutcomeAdapter()

	_, err := adapter.GetByKey(context.Background(), testKey())
	assert.Error(t, err)
}
