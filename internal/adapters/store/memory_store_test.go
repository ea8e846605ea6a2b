package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/limitwatch/limitwatch/internal/core"
)

func bundle(hash string, platform core.Platform, matchCount int64) *core.PatternBundle {
	return &core.PatternBundle{
		PatternHash: hash,
		Platform:    platform,
		Category:    core.CategoryUsageAlert,
		MatchCount:  matchCount,
	}
}

func TestMemoryPatternStoreGetByHash(t *testing.T) {
	s := NewMemoryPatternStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, bundle("h1", core.PlatformZapier, 1)))

	got, err := s.GetByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "h1", got.PatternHash)

	_, err = s.GetByHash(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrPatternNotFound)
}

func TestMemoryPatternStoreGetByHashReturnsCopy(t *testing.T) {
	s := NewMemoryPatternStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, bundle("h1", core.PlatformZapier, 1)))

	got, err := s.GetByHash(ctx, "h1")
	require.NoError(t, err)
	got.MatchCount = 99

	again, err := s.GetByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.MatchCount, "mutating a returned bundle must not touch the store")
}

func TestMemoryPatternStoreUpsertConflictIncrements(t *testing.T) {
	s := NewMemoryPatternStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, bundle("h1", core.PlatformZapier, 1)))
	require.NoError(t, s.Upsert(ctx, bundle("h1", core.PlatformZapier, 1)))

	got, err := s.GetByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.MatchCount)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryPatternStoreGetByPlatformOrdering(t *testing.T) {
	s := NewMemoryPatternStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, bundle("cold", core.PlatformZapier, 1)))
	require.NoError(t, s.Upsert(ctx, bundle("hot", core.PlatformZapier, 10)))
	require.NoError(t, s.Upsert(ctx, bundle("tied", core.PlatformZapier, 1)))
	require.NoError(t, s.Upsert(ctx, bundle("other", core.PlatformMake, 50)))

	bundles, err := s.GetByPlatform(ctx, core.PlatformZapier)
	require.NoError(t, err)

	require.Len(t, bundles, 3)
	assert.Equal(t, "hot", bundles[0].PatternHash)
	assert.Equal(t, "cold", bundles[1].PatternHash, "ties resolve by insertion order")
	assert.Equal(t, "tied", bundles[2].PatternHash)
}

func TestMemoryPatternStoreIncrementMatch(t *testing.T) {
	s := NewMemoryPatternStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, bundle("h1", core.PlatformZapier, 1)))
	require.NoError(t, s.IncrementMatch(ctx, "h1"))

	got, err := s.GetByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.MatchCount)
	assert.False(t, got.LastMatchedAt.IsZero())

	assert.ErrorIs(t, s.IncrementMatch(ctx, "missing"), core.ErrPatternNotFound)
}

func usageAlert(sourceID string, platform core.Platform, threshold int, receivedAt time.Time) *core.ClassifiedAlert {
	return &core.ClassifiedAlert{
		SourceID:   sourceID,
		Platform:   platform,
		Category:   core.CategoryUsageAlert,
		Threshold:  &threshold,
		ReceivedAt: receivedAt,
	}
}

func TestMemoryAlertStoreSaveIsIdempotent(t *testing.T) {
	s := NewMemoryAlertStore()
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveAlert(ctx, "u1", usageAlert("m1", core.PlatformZapier, 80, at)))
	require.NoError(t, s.SaveAlert(ctx, "u1", usageAlert("m1", core.PlatformZapier, 90, at)))

	assert.Equal(t, 1, s.Len())

	readings, err := s.ThresholdReadings(ctx, "u1", core.PlatformZapier)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 90, readings[0].ThresholdPercent, "the second save overwrites the first")
}

func TestMemoryAlertStoreThresholdReadings(t *testing.T) {
	s := NewMemoryAlertStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveAlert(ctx, "u1", usageAlert("m2", core.PlatformZapier, 90, base.AddDate(0, 0, 10))))
	require.NoError(t, s.SaveAlert(ctx, "u1", usageAlert("m1", core.PlatformZapier, 80, base)))
	require.NoError(t, s.SaveAlert(ctx, "u1", usageAlert("m3", core.PlatformMake, 75, base)))
	require.NoError(t, s.SaveAlert(ctx, "u2", usageAlert("m4", core.PlatformZapier, 50, base)))

	// Errors and threshold-less alerts never become readings
	require.NoError(t, s.SaveAlert(ctx, "u1", &core.ClassifiedAlert{
		SourceID: "m5", Platform: core.PlatformZapier, Category: core.CategoryError, ReceivedAt: base,
	}))
	require.NoError(t, s.SaveAlert(ctx, "u1", &core.ClassifiedAlert{
		SourceID: "m6", Platform: core.PlatformZapier, Category: core.CategoryUsageAlert, ReceivedAt: base,
	}))

	readings, err := s.ThresholdReadings(ctx, "u1", core.PlatformZapier)
	require.NoError(t, err)

	require.Len(t, readings, 2)
	assert.Equal(t, 80, readings[0].ThresholdPercent, "readings come back in observation order")
	assert.Equal(t, 90, readings[1].ThresholdPercent)
}
