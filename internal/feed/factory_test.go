package feed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
)

func newTestFactory(t *testing.T, cfg FactoryConfig) *Factory {
	t.Helper()
	if cfg.Params.TimeScale == 0 {
		cfg.Params = testSimParams()
	}
	return NewFactory(testLogger(t), NewRealClock(), nil, cfg)
}

func TestFactoryTotalFallbackToSimulated(t *testing.T) {
	fa := newTestFactory(t, FactoryConfig{Seed: 42})

	id, feed, err := fa.CreateFeed(context.Background(), models.FeedTypeAuto, models.FeedConfig{
		Symbols: []string{"XUSDT"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.FeedTypeSimulated, feed.FeedType())
	assert.True(t, strings.HasPrefix(id, "simulated_"))
}

func TestFactoryExplicitHistorical(t *testing.T) {
	fa := newTestFactory(t, FactoryConfig{DataDir: t.TempDir(), Seed: 1})

	id, feed, err := fa.CreateFeed(context.Background(), models.FeedTypeHistorical, models.FeedConfig{
		Symbols: []string{"BTCUSDT"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.FeedTypeHistorical, feed.FeedType())
	assert.True(t, strings.HasPrefix(id, "historical_"))

	// synthetic fallback still produced a full 30-day range
	start, end := feed.TimeRange()
	assert.InDelta(t, 30*24*time.Hour, float64(end.Sub(start)), float64(2*time.Minute))
}

func TestFactoryAutoPrefersHistoricalWhenConfigured(t *testing.T) {
	fa := newTestFactory(t, FactoryConfig{DataDir: t.TempDir(), Seed: 1})

	_, feed, err := fa.CreateFeed(context.Background(), models.FeedTypeAuto, models.FeedConfig{
		Symbols: []string{"BTCUSDT"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.FeedTypeHistorical, feed.FeedType())
}

func TestFactoryHybridElevatesAnomalies(t *testing.T) {
	fa := newTestFactory(t, FactoryConfig{Seed: 1})

	id, feed, err := fa.CreateFeed(context.Background(), models.FeedTypeHybrid, models.FeedConfig{
		Symbols:          []string{"BTCUSDT"},
		AnomalyFrequency: 1,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "hybrid_"))

	cfg := feed.Config()
	assert.True(t, cfg.EnableAnomalies)
	assert.GreaterOrEqual(t, cfg.AnomalyFrequency, 6.0)
	assert.Equal(t, 1.5, cfg.VolatilityMultiplier)
}

func TestFactoryCreateFailsOnEmptySymbols(t *testing.T) {
	fa := newTestFactory(t, FactoryConfig{Seed: 1})
	_, _, err := fa.CreateFeed(context.Background(), models.FeedTypeSimulated, models.FeedConfig{})
	require.Error(t, err)
}

func TestFactoryRegistry(t *testing.T) {
	fa := newTestFactory(t, FactoryConfig{Seed: 1})
	ctx := context.Background()

	id1, _, err := fa.CreateFeed(ctx, models.FeedTypeSimulated, models.FeedConfig{Symbols: []string{"A"}})
	require.NoError(t, err)
	id2, _, err := fa.CreateFeed(ctx, models.FeedTypeSimulated, models.FeedConfig{Symbols: []string{"B"}})
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	got, ok := fa.Get(id1)
	require.True(t, ok)
	assert.Equal(t, models.FeedTypeSimulated, got.FeedType())

	assert.ElementsMatch(t, []string{id1, id2}, fa.List())

	require.NoError(t, fa.Remove(id1))
	_, ok = fa.Get(id1)
	assert.False(t, ok)
	require.Error(t, fa.Remove(id1))
}

func TestFactoryCleanupAll(t *testing.T) {
	fa := newTestFactory(t, FactoryConfig{Seed: 1})
	ctx := context.Background()

	for _, symbol := range []string{"A", "B", "C"} {
		_, feed, err := fa.CreateFeed(ctx, models.FeedTypeSimulated, models.FeedConfig{Symbols: []string{symbol}})
		require.NoError(t, err)
		require.NoError(t, feed.Start(ctx))
	}
	require.Len(t, fa.List(), 3)

	require.NoError(t, fa.Cleanup(ctx))
	assert.Empty(t, fa.List())
}

func TestFactoryDerivedSeedsDiffer(t *testing.T) {
	fa := newTestFactory(t, FactoryConfig{Seed: 100})
	ctx := context.Background()

	_, a, err := fa.CreateFeed(ctx, models.FeedTypeSimulated, models.FeedConfig{Symbols: []string{"BTCUSDT"}})
	require.NoError(t, err)
	_, b, err := fa.CreateFeed(ctx, models.FeedTypeSimulated, models.FeedConfig{Symbols: []string{"BTCUSDT"}})
	require.NoError(t, err)

	ta, err := a.NextTick("BTCUSDT")
	require.NoError(t, err)
	tb, err := b.NextTick("BTCUSDT")
	require.NoError(t, err)
	assert.NotEqual(t, ta.Price, tb.Price)
}
