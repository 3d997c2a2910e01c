package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/feed"
)

func testFactory(t *testing.T) *feed.Factory {
	t.Helper()
	return feed.NewFactory(testLogger(), feed.NewRealClock(), newFakeMetrics(), feed.FactoryConfig{
		FallbackToSimulated: true,
		Seed:                7,
		Params:              models.SimulationParameters{TimeScale: 60},
	})
}

func TestAnomalyJobInjects(t *testing.T) {
	factory := testFactory(t)
	id, f, err := factory.CreateFeed(context.Background(), models.FeedTypeSimulated, models.FeedConfig{
		Symbols: []string{"BTCUSDT"},
	})
	require.NoError(t, err)

	var received []models.MarketAnomaly
	f.OnAnomaly(func(a models.MarketAnomaly) error {
		received = append(received, a)
		return nil
	})

	job := NewAnomalyInjectJob(testLogger(), factory)
	assert.Equal(t, AnomalyJobType, job.Type())

	payload := map[string]interface{}{
		"feed_id":     id,
		"type":        models.AnomalyFlashLoan,
		"severity":    models.SeverityHigh,
		"duration_ms": float64(30000),
		"symbols":     []interface{}{"BTCUSDT"},
	}
	require.NoError(t, job.Handle(context.Background(), payload))

	require.Len(t, received, 1)
	assert.Equal(t, models.AnomalyFlashLoan, received[0].Type)
	assert.Equal(t, models.SeverityHigh, received[0].Severity)
	assert.Equal(t, 30*time.Second, received[0].Duration)
	assert.Equal(t, []string{"BTCUSDT"}, received[0].AffectedSymbols)
}

func TestAnomalyJobDefaults(t *testing.T) {
	factory := testFactory(t)
	id, f, err := factory.CreateFeed(context.Background(), models.FeedTypeSimulated, models.FeedConfig{
		Symbols: []string{"ETHUSDT"},
	})
	require.NoError(t, err)

	var got models.MarketAnomaly
	f.OnAnomaly(func(a models.MarketAnomaly) error {
		got = a
		return nil
	})

	job := NewAnomalyInjectJob(testLogger(), factory)
	payload := AnomalyJobPayload{
		FeedID:  id,
		Type:    models.AnomalyMEVSandwich,
		Symbols: []string{"ETHUSDT"},
	}
	require.NoError(t, job.Handle(context.Background(), payload))

	assert.Equal(t, models.SeverityMedium, got.Severity)
	assert.Equal(t, time.Minute, got.Duration)
}

func TestAnomalyJobRejectsBadPayload(t *testing.T) {
	job := NewAnomalyInjectJob(testLogger(), testFactory(t))

	err := job.Handle(context.Background(), AnomalyJobPayload{FeedID: "nope", Type: models.AnomalyArbitrage, Symbols: []string{"X"}})
	assert.Error(t, err, "unknown feed")

	err = job.Handle(context.Background(), AnomalyJobPayload{FeedID: "nope"})
	assert.Error(t, err, "missing type and symbols")
}
