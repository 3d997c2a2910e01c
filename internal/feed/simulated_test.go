package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/repository"
)

func newTestSimulated(t *testing.T, clock Clock, seed int64) *SimulatedFeed {
	t.Helper()
	return NewSimulatedFeed(testLogger(t), clock, nil, testSimParams(), seed)
}

func TestSimulatedInitializeRejectsEmptySymbols(t *testing.T) {
	f := newTestSimulated(t, NewRealClock(), 1)
	require.ErrorIs(t, f.Initialize(context.Background(), models.FeedConfig{}), ErrNoSymbols)
}

func TestSimulatedNextTickPositivePrices(t *testing.T) {
	start := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)
	f := newTestSimulated(t, clock, 7)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{
		Symbols:              []string{"BTCUSDT"},
		VolatilityMultiplier: 3,
	}))

	for i := 0; i < 5000; i++ {
		clock.Advance(time.Second)
		tick, err := f.NextTick("BTCUSDT")
		require.NoError(t, err)
		require.Greater(t, tick.Price, 0.0)
		require.GreaterOrEqual(t, tick.Volume, 0.0)
	}
}

func TestSimulatedTickRingBounded(t *testing.T) {
	start := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)
	f := newTestSimulated(t, clock, 7)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{Symbols: []string{"ETHUSDT"}}))

	for i := 0; i < tickHistoryCap+500; i++ {
		clock.Advance(100 * time.Millisecond)
		_, err := f.NextTick("ETHUSDT")
		require.NoError(t, err)
	}

	hist, err := f.TickHistory("ETHUSDT", 0)
	require.NoError(t, err)
	assert.Len(t, hist, tickHistoryCap)

	// the ring keeps the newest ticks
	last := hist[len(hist)-1]
	cur, err := f.CurrentPrice("ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, cur, last.Price)
}

func TestSimulatedCandleInvariantsAndCap(t *testing.T) {
	start := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)
	f := newTestSimulated(t, clock, 11)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{Symbols: []string{"BTCUSDT"}}))

	// 10 ticks per minute for enough minutes to overflow the candle buffer
	for i := 0; i < (candleCap+50)*10; i++ {
		clock.Advance(6 * time.Second)
		_, err := f.NextTick("BTCUSDT")
		require.NoError(t, err)
	}

	candles, err := f.Candlesticks("BTCUSDT", repository.TF1m, 0)
	require.NoError(t, err)
	require.NotEmpty(t, candles)
	assert.LessOrEqual(t, len(candles), candleCap+1) // closed buffer plus the building bucket

	for i, c := range candles {
		require.GreaterOrEqual(t, c.High, maxFloat(c.Open, c.Close))
		require.LessOrEqual(t, c.Low, minFloat(c.Open, c.Close))
		if i > 0 {
			require.True(t, c.Timestamp.After(candles[i-1].Timestamp))
		}
	}
}

func TestSimulatedSecondCandlesFromTicks(t *testing.T) {
	start := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)
	f := newTestSimulated(t, clock, 11)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{Symbols: []string{"SOLUSDT"}}))

	for i := 0; i < 100; i++ {
		clock.Advance(250 * time.Millisecond)
		_, err := f.NextTick("SOLUSDT")
		require.NoError(t, err)
	}

	candles, err := f.Candlesticks("SOLUSDT", repository.TF1s, 0)
	require.NoError(t, err)
	require.NotEmpty(t, candles)
	for _, c := range candles {
		require.GreaterOrEqual(t, c.High, maxFloat(c.Open, c.Close))
		require.LessOrEqual(t, c.Low, minFloat(c.Open, c.Close))
	}
}

func TestSimulatedOrderBookOrderedAndSpreadEvolves(t *testing.T) {
	f := newTestSimulated(t, NewRealClock(), 3)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{Symbols: []string{"BTCUSDT"}}))

	first, err := f.OrderBook("BTCUSDT")
	require.NoError(t, err)
	requireBookOrdered(t, first)

	// reading the book evolves the stored spread: consecutive snapshots
	// at an unchanged price still differ
	var changed bool
	for i := 0; i < 10; i++ {
		next, err := f.OrderBook("BTCUSDT")
		require.NoError(t, err)
		requireBookOrdered(t, next)
		if next.Spread != first.Spread {
			changed = true
		}
	}
	assert.True(t, changed)
}

func TestSimulatedForwardOnlySeek(t *testing.T) {
	start := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)
	f := newTestSimulated(t, clock, 3)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{Symbols: []string{"BTCUSDT"}}))

	now := f.CurrentTime()
	require.ErrorIs(t, f.JumpToTime(now.Add(-time.Second)), ErrSeekBackward)
	assert.Equal(t, now, f.CurrentTime())

	target := now.Add(time.Hour)
	require.NoError(t, f.JumpToTime(target))
	assert.Equal(t, target, f.CurrentTime())
}

func TestSimulatedTimeScalesWithReplaySpeed(t *testing.T) {
	start := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)
	f := newTestSimulated(t, clock, 3)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{
		Symbols:     []string{"BTCUSDT"},
		ReplaySpeed: 10,
	}))
	require.NoError(t, f.Start(context.Background()))

	base := f.CurrentTime()
	clock.Advance(10 * time.Second)
	advanced := f.CurrentTime().Sub(base)
	require.NoError(t, f.Stop())

	// 10s of wall clock at 10x is at least 100 simulated seconds
	assert.GreaterOrEqual(t, advanced, 100*time.Second)
}

func TestSimulatedSpeedClamp(t *testing.T) {
	f := newTestSimulated(t, NewRealClock(), 3)
	assert.Equal(t, 0.1, f.SetReplaySpeed(-5))
	assert.Equal(t, 1000.0, f.SetReplaySpeed(1e9))
	assert.Equal(t, 1.0, f.SetReplaySpeed(1))
}

func TestSimulatedDeterministicAcrossInstances(t *testing.T) {
	start := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	cfg := models.FeedConfig{Symbols: []string{"BTCUSDT", "ETHUSDT"}}

	clockA, clockB := NewManualClock(start), NewManualClock(start)
	a := newTestSimulated(t, clockA, 99)
	b := newTestSimulated(t, clockB, 99)
	require.NoError(t, a.Initialize(context.Background(), cfg))
	require.NoError(t, b.Initialize(context.Background(), cfg))

	for i := 0; i < 200; i++ {
		clockA.Advance(time.Second)
		clockB.Advance(time.Second)
		for _, symbol := range cfg.Symbols {
			ta, err := a.NextTick(symbol)
			require.NoError(t, err)
			tb, err := b.NextTick(symbol)
			require.NoError(t, err)
			require.Equal(t, ta.Price, tb.Price)
			require.Equal(t, ta.Volume, tb.Volume)
		}
	}
}

func TestSimulatedResetReproducesRun(t *testing.T) {
	start := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)
	f := newTestSimulated(t, clock, 5)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{Symbols: []string{"BTCUSDT"}}))

	var first []float64
	for i := 0; i < 50; i++ {
		clock.Advance(time.Second)
		tick, err := f.NextTick("BTCUSDT")
		require.NoError(t, err)
		first = append(first, tick.Price)
	}

	require.NoError(t, f.Reset())
	for i := 0; i < 50; i++ {
		clock.Advance(time.Second)
		tick, err := f.NextTick("BTCUSDT")
		require.NoError(t, err)
		require.Equal(t, first[i], tick.Price)
	}
}

func TestSimulatedAnomalySubscription(t *testing.T) {
	f := newTestSimulated(t, NewRealClock(), 5)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{Symbols: []string{"BTCUSDT"}}))

	var got []models.MarketAnomaly
	f.OnAnomaly(func(a models.MarketAnomaly) error {
		got = append(got, a)
		return nil
	})

	f.InjectAnomaly(models.MarketAnomaly{
		Type:            models.AnomalyFlashLoan,
		Severity:        models.SeverityHigh,
		Timestamp:       time.Now(),
		Duration:        time.Minute,
		AffectedSymbols: []string{"BTCUSDT"},
	})

	require.Len(t, got, 1)
	assert.Equal(t, models.AnomalyFlashLoan, got[0].Type)
	assert.Equal(t, int64(1), f.Stats().AnomaliesGenerated)
}

func TestSimulatedLoopEmitsTicksAndBooks(t *testing.T) {
	start := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)
	f := newTestSimulated(t, clock, 5)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{Symbols: []string{"BTCUSDT"}}))

	ticks := make(chan models.Tick, 16)
	books := make(chan models.OrderBookSnapshot, 16)
	f.OnTick(func(tk models.Tick) error {
		select {
		case ticks <- tk:
		default:
		}
		return nil
	})
	f.OnOrderBookUpdate(func(b models.OrderBookSnapshot) error {
		select {
		case books <- b:
		default:
		}
		return nil
	})

	require.NoError(t, f.Start(context.Background()))
	select {
	case <-ticks:
	case <-time.After(5 * time.Second):
		t.Fatal("no tick from loop")
	}
	select {
	case b := <-books:
		requireBookOrdered(t, &b)
	case <-time.After(5 * time.Second):
		t.Fatal("no book update from loop")
	}
	require.NoError(t, f.Stop())
}
