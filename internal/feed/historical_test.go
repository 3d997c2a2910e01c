package feed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/repository"
)

func newTestHistorical(t *testing.T, dataDir string, clock Clock, seed int64) *HistoricalFeed {
	t.Helper()
	return NewHistoricalFeed(testLogger(t), clock, nil, dataDir, seed)
}

func writeSmallDataset(t *testing.T, dir, symbol string, rows int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "historical"), 0o755))
	data := "["
	base := int64(1700000000)
	for i := 0; i < rows; i++ {
		if i > 0 {
			data += ","
		}
		p := 100 + float64(i)
		data += fmt.Sprintf("[%d, %g, %g, %g, %g, 10]", base+int64(i)*60, p, p+1, p-1, p+0.5)
	}
	data += "]"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "historical", symbol+".json"), []byte(data), 0o644))
}

func TestHistoricalInitializeRejectsEmptySymbols(t *testing.T) {
	f := newTestHistorical(t, t.TempDir(), NewRealClock(), 1)
	err := f.Initialize(context.Background(), models.FeedConfig{})
	require.ErrorIs(t, err, ErrNoSymbols)
}

func TestHistoricalSyntheticFallback(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	f := newTestHistorical(t, t.TempDir(), NewManualClock(now), 1)

	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{Symbols: []string{"BTCUSDT"}}))

	start, end := f.TimeRange()
	assert.WithinDuration(t, now.Add(-30*24*time.Hour), start, time.Minute)
	assert.WithinDuration(t, now, end, time.Minute)
	assert.Equal(t, start, f.CurrentTime())
}

func TestHistoricalNextTickMonotonicAndTerminal(t *testing.T) {
	dir := t.TempDir()
	writeSmallDataset(t, dir, "BTCUSDT", 10)
	f := newTestHistorical(t, dir, NewRealClock(), 1)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{Symbols: []string{"BTCUSDT"}}))

	var prev time.Time
	for i := 0; i < 10; i++ {
		tick, err := f.NextTick("BTCUSDT")
		require.NoError(t, err)
		require.NotNil(t, tick)
		require.Greater(t, tick.Price, 0.0)
		if i > 0 {
			require.False(t, tick.Timestamp.Before(prev))
		}
		prev = tick.Timestamp
	}

	// exhausted: nil forever until Reset
	for i := 0; i < 3; i++ {
		tick, err := f.NextTick("BTCUSDT")
		require.NoError(t, err)
		require.Nil(t, tick)
	}

	require.NoError(t, f.Reset())
	tick, err := f.NextTick("BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, tick)
}

func TestHistoricalNextTickUnknownSymbol(t *testing.T) {
	dir := t.TempDir()
	writeSmallDataset(t, dir, "BTCUSDT", 3)
	f := newTestHistorical(t, dir, NewRealClock(), 1)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{Symbols: []string{"BTCUSDT"}}))

	_, err := f.NextTick("ETHUSDT")
	require.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestHistoricalSeekBounds(t *testing.T) {
	dir := t.TempDir()
	writeSmallDataset(t, dir, "BTCUSDT", 10)
	f := newTestHistorical(t, dir, NewRealClock(), 1)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{Symbols: []string{"BTCUSDT"}}))

	start, end := f.TimeRange()

	require.ErrorIs(t, f.JumpToTime(start.Add(-time.Hour)), ErrSeekOutOfRange)
	require.ErrorIs(t, f.JumpToTime(end.Add(time.Hour)), ErrSeekOutOfRange)

	// in-range seek positions the cursor at the first row >= target
	target := start.Add(5 * time.Minute)
	require.NoError(t, f.JumpToTime(target))
	assert.Equal(t, target, f.CurrentTime())

	tick, err := f.NextTick("BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, tick)
	assert.False(t, tick.Timestamp.Before(target))
}

func TestHistoricalSeekLeavesStateOnError(t *testing.T) {
	dir := t.TempDir()
	writeSmallDataset(t, dir, "BTCUSDT", 10)
	f := newTestHistorical(t, dir, NewRealClock(), 1)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{Symbols: []string{"BTCUSDT"}}))

	tick, err := f.NextTick("BTCUSDT")
	require.NoError(t, err)
	before := f.CurrentTime()

	_, end := f.TimeRange()
	require.Error(t, f.JumpToTime(end.Add(time.Hour)))
	assert.Equal(t, before, f.CurrentTime())
	assert.Equal(t, tick.Timestamp, before)
}

func TestHistoricalSpeedClamp(t *testing.T) {
	f := newTestHistorical(t, t.TempDir(), NewRealClock(), 1)

	assert.Equal(t, 0.1, f.SetReplaySpeed(0.0001))
	assert.Equal(t, 1000.0, f.SetReplaySpeed(5000))
	assert.Equal(t, 2.5, f.SetReplaySpeed(2.5))
	assert.Equal(t, 2.5, f.ReplaySpeed())
}

func TestHistoricalDeterministicSynthetic(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	cfg := models.FeedConfig{Symbols: []string{"ETHUSDT"}}

	a := newTestHistorical(t, t.TempDir(), NewManualClock(now), 42)
	b := newTestHistorical(t, t.TempDir(), NewManualClock(now), 42)
	require.NoError(t, a.Initialize(context.Background(), cfg))
	require.NoError(t, b.Initialize(context.Background(), cfg))

	for i := 0; i < 100; i++ {
		ta, err := a.NextTick("ETHUSDT")
		require.NoError(t, err)
		tb, err := b.NextTick("ETHUSDT")
		require.NoError(t, err)
		require.Equal(t, ta.Price, tb.Price)
		require.Equal(t, ta.Timestamp, tb.Timestamp)
	}
}

func TestHistoricalReplayLoopAndHandlerFailure(t *testing.T) {
	dir := t.TempDir()
	writeSmallDataset(t, dir, "BTCUSDT", 50)
	clock := NewManualClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	f := newTestHistorical(t, dir, clock, 1)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{Symbols: []string{"BTCUSDT"}}))

	seen := make(chan models.Tick, 64)
	boom := errors.New("boom")
	count := 0
	f.OnTick(func(tick models.Tick) error {
		count++
		seen <- tick
		if count >= 5 {
			return boom
		}
		return nil
	})

	require.NoError(t, f.Start(context.Background()))
	// idempotent start
	require.NoError(t, f.Start(context.Background()))

	for i := 0; i < 5; i++ {
		select {
		case <-seen:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for ticks")
		}
	}

	// the failing handler is fatal: the loop must wind down on its own
	deadline := time.After(5 * time.Second)
	for {
		f.mu.Lock()
		state := f.state
		f.mu.Unlock()
		if state == stateStopped {
			break
		}
		select {
		case <-deadline:
			t.Fatal("feed did not stop after handler failure")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	assert.GreaterOrEqual(t, f.Stats().TicksProcessed, int64(5))
}

func TestHistoricalPauseResumeKeepsCursor(t *testing.T) {
	dir := t.TempDir()
	writeSmallDataset(t, dir, "BTCUSDT", 20)
	f := newTestHistorical(t, dir, NewRealClock(), 1)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{
		Symbols:     []string{"BTCUSDT"},
		ReplaySpeed: 1000,
	}))

	got := make(chan models.Tick, 64)
	f.OnTick(func(tick models.Tick) error {
		got <- tick
		return nil
	})

	require.NoError(t, f.Start(context.Background()))
	first := <-got
	require.NoError(t, f.Pause())
	drained := len(got)

	require.NoError(t, f.Resume())
	var next models.Tick
	select {
	case next = <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("no tick after resume")
	}
	// no rewind and no duplicate of the pre-pause window
	require.True(t, next.Timestamp.After(first.Timestamp) || drained > 0)
	require.NoError(t, f.Stop())
}

func TestHistoricalCandlesticks(t *testing.T) {
	dir := t.TempDir()
	writeSmallDataset(t, dir, "BTCUSDT", 30)
	f := newTestHistorical(t, dir, NewRealClock(), 1)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{Symbols: []string{"BTCUSDT"}}))

	for i := 0; i < 20; i++ {
		_, err := f.NextTick("BTCUSDT")
		require.NoError(t, err)
	}

	oneMin, err := f.Candlesticks("BTCUSDT", repository.TF1m, 10)
	require.NoError(t, err)
	require.Len(t, oneMin, 10)
	for _, c := range oneMin {
		require.GreaterOrEqual(t, c.High, maxFloat(c.Open, c.Close))
		require.LessOrEqual(t, c.Low, minFloat(c.Open, c.Close))
	}

	fiveMin, err := f.Candlesticks("BTCUSDT", repository.TF5m, 0)
	require.NoError(t, err)
	require.NotEmpty(t, fiveMin)
	for _, c := range fiveMin {
		require.GreaterOrEqual(t, c.High, maxFloat(c.Open, c.Close))
		require.LessOrEqual(t, c.Low, minFloat(c.Open, c.Close))
	}

	_, err = f.Candlesticks("BTCUSDT", repository.TF1s, 10)
	require.Error(t, err)
}

func TestHistoricalOrderBookOrdering(t *testing.T) {
	dir := t.TempDir()
	writeSmallDataset(t, dir, "BTCUSDT", 5)
	f := newTestHistorical(t, dir, NewRealClock(), 1)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{Symbols: []string{"BTCUSDT"}}))

	book, err := f.OrderBook("BTCUSDT")
	require.NoError(t, err)
	requireBookOrdered(t, book)
}

func TestHistoricalUnsubscribe(t *testing.T) {
	f := newTestHistorical(t, t.TempDir(), NewRealClock(), 1)
	calls := 0
	off := f.OnAnomaly(func(models.MarketAnomaly) error {
		calls++
		return nil
	})

	f.InjectAnomaly(models.MarketAnomaly{Type: models.AnomalyArbitrage})
	off()
	off() // idempotent
	f.InjectAnomaly(models.MarketAnomaly{Type: models.AnomalyArbitrage})

	assert.Equal(t, 1, calls)
}

func TestHistoricalCleanupTerminal(t *testing.T) {
	dir := t.TempDir()
	writeSmallDataset(t, dir, "BTCUSDT", 5)
	f := newTestHistorical(t, dir, NewRealClock(), 1)
	require.NoError(t, f.Initialize(context.Background(), models.FeedConfig{Symbols: []string{"BTCUSDT"}}))
	require.NoError(t, f.Cleanup())

	require.ErrorIs(t, f.Start(context.Background()), ErrFeedClosed)
	require.ErrorIs(t, f.Initialize(context.Background(), models.FeedConfig{Symbols: []string{"X"}}), ErrFeedClosed)
}

func requireBookOrdered(t *testing.T, book *models.OrderBookSnapshot) {
	t.Helper()
	require.NotEmpty(t, book.Bids)
	require.NotEmpty(t, book.Asks)
	for i := 1; i < len(book.Bids); i++ {
		require.Less(t, book.Bids[i].Price, book.Bids[i-1].Price)
	}
	for i := 1; i < len(book.Asks); i++ {
		require.Greater(t, book.Asks[i].Price, book.Asks[i-1].Price)
	}
	require.Greater(t, book.Asks[0].Price, book.Bids[0].Price)
}
