package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	domrepo "github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/repository"
	pkgcache "github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/cache"
)

type fakeCandleStore struct {
	mu      sync.Mutex
	queries int
	candles []models.Candle
}

func (s *fakeCandleStore) StoreBatch(context.Context, []models.Candle) error { return nil }

func (s *fakeCandleStore) GetCandles(_ context.Context, symbol string, _, _ time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	return s.candles, nil
}

func (s *fakeCandleStore) GetLatestNCandles(_ context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if n > len(s.candles) {
		n = len(s.candles)
	}
	return s.candles[len(s.candles)-n:], nil
}

func storedCandles(n int) []models.Candle {
	base := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Symbol:    "BTCUSDT",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      45000,
			High:      45100,
			Low:       44900,
			Close:     45050,
			Volume:    10,
			Timeframe: "1m",
			Trades:    5,
		}
	}
	return out
}

func TestGetCandlesValidatesInput(t *testing.T) {
	uc := NewCandlesUseCase(&fakeCandleStore{}, nil)
	now := time.Now()

	_, err := uc.GetCandles(context.Background(), GetCandlesParams{From: now.Add(-time.Hour), To: now})
	assert.Error(t, err, "missing symbol")

	_, err = uc.GetCandles(context.Background(), GetCandlesParams{Symbol: "BTCUSDT", From: now, To: now.Add(-time.Hour)})
	assert.Error(t, err, "inverted range")
}

func TestGetCandlesAppliesLimit(t *testing.T) {
	store := &fakeCandleStore{candles: storedCandles(100)}
	uc := NewCandlesUseCase(store, nil)

	res, err := uc.GetCandles(context.Background(), GetCandlesParams{
		Symbol:    "BTCUSDT",
		From:      time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
		Timeframe: domrepo.TF1m,
		Limit:     10,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Count)
	assert.Len(t, res.Candles, 10)
}

func TestGetCandlesUsesCache(t *testing.T) {
	store := &fakeCandleStore{candles: storedCandles(5)}
	uc := NewCandlesUseCase(store, pkgcache.NewMemoryCache())

	params := GetCandlesParams{
		Symbol:    "BTCUSDT",
		From:      time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
		Timeframe: domrepo.TF1m,
		Limit:     100,
	}

	first, err := uc.GetCandles(context.Background(), params)
	require.NoError(t, err)
	second, err := uc.GetCandles(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, first.Count, second.Count)
	assert.Equal(t, 1, store.queries, "second call should be served from cache")
}

func TestGetLatestCandles(t *testing.T) {
	store := &fakeCandleStore{candles: storedCandles(20)}
	uc := NewCandlesUseCase(store, nil)

	out, err := uc.GetLatestCandles(context.Background(), "BTCUSDT", 5, domrepo.TF1m)
	require.NoError(t, err)
	assert.Len(t, out, 5)

	_, err = uc.GetLatestCandles(context.Background(), "", 5, domrepo.TF1m)
	assert.Error(t, err)
}
