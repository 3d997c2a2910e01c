package feed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/sim"
)

func TestParseArrayRows(t *testing.T) {
	raw := []byte(`[
		[1700000000, 100, 105, 99, 104, 1200],
		[1700000060, 104, 106, 103, 105, 900]
	]`)
	candles, err := parseCandleFile(raw, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 100.0, candles[0].Open)
	assert.Equal(t, 105.0, candles[1].Close)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), candles[0].Timestamp)
}

func TestParseArrayRowsMillisAndISO(t *testing.T) {
	raw := []byte(`[
		[1700000000000, 1, 2, 0.5, 1.5, 10],
		["2023-11-14T22:14:20Z", 1.5, 2, 1, 1.8, 12]
	]`)
	candles, err := parseCandleFile(raw, "X")
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), candles[0].Timestamp)
}

func TestParseObjectRowsWithAliases(t *testing.T) {
	raw := []byte(`[
		{"timestamp": 1700000000, "o": 10, "h": 12, "l": 9, "c": 11, "v": 500},
		{"timestamp": 1700000060, "open": 11, "high": 13, "low": 10, "close": 12, "volume": 600, "trades": 42}
	]`)
	candles, err := parseCandleFile(raw, "ETHUSDT")
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 10.0, candles[0].Open)
	assert.Equal(t, 12.0, candles[1].Close)
	assert.Equal(t, 42, candles[1].Trades)
}

func TestParseRejectsMissingFields(t *testing.T) {
	_, err := parseCandleFile([]byte(`[{"timestamp": 1700000000, "o": 10}]`), "X")
	require.Error(t, err)
}

func TestParseSortsByTimestamp(t *testing.T) {
	raw := []byte(`[
		[1700000120, 3, 3, 3, 3, 1],
		[1700000000, 1, 1, 1, 1, 1],
		[1700000060, 2, 2, 2, 2, 1]
	]`)
	candles, err := parseCandleFile(raw, "X")
	require.NoError(t, err)
	for i := 1; i < len(candles); i++ {
		assert.True(t, candles[i].Timestamp.After(candles[i-1].Timestamp))
	}
}

func TestLoadSymbolDatasetCandidateOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "historical"), 0o755))

	primary := filepath.Join(dir, "historical", "BTCUSDT.json")
	secondary := filepath.Join(dir, "BTCUSDT_candles.json")
	require.NoError(t, os.WriteFile(primary, []byte(`[[1700000000, 1, 1, 1, 1, 1]]`), 0o644))
	require.NoError(t, os.WriteFile(secondary, []byte(`[[1700000000, 2, 2, 2, 2, 2]]`), 0o644))

	candles, path, err := loadSymbolDataset(dir, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, primary, path)
	require.Len(t, candles, 1)
	assert.Equal(t, 1.0, candles[0].Open)
}

func TestLoadSymbolDatasetMissing(t *testing.T) {
	candles, path, err := loadSymbolDataset(t.TempDir(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, candles)
	assert.Empty(t, path)
}

func TestSyntheticDatasetShape(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	candles := generateSyntheticDataset(sim.NewRand(42), "BTCUSDT", now)

	require.Len(t, candles, 43200)

	first, last := candles[0], candles[len(candles)-1]
	assert.WithinDuration(t, now.Add(-30*24*time.Hour), first.Timestamp, time.Minute)
	assert.WithinDuration(t, now, last.Timestamp, time.Minute)

	// anchored near the BTC base price
	assert.InEpsilon(t, 45000.0, first.Open, 0.01)

	for _, c := range candles {
		require.Greater(t, c.Close, 0.0)
		require.GreaterOrEqual(t, c.High, c.Open)
		require.GreaterOrEqual(t, c.High, c.Close)
		require.LessOrEqual(t, c.Low, c.Open)
		require.LessOrEqual(t, c.Low, c.Close)
	}
}

func TestBasePriceByAssetPrefix(t *testing.T) {
	assert.Equal(t, 45000.0, BasePrice("BTCUSDT"))
	assert.Equal(t, 45000.0, BasePrice("btc-usd"))
	assert.Equal(t, 2500.0, BasePrice("ETHUSDT"))
	assert.Equal(t, 100.0, BasePrice("UNKNOWN"))
}
