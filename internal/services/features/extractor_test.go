package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
)

func candlesWithCloses(closes ...float64) []models.Candle {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Symbol:    "BTCUSDT",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Close:     c,
			Timeframe: "1m",
		}
	}
	return out
}

func TestComputeLogReturns(t *testing.T) {
	rets := ComputeLogReturns(candlesWithCloses(100, 110, 121))
	require.Len(t, rets, 2)
	assert.InDelta(t, math.Log(1.1), rets[0], 1e-12)
	assert.InDelta(t, math.Log(1.1), rets[1], 1e-12)

	assert.Nil(t, ComputeLogReturns(candlesWithCloses(100)))
	assert.Nil(t, ComputeLogReturns(nil))
}

func TestComputeLogReturnsSkipsNonPositive(t *testing.T) {
	rets := ComputeLogReturns(candlesWithCloses(100, 0, 100))
	require.Len(t, rets, 2)
	assert.Zero(t, rets[0])
	assert.Zero(t, rets[1])
}

func TestRealizedVolatilityConstantSeries(t *testing.T) {
	rets := ComputeLogReturns(candlesWithCloses(100, 100, 100, 100, 100))
	sigma := RealizedVolatility(rets, len(rets), BarsPerYearForTF("1m"))
	assert.Zero(t, sigma)
}

func TestRealizedVolatilityPositive(t *testing.T) {
	rets := ComputeLogReturns(candlesWithCloses(100, 101, 99, 102, 98, 103))
	sigma := RealizedVolatility(rets, len(rets), BarsPerYearForTF("1m"))
	assert.Greater(t, sigma, 0.0)

	// insufficient window
	assert.Zero(t, RealizedVolatility(rets, len(rets)+1, BarsPerYearForTF("1m")))
	assert.Zero(t, RealizedVolatility(rets, 1, BarsPerYearForTF("1m")))
}

func TestBarsPerYearForTF(t *testing.T) {
	assert.Equal(t, float64(365*24*60*60), BarsPerYearForTF("1s"))
	assert.Equal(t, float64(365*24*60), BarsPerYearForTF("1m"))
	assert.Equal(t, float64(365*24*12), BarsPerYearForTF("5m"))
	assert.Equal(t, float64(365*24*60), BarsPerYearForTF("unknown"))
}

func TestAlignFromTo(t *testing.T) {
	from := time.Date(2026, 3, 1, 9, 2, 37, 0, time.UTC)
	to := time.Date(2026, 3, 1, 9, 58, 3, 0, time.UTC)

	af, at := AlignFromTo(from, to, "5m")
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), af)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 55, 0, 0, time.UTC), at)

	af, at = AlignFromTo(from, to, "1s")
	assert.Equal(t, from.Truncate(time.Second), af)
	assert.Equal(t, to.Truncate(time.Second), at)
}
