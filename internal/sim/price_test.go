package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
)

func testParams() models.SimulationParameters {
	return models.SimulationParameters{
		Volatility:          0.5,
		Drift:               0.05,
		MeanReversionSpeed:  0.1,
		TrendMomentum:       0.5,
		MicrostructureNoise: 0.0005,
		TimeScale:           60, // each second of wall clock is a minute of market time
	}
}

func newTestProcess(seed int64, start time.Time) *PriceProcess {
	rng := NewRand(seed)
	return NewPriceProcess(rng, NewRegimeModel(rng, start), testParams())
}

func TestGeneratePriceDeterministic(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := newTestProcess(42, start)
	b := newTestProcess(42, start)

	pa, pb := 45000.0, 45000.0
	now := start
	for i := 0; i < 500; i++ {
		now = now.Add(time.Second)
		pa = a.GeneratePrice("BTCUSDT", pa, 0.3, 0, now)
		pb = b.GeneratePrice("BTCUSDT", pb, 0.3, 0, now)
		require.Equal(t, pa, pb)
	}
}

func TestGeneratePricePositive(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := newTestProcess(7, start)

	price := 100.0
	now := start
	for i := 0; i < 10000; i++ {
		now = now.Add(time.Second)
		price = p.GeneratePrice("ETHUSDT", price, 2.0, -0.01, now)
		require.Greater(t, price, 0.0)
	}
}

func TestGeneratePriceFloor(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := newTestProcess(1, start)

	// an absurd volatility cannot push the price below 0.1% of current
	price := p.GeneratePrice("X", 1000, 1e6, -1e6, start.Add(time.Second))
	assert.GreaterOrEqual(t, price, 1000*0.001)
}

func TestGenerateVolumeIntradayShape(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := newTestProcess(5, start)

	// average out the jitter over many draws
	avg := func(hour int) float64 {
		sum := 0.0
		for i := 0; i < 500; i++ {
			sum += p.GenerateVolume(100, hour, 0.2)
		}
		return sum / 500
	}

	open := avg(9)
	night := avg(3)
	assert.Greater(t, open, night)
}

func TestGenerateVolumeNonNegative(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := newTestProcess(5, start)
	for h := 0; h < 24; h++ {
		assert.GreaterOrEqual(t, p.GenerateVolume(10, h, 0.5), 0.0)
	}
}

func TestGenerateSpreadWidensWithVolatility(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := newTestProcess(5, start)

	avg := func(vol float64) float64 {
		sum := 0.0
		for i := 0; i < 500; i++ {
			sum += p.GenerateSpread(0.0005, vol, 1, 12)
		}
		return sum / 500
	}
	assert.Greater(t, avg(1.0), avg(0.1))
}

func TestGenerateSpreadNarrowsWithLiquidity(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := newTestProcess(5, start)

	thin := p.GenerateSpread(0.0005, 0.2, 0.5, 12)
	deep := p.GenerateSpread(0.0005, 0.2, 2.0, 12)
	// 4x liquidity ratio dominates the bounded jitter
	assert.Greater(t, thin, deep)
}

func TestVolatilityBurst(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := newTestProcess(5, start)

	// zero probability never fires
	for i := 0; i < 100; i++ {
		assert.Zero(t, p.SimulateVolatilityBurst(0, 0.1))
	}

	// certainty always fires with magnitude proportional to intensity
	fired := 0
	for i := 0; i < 100; i++ {
		shock := p.SimulateVolatilityBurst(1, 0.1)
		if shock != 0 {
			fired++
			abs := shock
			if abs < 0 {
				abs = -abs
			}
			assert.GreaterOrEqual(t, abs, 0.05)
			assert.LessOrEqual(t, abs, 0.15)
		}
	}
	assert.Equal(t, 100, fired)
}
