package sim

import (
	"math"
	"time"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
)

const (
	priceHistorySize = 50
	shortMAWindow    = 5
	longMAWindow     = 20

	// component weights of the composed price step
	weightGBM       = 0.60
	weightTrend     = 0.20
	weightReversion = 0.15
	weightNoise     = 0.05

	secondsPerYear = 365 * 24 * 3600.0
)

// PriceProcess composes geometric Brownian motion, trend-following,
// mean-reversion and microstructure noise into price/volume/spread steps.
// All randomness flows through the injected Rand; all state is per-symbol
// and feed-private.
type PriceProcess struct {
	rng    *Rand
	regime *RegimeModel
	params models.SimulationParameters

	history  map[string][]float64
	lastStep map[string]time.Time
}

// NewPriceProcess wires the stochastic components around one randomness
// source and one regime model.
func NewPriceProcess(rng *Rand, regime *RegimeModel, params models.SimulationParameters) *PriceProcess {
	if params.TimeScale == 0 {
		params.TimeScale = 1
	}
	return &PriceProcess{
		rng:      rng,
		regime:   regime,
		params:   params,
		history:  make(map[string][]float64),
		lastStep: make(map[string]time.Time),
	}
}

// GeneratePrice advances the symbol's price by one composed step. The
// result is floored at 0.1% of the current price so it can never reach
// zero or go negative.
func (p *PriceProcess) GeneratePrice(symbol string, currentPrice, volatility, trend float64, now time.Time) float64 {
	regime := p.regime.Current(now)
	dt := p.stepDelta(symbol, now)

	// (a) GBM step, annualized
	sigma := volatility * regime.Volatility * p.params.Volatility
	drift := (p.params.Drift + trend + regime.Trend) * dt
	gbm := drift + sigma*math.Sqrt(dt)*p.rng.Norm()

	// (b) trend-following from short/long MA crossover
	trendAdj := 0.0
	if short, long, ok := p.movingAverages(symbol); ok {
		dir := 0.0
		if short > long {
			dir = 1
		} else if short < long {
			dir = -1
		}
		trendAdj = dir * regime.Momentum * p.params.TrendMomentum * sigma * math.Sqrt(dt)
	}

	// (c) mean reversion toward the rolling 50-sample average
	reversion := 0.0
	if mean, ok := p.rollingMean(symbol); ok && currentPrice > 0 {
		reversion = p.params.MeanReversionSpeed * (mean - currentPrice) / currentPrice * dt
	}

	// (d) microstructure noise
	noise := p.params.MicrostructureNoise * p.rng.Uniform(-1, 1)

	ret := weightGBM*gbm + weightTrend*trendAdj + weightReversion*reversion + weightNoise*noise
	next := currentPrice * (1 + ret)

	floor := currentPrice * 0.001
	if next < floor {
		next = floor
	}

	p.record(symbol, next)
	return next
}

// GenerateVolume shapes base volume by a U-shaped intraday curve, the
// current volatility and regime, plus bounded jitter.
func (p *PriceProcess) GenerateVolume(baseVolume float64, hourOfDay int, volatility float64) float64 {
	regime := p.regime.Current(p.lastKnownTime())
	intraday := intradayVolumeCurve(hourOfDay)
	volScale := 1 + volatility*2
	jitter := p.rng.Uniform(0.7, 1.3)
	v := baseVolume * intraday * volScale * regime.Volatility * jitter
	if v < 0 {
		v = 0
	}
	return v
}

// GenerateSpread widens the base spread with volatility, narrows it with
// liquidity, and applies a market-hours multiplier plus jitter.
func (p *PriceProcess) GenerateSpread(baseSpread, volatility, liquidity float64, hourOfDay int) float64 {
	if liquidity <= 0 {
		liquidity = 1
	}
	volMult := 1 + volatility*3
	liqMult := 1 / liquidity
	hoursMult := 1.0
	if hourOfDay < 6 || hourOfDay > 22 {
		hoursMult = 1.4 // thin off-hours books
	}
	jitter := p.rng.Uniform(0.8, 1.2)
	return baseSpread * volMult * liqMult * hoursMult * jitter
}

// SimulateVolatilityBurst returns an extra return shock with the given
// per-call probability, magnitude proportional to intensity, and random
// sign. Zero when the burst does not fire.
func (p *PriceProcess) SimulateVolatilityBurst(probability, intensity float64) float64 {
	if p.rng.Float64() >= probability {
		return 0
	}
	magnitude := intensity * p.rng.Uniform(0.5, 1.5)
	if p.rng.Float64() < 0.5 {
		return -magnitude
	}
	return magnitude
}

// stepDelta converts the wall-clock gap since the symbol's last step into
// an annualized fraction, scaled by TimeScale. First step assumes one
// second.
func (p *PriceProcess) stepDelta(symbol string, now time.Time) float64 {
	last, ok := p.lastStep[symbol]
	p.lastStep[symbol] = now
	seconds := 1.0
	if ok && now.After(last) {
		seconds = now.Sub(last).Seconds()
	}
	return seconds * p.params.TimeScale / secondsPerYear
}

func (p *PriceProcess) record(symbol string, price float64) {
	h := append(p.history[symbol], price)
	if len(h) > priceHistorySize {
		h = h[len(h)-priceHistorySize:]
	}
	p.history[symbol] = h
}

func (p *PriceProcess) movingAverages(symbol string) (short, long float64, ok bool) {
	h := p.history[symbol]
	if len(h) < longMAWindow {
		return 0, 0, false
	}
	return mean(h[len(h)-shortMAWindow:]), mean(h[len(h)-longMAWindow:]), true
}

func (p *PriceProcess) rollingMean(symbol string) (float64, bool) {
	h := p.history[symbol]
	if len(h) == 0 {
		return 0, false
	}
	return mean(h), true
}

func (p *PriceProcess) lastKnownTime() time.Time {
	var latest time.Time
	for _, t := range p.lastStep {
		if t.After(latest) {
			latest = t
		}
	}
	if latest.IsZero() {
		return time.Now()
	}
	return latest
}

// intradayVolumeCurve peaks at session open/close and bottoms out
// overnight, approximating the familiar U shape.
func intradayVolumeCurve(hour int) float64 {
	switch {
	case hour >= 8 && hour <= 10:
		return 1.5
	case hour >= 15 && hour <= 17:
		return 1.4
	case hour >= 11 && hour <= 14:
		return 1.0
	case hour >= 18 && hour <= 21:
		return 0.8
	default:
		return 0.5
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
