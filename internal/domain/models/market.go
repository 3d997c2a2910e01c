package models

import "time"

// Tick is a single timestamped price/volume observation for a symbol.
// Note: no transport (json/http) concerns here.
type Tick struct {
	Symbol    string
	Timestamp time.Time
	Price     float64
	Volume    float64
	Source    string // feed type that produced the tick
}

// Candle represents an OHLCV aggregate over a timeframe.
// Invariant: High >= max(Open, Close) and Low <= min(Open, Close).
type Candle struct {
	Symbol    string
	Timestamp time.Time
	Timeframe string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Trades    int
}

// PriceLevel is one side level of an order book.
type PriceLevel struct {
	Price    float64
	Quantity float64
	Orders   int
}

// OrderBookSnapshot is a synthesized depth snapshot.
// Invariant: bids strictly decreasing, asks strictly increasing,
// best ask > best bid.
type OrderBookSnapshot struct {
	Symbol    string
	Timestamp time.Time
	Sequence  int64
	Bids      []PriceLevel
	Asks      []PriceLevel
	Spread    float64
	MidPrice  float64
}

// LiquidityMetrics summarizes book depth for a symbol.
type LiquidityMetrics struct {
	Symbol        string
	Timestamp     time.Time
	BidLiquidity  float64
	AskLiquidity  float64
	SpreadBps     float64
	DepthScore    float64
	VolumeProfile string // "low", "normal", "high"
}

// RegimeState is a named market-condition profile. Probabilities across the
// regime catalog sum to 1.
type RegimeState struct {
	Name        string
	Volatility  float64 // volatility multiplier
	Trend       float64 // directional bias per step
	Momentum    float64 // trend-following strength
	Duration    time.Duration
	Probability float64
}

// SimulationParameters tune the stochastic price process.
type SimulationParameters struct {
	Volatility          float64
	Drift               float64
	MeanReversionSpeed  float64
	TrendMomentum       float64
	MicrostructureNoise float64
	TimeScale           float64
}

// Anomaly types produced by the MEV event model.
const (
	AnomalyMEVSandwich = "mev_sandwich"
	AnomalyMEVFrontrun = "mev_frontrun"
	AnomalyFlashLoan   = "flash_loan"
	AnomalyArbitrage   = "arbitrage"
)

// Anomaly severities.
const (
	SeverityLow     = "low"
	SeverityMedium  = "medium"
	SeverityHigh    = "high"
	SeverityExtreme = "extreme"
)

// MarketAnomaly is a synthetic adversarial event with a bounded lifetime.
// It is created by the MEV model (or injected manually) and remains active
// until now - Timestamp >= Duration.
type MarketAnomaly struct {
	Type            string
	Severity        string
	Timestamp       time.Time
	Duration        time.Duration
	AffectedSymbols []string
	Parameters      map[string]float64
	Description     string
}

// ExpiredAt reports whether the anomaly's lifetime has elapsed at now.
func (a MarketAnomaly) ExpiredAt(now time.Time) bool {
	return now.Sub(a.Timestamp) >= a.Duration
}

// Affects reports whether the anomaly targets the given symbol.
func (a MarketAnomaly) Affects(symbol string) bool {
	for _, s := range a.AffectedSymbols {
		if s == symbol {
			return true
		}
	}
	return false
}
