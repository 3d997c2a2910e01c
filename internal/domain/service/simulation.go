package service

import (
	"time"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
)

// RegimeModel selects and transitions the discrete market-condition state.
type RegimeModel interface {
	// Current returns the regime in effect at now, resampling when the
	// active regime's duration has elapsed.
	Current(now time.Time) models.RegimeState
}

// PriceProcess produces the next price/volume/spread observation for a
// symbol from composed stochastic components.
type PriceProcess interface {
	GeneratePrice(symbol string, currentPrice, volatility, trend float64, now time.Time) float64
	GenerateVolume(baseVolume float64, hourOfDay int, volatility float64) float64
	GenerateSpread(baseSpread, volatility, liquidity float64, hourOfDay int) float64
	SimulateVolatilityBurst(probability, intensity float64) float64
}

// TradeContext describes the victim/target trade an MEV simulation is
// constructed around.
type TradeContext struct {
	Amount            float64 // base asset amount of the target trade
	ExpectedPrice     float64
	SlippagePct       float64 // expected slippage fraction, e.g. 0.01
	PriceImpactPct    float64 // expected price impact fraction
	AnticipatedAmount float64 // for front-running; falls back to Amount
}

// MEVImpact is the aggregate effect of active anomalies on one symbol.
type MEVImpact struct {
	PriceImpact   float64 // capped at 0.05 per anomaly
	Slippage      float64 // capped at 0.10 per anomaly
	GasMultiplier float64 // 1.5x per active front-run, capped at 3x
}

// MEVModel generates adversarial market anomalies with bounded lifetimes.
type MEVModel interface {
	SimulateSandwichAttack(symbol string, trade TradeContext, now time.Time) models.MarketAnomaly
	SimulateFrontrun(symbol string, trade TradeContext, now time.Time) models.MarketAnomaly
	SimulateFlashLoan(symbol string, loanAmount, priceDiscrepancy float64, now time.Time) models.MarketAnomaly
	SimulateArbitrage(symbol string, baseSize, spread float64, now time.Time) models.MarketAnomaly

	// InjectRandomActivity converts the configured frequency and the time
	// elapsed since the last attack into a per-invocation probability and,
	// on success, dispatches a random attack against a random symbol.
	InjectRandomActivity(now time.Time, frequencyPerHour float64, symbols []string) (models.MarketAnomaly, bool)

	// ActiveAnomalies lazily evicts expired anomalies and returns the rest.
	ActiveAnomalies(now time.Time) []models.MarketAnomaly

	// Impact sums capped price impact and slippage across active anomalies
	// affecting symbol.
	Impact(symbol, side string, now time.Time) MEVImpact
}
