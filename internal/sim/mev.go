package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/service"
)

const (
	flashLoanFeeRate = 0.0009 // Aave-style flash loan fee
	arbitrageFeeRate = 0.003  // round-trip taker fees

	maxAnomalyPriceImpact = 0.05
	maxAnomalySlippage    = 0.10
	frontrunGasStep       = 1.5
	maxGasMultiplier      = 3.0
)

// MEVModel generates adversarial anomalies with closed-form profit
// estimates and bounded lifetimes. All randomness flows through the
// injected Rand; state is feed-private.
type MEVModel struct {
	rng *Rand

	minDuration time.Duration
	maxDuration time.Duration

	active     []models.MarketAnomaly
	lastAttack time.Time
}

// NewMEVModel builds the model with a [min, max] anomaly lifetime window.
func NewMEVModel(rng *Rand, minDuration, maxDuration time.Duration) *MEVModel {
	if minDuration <= 0 {
		minDuration = 30 * time.Second
	}
	if maxDuration < minDuration {
		maxDuration = minDuration + 2*time.Minute
	}
	return &MEVModel{rng: rng, minDuration: minDuration, maxDuration: maxDuration}
}

// SimulateSandwichAttack models a front-run/back-run pair around the
// target trade. frontRunAmount is 50-100% of the target amount; profit
// is half the victim's slippage cost in USD.
func (m *MEVModel) SimulateSandwichAttack(symbol string, trade service.TradeContext, now time.Time) models.MarketAnomaly {
	frontRun := trade.Amount * m.rng.Uniform(0.5, 1.0)
	tradeUSD := trade.Amount * trade.ExpectedPrice
	slippage := trade.SlippagePct
	if slippage == 0 {
		slippage = 0.01
	}
	profit := tradeUSD * slippage * 0.5

	a := m.newAnomaly(models.AnomalyMEVSandwich, symbol, now, map[string]float64{
		"targetAmount":    trade.Amount,
		"frontRunAmount":  frontRun,
		"backRunAmount":   frontRun,
		"tradeSizeUSD":    tradeUSD,
		"slippage":        slippage,
		"estimatedProfit": profit,
	})
	a.Description = fmt.Sprintf("sandwich attack on %s trade of %.4f @ %.2f", symbol, trade.Amount, trade.ExpectedPrice)
	m.register(a)
	return a
}

// SimulateFrontrun models an attacker jumping ahead of an anticipated
// trade with 120-200% of its size, capturing 30% of the price impact.
func (m *MEVModel) SimulateFrontrun(symbol string, trade service.TradeContext, now time.Time) models.MarketAnomaly {
	anticipated := trade.AnticipatedAmount
	if anticipated == 0 {
		anticipated = trade.Amount
	}
	frontRun := anticipated * m.rng.Uniform(1.2, 2.0)
	tradeUSD := trade.Amount * trade.ExpectedPrice
	impact := trade.PriceImpactPct
	if impact == 0 {
		impact = 0.005
	}
	profit := tradeUSD * impact * 0.3

	a := m.newAnomaly(models.AnomalyMEVFrontrun, symbol, now, map[string]float64{
		"anticipatedAmount": anticipated,
		"frontRunAmount":    frontRun,
		"tradeSizeUSD":      tradeUSD,
		"priceImpact":       impact,
		"estimatedProfit":   profit,
	})
	a.Description = fmt.Sprintf("front-run of anticipated %s trade of %.4f", symbol, anticipated)
	m.register(a)
	return a
}

// SimulateFlashLoan models a single-transaction loan exploiting a price
// discrepancy, net of the flash loan fee. Profit never goes negative.
func (m *MEVModel) SimulateFlashLoan(symbol string, loanAmount, priceDiscrepancy float64, now time.Time) models.MarketAnomaly {
	profit := math.Max(0, loanAmount*priceDiscrepancy-loanAmount*flashLoanFeeRate)

	a := m.newAnomaly(models.AnomalyFlashLoan, symbol, now, map[string]float64{
		"loanAmount":       loanAmount,
		"priceDiscrepancy": priceDiscrepancy,
		"feeRate":          flashLoanFeeRate,
		"estimatedProfit":  profit,
	})
	a.Description = fmt.Sprintf("flash loan of %.2f against %s discrepancy %.4f%%", loanAmount, symbol, priceDiscrepancy*100)
	m.register(a)
	return a
}

// SimulateArbitrage models a cross-venue spread capture net of fees.
func (m *MEVModel) SimulateArbitrage(symbol string, baseSize, spread float64, now time.Time) models.MarketAnomaly {
	profit := math.Max(0, baseSize*spread-baseSize*arbitrageFeeRate)

	a := m.newAnomaly(models.AnomalyArbitrage, symbol, now, map[string]float64{
		"baseSize":        baseSize,
		"spread":          spread,
		"feeRate":         arbitrageFeeRate,
		"estimatedProfit": profit,
	})
	a.Description = fmt.Sprintf("arbitrage on %s, size %.4f, spread %.4f%%", symbol, baseSize, spread*100)
	m.register(a)
	return a
}

// InjectRandomActivity converts frequencyPerHour and elapsed time since
// the last attack into a per-invocation probability and, when it fires,
// dispatches a random attack type against a random symbol with a
// synthetic trade context.
func (m *MEVModel) InjectRandomActivity(now time.Time, frequencyPerHour float64, symbols []string) (models.MarketAnomaly, bool) {
	if frequencyPerHour <= 0 || len(symbols) == 0 {
		return models.MarketAnomaly{}, false
	}
	if m.lastAttack.IsZero() {
		m.lastAttack = now
		return models.MarketAnomaly{}, false
	}
	elapsedHours := now.Sub(m.lastAttack).Hours()
	probability := math.Min(1, frequencyPerHour*elapsedHours)
	if m.rng.Float64() >= probability {
		return models.MarketAnomaly{}, false
	}
	m.lastAttack = now

	symbol := symbols[m.rng.Intn(len(symbols))]
	trade := service.TradeContext{
		Amount:         m.rng.Uniform(0.5, 10),
		ExpectedPrice:  m.rng.Uniform(100, 50000),
		SlippagePct:    m.rng.Uniform(0.001, 0.02),
		PriceImpactPct: m.rng.Uniform(0.001, 0.01),
	}

	switch m.rng.Intn(4) {
	case 0:
		return m.SimulateSandwichAttack(symbol, trade, now), true
	case 1:
		trade.AnticipatedAmount = trade.Amount
		return m.SimulateFrontrun(symbol, trade, now), true
	case 2:
		loan := m.rng.Uniform(100_000, 5_000_000)
		return m.SimulateFlashLoan(symbol, loan, m.rng.Uniform(0.0005, 0.005), now), true
	default:
		return m.SimulateArbitrage(symbol, trade.Amount, m.rng.Uniform(0.001, 0.01), now), true
	}
}

// ActiveAnomalies drops expired anomalies in place and returns a copy of
// the rest. Eviction is lazy; there is no background timer.
func (m *MEVModel) ActiveAnomalies(now time.Time) []models.MarketAnomaly {
	kept := m.active[:0]
	for _, a := range m.active {
		if !a.ExpiredAt(now) {
			kept = append(kept, a)
		}
	}
	m.active = kept
	out := make([]models.MarketAnomaly, len(kept))
	copy(out, kept)
	return out
}

// Impact aggregates the effect of active anomalies on a symbol. Price
// impact is capped at 5% and slippage at 10% per anomaly; each active
// front-run compounds the gas multiplier by 1.5x up to a 3x cap.
func (m *MEVModel) Impact(symbol, side string, now time.Time) service.MEVImpact {
	impact := service.MEVImpact{GasMultiplier: 1}
	for _, a := range m.ActiveAnomalies(now) {
		if !a.Affects(symbol) {
			continue
		}
		pi := math.Min(a.Parameters["priceImpact"], maxAnomalyPriceImpact)
		sl := math.Min(a.Parameters["slippage"], maxAnomalySlippage)
		impact.PriceImpact += pi
		impact.Slippage += sl
		if a.Type == models.AnomalyMEVFrontrun {
			impact.GasMultiplier = math.Min(impact.GasMultiplier*frontrunGasStep, maxGasMultiplier)
		}
	}
	_ = side // both sides suffer the same synthetic impact today
	return impact
}

func (m *MEVModel) register(a models.MarketAnomaly) {
	m.active = append(m.active, a)
}

func (m *MEVModel) newAnomaly(kind, symbol string, now time.Time, params map[string]float64) models.MarketAnomaly {
	return models.MarketAnomaly{
		Type:            kind,
		Severity:        m.sampleSeverity(),
		Timestamp:       now,
		Duration:        m.sampleDuration(),
		AffectedSymbols: []string{symbol},
		Parameters:      params,
	}
}

// sampleSeverity draws from fixed probability bands:
// 50% low, 30% medium, 15% high, 5% extreme.
func (m *MEVModel) sampleSeverity() string {
	u := m.rng.Float64()
	switch {
	case u < 0.50:
		return models.SeverityLow
	case u < 0.80:
		return models.SeverityMedium
	case u < 0.95:
		return models.SeverityHigh
	default:
		return models.SeverityExtreme
	}
}

func (m *MEVModel) sampleDuration() time.Duration {
	span := float64(m.maxDuration - m.minDuration)
	return m.minDuration + time.Duration(m.rng.Float64()*span)
}
