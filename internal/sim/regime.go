package sim

import (
	"time"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
)

// Regime names in the fixed catalog.
const (
	RegimeBull     = "bull"
	RegimeBear     = "bear"
	RegimeSideways = "sideways"
	RegimeHighVol  = "high_volatility"
	RegimeLowVol   = "low_volatility"
)

// defaultRegimeCatalog carries per-regime multipliers; probabilities sum
// to 1 so cumulative-probability selection covers the full unit interval.
var defaultRegimeCatalog = []models.RegimeState{
	{Name: RegimeBull, Volatility: 1.2, Trend: 0.0008, Momentum: 0.7, Duration: 4 * time.Hour, Probability: 0.25},
	{Name: RegimeBear, Volatility: 1.5, Trend: -0.001, Momentum: 0.6, Duration: 3 * time.Hour, Probability: 0.20},
	{Name: RegimeSideways, Volatility: 0.8, Trend: 0, Momentum: 0.3, Duration: 6 * time.Hour, Probability: 0.30},
	{Name: RegimeHighVol, Volatility: 2.5, Trend: 0, Momentum: 0.5, Duration: 1 * time.Hour, Probability: 0.15},
	{Name: RegimeLowVol, Volatility: 0.4, Trend: 0.0002, Momentum: 0.2, Duration: 8 * time.Hour, Probability: 0.10},
}

// RegimeModel holds the active market regime and resamples it whenever the
// active regime's duration has elapsed. Durations are fixed per regime, not
// themselves sampled.
type RegimeModel struct {
	rng     *Rand
	catalog []models.RegimeState
	current models.RegimeState
	started time.Time
}

// NewRegimeModel samples an initial regime at start using rng.
func NewRegimeModel(rng *Rand, start time.Time) *RegimeModel {
	m := &RegimeModel{rng: rng, catalog: defaultRegimeCatalog}
	m.current = m.sample()
	m.started = start
	return m
}

// Current returns the regime in effect at now, transitioning first if the
// active regime has run past its duration.
func (m *RegimeModel) Current(now time.Time) models.RegimeState {
	if now.Sub(m.started) > m.current.Duration {
		m.current = m.sample()
		m.started = now
	}
	return m.current
}

// sample walks cumulative probability over the catalog.
func (m *RegimeModel) sample() models.RegimeState {
	u := m.rng.Float64()
	cum := 0.0
	for _, r := range m.catalog {
		cum += r.Probability
		if u < cum {
			return r
		}
	}
	return m.catalog[len(m.catalog)-1]
}
