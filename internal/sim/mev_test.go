package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/service"
)

func newTestMEV(seed int64) *MEVModel {
	return NewMEVModel(NewRand(seed), 30*time.Second, 2*time.Minute)
}

func TestSandwichAttack(t *testing.T) {
	m := newTestMEV(42)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	a := m.SimulateSandwichAttack("BTCUSDT", service.TradeContext{
		Amount:        5,
		ExpectedPrice: 45000,
		SlippagePct:   0.01,
	}, now)

	require.Equal(t, models.AnomalyMEVSandwich, a.Type)
	fr := a.Parameters["frontRunAmount"]
	assert.GreaterOrEqual(t, fr, 2.5)
	assert.LessOrEqual(t, fr, 5.0)
	// profit = 5 * 45000 * 0.01 * 0.5
	assert.InDelta(t, 1125.0, a.Parameters["estimatedProfit"], 1e-9)
	assert.True(t, a.Affects("BTCUSDT"))
}

func TestFrontrunProfit(t *testing.T) {
	m := newTestMEV(1)
	now := time.Now()

	a := m.SimulateFrontrun("ETHUSDT", service.TradeContext{
		Amount:            10,
		ExpectedPrice:     3000,
		PriceImpactPct:    0.005,
		AnticipatedAmount: 10,
	}, now)

	require.Equal(t, models.AnomalyMEVFrontrun, a.Type)
	fr := a.Parameters["frontRunAmount"]
	assert.GreaterOrEqual(t, fr, 12.0)
	assert.LessOrEqual(t, fr, 20.0)
	// profit = 10 * 3000 * 0.005 * 0.3
	assert.InDelta(t, 45.0, a.Parameters["estimatedProfit"], 1e-9)
}

func TestFlashLoanProfitFloorsAtZero(t *testing.T) {
	m := newTestMEV(1)
	now := time.Now()

	profitable := m.SimulateFlashLoan("BTCUSDT", 1_000_000, 0.002, now)
	assert.InDelta(t, 1_000_000*0.002-1_000_000*0.0009, profitable.Parameters["estimatedProfit"], 1e-6)

	unprofitable := m.SimulateFlashLoan("BTCUSDT", 1_000_000, 0.0001, now)
	assert.Zero(t, unprofitable.Parameters["estimatedProfit"])
}

func TestArbitrageProfit(t *testing.T) {
	m := newTestMEV(1)
	now := time.Now()

	a := m.SimulateArbitrage("SOLUSDT", 100, 0.01, now)
	assert.InDelta(t, 100*0.01-100*0.003, a.Parameters["estimatedProfit"], 1e-9)

	b := m.SimulateArbitrage("SOLUSDT", 100, 0.001, now)
	assert.Zero(t, b.Parameters["estimatedProfit"])
}

func TestAnomalyExpiry(t *testing.T) {
	m := newTestMEV(9)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	a := m.SimulateArbitrage("BTCUSDT", 10, 0.01, now)
	require.Len(t, m.ActiveAnomalies(now), 1)

	for _, got := range m.ActiveAnomalies(now.Add(a.Duration)) {
		assert.Less(t, now.Add(a.Duration).Sub(got.Timestamp), got.Duration)
	}
	assert.Empty(t, m.ActiveAnomalies(now.Add(a.Duration)))
}

func TestImpactCapsAndGasMultiplier(t *testing.T) {
	m := newTestMEV(3)
	now := time.Now()

	trade := service.TradeContext{Amount: 5, ExpectedPrice: 45000, PriceImpactPct: 0.5}
	m.SimulateFrontrun("BTCUSDT", trade, now)
	m.SimulateFrontrun("BTCUSDT", trade, now)
	m.SimulateFrontrun("BTCUSDT", trade, now)

	impact := m.Impact("BTCUSDT", "buy", now)
	// each anomaly's price impact is capped at 5%
	assert.InDelta(t, 3*0.05, impact.PriceImpact, 1e-9)
	// 1.5^3 would exceed the 3x cap
	assert.Equal(t, 3.0, impact.GasMultiplier)

	other := m.Impact("ETHUSDT", "buy", now)
	assert.Zero(t, other.PriceImpact)
	assert.Equal(t, 1.0, other.GasMultiplier)
}

func TestInjectRandomActivity(t *testing.T) {
	m := newTestMEV(123)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	symbols := []string{"BTCUSDT", "ETHUSDT"}

	// first call only arms the elapsed-time clock
	_, ok := m.InjectRandomActivity(now, 60, symbols)
	assert.False(t, ok)

	// a long gap at high frequency guarantees an attack
	a, ok := m.InjectRandomActivity(now.Add(time.Hour), 60, symbols)
	require.True(t, ok)
	assert.Contains(t, symbols, a.AffectedSymbols[0])
	assert.Contains(t, []string{
		models.AnomalyMEVSandwich,
		models.AnomalyMEVFrontrun,
		models.AnomalyFlashLoan,
		models.AnomalyArbitrage,
	}, a.Type)

	// zero frequency never fires
	_, ok = m.InjectRandomActivity(now.Add(2*time.Hour), 0, symbols)
	assert.False(t, ok)
}

func TestMEVDeterministic(t *testing.T) {
	a := newTestMEV(77)
	b := newTestMEV(77)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	trade := service.TradeContext{Amount: 2, ExpectedPrice: 1000, SlippagePct: 0.01}

	x := a.SimulateSandwichAttack("X", trade, now)
	y := b.SimulateSandwichAttack("X", trade, now)
	require.Equal(t, x.Parameters["frontRunAmount"], y.Parameters["frontRunAmount"])
	require.Equal(t, x.Severity, y.Severity)
	require.Equal(t, x.Duration, y.Duration)
}
