package feed

import (
	"testing"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func testSimParams() models.SimulationParameters {
	return models.SimulationParameters{
		Volatility:          0.5,
		Drift:               0.05,
		MeanReversionSpeed:  0.1,
		TrendMomentum:       0.5,
		MicrostructureNoise: 0.0005,
		TimeScale:           60,
	}
}
