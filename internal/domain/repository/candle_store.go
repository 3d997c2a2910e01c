package repository

import (
	"context"
	"time"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
)

// CandleStore persists aggregated candles and serves them back to the API
// and backtesting consumers.
type CandleStore interface {
	StoreBatch(ctx context.Context, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Candle, error)
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
}
