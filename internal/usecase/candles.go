package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	domrepo "github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/repository"
	pkgcache "github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/cache"
)

const candleQueryCacheTTL = 5 * time.Second

// CandlesUseCase provides business logic for retrieving persisted candles.
// Query results are cached briefly; cache may be nil.
type CandlesUseCase struct {
	store domrepo.CandleStore
	cache pkgcache.Service
}

func NewCandlesUseCase(store domrepo.CandleStore, cache pkgcache.Service) *CandlesUseCase {
	return &CandlesUseCase{store: store, cache: cache}
}

type GetCandlesParams struct {
	Symbol    string
	From      time.Time
	To        time.Time
	Timeframe domrepo.Timeframe
	Limit     int
}

type GetCandlesResult struct {
	Symbol    string
	Timeframe string
	From      time.Time
	To        time.Time
	Count     int
	Candles   []models.Candle
}

func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if p.Limit <= 0 {
		p.Limit = 10000
	}
	if p.Limit > 50000 {
		p.Limit = 50000
	}

	key := pkgcache.GenerateKeyWithParams("candles", p.Symbol, string(p.Timeframe), p.From.Unix(), p.To.Unix(), p.Limit)
	if uc.cache != nil {
		var cached []models.Candle
		if err := uc.cache.Get(ctx, key, &cached); err == nil {
			return &GetCandlesResult{
				Symbol:    p.Symbol,
				Timeframe: string(p.Timeframe),
				From:      p.From,
				To:        p.To,
				Count:     len(cached),
				Candles:   cached,
			}, nil
		}
	}

	candles, err := uc.store.GetCandles(ctx, p.Symbol, p.From, p.To, p.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	if len(candles) > p.Limit {
		candles = candles[:p.Limit]
	}
	if uc.cache != nil {
		_ = uc.cache.Set(ctx, key, candles, candleQueryCacheTTL)
	}

	return &GetCandlesResult{
		Symbol:    p.Symbol,
		Timeframe: string(p.Timeframe),
		From:      p.From,
		To:        p.To,
		Count:     len(candles),
		Candles:   candles,
	}, nil
}

// GetLatestCandles serves the most recent n candles for dashboards.
func (uc *CandlesUseCase) GetLatestCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if n <= 0 {
		n = 500
	}
	candles, err := uc.store.GetLatestNCandles(ctx, symbol, n, tf)
	if err != nil {
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	return candles, nil
}
