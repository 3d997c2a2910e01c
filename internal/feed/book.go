package feed

import (
	"time"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/repository"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/sim"
)

const bookDepth = 10

// synthesizeOrderBook builds a depth snapshot around mid with the given
// absolute spread. Level sizes decay with distance from the touch; jitter
// comes from the feed's randomness source so snapshots stay reproducible.
func synthesizeOrderBook(rng *sim.Rand, symbol string, mid, spread, liquidityMult float64, seq int64, ts time.Time) models.OrderBookSnapshot {
	if liquidityMult <= 0 {
		liquidityMult = 1
	}
	half := spread / 2
	bestBid := mid - half
	bestAsk := mid + half

	baseQty := 1000 / mid * 10 * liquidityMult
	step := mid * 0.0001 // 1 bps between levels

	bids := make([]models.PriceLevel, 0, bookDepth)
	asks := make([]models.PriceLevel, 0, bookDepth)
	for i := 0; i < bookDepth; i++ {
		decay := 1 / (1 + 0.3*float64(i))
		bids = append(bids, models.PriceLevel{
			Price:    bestBid - float64(i)*step,
			Quantity: baseQty * decay * rng.Uniform(0.8, 1.2),
			Orders:   1 + rng.Intn(8),
		})
		asks = append(asks, models.PriceLevel{
			Price:    bestAsk + float64(i)*step,
			Quantity: baseQty * decay * rng.Uniform(0.8, 1.2),
			Orders:   1 + rng.Intn(8),
		})
	}

	return models.OrderBookSnapshot{
		Symbol:    symbol,
		Timestamp: ts,
		Sequence:  seq,
		Bids:      bids,
		Asks:      asks,
		Spread:    bestAsk - bestBid,
		MidPrice:  mid,
	}
}

// liquidityFromBook condenses a snapshot into summary metrics.
func liquidityFromBook(book models.OrderBookSnapshot) models.LiquidityMetrics {
	var bidLiq, askLiq float64
	for _, lvl := range book.Bids {
		bidLiq += lvl.Price * lvl.Quantity
	}
	for _, lvl := range book.Asks {
		askLiq += lvl.Price * lvl.Quantity
	}

	spreadBps := 0.0
	if book.MidPrice > 0 {
		spreadBps = book.Spread / book.MidPrice * 10000
	}

	depthScore := 0.0
	if spreadBps > 0 {
		depthScore = (bidLiq + askLiq) / spreadBps
	}

	profile := "normal"
	switch {
	case spreadBps > 20:
		profile = "low"
	case spreadBps < 2:
		profile = "high"
	}

	return models.LiquidityMetrics{
		Symbol:        book.Symbol,
		Timestamp:     book.Timestamp,
		BidLiquidity:  bidLiq,
		AskLiquidity:  askLiq,
		SpreadBps:     spreadBps,
		DepthScore:    depthScore,
		VolumeProfile: profile,
	}
}

// aggregateCandles rolls base candles up into tf buckets. Base input must
// be time-ordered; output preserves OHLC consistency.
func aggregateCandles(base []models.Candle, tf repository.Timeframe) []models.Candle {
	bucket := tf.Bucket()
	if len(base) == 0 {
		return nil
	}

	var out []models.Candle
	var cur *models.Candle
	for _, c := range base {
		ts := c.Timestamp.Truncate(bucket)
		if cur == nil || !cur.Timestamp.Equal(ts) {
			if cur != nil {
				out = append(out, *cur)
			}
			agg := c
			agg.Timestamp = ts
			agg.Timeframe = string(tf)
			cur = &agg
			continue
		}
		if c.High > cur.High {
			cur.High = c.High
		}
		if c.Low < cur.Low {
			cur.Low = c.Low
		}
		cur.Close = c.Close
		cur.Volume += c.Volume
		cur.Trades += c.Trades
	}
	out = append(out, *cur)
	return out
}

// tailCandles returns the last n candles of s without copying the backing
// array beyond what is needed.
func tailCandles(s []models.Candle, n int) []models.Candle {
	if n <= 0 || n >= len(s) {
		n = len(s)
	}
	out := make([]models.Candle, n)
	copy(out, s[len(s)-n:])
	return out
}

func tailTicks(s []models.Tick, n int) []models.Tick {
	if n <= 0 || n >= len(s) {
		n = len(s)
	}
	out := make([]models.Tick, n)
	copy(out, s[len(s)-n:])
	return out
}
