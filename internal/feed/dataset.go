package feed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/sim"
)

const (
	syntheticDays       = 30
	syntheticResolution = time.Minute
	syntheticCandles    = syntheticDays * 24 * 60 // 43,200
)

// candidatePaths lists the historical file locations probed per symbol,
// first match wins.
func candidatePaths(dataDir, symbol string) []string {
	if dataDir == "" {
		dataDir = "data"
	}
	return []string{
		filepath.Join(dataDir, "historical", symbol+".json"),
		filepath.Join(dataDir, symbol+"_candles.json"),
		filepath.Join("historical_data", symbol+".json"),
	}
}

// loadSymbolDataset reads the first existing candidate file for symbol and
// parses it into ordered 1-minute candles. A missing file is reported as
// (nil, "", nil) so callers can fall back to synthetic data.
func loadSymbolDataset(dataDir, symbol string) ([]models.Candle, string, error) {
	for _, path := range candidatePaths(dataDir, symbol) {
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, path, fmt.Errorf("read %s: %w", path, err)
		}
		candles, err := parseCandleFile(raw, symbol)
		if err != nil {
			return nil, path, fmt.Errorf("parse %s: %w", path, err)
		}
		return candles, path, nil
	}
	return nil, "", nil
}

// parseCandleFile accepts either array rows
// [timestamp, open, high, low, close, volume] or object rows with o/h/l/c/v
// field aliases. Rows are sorted by timestamp on the way out.
func parseCandleFile(raw []byte, symbol string) ([]models.Candle, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("expected a JSON array of rows: %w", err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		c, err := parseCandleRow(row, symbol)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		candles = append(candles, c)
	}
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

func parseCandleRow(row json.RawMessage, symbol string) (models.Candle, error) {
	trimmed := strings.TrimSpace(string(row))
	if strings.HasPrefix(trimmed, "[") {
		return parseArrayRow(row, symbol)
	}
	return parseObjectRow(row, symbol)
}

func parseArrayRow(row json.RawMessage, symbol string) (models.Candle, error) {
	var vals []json.Number
	if err := json.Unmarshal(row, &vals); err != nil {
		// timestamp may be an ISO string; retry with loose typing
		var loose []any
		if err2 := json.Unmarshal(row, &loose); err2 != nil {
			return models.Candle{}, err
		}
		return parseLooseArrayRow(loose, symbol)
	}
	if len(vals) < 6 {
		return models.Candle{}, fmt.Errorf("array row needs 6 fields, got %d", len(vals))
	}
	ts, err := parseTimestampNumber(vals[0])
	if err != nil {
		return models.Candle{}, err
	}
	nums := make([]float64, 5)
	for i := 0; i < 5; i++ {
		f, err := vals[i+1].Float64()
		if err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		nums[i] = f
	}
	return models.Candle{
		Symbol: symbol, Timestamp: ts, Timeframe: "1m",
		Open: nums[0], High: nums[1], Low: nums[2], Close: nums[3], Volume: nums[4],
	}, nil
}

func parseLooseArrayRow(vals []any, symbol string) (models.Candle, error) {
	if len(vals) < 6 {
		return models.Candle{}, fmt.Errorf("array row needs 6 fields, got %d", len(vals))
	}
	ts, err := parseTimestampAny(vals[0])
	if err != nil {
		return models.Candle{}, err
	}
	nums := make([]float64, 5)
	for i := 0; i < 5; i++ {
		f, ok := vals[i+1].(float64)
		if !ok {
			return models.Candle{}, fmt.Errorf("field %d is not numeric", i+1)
		}
		nums[i] = f
	}
	return models.Candle{
		Symbol: symbol, Timestamp: ts, Timeframe: "1m",
		Open: nums[0], High: nums[1], Low: nums[2], Close: nums[3], Volume: nums[4],
	}, nil
}

type objectRow struct {
	Timestamp any      `json:"timestamp"`
	Open      *float64 `json:"open"`
	O         *float64 `json:"o"`
	High      *float64 `json:"high"`
	H         *float64 `json:"h"`
	Low       *float64 `json:"low"`
	L         *float64 `json:"l"`
	Close     *float64 `json:"close"`
	C         *float64 `json:"c"`
	Volume    *float64 `json:"volume"`
	V         *float64 `json:"v"`
	Trades    int      `json:"trades"`
}

func parseObjectRow(row json.RawMessage, symbol string) (models.Candle, error) {
	var r objectRow
	if err := json.Unmarshal(row, &r); err != nil {
		return models.Candle{}, err
	}
	ts, err := parseTimestampAny(r.Timestamp)
	if err != nil {
		return models.Candle{}, err
	}
	pick := func(long, short *float64, name string) (float64, error) {
		if long != nil {
			return *long, nil
		}
		if short != nil {
			return *short, nil
		}
		return 0, fmt.Errorf("missing %s field", name)
	}
	o, err := pick(r.Open, r.O, "open")
	if err != nil {
		return models.Candle{}, err
	}
	h, err := pick(r.High, r.H, "high")
	if err != nil {
		return models.Candle{}, err
	}
	l, err := pick(r.Low, r.L, "low")
	if err != nil {
		return models.Candle{}, err
	}
	c, err := pick(r.Close, r.C, "close")
	if err != nil {
		return models.Candle{}, err
	}
	v, err := pick(r.Volume, r.V, "volume")
	if err != nil {
		return models.Candle{}, err
	}
	return models.Candle{
		Symbol: symbol, Timestamp: ts, Timeframe: "1m",
		Open: o, High: h, Low: l, Close: c, Volume: v, Trades: r.Trades,
	}, nil
}

func parseTimestampNumber(n json.Number) (time.Time, error) {
	v, err := n.Float64()
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp: %w", err)
	}
	return timeFromEpoch(v), nil
}

func parseTimestampAny(v any) (time.Time, error) {
	switch t := v.(type) {
	case float64:
		return timeFromEpoch(t), nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q: %w", t, err)
		}
		return parsed, nil
	case json.Number:
		return parseTimestampNumber(t)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

// timeFromEpoch treats values above 1e12 as milliseconds, else seconds.
func timeFromEpoch(v float64) time.Time {
	if v > 1e12 {
		return time.UnixMilli(int64(v)).UTC()
	}
	return time.Unix(int64(v), 0).UTC()
}

// basePrices anchors synthetic datasets and the simulated feed's starting
// prices. Unknown symbols default to 100.
var basePrices = map[string]float64{
	"BTC":  45000,
	"ETH":  2500,
	"SOL":  100,
	"BNB":  310,
	"XRP":  0.62,
	"ADA":  0.45,
	"DOGE": 0.08,
	"LINK": 14,
	"AVAX": 35,
}

// BasePrice resolves the anchor price for a symbol by asset prefix, so
// BTCUSDT, BTC-USD and BTC/USDT all map to the BTC anchor.
func BasePrice(symbol string) float64 {
	upper := strings.ToUpper(symbol)
	for asset, price := range basePrices {
		if strings.HasPrefix(upper, asset) {
			return price
		}
	}
	return 100
}

// generateSyntheticDataset builds a 30-day, 1-minute random-walk series
// (43,200 candles) ending at now, anchored at the symbol's base price.
func generateSyntheticDataset(rng *sim.Rand, symbol string, now time.Time) []models.Candle {
	start := now.Add(-syntheticDays * 24 * time.Hour).Truncate(syntheticResolution)
	price := BasePrice(symbol)
	baseVolume := 1000 / price * 100

	candles := make([]models.Candle, 0, syntheticCandles)
	for i := 0; i < syntheticCandles; i++ {
		ts := start.Add(time.Duration(i) * syntheticResolution)

		// per-minute random walk with mild intraday volatility shaping
		ret := rng.Norm() * 0.0015
		open := price
		close := open * (1 + ret)
		if close < open*0.001 {
			close = open * 0.001
		}
		high := maxFloat(open, close) * (1 + rng.Float64()*0.001)
		low := minFloat(open, close) * (1 - rng.Float64()*0.001)
		volume := baseVolume * intradayVolumeMult(ts.Hour()) * (0.5 + rng.Float64())

		candles = append(candles, models.Candle{
			Symbol:    symbol,
			Timestamp: ts,
			Timeframe: "1m",
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			Trades:    10 + rng.Intn(90),
		})
		price = close
	}
	return candles
}

func intradayVolumeMult(hour int) float64 {
	switch {
	case hour >= 8 && hour <= 10, hour >= 15 && hour <= 17:
		return 1.5
	case hour < 6 || hour > 22:
		return 0.5
	default:
		return 1.0
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
