package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/repository"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/sim"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/logger"
)

// baseEmitInterval is the wall-clock pacing of one replay step at speed 1.
const baseEmitInterval = time.Second

// HistoricalFeed replays recorded (or synthesized) 1-minute OHLCV series.
// Its current time is data-time: the timestamp of the last emitted row, not
// the wall clock. Cursors only move forward; Reset rewinds them.
type HistoricalFeed struct {
	log     *logger.Logger
	clock   Clock
	metrics repository.Metrics
	dataDir string
	seed    int64

	mu     sync.Mutex
	state  feedState
	cfg    models.FeedConfig
	rng    *sim.Rand
	mev    *sim.MEVModel
	data   map[string][]models.Candle
	cursor map[string]int
	ticks  map[string][]models.Tick

	rangeStart time.Time
	rangeEnd   time.Time
	current    time.Time
	speed      float64
	seq        int64

	subs      *subscriptions
	stats     models.FeedStatistics
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewHistoricalFeed builds an uninitialized historical replay feed. seed
// drives every stochastic path the feed owns (synthetic data, book jitter,
// anomaly timing).
func NewHistoricalFeed(log *logger.Logger, clock Clock, metrics repository.Metrics, dataDir string, seed int64) *HistoricalFeed {
	return &HistoricalFeed{
		log:     log,
		clock:   clock,
		metrics: metrics,
		dataDir: dataDir,
		seed:    seed,
		subs:    newSubscriptions(),
		speed:   1,
	}
}

func (f *HistoricalFeed) FeedType() string { return models.FeedTypeHistorical }

// Initialize loads a dataset per symbol, synthesizing a 30-day random walk
// when no historical file exists, and computes the feed's time range.
func (f *HistoricalFeed) Initialize(ctx context.Context, cfg models.FeedConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == stateClosed {
		return ErrFeedClosed
	}
	if len(cfg.Symbols) == 0 {
		return ErrNoSymbols
	}
	cfg = cfg.Normalized()

	f.rng = sim.NewRand(f.seed)
	f.mev = sim.NewMEVModel(f.rng, 30*time.Second, 2*time.Minute)
	f.data = make(map[string][]models.Candle, len(cfg.Symbols))
	f.cursor = make(map[string]int, len(cfg.Symbols))
	f.ticks = make(map[string][]models.Tick, len(cfg.Symbols))

	now := f.clock.Now().UTC()
	for _, symbol := range cfg.Symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		candles, path, err := loadSymbolDataset(f.dataDir, symbol)
		if err != nil {
			// unparseable data falls back to synthetic, same as missing
			f.log.Warn("historical data unusable, generating synthetic",
				logger.String("symbol", symbol), logger.String("path", path), logger.Error(err))
			candles = nil
		}
		if len(candles) == 0 {
			candles = generateSyntheticDataset(f.rng, symbol, now)
			f.log.Warn("no historical data found, generated synthetic dataset",
				logger.String("symbol", symbol), logger.Int("candles", len(candles)))
		} else {
			f.log.Info("loaded historical dataset",
				logger.String("symbol", symbol), logger.String("path", path), logger.Int("candles", len(candles)))
		}
		f.data[symbol] = candles
		f.cursor[symbol] = 0
	}

	f.computeRangeLocked()
	f.cfg = cfg
	f.speed = cfg.ReplaySpeed
	f.current = f.rangeStart
	f.stats = models.FeedStatistics{FeedType: models.FeedTypeHistorical}
	f.state = stateInitialized
	return nil
}

func (f *HistoricalFeed) computeRangeLocked() {
	var start, end time.Time
	for _, candles := range f.data {
		if len(candles) == 0 {
			continue
		}
		if start.IsZero() || candles[0].Timestamp.Before(start) {
			start = candles[0].Timestamp
		}
		if last := candles[len(candles)-1].Timestamp; last.After(end) {
			end = last
		}
	}
	f.rangeStart, f.rangeEnd = start, end
}

// Start begins the replay loop. Idempotent while running.
func (f *HistoricalFeed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case stateRunning:
		return nil
	case stateCreated:
		return ErrNotInitialized
	case stateClosed:
		return ErrFeedClosed
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan struct{})
	f.startedAt = f.clock.Now()
	f.state = stateRunning

	go f.run(loopCtx, f.done)
	f.log.Info("historical feed started",
		logger.Strings("symbols", f.cfg.Symbols), logger.Any("replay_speed", f.speed))
	return nil
}

// run is the self-pacing replay loop. A subscriber error stops the feed;
// it is not retried.
func (f *HistoricalFeed) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		exhausted, err := f.step()
		if err != nil {
			f.log.Error("replay loop failure, stopping feed", logger.Error(err))
			if f.metrics != nil {
				f.metrics.RecordError("replay_loop")
			}
			f.markStopped()
			return
		}
		if exhausted {
			if ctx.Err() == nil {
				f.log.Info("historical replay complete")
			}
			f.markStopped()
			return
		}
		interval := time.Duration(float64(baseEmitInterval) / f.ReplaySpeed())
		if err := f.clock.Sleep(ctx, interval); err != nil {
			return
		}
	}
}

func (f *HistoricalFeed) markStopped() {
	f.mu.Lock()
	cancel := f.cancel
	if f.state == stateRunning {
		f.state = stateStopped
		f.cancel = nil
	}
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// step emits one tick per symbol (and the matching candle), then any
// randomly injected anomalies. Returns exhausted=true once every symbol's
// cursor has run off the end.
func (f *HistoricalFeed) step() (bool, error) {
	f.mu.Lock()
	if f.state != stateRunning {
		f.mu.Unlock()
		return true, nil
	}

	var (
		emitted   []models.Tick
		candles   []models.Candle
		anomalies []models.MarketAnomaly
	)
	for _, symbol := range f.cfg.Symbols {
		tick, candle := f.advanceLocked(symbol)
		if tick == nil {
			continue
		}
		emitted = append(emitted, *tick)
		candles = append(candles, candle)
	}

	if len(emitted) == 0 {
		f.mu.Unlock()
		return true, nil
	}

	if f.cfg.EnableAnomalies {
		if a, ok := f.mev.InjectRandomActivity(f.current, f.cfg.AnomalyFrequency, f.cfg.Symbols); ok {
			anomalies = append(anomalies, a)
			f.stats.AnomaliesGenerated++
		}
	}
	f.mu.Unlock()

	for _, t := range emitted {
		if f.metrics != nil {
			f.metrics.RecordTickEmitted(models.FeedTypeHistorical, t.Symbol)
			f.metrics.RecordLastPrice(t.Symbol, t.Price)
		}
		if err := f.subs.publishTick(t); err != nil {
			return false, fmt.Errorf("tick handler: %w", err)
		}
	}
	for _, c := range candles {
		if err := f.subs.publishCandle(c); err != nil {
			return false, fmt.Errorf("candle handler: %w", err)
		}
	}
	for _, a := range anomalies {
		if f.metrics != nil {
			f.metrics.RecordAnomaly(a.Type)
		}
		if err := f.subs.publishAnomaly(a); err != nil {
			return false, fmt.Errorf("anomaly handler: %w", err)
		}
	}
	return false, nil
}

// advanceLocked moves the symbol's cursor one row forward and converts the
// row into a tick. Returns nil once the symbol is exhausted.
func (f *HistoricalFeed) advanceLocked(symbol string) (*models.Tick, models.Candle) {
	candles := f.data[symbol]
	idx := f.cursor[symbol]
	if idx >= len(candles) {
		return nil, models.Candle{}
	}
	c := candles[idx]
	f.cursor[symbol] = idx + 1

	tick := models.Tick{
		Symbol:    symbol,
		Timestamp: c.Timestamp,
		Price:     c.Close,
		Volume:    c.Volume,
		Source:    models.FeedTypeHistorical,
	}
	f.appendTickLocked(symbol, tick)

	if c.Timestamp.After(f.current) {
		f.current = c.Timestamp
	}
	f.seq++
	f.stats.TicksProcessed++
	f.stats.CandlesProcessed++
	f.stats.CurrentTimestamp = f.current
	return &tick, c
}

func (f *HistoricalFeed) appendTickLocked(symbol string, t models.Tick) {
	h := append(f.ticks[symbol], t)
	if len(h) > tickHistoryCap {
		h = h[len(h)-tickHistoryCap:]
	}
	f.ticks[symbol] = h
}

// Pause suspends the loop without touching cursors.
func (f *HistoricalFeed) Pause() error {
	f.mu.Lock()
	if f.state != stateRunning {
		f.mu.Unlock()
		return fmt.Errorf("cannot pause feed in state %s", f.state)
	}
	cancel, done := f.cancel, f.done
	f.state = statePaused
	f.cancel = nil
	f.mu.Unlock()

	cancel()
	<-done
	f.log.Info("historical feed paused")
	return nil
}

// Resume re-arms the loop from the current cursors.
func (f *HistoricalFeed) Resume() error {
	f.mu.Lock()
	if f.state != statePaused {
		f.mu.Unlock()
		return fmt.Errorf("cannot resume feed in state %s", f.state)
	}
	f.state = stateStopped // Start treats this as restartable
	f.mu.Unlock()
	return f.Start(context.Background())
}

// Reset rewinds cursors to the beginning, clears statistics and tick
// history, and reseeds the randomness source. Implies a prior Stop.
func (f *HistoricalFeed) Reset() error {
	if err := f.stopLoop(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == stateClosed {
		return ErrFeedClosed
	}
	if f.data == nil {
		return ErrNotInitialized
	}
	for symbol := range f.cursor {
		f.cursor[symbol] = 0
	}
	f.ticks = make(map[string][]models.Tick, len(f.cfg.Symbols))
	f.rng.Reset(f.seed)
	f.mev = sim.NewMEVModel(f.rng, 30*time.Second, 2*time.Minute)
	f.current = f.rangeStart
	f.seq = 0
	f.stats = models.FeedStatistics{FeedType: models.FeedTypeHistorical}
	f.state = stateInitialized
	f.log.Info("historical feed reset")
	return nil
}

// Stop terminates the loop; cursors survive until Reset or Cleanup.
func (f *HistoricalFeed) Stop() error {
	return f.stopLoop()
}

func (f *HistoricalFeed) stopLoop() error {
	f.mu.Lock()
	if f.state == statePaused {
		f.state = stateStopped
		f.mu.Unlock()
		return nil
	}
	if f.state != stateRunning {
		f.mu.Unlock()
		return nil
	}
	cancel, done := f.cancel, f.done
	f.state = stateStopped
	f.cancel = nil
	f.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Cleanup releases datasets and subscribers. The feed is unusable after.
func (f *HistoricalFeed) Cleanup() error {
	if err := f.stopLoop(); err != nil {
		return err
	}
	f.mu.Lock()
	f.data = nil
	f.cursor = nil
	f.ticks = nil
	f.state = stateClosed
	f.mu.Unlock()
	f.subs.clear()
	return nil
}

// CurrentTime is data-time: the timestamp of the last emitted tick.
func (f *HistoricalFeed) CurrentTime() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *HistoricalFeed) TimeRange() (time.Time, time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rangeStart, f.rangeEnd
}

// JumpToTime binary-searches every symbol's dataset for the first row at
// or after ts. Targets outside the loaded range are rejected with the feed
// unchanged.
func (f *HistoricalFeed) JumpToTime(ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.data == nil {
		return ErrNotInitialized
	}
	if ts.Before(f.rangeStart) || ts.After(f.rangeEnd) {
		return fmt.Errorf("%w: %s not in [%s, %s]", ErrSeekOutOfRange,
			ts.Format(time.RFC3339), f.rangeStart.Format(time.RFC3339), f.rangeEnd.Format(time.RFC3339))
	}

	for symbol, candles := range f.data {
		f.cursor[symbol] = sort.Search(len(candles), func(i int) bool {
			return !candles[i].Timestamp.Before(ts)
		})
	}
	f.current = ts
	f.stats.CurrentTimestamp = ts
	return nil
}

// SetReplaySpeed clamps into [0.1, 1000] and returns the applied value.
func (f *HistoricalFeed) SetReplaySpeed(speed float64) float64 {
	applied := models.ClampReplaySpeed(speed)
	f.mu.Lock()
	f.speed = applied
	f.cfg.ReplaySpeed = applied
	f.mu.Unlock()
	return applied
}

func (f *HistoricalFeed) ReplaySpeed() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.speed
}

// NextTick advances the symbol's cursor by one row. Once the symbol is
// exhausted it returns (nil, nil) permanently until Reset.
func (f *HistoricalFeed) NextTick(symbol string) (*models.Tick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.data == nil {
		return nil, ErrNotInitialized
	}
	candles, ok := f.data[symbol]
	if !ok {
		return nil, ErrUnknownSymbol
	}
	if f.cursor[symbol] >= len(candles) {
		return nil, nil
	}
	tick, _ := f.advanceLocked(symbol)
	return tick, nil
}

// CurrentPrice returns the close of the last consumed row, or the first
// open before any row has been consumed.
func (f *HistoricalFeed) CurrentPrice(symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentPriceLocked(symbol)
}

func (f *HistoricalFeed) currentPriceLocked(symbol string) (float64, error) {
	if f.data == nil {
		return 0, ErrNotInitialized
	}
	candles, ok := f.data[symbol]
	if !ok {
		return 0, ErrUnknownSymbol
	}
	if len(candles) == 0 {
		return 0, ErrUnknownSymbol
	}
	idx := f.cursor[symbol]
	if idx == 0 {
		return candles[0].Open, nil
	}
	if idx > len(candles) {
		idx = len(candles)
	}
	return candles[idx-1].Close, nil
}

// OrderBook synthesizes a book around the current replay price.
func (f *HistoricalFeed) OrderBook(symbol string) (*models.OrderBookSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	price, err := f.currentPriceLocked(symbol)
	if err != nil {
		return nil, err
	}
	spread := price * 0.0002 * f.cfg.VolatilityMultiplier
	f.seq++
	book := synthesizeOrderBook(f.rng, symbol, price, spread, f.cfg.LiquidityMultiplier, f.seq, f.current)
	return &book, nil
}

func (f *HistoricalFeed) LiquidityMetrics(symbol string) (*models.LiquidityMetrics, error) {
	book, err := f.OrderBook(symbol)
	if err != nil {
		return nil, err
	}
	m := liquidityFromBook(*book)
	return &m, nil
}

// VolumeEstimate averages the last hour of consumed rows.
func (f *HistoricalFeed) VolumeEstimate(symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.data == nil {
		return 0, ErrNotInitialized
	}
	candles, ok := f.data[symbol]
	if !ok {
		return 0, ErrUnknownSymbol
	}
	end := f.cursor[symbol]
	if end == 0 {
		end = 1
	}
	start := end - 60
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for _, c := range candles[start:end] {
		sum += c.Volume
	}
	return sum / float64(end-start), nil
}

// Candlesticks returns up to limit candles at tf, ending at the cursor.
// The dataset's native resolution is 1m; finer timeframes are rejected.
func (f *HistoricalFeed) Candlesticks(symbol string, tf repository.Timeframe, limit int) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.data == nil {
		return nil, ErrNotInitialized
	}
	candles, ok := f.data[symbol]
	if !ok {
		return nil, ErrUnknownSymbol
	}
	if tf.Bucket() < time.Minute {
		return nil, fmt.Errorf("timeframe %s finer than dataset resolution", tf)
	}
	consumed := candles[:f.cursor[symbol]]
	if len(consumed) == 0 {
		return nil, nil
	}
	if tf != repository.TF1m {
		consumed = aggregateCandles(consumed, tf)
	}
	return tailCandles(consumed, limit), nil
}

func (f *HistoricalFeed) TickHistory(symbol string, limit int) ([]models.Tick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ticks == nil {
		return nil, ErrNotInitialized
	}
	if _, ok := f.data[symbol]; !ok {
		return nil, ErrUnknownSymbol
	}
	return tailTicks(f.ticks[symbol], limit), nil
}

func (f *HistoricalFeed) OnTick(h repository.TickHandler) repository.Unsubscribe {
	return f.subs.ticks.add(h)
}

func (f *HistoricalFeed) OnCandle(h repository.CandleHandler) repository.Unsubscribe {
	return f.subs.candles.add(h)
}

func (f *HistoricalFeed) OnOrderBookUpdate(h repository.BookHandler) repository.Unsubscribe {
	return f.subs.books.add(h)
}

func (f *HistoricalFeed) OnAnomaly(h repository.AnomalyHandler) repository.Unsubscribe {
	return f.subs.anomalies.add(h)
}

// InjectAnomaly publishes directly to subscribers, bypassing the MEV model.
func (f *HistoricalFeed) InjectAnomaly(a models.MarketAnomaly) {
	f.mu.Lock()
	f.stats.AnomaliesGenerated++
	f.mu.Unlock()
	if f.metrics != nil {
		f.metrics.RecordAnomaly(a.Type)
	}
	if err := f.subs.publishAnomaly(a); err != nil {
		f.log.Error("anomaly handler failed on manual injection", logger.Error(err))
	}
}

func (f *HistoricalFeed) Config() models.FeedConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg.Normalized()
}

// UpdateConfig replaces the configuration wholesale. Changing the symbol
// set requires re-initialization and is rejected here.
func (f *HistoricalFeed) UpdateConfig(cfg models.FeedConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		return ErrNotInitialized
	}
	cfg = cfg.Normalized()
	if !sameSymbols(cfg.Symbols, f.cfg.Symbols) {
		return fmt.Errorf("cannot change symbols on a live feed, re-initialize instead")
	}
	f.cfg = cfg
	f.speed = cfg.ReplaySpeed
	return nil
}

func (f *HistoricalFeed) Stats() models.FeedStatistics {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := f.stats
	stats.FeedType = models.FeedTypeHistorical
	stats.IsRealTime = false
	if f.state == stateRunning {
		stats.Uptime = f.clock.Now().Sub(f.startedAt)
	}
	stats.DataLatency = f.clock.Now().Sub(f.current)
	return stats
}

func sameSymbols(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			return false
		}
	}
	return true
}
