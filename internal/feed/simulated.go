package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/repository"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/sim"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/logger"
)

const (
	baseSpreadRel  = 0.0002 // 2 bps resting spread
	baseVolatility = 0.3    // annualized input into the price process
)

// SimulatedFeed generates an endless synthetic market from the stochastic
// models. Its current time is wall-clock scaled by replay speed. Ticks go
// into a bounded ring buffer; a second loop rolls them into 1-minute
// candles, also bounded.
type SimulatedFeed struct {
	log     *logger.Logger
	clock   Clock
	metrics repository.Metrics
	seed    int64

	mu    sync.Mutex
	state feedState
	cfg   models.FeedConfig

	rng    *sim.Rand
	price  *sim.PriceProcess
	mev    *sim.MEVModel
	params models.SimulationParameters

	prices   map[string]float64
	volumes  map[string]float64
	spreads  map[string]float64 // relative spread, evolved on every book read
	ticks    map[string][]models.Tick
	candles  map[string][]models.Candle
	building map[string]*models.Candle

	simTime  time.Time
	lastWall time.Time
	speed    float64
	seq      int64

	subs      *subscriptions
	stats     models.FeedStatistics
	startedAt time.Time
	cancel    context.CancelFunc
	tickDone  chan struct{}
	aggDone   chan struct{}
}

// NewSimulatedFeed builds an uninitialized simulation feed. seed drives
// every stochastic path the feed owns.
func NewSimulatedFeed(log *logger.Logger, clock Clock, metrics repository.Metrics, params models.SimulationParameters, seed int64) *SimulatedFeed {
	return &SimulatedFeed{
		log:     log,
		clock:   clock,
		metrics: metrics,
		params:  params,
		seed:    seed,
		subs:    newSubscriptions(),
		speed:   1,
	}
}

func (f *SimulatedFeed) FeedType() string { return models.FeedTypeSimulated }

// Initialize seeds per-symbol prices from the anchor table and arms the
// stochastic models. Never touches the filesystem, so it cannot fail for
// data reasons.
func (f *SimulatedFeed) Initialize(ctx context.Context, cfg models.FeedConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == stateClosed {
		return ErrFeedClosed
	}
	if len(cfg.Symbols) == 0 {
		return ErrNoSymbols
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg = cfg.Normalized()

	f.rng = sim.NewRand(f.seed)
	now := f.clock.Now().UTC()
	f.price = sim.NewPriceProcess(f.rng, sim.NewRegimeModel(f.rng, now), f.params)
	f.mev = sim.NewMEVModel(f.rng, 30*time.Second, 2*time.Minute)

	f.prices = make(map[string]float64, len(cfg.Symbols))
	f.volumes = make(map[string]float64, len(cfg.Symbols))
	f.spreads = make(map[string]float64, len(cfg.Symbols))
	f.ticks = make(map[string][]models.Tick, len(cfg.Symbols))
	f.candles = make(map[string][]models.Candle, len(cfg.Symbols))
	f.building = make(map[string]*models.Candle, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		price := BasePrice(symbol)
		f.prices[symbol] = price
		f.volumes[symbol] = 1000 / price * 100
		f.spreads[symbol] = baseSpreadRel * cfg.VolatilityMultiplier
	}

	f.cfg = cfg
	f.speed = cfg.ReplaySpeed
	f.simTime = now
	f.lastWall = f.clock.Now()
	f.stats = models.FeedStatistics{FeedType: models.FeedTypeSimulated, IsRealTime: true}
	f.state = stateInitialized
	return nil
}

// Start launches the tick loop and the candle aggregation loop. Idempotent
// while running.
func (f *SimulatedFeed) Start(ctx context.Context) error {
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
	f.tickDone = make(chan struct{})
	f.aggDone = make(chan struct{})
	f.startedAt = f.clock.Now()
	f.lastWall = f.startedAt
	f.state = stateRunning

	go f.runTicks(loopCtx, f.tickDone)
	go f.runCandles(loopCtx, f.aggDone)
	f.log.Info("simulated feed started",
		logger.Strings("symbols", f.cfg.Symbols), logger.Any("replay_speed", f.speed))
	return nil
}

func (f *SimulatedFeed) runTicks(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if err := f.step(); err != nil {
			f.log.Error("simulation loop failure, stopping feed", logger.Error(err))
			if f.metrics != nil {
				f.metrics.RecordError("simulation_loop")
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

// runCandles closes one 1-minute bucket per simulated minute.
func (f *SimulatedFeed) runCandles(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		interval := time.Duration(float64(time.Minute) / f.ReplaySpeed())
		if err := f.clock.Sleep(ctx, interval); err != nil {
			return
		}
		if err := f.flushCandles(); err != nil {
			f.log.Error("candle aggregation failure, stopping feed", logger.Error(err))
			f.markStopped()
			return
		}
	}
}

func (f *SimulatedFeed) markStopped() {
	f.mu.Lock()
	cancel := f.cancel
	if f.state == stateRunning {
		f.state = stateStopped
		f.cancel = nil
	}
	f.mu.Unlock()
	if cancel != nil {
		cancel() // take the sibling loop down too
	}
}

// step advances every symbol's price one iteration and fans the results
// out to subscribers.
func (f *SimulatedFeed) step() error {
	f.mu.Lock()
	if f.state != stateRunning {
		f.mu.Unlock()
		return nil
	}
	now := f.advanceTimeLocked()

	var (
		emitted   []models.Tick
		books     []models.OrderBookSnapshot
		anomalies []models.MarketAnomaly
	)
	for _, symbol := range f.cfg.Symbols {
		tick := f.generateTickLocked(symbol, now)
		emitted = append(emitted, tick)

		f.seq++
		spread := f.spreads[symbol] * tick.Price
		books = append(books, synthesizeOrderBook(f.rng, symbol, tick.Price, spread, f.cfg.LiquidityMultiplier, f.seq, now))
	}

	if f.cfg.EnableAnomalies {
		if a, ok := f.mev.InjectRandomActivity(now, f.cfg.AnomalyFrequency, f.cfg.Symbols); ok {
			anomalies = append(anomalies, a)
			f.stats.AnomaliesGenerated++
		}
	}
	f.stats.CurrentTimestamp = now
	f.mu.Unlock()

	for _, t := range emitted {
		if f.metrics != nil {
			f.metrics.RecordTickEmitted(models.FeedTypeSimulated, t.Symbol)
			f.metrics.RecordLastPrice(t.Symbol, t.Price)
		}
		if err := f.subs.publishTick(t); err != nil {
			return fmt.Errorf("tick handler: %w", err)
		}
	}
	for _, b := range books {
		if err := f.subs.publishBook(b); err != nil {
			return fmt.Errorf("book handler: %w", err)
		}
	}
	for _, a := range anomalies {
		if f.metrics != nil {
			f.metrics.RecordAnomaly(a.Type)
		}
		if err := f.subs.publishAnomaly(a); err != nil {
			return fmt.Errorf("anomaly handler: %w", err)
		}
	}
	return nil
}

// generateTickLocked runs the stochastic models for one symbol, records
// the tick in the ring buffer and folds it into the building 1m candle.
func (f *SimulatedFeed) generateTickLocked(symbol string, now time.Time) models.Tick {
	vol := baseVolatility * f.cfg.VolatilityMultiplier
	price := f.price.GeneratePrice(symbol, f.prices[symbol], vol, 0, now)

	// rare independent burst on top of the regular process
	if shock := f.price.SimulateVolatilityBurst(0.002, 0.05); shock != 0 {
		price *= 1 + shock
		if floor := f.prices[symbol] * 0.001; price < floor {
			price = floor
		}
	}

	// active MEV anomalies push the observed price
	if f.cfg.EnableAnomalies {
		impact := f.mev.Impact(symbol, "buy", now)
		price *= 1 + impact.PriceImpact
	}

	f.prices[symbol] = price
	volume := f.price.GenerateVolume(f.volumes[symbol], now.Hour(), vol)

	tick := models.Tick{
		Symbol:    symbol,
		Timestamp: now,
		Price:     price,
		Volume:    volume,
		Source:    models.FeedTypeSimulated,
	}

	h := append(f.ticks[symbol], tick)
	if len(h) > tickHistoryCap {
		h = h[len(h)-tickHistoryCap:]
	}
	f.ticks[symbol] = h

	f.foldIntoCandleLocked(symbol, tick)
	f.stats.TicksProcessed++
	return tick
}

func (f *SimulatedFeed) foldIntoCandleLocked(symbol string, t models.Tick) {
	bucket := t.Timestamp.Truncate(time.Minute)
	cur := f.building[symbol]
	if cur == nil || !cur.Timestamp.Equal(bucket) {
		if cur != nil {
			f.appendCandleLocked(symbol, *cur)
		}
		f.building[symbol] = &models.Candle{
			Symbol: symbol, Timestamp: bucket, Timeframe: string(repository.TF1m),
			Open: t.Price, High: t.Price, Low: t.Price, Close: t.Price,
			Volume: t.Volume, Trades: 1,
		}
		return
	}
	if t.Price > cur.High {
		cur.High = t.Price
	}
	if t.Price < cur.Low {
		cur.Low = t.Price
	}
	cur.Close = t.Price
	cur.Volume += t.Volume
	cur.Trades++
}

func (f *SimulatedFeed) appendCandleLocked(symbol string, c models.Candle) {
	s := append(f.candles[symbol], c)
	if len(s) > candleCap {
		s = s[len(s)-candleCap:]
	}
	f.candles[symbol] = s
	f.stats.CandlesProcessed++
}

// flushCandles closes every building bucket and publishes the results.
func (f *SimulatedFeed) flushCandles() error {
	f.mu.Lock()
	if f.state != stateRunning {
		f.mu.Unlock()
		return nil
	}
	var closed []models.Candle
	for _, symbol := range f.cfg.Symbols {
		if cur := f.building[symbol]; cur != nil {
			f.appendCandleLocked(symbol, *cur)
			closed = append(closed, *cur)
			f.building[symbol] = nil
		}
	}
	f.mu.Unlock()

	for _, c := range closed {
		if err := f.subs.publishCandle(c); err != nil {
			return fmt.Errorf("candle handler: %w", err)
		}
	}
	return nil
}

// advanceTimeLocked accrues wall-clock elapsed since the last update,
// scaled by replay speed, into the simulated clock.
func (f *SimulatedFeed) advanceTimeLocked() time.Time {
	wall := f.clock.Now()
	if f.state == stateRunning && wall.After(f.lastWall) {
		elapsed := wall.Sub(f.lastWall)
		f.simTime = f.simTime.Add(time.Duration(float64(elapsed) * f.speed))
	}
	f.lastWall = wall
	return f.simTime
}

func (f *SimulatedFeed) Pause() error {
	f.mu.Lock()
	if f.state != stateRunning {
		f.mu.Unlock()
		return fmt.Errorf("cannot pause feed in state %s", f.state)
	}
	f.advanceTimeLocked() // bank simulated time up to this instant
	cancel, tickDone, aggDone := f.cancel, f.tickDone, f.aggDone
	f.state = statePaused
	f.cancel = nil
	f.mu.Unlock()

	cancel()
	<-tickDone
	<-aggDone
	f.log.Info("simulated feed paused")
	return nil
}

func (f *SimulatedFeed) Resume() error {
	f.mu.Lock()
	if f.state != statePaused {
		f.mu.Unlock()
		return fmt.Errorf("cannot resume feed in state %s", f.state)
	}
	f.state = stateStopped
	f.mu.Unlock()
	return f.Start(context.Background())
}

// Reset clears generated history, reseeds the models and rewinds the
// simulated clock to the present. Implies a prior Stop.
func (f *SimulatedFeed) Reset() error {
	if err := f.stopLoops(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == stateClosed {
		return ErrFeedClosed
	}
	if f.prices == nil {
		return ErrNotInitialized
	}

	f.rng.Reset(f.seed)
	now := f.clock.Now().UTC()
	f.price = sim.NewPriceProcess(f.rng, sim.NewRegimeModel(f.rng, now), f.params)
	f.mev = sim.NewMEVModel(f.rng, 30*time.Second, 2*time.Minute)
	for _, symbol := range f.cfg.Symbols {
		f.prices[symbol] = BasePrice(symbol)
		f.spreads[symbol] = baseSpreadRel * f.cfg.VolatilityMultiplier
	}
	f.ticks = make(map[string][]models.Tick, len(f.cfg.Symbols))
	f.candles = make(map[string][]models.Candle, len(f.cfg.Symbols))
	f.building = make(map[string]*models.Candle, len(f.cfg.Symbols))
	f.simTime = now
	f.lastWall = f.clock.Now()
	f.seq = 0
	f.stats = models.FeedStatistics{FeedType: models.FeedTypeSimulated, IsRealTime: true}
	f.state = stateInitialized
	f.log.Info("simulated feed reset")
	return nil
}

func (f *SimulatedFeed) Stop() error {
	return f.stopLoops()
}

func (f *SimulatedFeed) stopLoops() error {
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
	f.advanceTimeLocked()
	cancel, tickDone, aggDone := f.cancel, f.tickDone, f.aggDone
	f.state = stateStopped
	f.cancel = nil
	f.mu.Unlock()

	cancel()
	<-tickDone
	<-aggDone
	return nil
}

func (f *SimulatedFeed) Cleanup() error {
	if err := f.stopLoops(); err != nil {
		return err
	}
	f.mu.Lock()
	f.prices = nil
	f.ticks = nil
	f.candles = nil
	f.building = nil
	f.state = stateClosed
	f.mu.Unlock()
	f.subs.clear()
	return nil
}

// CurrentTime is wall-clock scaled by replay speed, accrued from Start.
func (f *SimulatedFeed) CurrentTime() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.advanceTimeLocked()
}

// TimeRange spans from the oldest retained tick to the current simulated
// instant; the feed has no finite end.
func (f *SimulatedFeed) TimeRange() (time.Time, time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.advanceTimeLocked()
	start := now
	for _, h := range f.ticks {
		if len(h) > 0 && h[0].Timestamp.Before(start) {
			start = h[0].Timestamp
		}
	}
	return start, now
}

// JumpToTime only moves forward: the simulation cannot rewind what it has
// already generated.
func (f *SimulatedFeed) JumpToTime(ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prices == nil {
		return ErrNotInitialized
	}
	now := f.advanceTimeLocked()
	if ts.Before(now) {
		return fmt.Errorf("%w: %s < %s", ErrSeekBackward,
			ts.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	f.simTime = ts
	f.stats.CurrentTimestamp = ts
	return nil
}

func (f *SimulatedFeed) SetReplaySpeed(speed float64) float64 {
	applied := models.ClampReplaySpeed(speed)
	f.mu.Lock()
	f.advanceTimeLocked() // bank time at the old speed first
	f.speed = applied
	f.cfg.ReplaySpeed = applied
	f.mu.Unlock()
	return applied
}

func (f *SimulatedFeed) ReplaySpeed() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.speed
}

// NextTick generates one tick on demand, outside the scheduled loop.
func (f *SimulatedFeed) NextTick(symbol string) (*models.Tick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prices == nil {
		return nil, ErrNotInitialized
	}
	if _, ok := f.prices[symbol]; !ok {
		return nil, ErrUnknownSymbol
	}
	now := f.advanceTimeLocked()
	tick := f.generateTickLocked(symbol, now)
	return &tick, nil
}

func (f *SimulatedFeed) CurrentPrice(symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prices == nil {
		return 0, ErrNotInitialized
	}
	price, ok := f.prices[symbol]
	if !ok {
		return 0, ErrUnknownSymbol
	}
	return price, nil
}

// OrderBook synthesizes a snapshot around the current price. Reading the
// book also evolves the feed's stored spread, so consecutive reads differ:
// the accessor is deliberately not a pure read.
func (f *SimulatedFeed) OrderBook(symbol string) (*models.OrderBookSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prices == nil {
		return nil, ErrNotInitialized
	}
	price, ok := f.prices[symbol]
	if !ok {
		return nil, ErrUnknownSymbol
	}
	now := f.advanceTimeLocked()
	rel := f.evolveSpreadLocked(symbol, now)
	f.seq++
	book := synthesizeOrderBook(f.rng, symbol, price, rel*price, f.cfg.LiquidityMultiplier, f.seq, now)
	return &book, nil
}

// evolveSpreadLocked nudges the stored relative spread toward a freshly
// sampled value, keeping it within sane bounds.
func (f *SimulatedFeed) evolveSpreadLocked(symbol string, now time.Time) float64 {
	vol := baseVolatility * f.cfg.VolatilityMultiplier
	sampled := f.price.GenerateSpread(baseSpreadRel*f.cfg.VolatilityMultiplier, vol, f.cfg.LiquidityMultiplier, now.Hour())
	rel := 0.7*f.spreads[symbol] + 0.3*sampled
	if rel < 0.00005 {
		rel = 0.00005
	}
	if rel > 0.01 {
		rel = 0.01
	}
	f.spreads[symbol] = rel
	return rel
}

func (f *SimulatedFeed) LiquidityMetrics(symbol string) (*models.LiquidityMetrics, error) {
	book, err := f.OrderBook(symbol)
	if err != nil {
		return nil, err
	}
	m := liquidityFromBook(*book)
	return &m, nil
}

// VolumeEstimate averages recent tick volume.
func (f *SimulatedFeed) VolumeEstimate(symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prices == nil {
		return 0, ErrNotInitialized
	}
	if _, ok := f.prices[symbol]; !ok {
		return 0, ErrUnknownSymbol
	}
	h := f.ticks[symbol]
	if len(h) == 0 {
		return f.volumes[symbol], nil
	}
	n := len(h)
	if n > 300 {
		n = 300
	}
	sum := 0.0
	for _, t := range h[len(h)-n:] {
		sum += t.Volume
	}
	return sum / float64(n), nil
}

// Candlesticks serves 1m candles from the aggregation buffer, rolls them
// up for 5m, and builds 1s candles straight from the tick ring.
func (f *SimulatedFeed) Candlesticks(symbol string, tf repository.Timeframe, limit int) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.candles == nil {
		return nil, ErrNotInitialized
	}
	if _, ok := f.prices[symbol]; !ok {
		return nil, ErrUnknownSymbol
	}

	if tf == repository.TF1s {
		return tailCandles(ticksToCandles(f.ticks[symbol], symbol, tf), limit), nil
	}

	base := f.candles[symbol]
	if cur := f.building[symbol]; cur != nil {
		base = append(append([]models.Candle(nil), base...), *cur)
	}
	if len(base) == 0 {
		return nil, nil
	}
	if tf != repository.TF1m {
		base = aggregateCandles(base, tf)
	}
	return tailCandles(base, limit), nil
}

func (f *SimulatedFeed) TickHistory(symbol string, limit int) ([]models.Tick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ticks == nil {
		return nil, ErrNotInitialized
	}
	if _, ok := f.prices[symbol]; !ok {
		return nil, ErrUnknownSymbol
	}
	return tailTicks(f.ticks[symbol], limit), nil
}

func (f *SimulatedFeed) OnTick(h repository.TickHandler) repository.Unsubscribe {
	return f.subs.ticks.add(h)
}

func (f *SimulatedFeed) OnCandle(h repository.CandleHandler) repository.Unsubscribe {
	return f.subs.candles.add(h)
}

func (f *SimulatedFeed) OnOrderBookUpdate(h repository.BookHandler) repository.Unsubscribe {
	return f.subs.books.add(h)
}

func (f *SimulatedFeed) OnAnomaly(h repository.AnomalyHandler) repository.Unsubscribe {
	return f.subs.anomalies.add(h)
}

func (f *SimulatedFeed) InjectAnomaly(a models.MarketAnomaly) {
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

func (f *SimulatedFeed) Config() models.FeedConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg.Normalized()
}

func (f *SimulatedFeed) UpdateConfig(cfg models.FeedConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prices == nil {
		return ErrNotInitialized
	}
	cfg = cfg.Normalized()
	if !sameSymbols(cfg.Symbols, f.cfg.Symbols) {
		return fmt.Errorf("cannot change symbols on a live feed, re-initialize instead")
	}
	f.advanceTimeLocked()
	f.cfg = cfg
	f.speed = cfg.ReplaySpeed
	return nil
}

func (f *SimulatedFeed) Stats() models.FeedStatistics {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := f.stats
	stats.FeedType = models.FeedTypeSimulated
	stats.IsRealTime = true
	stats.CurrentTimestamp = f.advanceTimeLocked()
	if f.state == stateRunning {
		stats.Uptime = f.clock.Now().Sub(f.startedAt)
	}
	return stats
}

// ticksToCandles buckets raw ticks into tf candles. Ticks are time-ordered
// by construction.
func ticksToCandles(ticks []models.Tick, symbol string, tf repository.Timeframe) []models.Candle {
	if len(ticks) == 0 {
		return nil
	}
	bucket := tf.Bucket()
	var out []models.Candle
	var cur *models.Candle
	for _, t := range ticks {
		ts := t.Timestamp.Truncate(bucket)
		if cur == nil || !cur.Timestamp.Equal(ts) {
			if cur != nil {
				out = append(out, *cur)
			}
			cur = &models.Candle{
				Symbol: symbol, Timestamp: ts, Timeframe: string(tf),
				Open: t.Price, High: t.Price, Low: t.Price, Close: t.Price,
				Volume: t.Volume, Trades: 1,
			}
			continue
		}
		if t.Price > cur.High {
			cur.High = t.Price
		}
		if t.Price < cur.Low {
			cur.Low = t.Price
		}
		cur.Close = t.Price
		cur.Volume += t.Volume
		cur.Trades++
	}
	out = append(out, *cur)
	return out
}
