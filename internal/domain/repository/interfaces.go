package repository

import (
	"context"
	"time"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
)

// Subscriber callbacks fire synchronously, in registration order, inline
// with the emission loop. A returned error is fatal to the feed: the loop
// stops and must be restarted explicitly via Start.
type (
	TickHandler    func(models.Tick) error
	CandleHandler  func(models.Candle) error
	BookHandler    func(models.OrderBookSnapshot) error
	AnomalyHandler func(models.MarketAnomaly) error
)

// Unsubscribe removes a previously registered handler. Safe to call more
// than once.
type Unsubscribe func()

// DataFeed is the uniform lifecycle + subscription contract shared by the
// historical replay feed and the live simulation feed.
type DataFeed interface {
	// Lifecycle. Start is idempotent; Reset implies a prior Stop, rewinds
	// cursors and clears statistics; Cleanup releases all state and
	// subscribers.
	Initialize(ctx context.Context, cfg models.FeedConfig) error
	Start(ctx context.Context) error
	Pause() error
	Resume() error
	Reset() error
	Stop() error
	Cleanup() error

	FeedType() string

	// Time control. SetReplaySpeed clamps into [0.1, 1000] and returns the
	// applied value. JumpToTime rejects out-of-range targets (historical)
	// and backward targets (simulated) leaving state unchanged.
	CurrentTime() time.Time
	TimeRange() (start, end time.Time)
	JumpToTime(ts time.Time) error
	SetReplaySpeed(speed float64) float64
	ReplaySpeed() float64

	// Data access. NextTick advances the per-symbol cursor; a historical
	// feed returns (nil, nil) permanently once the symbol's data is
	// exhausted, until Reset.
	NextTick(symbol string) (*models.Tick, error)
	CurrentPrice(symbol string) (float64, error)
	OrderBook(symbol string) (*models.OrderBookSnapshot, error)
	LiquidityMetrics(symbol string) (*models.LiquidityMetrics, error)
	VolumeEstimate(symbol string) (float64, error)
	Candlesticks(symbol string, tf Timeframe, limit int) ([]models.Candle, error)
	TickHistory(symbol string, limit int) ([]models.Tick, error)

	// Subscription.
	OnTick(h TickHandler) Unsubscribe
	OnCandle(h CandleHandler) Unsubscribe
	OnOrderBookUpdate(h BookHandler) Unsubscribe
	OnAnomaly(h AnomalyHandler) Unsubscribe

	// InjectAnomaly publishes an anomaly to subscribers directly, without
	// going through the MEV model.
	InjectAnomaly(a models.MarketAnomaly)

	Config() models.FeedConfig
	UpdateConfig(cfg models.FeedConfig) error
	Stats() models.FeedStatistics
}

// MarketStream adapts a tick source to channel consumption. The simulation
// feeds implement the producing side through a bridge in
// internal/service/stream.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher publishes emitted ticks to a message broker.
type Publisher interface {
	Publish(ctx context.Context, t *models.Tick) error
	PublishBatch(ctx context.Context, ticks []*models.Tick) error
	Close() error
}

// Storage persists emitted ticks.
type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, t *models.Tick) error
	StoreBatch(ctx context.Context, ticks []*models.Tick) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Tick, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// Metrics records operational counters for feeds and the emission pipeline.
type Metrics interface {
	RecordTickEmitted(feedType, symbol string)
	RecordAnomaly(anomalyType string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	SetActiveFeeds(n int)
}
