package di

import (
	"context"
	"fmt"
	"time"

	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/repository"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/feed"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/handler/api"
	mid "github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/middleware"
	internalrepo "github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/repository"
	icache "github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/service/cache"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/service/stream"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/usecase"
	pkgcache "github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/cache"
	pkgch "github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/clickhouse"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/config"
	xhttp "github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/http"
	pkgkafka "github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/kafka"
	applogger "github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/logger"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/metrics"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/queue"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/server"
)

// schemaStatements bootstrap the simulation database. Idempotent.
var schemaStatements = []string{
	"CREATE DATABASE IF NOT EXISTS marketsim",
	`CREATE TABLE IF NOT EXISTS marketsim.sim_ticks_raw (
        ts DateTime64(3),
        symbol LowCardinality(String),
        price Float64,
        volume Float64,
        source LowCardinality(String),
        event_id String,
        seq UInt64
    ) ENGINE = ReplacingMergeTree(seq)
    ORDER BY (symbol, ts, event_id)`,
	`CREATE TABLE IF NOT EXISTS marketsim.sim_candles_1s (
        bucket DateTime,
        symbol LowCardinality(String),
        open Float64, high Float64, low Float64, close Float64,
        vol Float64,
        trades UInt32
    ) ENGINE = ReplacingMergeTree()
    ORDER BY (symbol, bucket)`,
	`CREATE TABLE IF NOT EXISTS marketsim.sim_candles_1m (
        bucket DateTime,
        symbol LowCardinality(String),
        open Float64, high Float64, low Float64, close Float64,
        vol Float64,
        trades UInt32
    ) ENGINE = ReplacingMergeTree()
    ORDER BY (symbol, bucket)`,
}

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{
		Level:  "info",
		Format: format,
		Output: "stdout",
	})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, schemaStatements); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClock returns the wall clock used by feeds.
func ProvideClock() feed.Clock {
	return feed.NewRealClock()
}

// ProvideFeedFactory creates the feed factory from simulation config.
func ProvideFeedFactory(cfg *config.Config, l *applogger.Logger, clock feed.Clock, m repository.Metrics) *feed.Factory {
	return feed.NewFactory(l, clock, m, feed.FactoryConfig{
		DataDir:             cfg.Simulation.DataDir,
		FallbackToSimulated: cfg.Simulation.FallbackToSimulated,
		Seed:                cfg.Simulation.Seed,
		Params: models.SimulationParameters{
			Volatility:          cfg.Simulation.Process.Volatility,
			Drift:               cfg.Simulation.Process.Drift,
			MeanReversionSpeed:  cfg.Simulation.Process.MeanReversionSpeed,
			TrendMomentum:       cfg.Simulation.Process.TrendMomentum,
			MicrostructureNoise: cfg.Simulation.Process.MicrostructureNoise,
			TimeScale:           cfg.Simulation.Process.TimeScale,
		},
	})
}

// ProvideDefaultFeed creates the configured default feed. The collector
// starts it when the app runs.
func ProvideDefaultFeed(cfg *config.Config, factory *feed.Factory) (repository.DataFeed, error) {
	feedCfg := models.FeedConfig{
		Symbols:              cfg.Simulation.Symbols,
		ReplaySpeed:          cfg.Simulation.Feed.ReplaySpeed,
		EnableAnomalies:      cfg.Simulation.Feed.EnableAnomalies,
		AnomalyFrequency:     cfg.Simulation.Feed.AnomalyFrequency,
		VolatilityMultiplier: cfg.Simulation.Feed.VolatilityMultiplier,
		LiquidityMultiplier:  cfg.Simulation.Feed.LiquidityMultiplier,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, f, err := factory.CreateFeed(ctx, cfg.Simulation.PreferredFeed, feedCfg)
	if err != nil {
		return nil, fmt.Errorf("default feed: %w", err)
	}
	return f, nil
}

// ProvideMarketStream bridges the default feed to channel consumption.
func ProvideMarketStream(f repository.DataFeed, l *applogger.Logger) repository.MarketStream {
	return stream.NewFeedStream(f, l)
}

// ProvideTickStorage creates ClickHouse storage repository.
func ProvideTickStorage(chClient *pkgch.Client, cfg *config.Config) repository.Storage {
	return internalrepo.NewClickHouseStorage(chClient.DB(), cfg.ClickHouse.Database+".sim_ticks_raw")
}

// ProvideTickPublisher creates Kafka publisher repository.
func ProvideTickPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideKafkaTicksHandler registers handler for the ticks topic.
func ProvideKafkaTicksHandler(store repository.Storage, m repository.Metrics, cfg *config.Config) *usecase.KafkaTicksHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.Topic, store, m)
}

// ProvideTickProcessor creates the tick processing use case.
func ProvideTickProcessor(
	pub repository.Publisher,
	store repository.Storage,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.TickProcessor {
	return usecase.NewTickProcessor(pub, store, m, cfg.Backend.Type)
}

// ProvideFeedCollector creates the feed collection use case.
func ProvideFeedCollector(
	st repository.MarketStream,
	processor *usecase.TickProcessor,
	m repository.Metrics,
) *usecase.FeedCollector {
	// Middleware pipeline between the feed bridge and the backend
	pipe := mid.NewRealtimePipeline(processor, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewFeedCollector(st, processor, m, pipe)
}

// ProvideRedisClient creates the shared Redis client, or nil when Redis
// is disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideCacheService creates the query cache: layered (memory + Redis)
// when Redis is configured, in-process memory otherwise.
func ProvideCacheService(cfg *config.Config) pkgcache.Service {
	if cfg.Redis.Enabled {
		host, port := splitHostPort(cfg.Redis.Addr)
		rc, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(host),
			pkgcache.WithRedisPort(port),
			pkgcache.WithRedisPassword(cfg.Redis.Password),
			pkgcache.WithRedisDB(cfg.Redis.DB),
		)
		if err == nil {
			return pkgcache.NewLayeredCache(rc)
		}
		// unreachable Redis degrades to memory-only
	}
	return pkgcache.NewMemoryCache()
}

func splitHostPort(addr string) (string, int) {
	host, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		return addr, 6379
	}
	port := 6379
	fmt.Sscanf(portStr, "%d", &port)
	return host, port
}

// ProvideCandlesUseCase creates the ClickHouse-backed candle read path.
func ProvideCandlesUseCase(chClient *pkgch.Client, l *applogger.Logger, cache pkgcache.Service) *usecase.CandlesUseCase {
	store := internalrepo.NewCHCandleStore(chClient)
	store.SetLogger(l)
	return usecase.NewCandlesUseCase(store, cache)
}

// ProvideHTTPHandler creates the feed API handler. Response caching goes
// through Redis when available, in-process otherwise.
func ProvideHTTPHandler(l *applogger.Logger, factory *feed.Factory, candles *usecase.CandlesUseCase, client *redis.Client) xhttp.Handler {
	var bytesCache icache.BytesCache
	if client != nil {
		bytesCache = icache.NewRedisCacheFromClient(client)
	}
	return api.NewFeedsEchoHandler(l, factory, candles, bytesCache)
}

// ProvideAnomalyQueue creates the Redis-backed anomaly injection consumer.
// Returns nil when Redis is disabled.
func ProvideAnomalyQueue(l *applogger.Logger, factory *feed.Factory, client *redis.Client) *queue.RedisQueue {
	if client == nil {
		return nil
	}
	jobs := []queue.Job{usecase.NewAnomalyInjectJob(l, factory)}
	return queue.NewRedisConsumer(l, &queue.QueueConfig{
		Workers:    2,
		RetryLimit: 3,
		RetryDelay: 5 * time.Second,
	}, client, jobs)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	factory *feed.Factory,
	collector *usecase.FeedCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	chClient *pkgch.Client,
	httpHandler xhttp.Handler,
	anomalyQueue *queue.RedisQueue,
	redisClient *redis.Client,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}

	// Aggregate error logs into Redis when available, so repeated failures
	// surface as one counted entry instead of a flood.
	if redisClient != nil {
		logQueue := queue.NewRedisPublisher(l, redisClient, queue.WithKeyPrefix("marketsim:logs"))
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "log.error.aggregate",
			Publisher:      logQueue,
		})
	}

	app := server.New(cfg, l, factory, collector, consumer, kh, chClient)
	app.SetHTTPHandler(httpHandler)
	if anomalyQueue != nil {
		app.SetAnomalyQueue(anomalyQueue)
	}
	if collector != nil {
		app.TickProc = collector.Processor()
	}
	return app
}
