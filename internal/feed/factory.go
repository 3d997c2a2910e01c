package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/repository"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/logger"
)

// FactoryConfig is the factory's own wiring, distinct from the per-feed
// FeedConfig passed at creation time.
type FactoryConfig struct {
	// DataDir is the root for historical datasets. Empty means no
	// historical path is configured, which steers auto selection away
	// from the historical feed.
	DataDir string
	// FallbackToSimulated permits downgrading an explicitly requested
	// historical/hybrid feed to simulated instead of failing.
	FallbackToSimulated bool
	// Seed is the base seed; each created feed derives its own.
	Seed   int64
	Params models.SimulationParameters
}

// Factory constructs feeds with a deterministic fallback chain
// (historical, then hybrid, then simulated) and tracks every live feed in
// a registry for batch cleanup. The terminal simulated fallback never
// fails.
type Factory struct {
	log     *logger.Logger
	clock   Clock
	metrics repository.Metrics
	cfg     FactoryConfig

	mu      sync.Mutex
	feeds   map[string]repository.DataFeed
	created int64
}

func NewFactory(log *logger.Logger, clock Clock, metrics repository.Metrics, cfg FactoryConfig) *Factory {
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	return &Factory{
		log:     log,
		clock:   clock,
		metrics: metrics,
		cfg:     cfg,
		feeds:   make(map[string]repository.DataFeed),
	}
}

// CreateFeed builds, initializes and registers a feed of the preferred
// type, walking the fallback chain on failure. It returns the registry id
// alongside the feed.
func (fa *Factory) CreateFeed(ctx context.Context, preferred string, cfg models.FeedConfig) (string, repository.DataFeed, error) {
	if preferred == "" {
		preferred = models.FeedTypeAuto
	}

	tryHistorical := preferred == models.FeedTypeHistorical ||
		(preferred == models.FeedTypeAuto && fa.cfg.DataDir != "")
	if tryHistorical {
		feed, err := fa.createHistorical(ctx, cfg)
		if err == nil {
			return fa.register(models.FeedTypeHistorical, feed), feed, nil
		}
		if preferred == models.FeedTypeHistorical && !fa.cfg.FallbackToSimulated {
			return "", nil, fmt.Errorf("create historical feed: %w", err)
		}
		fa.log.Warn("historical feed unavailable, falling through",
			logger.Error(err), logger.Strings("symbols", cfg.Symbols))
	}

	tryHybrid := preferred == models.FeedTypeHybrid ||
		(preferred == models.FeedTypeAuto && cfg.EnableAnomalies)
	if tryHybrid {
		feed, err := fa.createHistorical(ctx, hybridConfig(cfg))
		if err == nil {
			return fa.register(models.FeedTypeHybrid, feed), feed, nil
		}
		if preferred == models.FeedTypeHybrid && !fa.cfg.FallbackToSimulated {
			return "", nil, fmt.Errorf("create hybrid feed: %w", err)
		}
		fa.log.Warn("hybrid feed unavailable, falling back to simulated", logger.Error(err))
	}

	feed, err := fa.createSimulated(ctx, cfg)
	if err != nil {
		// only reachable via empty symbols or a dead context
		return "", nil, fmt.Errorf("create simulated feed: %w", err)
	}
	return fa.register(models.FeedTypeSimulated, feed), feed, nil
}

// hybridConfig is a historical replay with elevated adversarial pressure.
func hybridConfig(cfg models.FeedConfig) models.FeedConfig {
	out := cfg.Normalized()
	out.EnableAnomalies = true
	out.AnomalyFrequency = out.AnomalyFrequency * 3
	if out.AnomalyFrequency < 6 {
		out.AnomalyFrequency = 6
	}
	out.VolatilityMultiplier *= 1.5
	return out
}

func (fa *Factory) createHistorical(ctx context.Context, cfg models.FeedConfig) (repository.DataFeed, error) {
	feed := NewHistoricalFeed(fa.log, fa.clock, fa.metrics, fa.cfg.DataDir, fa.nextSeed())
	if err := feed.Initialize(ctx, cfg); err != nil {
		return nil, err
	}
	return feed, nil
}

func (fa *Factory) createSimulated(ctx context.Context, cfg models.FeedConfig) (repository.DataFeed, error) {
	feed := NewSimulatedFeed(fa.log, fa.clock, fa.metrics, fa.cfg.Params, fa.nextSeed())
	if err := feed.Initialize(ctx, cfg); err != nil {
		return nil, err
	}
	return feed, nil
}

func (fa *Factory) nextSeed() int64 {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.created++
	return fa.cfg.Seed + fa.created
}

func (fa *Factory) register(feedType string, feed repository.DataFeed) string {
	id := fmt.Sprintf("%s_%d_%s", feedType, fa.clock.Now().UnixMilli(), shortID())
	fa.mu.Lock()
	fa.feeds[id] = feed
	n := len(fa.feeds)
	fa.mu.Unlock()

	if fa.metrics != nil {
		fa.metrics.SetActiveFeeds(n)
	}
	fa.log.Info("feed registered", logger.String("feed_id", id), logger.String("type", feed.FeedType()))
	return id
}

func shortID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// Get looks a live feed up by registry id.
func (fa *Factory) Get(id string) (repository.DataFeed, bool) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	feed, ok := fa.feeds[id]
	return feed, ok
}

// List returns the registry ids of all live feeds.
func (fa *Factory) List() []string {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	ids := make([]string, 0, len(fa.feeds))
	for id := range fa.feeds {
		ids = append(ids, id)
	}
	return ids
}

// Remove stops, cleans and deregisters one feed.
func (fa *Factory) Remove(id string) error {
	fa.mu.Lock()
	feed, ok := fa.feeds[id]
	if ok {
		delete(fa.feeds, id)
	}
	n := len(fa.feeds)
	fa.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown feed id %s", id)
	}
	if fa.metrics != nil {
		fa.metrics.SetActiveFeeds(n)
	}
	if err := feed.Stop(); err != nil {
		return fmt.Errorf("stop feed %s: %w", id, err)
	}
	if err := feed.Cleanup(); err != nil {
		return fmt.Errorf("cleanup feed %s: %w", id, err)
	}
	return nil
}

// Cleanup stops and cleans every registered feed concurrently. Individual
// failures are logged and do not abort the batch.
func (fa *Factory) Cleanup(ctx context.Context) error {
	fa.mu.Lock()
	feeds := make(map[string]repository.DataFeed, len(fa.feeds))
	for id, f := range fa.feeds {
		feeds[id] = f
	}
	fa.feeds = make(map[string]repository.DataFeed)
	fa.mu.Unlock()

	var wg sync.WaitGroup
	var failures int64
	var failMu sync.Mutex
	for id, f := range feeds {
		wg.Add(1)
		go func(id string, f repository.DataFeed) {
			defer wg.Done()
			if err := f.Stop(); err != nil {
				fa.log.Error("feed stop failed during cleanup",
					logger.String("feed_id", id), logger.Error(err))
			}
			if err := f.Cleanup(); err != nil {
				fa.log.Error("feed cleanup failed",
					logger.String("feed_id", id), logger.Error(err))
				failMu.Lock()
				failures++
				failMu.Unlock()
			}
		}(id, f)
	}
	wg.Wait()

	if fa.metrics != nil {
		fa.metrics.SetActiveFeeds(0)
	}
	if failures > 0 {
		return fmt.Errorf("%d feed(s) failed to clean up", failures)
	}
	return nil
}
