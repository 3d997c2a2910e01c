package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	domrepo "github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/repository"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/feed"
	icache "github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/service/cache"
	simmetrics "github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/service/metrics"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/service/ratelimit"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/services/features"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/usecase"
	xhttp "github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/http"
	applogger "github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/logger"
)

const (
	candleCacheTTL = 2 * time.Second

	// per-IP budget for read endpoints
	readBurst     = 30.0
	readPerSecond = 15.0
)

// FeedsEchoHandler exposes feed lifecycle, time control, data access and
// anomaly injection over HTTP.
type FeedsEchoHandler struct {
	l       *applogger.Logger
	factory *feed.Factory
	candles *usecase.CandlesUseCase // optional, ClickHouse-backed history
	cache   icache.BytesCache
	limiter *ratelimit.Limiter
}

// NewFeedsEchoHandler builds the handler. A nil cache falls back to an
// in-process TTL cache.
func NewFeedsEchoHandler(l *applogger.Logger, factory *feed.Factory, candles *usecase.CandlesUseCase, cache icache.BytesCache) *FeedsEchoHandler {
	simmetrics.Register()
	if cache == nil {
		cache = icache.NewTTLCache()
	}
	return &FeedsEchoHandler{
		l:       l,
		factory: factory,
		candles: candles,
		cache:   cache,
		limiter: ratelimit.New(),
	}
}

// RegisterRoutes implements pkg/http.Handler.
func (h *FeedsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/feeds")
	g.POST("", h.createFeed)
	g.GET("", h.listFeeds)
	g.GET("/:id", h.getFeed)
	g.DELETE("/:id", h.deleteFeed)

	g.POST("/:id/start", h.startFeed)
	g.POST("/:id/pause", h.pauseFeed)
	g.POST("/:id/resume", h.resumeFeed)
	g.POST("/:id/reset", h.resetFeed)
	g.POST("/:id/stop", h.stopFeed)
	g.POST("/:id/seek", h.seekFeed)
	g.POST("/:id/speed", h.setSpeed)
	g.POST("/:id/anomalies", h.injectAnomaly)

	g.GET("/:id/ticks", h.getTicks)
	g.GET("/:id/candles", h.getCandles)
	g.GET("/:id/orderbook", h.getOrderBook)
	g.GET("/:id/liquidity", h.getLiquidity)
	g.GET("/:id/price", h.getPrice)
	g.GET("/:id/volume", h.getVolume)
	g.GET("/:id/volatility", h.getVolatility)
	g.GET("/:id/stats", h.getStats)

	g.GET("/:id/stream", h.streamTicks)

	// persisted candle history, independent of any live feed
	if h.candles != nil {
		e.GET("/api/candles", h.getStoredCandles)
	}

	e.GET("/health", h.health)
}

func (h *FeedsEchoHandler) observe(endpoint string, start time.Time) {
	simmetrics.FeedAPILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (h *FeedsEchoHandler) fail(endpoint string, c echo.Context, err error) error {
	simmetrics.FeedAPIErrors.WithLabelValues(endpoint).Inc()
	h.l.Warn("feed api error", applogger.String("endpoint", endpoint), applogger.Error(err))
	return xhttp.BadRequestResponse(c, err.Error())
}

func (h *FeedsEchoHandler) allowRead(c echo.Context) bool {
	return h.limiter.Allow(c.RealIP(), readBurst, readPerSecond)
}

func (h *FeedsEchoHandler) feedByID(c echo.Context) (string, domrepo.DataFeed, error) {
	id := c.Param("id")
	f, ok := h.factory.Get(id)
	if !ok {
		return id, nil, fmt.Errorf("feed not found: %s", id)
	}
	return id, f, nil
}

// --- lifecycle ---

func (h *FeedsEchoHandler) createFeed(c echo.Context) error {
	start := time.Now()
	defer h.observe("create_feed", start)

	var req models.CreateFeedRequest
	if verr := xhttp.ReadAndValidateRequest(c, &req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	cfg := models.FeedConfig{
		Symbols:              req.Symbols,
		ReplaySpeed:          req.ReplaySpeed,
		EnableAnomalies:      req.EnableAnomalies,
		AnomalyFrequency:     req.AnomalyFrequency,
		VolatilityMultiplier: req.VolatilityMultiplier,
		LiquidityMultiplier:  req.LiquidityMultiplier,
	}

	id, f, err := h.factory.CreateFeed(c.Request().Context(), req.Type, cfg)
	if err != nil {
		return h.fail("create_feed", c, err)
	}

	if req.AutoStart {
		if err := f.Start(c.Request().Context()); err != nil {
			return h.fail("create_feed", c, err)
		}
	}

	h.l.Info("feed created",
		applogger.String("id", id),
		applogger.String("type", f.FeedType()),
		applogger.Strings("symbols", req.Symbols),
		applogger.Bool("auto_start", req.AutoStart),
	)
	return xhttp.CreatedResponse(c, map[string]any{
		"id":   id,
		"type": f.FeedType(),
	})
}

func (h *FeedsEchoHandler) listFeeds(c echo.Context) error {
	start := time.Now()
	defer h.observe("list_feeds", start)

	ids := h.factory.List()
	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		f, ok := h.factory.Get(id)
		if !ok {
			continue
		}
		rows = append(rows, map[string]any{
			"id":    id,
			"type":  f.FeedType(),
			"stats": f.Stats(),
		})
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *FeedsEchoHandler) getFeed(c echo.Context) error {
	start := time.Now()
	defer h.observe("get_feed", start)

	id, f, err := h.feedByID(c)
	if err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	rangeStart, rangeEnd := f.TimeRange()
	return xhttp.SuccessResponse(c, map[string]any{
		"id":           id,
		"type":         f.FeedType(),
		"config":       f.Config(),
		"stats":        f.Stats(),
		"current_time": f.CurrentTime(),
		"range_start":  rangeStart,
		"range_end":    rangeEnd,
		"replay_speed": f.ReplaySpeed(),
	})
}

func (h *FeedsEchoHandler) deleteFeed(c echo.Context) error {
	start := time.Now()
	defer h.observe("delete_feed", start)

	id := c.Param("id")
	if err := h.factory.Remove(id); err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	h.l.Info("feed removed", applogger.String("id", id))
	return xhttp.NoContentResponse(c)
}

func (h *FeedsEchoHandler) lifecycle(endpoint string, op func(domrepo.DataFeed) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		defer h.observe(endpoint, start)

		id, f, err := h.feedByID(c)
		if err != nil {
			return xhttp.NotFoundResponse(c, err.Error())
		}
		if err := op(f); err != nil {
			return h.fail(endpoint, c, err)
		}
		return xhttp.SuccessResponse(c, map[string]any{"id": id, "stats": f.Stats()})
	}
}

func (h *FeedsEchoHandler) startFeed(c echo.Context) error {
	return h.lifecycle("start_feed", func(f domrepo.DataFeed) error {
		return f.Start(c.Request().Context())
	})(c)
}

func (h *FeedsEchoHandler) pauseFeed(c echo.Context) error {
	return h.lifecycle("pause_feed", domrepo.DataFeed.Pause)(c)
}

func (h *FeedsEchoHandler) resumeFeed(c echo.Context) error {
	return h.lifecycle("resume_feed", domrepo.DataFeed.Resume)(c)
}

func (h *FeedsEchoHandler) resetFeed(c echo.Context) error {
	return h.lifecycle("reset_feed", domrepo.DataFeed.Reset)(c)
}

func (h *FeedsEchoHandler) stopFeed(c echo.Context) error {
	return h.lifecycle("stop_feed", domrepo.DataFeed.Stop)(c)
}

// --- time control ---

func (h *FeedsEchoHandler) seekFeed(c echo.Context) error {
	start := time.Now()
	defer h.observe("seek_feed", start)

	_, f, err := h.feedByID(c)
	if err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}

	var req models.SeekRequest
	if verr := xhttp.ReadAndValidateRequest(c, &req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ts, ok := xhttp.ParseTime(req.Timestamp)
	if !ok {
		return h.fail("seek_feed", c, fmt.Errorf("unparseable timestamp: %q", req.Timestamp))
	}
	if err := f.JumpToTime(ts); err != nil {
		return h.fail("seek_feed", c, err)
	}
	return xhttp.SuccessResponse(c, map[string]any{"current_time": f.CurrentTime()})
}

func (h *FeedsEchoHandler) setSpeed(c echo.Context) error {
	start := time.Now()
	defer h.observe("set_speed", start)

	_, f, err := h.feedByID(c)
	if err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}

	var req models.SpeedRequest
	if verr := xhttp.ReadAndValidateRequest(c, &req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	applied := f.SetReplaySpeed(req.Speed)
	return xhttp.SuccessResponse(c, map[string]any{
		"requested": req.Speed,
		"applied":   applied,
	})
}

// --- anomalies ---

func (h *FeedsEchoHandler) injectAnomaly(c echo.Context) error {
	start := time.Now()
	defer h.observe("inject_anomaly", start)

	_, f, err := h.feedByID(c)
	if err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}

	var req models.InjectAnomalyRequest
	if verr := xhttp.ReadAndValidateRequest(c, &req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	a := models.MarketAnomaly{
		Type:            req.Type,
		Severity:        req.Severity,
		Timestamp:       time.Now(),
		Duration:        time.Duration(req.DurationMs) * time.Millisecond,
		AffectedSymbols: req.Symbols,
		Description:     req.Description,
	}
	f.InjectAnomaly(a)
	h.l.Info("anomaly injected",
		applogger.String("type", a.Type),
		applogger.String("severity", a.Severity),
		applogger.Strings("symbols", a.AffectedSymbols),
	)
	return xhttp.CreatedResponse(c, a)
}

// --- data access ---

func (h *FeedsEchoHandler) getTicks(c echo.Context) error {
	start := time.Now()
	defer h.observe("get_ticks", start)
	if !h.allowRead(c) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	_, f, err := h.feedByID(c)
	if err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	var req models.TicksRequest
	if verr := xhttp.ReadAndValidateRequest(c, &req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ticks, err := f.TickHistory(req.Symbol, req.Limit)
	if err != nil {
		return h.fail("get_ticks", c, err)
	}
	return xhttp.ListResponse(c, ticks, int64(len(ticks)))
}

func (h *FeedsEchoHandler) getCandles(c echo.Context) error {
	start := time.Now()
	defer h.observe("get_candles", start)
	if !h.allowRead(c) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	id, f, err := h.feedByID(c)
	if err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	var req models.CandlesRequest
	if verr := xhttp.ReadAndValidateRequest(c, &req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := fmt.Sprintf("candles:%s:%s:%s:%d", id, req.Symbol, req.TF, req.Limit)
	if b, ok, _ := h.cache.GetBytes(key); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	candles, err := f.Candlesticks(req.Symbol, domrepo.Timeframe(req.TF), req.Limit)
	if err != nil {
		return h.fail("get_candles", c, err)
	}
	resp := xhttp.APIResponse{
		Status:  http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    &xhttp.ListDataResponse{Rows: candles, Total: int64(len(candles))},
	}
	if b, err := json.Marshal(resp); err == nil {
		_ = h.cache.SetBytes(key, b, candleCacheTTL)
	}
	return xhttp.ListResponse(c, candles, int64(len(candles)))
}

func (h *FeedsEchoHandler) getOrderBook(c echo.Context) error {
	start := time.Now()
	defer h.observe("get_orderbook", start)
	if !h.allowRead(c) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	_, f, err := h.feedByID(c)
	if err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	var req models.SymbolRequest
	if verr := xhttp.ReadAndValidateRequest(c, &req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	book, err := f.OrderBook(req.Symbol)
	if err != nil {
		return h.fail("get_orderbook", c, err)
	}
	return xhttp.SuccessResponse(c, book)
}

func (h *FeedsEchoHandler) getLiquidity(c echo.Context) error {
	start := time.Now()
	defer h.observe("get_liquidity", start)

	_, f, err := h.feedByID(c)
	if err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	var req models.SymbolRequest
	if verr := xhttp.ReadAndValidateRequest(c, &req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	lm, err := f.LiquidityMetrics(req.Symbol)
	if err != nil {
		return h.fail("get_liquidity", c, err)
	}
	return xhttp.SuccessResponse(c, lm)
}

func (h *FeedsEchoHandler) getPrice(c echo.Context) error {
	start := time.Now()
	defer h.observe("get_price", start)

	_, f, err := h.feedByID(c)
	if err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	var req models.SymbolRequest
	if verr := xhttp.ReadAndValidateRequest(c, &req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	price, err := f.CurrentPrice(req.Symbol)
	if err != nil {
		return h.fail("get_price", c, err)
	}
	return xhttp.SuccessResponse(c, map[string]any{
		"symbol": req.Symbol,
		"price":  price,
		"time":   f.CurrentTime(),
	})
}

func (h *FeedsEchoHandler) getVolume(c echo.Context) error {
	start := time.Now()
	defer h.observe("get_volume", start)

	_, f, err := h.feedByID(c)
	if err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	var req models.SymbolRequest
	if verr := xhttp.ReadAndValidateRequest(c, &req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	vol, err := f.VolumeEstimate(req.Symbol)
	if err != nil {
		return h.fail("get_volume", c, err)
	}
	return xhttp.SuccessResponse(c, map[string]any{"symbol": req.Symbol, "volume": vol})
}

// getVolatility computes annualized realized volatility over the feed's
// recent candles.
func (h *FeedsEchoHandler) getVolatility(c echo.Context) error {
	start := time.Now()
	defer h.observe("get_volatility", start)

	_, f, err := h.feedByID(c)
	if err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	var req models.CandlesRequest
	if verr := xhttp.ReadAndValidateRequest(c, &req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	candles, err := f.Candlesticks(req.Symbol, domrepo.Timeframe(req.TF), req.Limit)
	if err != nil {
		return h.fail("get_volatility", c, err)
	}
	returns := features.ComputeLogReturns(candles)
	window := len(returns)
	sigma := features.RealizedVolatility(returns, window, features.BarsPerYearForTF(req.TF))
	return xhttp.SuccessResponse(c, map[string]any{
		"symbol":     req.Symbol,
		"tf":         req.TF,
		"window":     window,
		"volatility": sigma,
	})
}

func (h *FeedsEchoHandler) getStats(c echo.Context) error {
	start := time.Now()
	defer h.observe("get_stats", start)

	id, f, err := h.feedByID(c)
	if err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, map[string]any{"id": id, "stats": f.Stats()})
}

// getStoredCandles serves persisted candle history from ClickHouse.
func (h *FeedsEchoHandler) getStoredCandles(c echo.Context) error {
	start := time.Now()
	defer h.observe("get_stored_candles", start)
	if !h.allowRead(c) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	var req models.CandlesRequest
	if verr := xhttp.ReadAndValidateRequest(c, &req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), time.Now().Add(-24*time.Hour))
	to := xhttp.ParseTimeDefault(c.QueryParam("to"), time.Now())
	from, to = features.AlignFromTo(from, to, req.TF)

	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Symbol:    req.Symbol,
		From:      from,
		To:        to,
		Timeframe: domrepo.Timeframe(req.TF),
		Limit:     req.Limit,
	})
	if err != nil {
		return h.fail("get_stored_candles", c, err)
	}
	return xhttp.ListResponse(c, res.Candles, int64(len(res.Candles)))
}

func (h *FeedsEchoHandler) health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]any{
		"status": "ok",
		"feeds":  len(h.factory.List()),
	})
}

var _ xhttp.Handler = (*FeedsEchoHandler)(nil)
