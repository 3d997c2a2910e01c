package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/feed"
	applogger "github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/logger"
)

type apiEnv struct {
	e       *echo.Echo
	factory *feed.Factory
}

type nullMetrics struct{}

func (nullMetrics) RecordTickEmitted(string, string) {}
func (nullMetrics) RecordAnomaly(string)             {}
func (nullMetrics) RecordError(string)               {}
func (nullMetrics) RecordLastPrice(string, float64)  {}
func (nullMetrics) RecordLatency(string, float64)    {}
func (nullMetrics) SetActiveFeeds(int)               {}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)

	factory := feed.NewFactory(l, feed.NewRealClock(), nullMetrics{}, feed.FactoryConfig{
		FallbackToSimulated: true,
		Seed:                11,
		Params:              models.SimulationParameters{TimeScale: 60},
	})

	h := NewFeedsEchoHandler(l, factory, nil, nil)
	e := echo.New()
	h.RegisterRoutes(e)
	return &apiEnv{e: e, factory: factory}
}

func (env *apiEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

type apiBody struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) apiBody {
	t.Helper()
	var b apiBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	return b
}

func (env *apiEnv) createFeed(t *testing.T) string {
	t.Helper()
	rec := env.do(http.MethodPost, "/api/feeds", `{"type":"simulated","symbols":["BTCUSDT","ETHUSDT"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	b := decodeBody(t, rec)
	require.Equal(t, http.StatusCreated, b.Status)

	var data struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(b.Data, &data))
	require.NotEmpty(t, data.ID)
	require.Equal(t, models.FeedTypeSimulated, data.Type)
	return data.ID
}

func TestCreateFeedValidation(t *testing.T) {
	env := newAPIEnv(t)

	// missing symbols
	rec := env.do(http.MethodPost, "/api/feeds", `{"type":"simulated"}`)
	b := decodeBody(t, rec)
	assert.Equal(t, http.StatusBadRequest, b.Status)

	// unknown type
	rec = env.do(http.MethodPost, "/api/feeds", `{"type":"oracle","symbols":["BTCUSDT"]}`)
	b = decodeBody(t, rec)
	assert.Equal(t, http.StatusBadRequest, b.Status)
}

func TestCreateListDeleteFeed(t *testing.T) {
	env := newAPIEnv(t)
	id := env.createFeed(t)

	rec := env.do(http.MethodGet, "/api/feeds", "")
	b := decodeBody(t, rec)
	var list struct {
		Rows  []map[string]any `json:"rows"`
		Total int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(b.Data, &list))
	require.Equal(t, int64(1), list.Total)
	assert.Equal(t, id, list.Rows[0]["id"])

	rec = env.do(http.MethodDelete, "/api/feeds/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, "/api/feeds/"+id, "")
	b = decodeBody(t, rec)
	assert.Equal(t, http.StatusNotFound, b.Status)
}

func TestGetPriceAndBook(t *testing.T) {
	env := newAPIEnv(t)
	id := env.createFeed(t)

	rec := env.do(http.MethodGet, "/api/feeds/"+id+"/price?symbol=BTCUSDT", "")
	b := decodeBody(t, rec)
	require.Equal(t, http.StatusOK, b.Status)
	var price struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
	}
	require.NoError(t, json.Unmarshal(b.Data, &price))
	assert.Greater(t, price.Price, 0.0)

	rec = env.do(http.MethodGet, "/api/feeds/"+id+"/orderbook?symbol=BTCUSDT", "")
	b = decodeBody(t, rec)
	require.Equal(t, http.StatusOK, b.Status)
	var book models.OrderBookSnapshot
	require.NoError(t, json.Unmarshal(b.Data, &book))
	require.NotEmpty(t, book.Bids)
	require.NotEmpty(t, book.Asks)
	assert.Less(t, book.Bids[0].Price, book.Asks[0].Price)

	// unknown symbol is a client error
	rec = env.do(http.MethodGet, "/api/feeds/"+id+"/price?symbol=NOPE", "")
	b = decodeBody(t, rec)
	assert.Equal(t, http.StatusBadRequest, b.Status)
}

func TestSetSpeedClamps(t *testing.T) {
	env := newAPIEnv(t)
	id := env.createFeed(t)

	rec := env.do(http.MethodPost, fmt.Sprintf("/api/feeds/%s/speed", id), `{"speed":5000}`)
	b := decodeBody(t, rec)
	require.Equal(t, http.StatusOK, b.Status)
	var resp struct {
		Requested float64 `json:"requested"`
		Applied   float64 `json:"applied"`
	}
	require.NoError(t, json.Unmarshal(b.Data, &resp))
	assert.Equal(t, float64(5000), resp.Requested)
	assert.Equal(t, float64(models.MaxReplaySpeed), resp.Applied)
}

func TestInjectAnomalyEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	id := env.createFeed(t)

	f, ok := env.factory.Get(id)
	require.True(t, ok)
	var seen []models.MarketAnomaly
	f.OnAnomaly(func(a models.MarketAnomaly) error {
		seen = append(seen, a)
		return nil
	})

	body := `{"type":"flash_loan","severity":"high","duration_ms":30000,"symbols":["BTCUSDT"]}`
	rec := env.do(http.MethodPost, fmt.Sprintf("/api/feeds/%s/anomalies", id), body)
	b := decodeBody(t, rec)
	require.Equal(t, http.StatusCreated, b.Status)

	require.Len(t, seen, 1)
	assert.Equal(t, models.AnomalyFlashLoan, seen[0].Type)

	// invalid type rejected
	rec = env.do(http.MethodPost, fmt.Sprintf("/api/feeds/%s/anomalies", id), `{"type":"earthquake","symbols":["BTCUSDT"]}`)
	b = decodeBody(t, rec)
	assert.Equal(t, http.StatusBadRequest, b.Status)
}

func TestVolatilityEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	id := env.createFeed(t)

	f, ok := env.factory.Get(id)
	require.True(t, ok)
	// generate some ticks so 1s candles exist
	for i := 0; i < 200; i++ {
		_, err := f.NextTick("BTCUSDT")
		require.NoError(t, err)
	}

	rec := env.do(http.MethodGet, "/api/feeds/"+id+"/volatility?symbol=BTCUSDT&tf=1s&limit=100", "")
	b := decodeBody(t, rec)
	require.Equal(t, http.StatusOK, b.Status)
	var resp struct {
		Volatility float64 `json:"volatility"`
		Window     int     `json:"window"`
	}
	require.NoError(t, json.Unmarshal(b.Data, &resp))
	assert.GreaterOrEqual(t, resp.Volatility, 0.0)
}

func TestHealthEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	rec := env.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
