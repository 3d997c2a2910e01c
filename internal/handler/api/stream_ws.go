package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	xhttp "github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/http"
	applogger "github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/logger"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
	wsSendBuffer   = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsEvent struct {
	Kind    string                `json:"kind"` // tick or anomaly
	Tick    *models.Tick          `json:"tick,omitempty"`
	Anomaly *models.MarketAnomaly `json:"anomaly,omitempty"`
}

// streamTicks upgrades to a websocket and relays feed ticks and anomalies
// until the client disconnects. Subscriptions are detached on exit so a slow
// client never stalls the feed loop: events are buffered and dropped when
// the send buffer is full.
func (h *FeedsEchoHandler) streamTicks(c echo.Context) error {
	id, f, err := h.feedByID(c)
	if err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return h.fail("stream_ticks", c, err)
	}
	defer conn.Close()

	send := make(chan wsEvent, wsSendBuffer)
	dropped := 0

	offTick := f.OnTick(func(t models.Tick) error {
		select {
		case send <- wsEvent{Kind: "tick", Tick: &t}:
		default:
			dropped++
		}
		return nil
	})
	defer offTick()

	offAnomaly := f.OnAnomaly(func(a models.MarketAnomaly) error {
		select {
		case send <- wsEvent{Kind: "anomaly", Anomaly: &a}:
		default:
			dropped++
		}
		return nil
	})
	defer offAnomaly()

	h.l.Info("ws stream opened", applogger.String("feed", id), applogger.String("remote", c.RealIP()))

	// Reader goroutine: only to detect client close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case ev := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.l.Debug("ws write failed", applogger.String("feed", id), applogger.Error(err))
				return nil
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-closed:
			h.l.Info("ws stream closed",
				applogger.String("feed", id),
				applogger.Int("dropped", dropped),
			)
			return nil
		case <-c.Request().Context().Done():
			return nil
		}
	}
}
