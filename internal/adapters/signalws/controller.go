// Package signalws is the server end of the signaling channel: one
// WebSocket per client, a buffered write pump, and a JSON type dispatch
// into the presence registry and the relay.
package signalws

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/careerlab/overseer/internal/app"
	"github.com/careerlab/overseer/internal/core"
	"github.com/careerlab/overseer/internal/metrics"
	"github.com/careerlab/overseer/internal/signal"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Registry  *app.Registry
	Relay     *app.Relay
	Metrics   *metrics.Metrics
	ReadLimit int64
}

func NewController(reg *app.Registry, relay *app.Relay, m *metrics.Metrics, readLimit int64) *Controller {
	return &Controller{Registry: reg, Relay: relay, Metrics: m, ReadLimit: readLimit}
}

// wsConn implements core.SignalConnection over one upgraded socket.
// Every connection gets a fresh handle: two tabs of the same browser
// must never share one, or a stale teardown could unbind the newer.
type wsConn struct {
	id   core.HandleID
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) ID() core.HandleID { return c.id }

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := c.GetString("client_token")
	log.Info().Str("module", "signalws").Str("sid", sid).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &wsConn{
		id:   core.HandleID(uuid.NewString()),
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	ctx, cancel := context.WithCancel(ctx)

	ctl.sendJSON(conn, signal.Hello{Type: signal.TypeHello, Handle: string(conn.id)})

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, conn)
}
