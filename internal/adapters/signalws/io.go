package signalws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/careerlab/overseer/internal/signal"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signalws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signalws").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump owns the connection lifecycle: on exit the binding is torn
// down (a no-op if this handle was already superseded) and the handle
// leaves every watcher set.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signalws").Str("handle", string(c.id)).Msg("readPump closing")
		ctl.Registry.Unregister(c)
		ctl.Relay.DropWatcher(c)
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signalws").Str("handle", string(c.id)).Msg("readPump read error")
				return
			}
			ctl.dispatch(c, data)
		}
	}
}

func (ctl *Controller) dispatch(c *wsConn, data []byte) {
	var env signal.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signalws").Msg("bad json")
		return
	}
	ctl.Metrics.IncSignalMessage(string(env.Type))

	switch env.Type {
	case signal.TypeRegister:
		ctl.handleRegister(c, data)
	case signal.TypeRequestConnection:
		ctl.handleRequestConnection(c, data)
	case signal.TypeOffer:
		ctl.handleOffer(c, data)
	case signal.TypeAnswer:
		ctl.handleAnswer(c, data)
	case signal.TypeCandidate:
		ctl.handleCandidate(c, data)
	case signal.TypeCheckStatus:
		ctl.handleCheckStatus(c, data)
	case signal.TypePing:
		ctl.sendJSON(c, signal.Ping{Type: signal.TypePong})
	default:
		log.Warn().Str("module", "signalws").Str("type", string(env.Type)).Msg("unknown signal")
	}
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	if err := c.TrySend(signal.Marshal(v)); err != nil {
		log.Warn().Err(err).Str("module", "signalws").Str("handle", string(c.id)).Msg("send dropped")
	}
}
