// Package client is the reference client of the signaling channel,
// shared by the agent and observer binaries. It mirrors the server's
// pump structure: a buffered write channel and a read loop dispatching
// on the JSON type field.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/careerlab/overseer/internal/domain"
	"github.com/careerlab/overseer/internal/signal"
)

var ErrBackpressure = errors.New("backpressure")

// Handlers fire from the read loop; nil entries are skipped.
type Handlers struct {
	OnHello        func(handle string)
	OnRequestOffer func(observer string)
	OnOffer        func(msg signal.Offer)
	OnAnswer       func(msg signal.Answer)
	OnCandidate    func(msg signal.Candidate)
	OnStatus       func(identity string, online bool)
}

type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	handlers Handlers

	mu     sync.RWMutex
	handle string
	closed bool
	once   sync.Once
}

func Dial(ctx context.Context, url string, h Handlers) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn:     conn,
		send:     make(chan []byte, 32),
		handlers: h,
	}, nil
}

// Handle is the server-assigned connection handle, empty until the
// hello message arrives.
func (c *Client) Handle() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handle
}

func (c *Client) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		_ = c.conn.Close()
	})
}

// Run pumps both directions until the connection drops or ctx is
// cancelled. It always returns with the connection closed.
func (c *Client) Run(ctx context.Context) error {
	defer c.Close()
	go c.writePump(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return err
			}
			c.dispatch(data)
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "client").Msg("write error")
				return
			}
		}
	}
}

func (c *Client) dispatch(data []byte) {
	var env signal.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad json")
		return
	}

	switch env.Type {
	case signal.TypeHello:
		var p signal.Hello
		if json.Unmarshal(data, &p) == nil {
			c.mu.Lock()
			c.handle = p.Handle
			c.mu.Unlock()
			if c.handlers.OnHello != nil {
				c.handlers.OnHello(p.Handle)
			}
		}
	case signal.TypeRequestOffer:
		var p signal.RequestOffer
		if json.Unmarshal(data, &p) == nil && c.handlers.OnRequestOffer != nil {
			c.handlers.OnRequestOffer(p.Observer)
		}
	case signal.TypeOffer:
		var p signal.Offer
		if json.Unmarshal(data, &p) == nil && c.handlers.OnOffer != nil {
			c.handlers.OnOffer(p)
		}
	case signal.TypeAnswer:
		var p signal.Answer
		if json.Unmarshal(data, &p) == nil && c.handlers.OnAnswer != nil {
			c.handlers.OnAnswer(p)
		}
	case signal.TypeCandidate:
		var p signal.Candidate
		if json.Unmarshal(data, &p) == nil && c.handlers.OnCandidate != nil {
			c.handlers.OnCandidate(p)
		}
	case signal.TypeStatus:
		var p signal.Status
		if json.Unmarshal(data, &p) == nil && c.handlers.OnStatus != nil {
			c.handlers.OnStatus(p.Identity, p.Online)
		}
	case signal.TypePong:
	default:
		log.Warn().Str("module", "client").Str("type", string(env.Type)).Msg("unknown signal")
	}
}

func (c *Client) trySend(v any) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- signal.Marshal(v):
		return nil
	default:
		return ErrBackpressure
	}
}

// Register announces the monitored identity for this connection.
func (c *Client) Register(identity domain.Identity) error {
	return c.trySend(signal.Register{Type: signal.TypeRegister, Identity: string(identity)})
}

// SendRequest implements negotiator.SignalSender.
func (c *Client) SendRequest(target domain.Identity) error {
	return c.trySend(signal.RequestConnection{Type: signal.TypeRequestConnection, Target: string(target)})
}

// SendAnswer implements negotiator.SignalSender.
func (c *Client) SendAnswer(target domain.Identity, sdp string) error {
	return c.trySend(signal.Answer{Type: signal.TypeAnswer, Target: string(target), SDP: sdp})
}

// SendCandidate implements negotiator.SignalSender. The agent uses it
// too, with its own identity as target; the relay routes by direction.
func (c *Client) SendCandidate(target domain.Identity, ci webrtc.ICECandidateInit) error {
	return c.trySend(signal.Candidate{
		Type:          signal.TypeCandidate,
		Target:        string(target),
		Candidate:     ci.Candidate,
		SDPMid:        ci.SDPMid,
		SDPMLineIndex: ci.SDPMLineIndex,
	})
}

// SendOffer publishes a fresh offer for the agent's identity, tagged
// with the observer it was produced for.
func (c *Client) SendOffer(identity domain.Identity, observer string, sdp string) error {
	return c.trySend(signal.Offer{Type: signal.TypeOffer, Target: string(identity), Observer: observer, SDP: sdp})
}

// CheckStatus asks for a one-shot presence answer for identity.
func (c *Client) CheckStatus(identity domain.Identity) error {
	return c.trySend(signal.CheckStatus{Type: signal.TypeCheckStatus, Identity: string(identity)})
}

// Ping keeps the connection warm through idle proxies.
func (c *Client) Ping() error {
	return c.trySend(signal.Ping{Type: signal.TypePing})
}
