package signalws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/careerlab/overseer/internal/app"
	"github.com/careerlab/overseer/internal/signal"
)

func newTestServer(t *testing.T) (string, *app.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := app.NewRegistry(false, nil)
	rl := app.NewRelay(reg, nil)
	reg.Subscribe(rl.NotifyPresence)
	ctl := NewController(reg, rl, nil, 32768)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		ctl.HandleSignal(context.Background(), c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", reg
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func TestConnectionGetsHello(t *testing.T) {
	url, _ := newTestServer(t)
	conn := dial(t, url)

	hello := readMsg(t, conn)
	require.Equal(t, "hello", hello["type"])
	require.NotEmpty(t, hello["handle"])
}

func TestRegisterAndDisconnectFlipPresence(t *testing.T) {
	url, reg := newTestServer(t)

	agent := dial(t, url)
	readMsg(t, agent) // hello
	send(t, agent, signal.Register{Type: signal.TypeRegister, Identity: "EMP-1"})

	require.Eventually(t, func() bool {
		return reg.IsOnline("EMP-1")
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, agent.Close())
	require.Eventually(t, func() bool {
		return !reg.IsOnline("EMP-1")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRequestConnectionReachesAgent(t *testing.T) {
	url, reg := newTestServer(t)

	agent := dial(t, url)
	readMsg(t, agent) // hello
	send(t, agent, signal.Register{Type: signal.TypeRegister, Identity: "EMP-1"})
	require.Eventually(t, func() bool { return reg.IsOnline("EMP-1") }, 2*time.Second, 10*time.Millisecond)

	observer := dial(t, url)
	obsHello := readMsg(t, observer)
	send(t, observer, signal.RequestConnection{Type: signal.TypeRequestConnection, Target: "EMP-1"})

	req := readMsg(t, agent)
	require.Equal(t, "request-offer", req["type"])
	require.Equal(t, obsHello["handle"], req["observer"])
}

func TestOfferFlowsToWatcher(t *testing.T) {
	url, reg := newTestServer(t)

	agent := dial(t, url)
	readMsg(t, agent)
	send(t, agent, signal.Register{Type: signal.TypeRegister, Identity: "EMP-1"})
	require.Eventually(t, func() bool { return reg.IsOnline("EMP-1") }, 2*time.Second, 10*time.Millisecond)

	observer := dial(t, url)
	readMsg(t, observer)
	send(t, observer, signal.RequestConnection{Type: signal.TypeRequestConnection, Target: "EMP-1"})
	readMsg(t, agent) // request-offer

	send(t, agent, signal.Offer{Type: signal.TypeOffer, Target: "EMP-1", SDP: "v=0 test"})

	offer := readMsg(t, observer)
	require.Equal(t, "offer", offer["type"])
	require.Equal(t, "EMP-1", offer["target"])
	require.Equal(t, "v=0 test", offer["sdp"])
}

func TestCheckStatusAnswersPointQuery(t *testing.T) {
	url, _ := newTestServer(t)

	observer := dial(t, url)
	readMsg(t, observer)
	send(t, observer, signal.CheckStatus{Type: signal.TypeCheckStatus, Identity: "EMP-9"})

	st := readMsg(t, observer)
	require.Equal(t, "status", st["type"])
	require.Equal(t, "EMP-9", st["identity"])
	require.Equal(t, false, st["online"])
}

func TestPingPong(t *testing.T) {
	url, _ := newTestServer(t)

	conn := dial(t, url)
	readMsg(t, conn)
	send(t, conn, signal.Ping{Type: signal.TypePing})
	pong := readMsg(t, conn)
	require.Equal(t, "pong", pong["type"])
}
