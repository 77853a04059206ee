package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DangVuDev/vndc-exchange/internal/bus"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, w, r)
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(msg, &out))
	return out
}

func TestHub_QueryTopicsAndPublish(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url+"?topics=pair:VNDC_ETH")

	msg := readJSON(t, conn)
	assert.Equal(t, "subscribed", msg["type"])
	assert.Equal(t, "pair:VNDC_ETH", msg["topic"])

	hub.Publish(bus.Event{Type: "pair", Topic: bus.PairTopic("ETH_USDT"), Seq: 1, Data: "other"})
	hub.Publish(bus.Event{Type: "pair", Topic: bus.PairTopic("VNDC_ETH"), Seq: 7, Data: "hello"})

	msg = readJSON(t, conn)
	assert.Equal(t, "pair", msg["type"])
	assert.Equal(t, "pair:VNDC_ETH", msg["topic"])
	assert.Equal(t, float64(7), msg["seq"])
	assert.Equal(t, "hello", msg["data"])

	clients, _ := hub.Stats()
	assert.Equal(t, 1, clients)
}

func TestHub_SubscribeUnsubscribeCommands(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(command{Type: "subscribe", Topic: "trader:alice"}))
	msg := readJSON(t, conn)
	assert.Equal(t, "subscribed", msg["type"])

	hub.Publish(bus.Event{Type: "trader", Topic: bus.TraderTopic("alice"), Seq: 1, Data: 1})
	msg = readJSON(t, conn)
	assert.Equal(t, "trader:alice", msg["topic"])

	require.NoError(t, conn.WriteJSON(command{Type: "unsubscribe", Topic: "trader:alice"}))
	msg = readJSON(t, conn)
	assert.Equal(t, "unsubscribed", msg["type"])

	hub.Publish(bus.Event{Type: "trader", Topic: bus.TraderTopic("alice"), Seq: 2, Data: 2})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "nothing after unsubscribe")
}

func TestHub_BridgeFromBus(t *testing.T) {
	hub, url := newTestHub(t)
	b := bus.New(16, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Bridge(ctx, b.Subscribe())

	conn := dial(t, url+"?topics=pair:VNDC_ETH")
	readJSON(t, conn)

	b.Publish(bus.PairTopic("VNDC_ETH"), bus.PairSnapshot{Reset: true})
	msg := readJSON(t, conn)
	assert.Equal(t, "pair", msg["type"])
	assert.Equal(t, float64(1), msg["seq"])
	data, ok := msg["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["reset"])
}
