package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/DangVuDev/vndc-exchange/internal/bus"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait           = 10 * time.Second
	pongWait            = 60 * time.Second
	pingPeriod          = (pongWait * 9) / 10
	maxMessageSize      = 512 * 1024 // 512 KB
	defaultSendBuf      = 256
	defaultPublishBuf   = 4096
	maxConsecutiveDrops = 50
)

// command is what clients send: {"type":"subscribe","topic":"pair:VNDC_ETH"}.
type command struct {
	Type  string `json:"type"` // "subscribe" | "unsubscribe"
	Topic string `json:"topic"`
}

type ack struct {
	Type  string `json:"type"` // "subscribed" | "unsubscribed"
	Topic string `json:"topic"`
}

type publishMsg struct {
	Topic string
	Data  []byte
}

type subscription struct {
	client *Client
	topic  string
	remove bool
}

// Hub manages clients, subscriptions and publishes.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	subscribe  chan subscription
	publish    chan publishMsg
	done       chan struct{} // closed when Run returns

	clients map[*Client]struct{}
	topics  map[string]map[*Client]struct{}

	// Configuration
	sendBuf int

	// simple metrics
	clientCount  int64
	publishDrops uint64

	logger zerolog.Logger
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	subscribed map[string]struct{}

	// consecutive drops counter: if it grows too large we evict the client
	drops int
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subscription),
		publish:    make(chan publishMsg, defaultPublishBuf),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		topics:     make(map[string]map[*Client]struct{}),
		sendBuf:    defaultSendBuf,
		logger:     logger.With().Str("component", "ws-hub").Logger(),
	}
}

// Run runs the hub event loop. Call as: go hub.Run(ctx).
// The hub stops when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info().Msg("ws hub started")
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			atomic.AddInt64(&h.clientCount, 1)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}

		case sub := <-h.subscribe:
			if _, ok := h.clients[sub.client]; !ok {
				continue
			}
			if sub.remove {
				h.leave(sub.client, sub.topic)
				h.trySend(sub.client, mustJSON(ack{Type: "unsubscribed", Topic: sub.topic}))
				continue
			}
			subs := h.topics[sub.topic]
			if subs == nil {
				subs = make(map[*Client]struct{})
				h.topics[sub.topic] = subs
			}
			subs[sub.client] = struct{}{}
			sub.client.subscribed[sub.topic] = struct{}{}
			h.trySend(sub.client, mustJSON(ack{Type: "subscribed", Topic: sub.topic}))

		case p := <-h.publish:
			for c := range h.topics[p.Topic] {
				h.trySend(c, p.Data)
			}

		case <-ctx.Done():
			h.logger.Info().Msg("ws hub shutting down")
			// clean up clients
			for c := range h.clients {
				h.drop(c)
				_ = c.conn.Close()
			}
			return
		}
	}
}

// enqueue hands a request to the loop unless it has already stopped.
func enqueue[T any](h *Hub, ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client, topic string) {
	if subs := h.topics[topic]; subs != nil {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	delete(c.subscribed, topic)
}

// drop forgets the client and closes its send channel, which makes the
// write pump send a close frame and exit.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	for t := range c.subscribed {
		h.leave(c, t)
	}
	close(c.send)
	atomic.AddInt64(&h.clientCount, -1)
}

func (h *Hub) trySend(c *Client, data []byte) {
	select {
	case c.send <- data:
		c.drops = 0
	default:
		atomic.AddUint64(&h.publishDrops, 1)
		c.drops++
		if c.drops > maxConsecutiveDrops {
			h.logger.Warn().Int("drops", c.drops).Msg("evicting slow client")
			h.drop(c)
			_ = c.conn.Close()
		}
	}
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// identity is not required to watch public market data
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and registers a client.
// Initial topics can be passed via ?topics=pair:VNDC_ETH,trader:0xabc
func ServeWS(h *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("upgrade failed")
		return
	}

	client := &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, h.sendBuf),
		subscribed: make(map[string]struct{}),
	}

	initial := make([]string, 0)
	if s := r.URL.Query().Get("topics"); s != "" {
		for _, topic := range strings.Split(s, ",") {
			topic = strings.TrimSpace(topic)
			if topic != "" {
				initial = append(initial, topic)
			}
		}
	}

	// register then register subscriptions
	if !enqueue(h, h.register, client) {
		_ = conn.Close()
		return
	}
	for _, topic := range initial {
		enqueue(h, h.subscribe, subscription{client: client, topic: topic})
	}

	// start reader and writer
	go client.writePump()
	go client.readPump()
}

// readPump reads control/command messages from the client
// and turns them into subscribe/unsubscribe requests.
func (c *Client) readPump() {
	defer func() {
		enqueue(c.hub, c.hub.unregister, c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure,
			) {
				c.hub.logger.Debug().Err(err).Msg("read error")
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.hub.logger.Debug().Err(err).Msg("invalid client msg")
			continue
		}
		if cmd.Topic == "" {
			continue
		}

		switch cmd.Type {
		case "subscribe":
			enqueue(c.hub, c.hub.subscribe, subscription{client: c, topic: cmd.Topic})
		case "unsubscribe":
			enqueue(c.hub, c.hub.subscribe, subscription{client: c, topic: cmd.Topic, remove: true})
		default:
			// unknown: ignore or extend protocol
		}
	}
}

// writePump serializes all writes to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish forwards a bus event to the clients subscribed to its topic.
// Non-blocking: if the hub publish buffer is full, the event is dropped.
func (h *Hub) Publish(ev bus.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("topic", string(ev.Topic)).Msg("marshal event")
		return
	}

	select {
	case h.publish <- publishMsg{Topic: string(ev.Topic), Data: b}:
	default:
		// avoid blocking producers; track drops
		atomic.AddUint64(&h.publishDrops, 1)
		h.logger.Warn().Str("topic", string(ev.Topic)).Msg("publish channel full, dropping event")
	}
}

// Bridge pumps a bus subscription into the hub until ctx ends or the
// subscription is closed.
func (h *Hub) Bridge(ctx context.Context, sub *bus.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				h.logger.Warn().Msg("bus subscription closed")
				return
			}
			h.Publish(ev)
		}
	}
}

// Stats returns simple metrics (clients count and publish drops).
func (h *Hub) Stats() (clients int, drops uint64) {
	clients = int(atomic.LoadInt64(&h.clientCount))
	drops = atomic.LoadUint64(&h.publishDrops)
	return
}
