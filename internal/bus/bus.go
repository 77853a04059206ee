// Package bus fans exchange snapshots out to in-process subscribers.
package bus

import (
	"strings"
	"sync"

	"github.com/DangVuDev/vndc-exchange/pkg/model"
	"github.com/rs/zerolog"
)

const DefaultBuffer = 256

type Topic string

func PairTopic(pairID string) Topic {
	return Topic("pair:" + pairID)
}

func TraderTopic(trader string) Topic {
	return Topic("trader:" + trader)
}

// Kind is the topic family, "pair" or "trader".
func (t Topic) Kind() string {
	kind, _, _ := strings.Cut(string(t), ":")
	return kind
}

// Event is one published snapshot. Seq increases by one per topic.
type Event struct {
	Type  string `json:"type"`
	Topic Topic  `json:"topic"`
	Seq   uint64 `json:"seq"`
	Data  any    `json:"data"`
}

// PairSnapshot is the state of a pair right after a mutation. Trades holds
// only the trades that mutation produced.
type PairSnapshot struct {
	Book   model.OrderBook `json:"book"`
	Ticker model.Ticker    `json:"ticker"`
	Trades []model.Trade   `json:"trades"`
	Reset  bool            `json:"reset,omitempty"`
}

// TraderSnapshot lists the trader's open orders plus any order the mutation
// closed.
type TraderSnapshot struct {
	Trader string        `json:"trader"`
	Orders []model.Order `json:"orders"`
}

type Subscription struct {
	id     uint64
	ch     chan Event
	topics map[Topic]struct{} // nil means every topic
	bus    *Bus
}

// Events is closed when the subscription ends, either through Close or
// because the subscriber fell behind.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Close() {
	s.bus.remove(s.id)
}

func (s *Subscription) wants(t Topic) bool {
	if s.topics == nil {
		return true
	}
	_, ok := s.topics[t]
	return ok
}

type Bus struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	seq    map[Topic]uint64
	nextID uint64
	buffer int
	closed bool
	logger zerolog.Logger
}

func New(buffer int, logger zerolog.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		subs:   make(map[uint64]*Subscription),
		seq:    make(map[Topic]uint64),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe with no topics receives every event.
func (b *Bus) Subscribe(topics ...Topic) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{id: b.nextID, ch: make(chan Event, b.buffer), bus: b}
	if len(topics) > 0 {
		sub.topics = make(map[Topic]struct{}, len(topics))
		for _, t := range topics {
			sub.topics[t] = struct{}{}
		}
	}
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Publish never blocks. A subscriber whose buffer is full is dropped and its
// channel closed.
func (b *Bus) Publish(topic Topic, data any) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq[topic]++
	ev := Event{Type: topic.Kind(), Topic: topic, Seq: b.seq[topic], Data: data}
	if b.closed {
		return ev
	}
	for id, sub := range b.subs {
		if !sub.wants(topic) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			delete(b.subs, id)
			close(sub.ch)
			b.logger.Warn().Uint64("subscriber", id).Str("topic", string(topic)).Msg("dropping slow subscriber")
		}
	}
	return ev
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}

func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription. Later publishes are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
