// Package tape keeps the executed trades of one pair in a bounded ring.
package tape

import (
	"fmt"
	"time"

	"github.com/DangVuDev/vndc-exchange/pkg/model"
)

const DefaultCapacity = 5000

// Tape is an append-only ring of trades ordered by Seq. Once full, the oldest
// trade is overwritten. Tape is not safe for concurrent use; the exchange
// serializes access.
type Tape struct {
	pairID string
	buf    []*model.Trade
	head   int // index of the oldest trade
	size   int
	seq    uint64
}

func New(pairID string, capacity int) *Tape {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tape{pairID: pairID, buf: make([]*model.Trade, capacity)}
}

// Append stamps the trade with the next sequence number and its ID, then
// stores it.
func (t *Tape) Append(trade *model.Trade) *model.Trade {
	t.seq++
	trade.Seq = t.seq
	trade.ID = model.TradeId(fmt.Sprintf("T-%s-%d", t.pairID, t.seq))

	idx := (t.head + t.size) % len(t.buf)
	t.buf[idx] = trade
	if t.size < len(t.buf) {
		t.size++
	} else {
		t.head = (t.head + 1) % len(t.buf)
	}
	return trade
}

func (t *Tape) Len() int {
	return t.size
}

func (t *Tape) Cap() int {
	return len(t.buf)
}

func (t *Tape) at(i int) *model.Trade {
	return t.buf[(t.head+i)%len(t.buf)]
}

// Last returns the newest trade.
func (t *Tape) Last() (*model.Trade, bool) {
	if t.size == 0 {
		return nil, false
	}
	return t.at(t.size - 1), true
}

// Recent returns up to limit trades, newest first.
func (t *Tape) Recent(limit int) []model.Trade {
	if limit <= 0 || limit > t.size {
		limit = t.size
	}
	out := make([]model.Trade, 0, limit)
	for i := t.size - 1; i >= t.size-limit; i-- {
		out = append(out, *t.at(i))
	}
	return out
}

// firstAtOrAfter is the index of the oldest trade with Timestamp >= from.
// Timestamps are non-decreasing along the ring.
func (t *Tape) firstAtOrAfter(from time.Time) int {
	lo, hi := 0, t.size
	for lo < hi {
		mid := (lo + hi) / 2
		if t.at(mid).Timestamp.Before(from) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Since returns trades with Timestamp >= from, oldest first.
func (t *Tape) Since(from time.Time) []*model.Trade {
	start := t.firstAtOrAfter(from)
	out := make([]*model.Trade, 0, t.size-start)
	for i := start; i < t.size; i++ {
		out = append(out, t.at(i))
	}
	return out
}

// LastBefore returns the newest trade strictly before at.
func (t *Tape) LastBefore(at time.Time) (*model.Trade, bool) {
	idx := t.firstAtOrAfter(at)
	if idx == 0 {
		return nil, false
	}
	return t.at(idx - 1), true
}

// All returns every stored trade, oldest first.
func (t *Tape) All() []*model.Trade {
	out := make([]*model.Trade, 0, t.size)
	for i := 0; i < t.size; i++ {
		out = append(out, t.at(i))
	}
	return out
}

// Reset empties the tape and restarts sequence numbering.
func (t *Tape) Reset() {
	clear(t.buf)
	t.head, t.size, t.seq = 0, 0, 0
}
