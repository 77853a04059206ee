package order

import (
	"errors"
	"fmt"
	"slices"

	"github.com/DangVuDev/vndc-exchange/pkg/model"
)

var ErrDuplicateOrder = errors.New("order already exists")

// Filter selects the Open (resting) or Closed partition of the registry.
type Filter uint8

const (
	FilterAll Filter = iota
	FilterOpen
	FilterClosed
)

// --- Repository Interface ---
type OrderRepository interface {
	CreateOrder(order *model.Order) error
	// Refresh moves an order between the Open and Closed partitions after the
	// engine changed its status.
	Refresh(order *model.Order)
	GetOrderByID(orderID model.OrderId) (*model.Order, bool)
	ListOrdersByUser(trader string, filter Filter) []model.Order
	ListOrdersByPair(pairID string, filter Filter) []model.Order
	Traders() []string
	Len() int
	Reset()
}

// --- Implementation ---

type entry struct {
	order *model.Order
	seq   uint64
}

// openSet holds the resting orders of one trader or pair.
type openSet map[model.OrderId]entry

func (s openSet) sorted() []model.Order {
	entries := make([]entry, 0, len(s))
	for _, e := range s {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b entry) int {
		switch {
		case a.seq > b.seq:
			return -1
		case a.seq < b.seq:
			return 1
		default:
			return 0
		}
	})
	out := make([]model.Order, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e.order)
	}
	return out
}

// orderRepositoryImpl keeps every order ever placed. It stores the live
// pointers the matching engine mutates and hands out copies, newest first.
// Resting orders are also indexed on their own so the Open partition costs
// O(open) regardless of history. Callers serialize access.
type orderRepositoryImpl struct {
	byID   map[model.OrderId]entry
	byUser map[string][]*model.Order
	byPair map[string][]*model.Order

	openByUser map[string]openSet
	openByPair map[string]openSet
	seq        uint64
}

func NewOrderRepository() OrderRepository {
	r := &orderRepositoryImpl{}
	r.Reset()
	return r
}

func (r *orderRepositoryImpl) CreateOrder(order *model.Order) error {
	if _, ok := r.byID[order.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, order.ID)
	}
	r.seq++
	r.byID[order.ID] = entry{order: order, seq: r.seq}
	r.byUser[order.Trader] = append(r.byUser[order.Trader], order)
	r.byPair[order.PairID] = append(r.byPair[order.PairID], order)
	r.Refresh(order)
	return nil
}

func (r *orderRepositoryImpl) Refresh(order *model.Order) {
	e, ok := r.byID[order.ID]
	if !ok {
		return
	}
	if e.order.IsActive() {
		index(r.openByUser, e.order.Trader)[e.order.ID] = e
		index(r.openByPair, e.order.PairID)[e.order.ID] = e
		return
	}
	unindex(r.openByUser, e.order.Trader, e.order.ID)
	unindex(r.openByPair, e.order.PairID, e.order.ID)
}

func index(sets map[string]openSet, key string) openSet {
	s, ok := sets[key]
	if !ok {
		s = make(openSet)
		sets[key] = s
	}
	return s
}

func unindex(sets map[string]openSet, key string, id model.OrderId) {
	s, ok := sets[key]
	if !ok {
		return
	}
	delete(s, id)
	if len(s) == 0 {
		delete(sets, key)
	}
}

// GetOrderByID returns the live order. Only the exchange mutates it.
func (r *orderRepositoryImpl) GetOrderByID(orderID model.OrderId) (*model.Order, bool) {
	e, ok := r.byID[orderID]
	return e.order, ok
}

func (r *orderRepositoryImpl) ListOrdersByUser(trader string, filter Filter) []model.Order {
	if filter == FilterOpen {
		return r.openByUser[trader].sorted()
	}
	return r.history(r.byUser[trader], r.openByUser[trader], filter)
}

func (r *orderRepositoryImpl) ListOrdersByPair(pairID string, filter Filter) []model.Order {
	if filter == FilterOpen {
		return r.openByPair[pairID].sorted()
	}
	return r.history(r.byPair[pairID], r.openByPair[pairID], filter)
}

func (r *orderRepositoryImpl) history(orders []*model.Order, open openSet, filter Filter) []model.Order {
	out := make([]model.Order, 0, len(orders))
	for _, o := range slices.Backward(orders) {
		if filter == FilterClosed {
			if _, ok := open[o.ID]; ok {
				continue
			}
		}
		out = append(out, *o)
	}
	return out
}

// Traders lists every trader that has placed an order, sorted.
func (r *orderRepositoryImpl) Traders() []string {
	out := make([]string, 0, len(r.byUser))
	for trader := range r.byUser {
		out = append(out, trader)
	}
	slices.Sort(out)
	return out
}

func (r *orderRepositoryImpl) Len() int {
	return len(r.byID)
}

func (r *orderRepositoryImpl) Reset() {
	r.byID = make(map[model.OrderId]entry)
	r.byUser = make(map[string][]*model.Order)
	r.byPair = make(map[string][]*model.Order)
	r.openByUser = make(map[string]openSet)
	r.openByPair = make(map[string]openSet)
	r.seq = 0
}
