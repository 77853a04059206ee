package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DangVuDev/vndc-exchange/internal/bus"
	"github.com/DangVuDev/vndc-exchange/internal/engine"
	"github.com/DangVuDev/vndc-exchange/internal/market"
	orderRepository "github.com/DangVuDev/vndc-exchange/internal/repository/order"
	"github.com/DangVuDev/vndc-exchange/internal/tape"
	"github.com/DangVuDev/vndc-exchange/pkg/model"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type Exchange interface {
	PlaceOrder(ctx context.Context, in PlaceOrderInput) (model.Order, error)
	CancelOrder(ctx context.Context, orderID model.OrderId) bool
	Reset(ctx context.Context) error
	Close()
	AttachGenerator(g Generator)

	GetOrderBook(pairID string) (model.OrderBook, error)
	GetOrderBookDepth(pairID string, levels int) (model.OrderBook, error)
	GetTicker(pairID string) (model.Ticker, error)
	GetAllTickers() map[string]model.Ticker
	GetRecentTrades(pairID string, limit int) ([]model.Trade, error)
	GetCandles(pairID, timeframe string) ([]model.Candle, error)
	GetCandleSeries(pairID, timeframe string, from, to time.Time) ([]model.Candle, error)
	GetOrder(orderID model.OrderId) (model.Order, bool)
	GetUserOrders(trader string) []model.Order
	GetUserOpenOrders(trader string) []model.Order
	GetUserClosedOrders(trader string) []model.Order
	GetPairOrders(pairID string) ([]model.Order, error)

	Pairs() []model.TradingPair
	Timeframes() []model.Timeframe
	Subscribe(topics ...bus.Topic) *bus.Subscription
}

// Generator is a source of synthetic activity that reset has to restart.
// Stop must wait for any in-flight tick to finish.
type Generator interface {
	Stop()
	Restart()
}

type PlaceOrderInput struct {
	PairID string
	Trader string
	Side   model.Side
	Type   model.OrderType
	Price  decimal.Decimal // ignored for market orders
	Amount decimal.Decimal
}

type ExchangeOpts struct {
	Pairs         []model.TradingPair
	Timeframes    []model.Timeframe
	Clock         func() time.Time
	TapeCapacity  int
	CandleHistory int
	BusBuffer     int
	Logger        zerolog.Logger
}

type pairState struct {
	pair    model.TradingPair
	book    engine.OrderBookEngine
	tape    *tape.Tape
	candles *market.Aggregator
}

// exchangeImpl owns all engine state. Every mutation holds mu for writing
// from validation until its snapshots are published, so readers and
// subscribers only ever see state between mutations.
type exchangeImpl struct {
	mu sync.RWMutex

	pairs      []model.TradingPair
	timeframes []model.Timeframe
	state      map[string]*pairState
	orders     orderRepository.OrderRepository
	bus        *bus.Bus

	clock    func() time.Time
	lastNow  time.Time
	orderSeq uint64

	generator Generator
	closed    bool
	logger    zerolog.Logger
}

func NewExchange(opts ExchangeOpts) Exchange {
	if len(opts.Pairs) == 0 {
		opts.Pairs = model.Pairs()
	}
	if len(opts.Timeframes) == 0 {
		opts.Timeframes = model.Timeframes()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	ex := &exchangeImpl{
		pairs:      opts.Pairs,
		timeframes: opts.Timeframes,
		state:      make(map[string]*pairState, len(opts.Pairs)),
		orders:     orderRepository.NewOrderRepository(),
		bus:        bus.New(opts.BusBuffer, opts.Logger),
		clock:      opts.Clock,
		logger:     opts.Logger,
	}
	for _, p := range opts.Pairs {
		ex.state[p.ID] = &pairState{
			pair:    p,
			book:    engine.NewOrderBookEngine(p.ID, opts.Logger),
			tape:    tape.New(p.ID, opts.TapeCapacity),
			candles: market.NewAggregator(opts.Timeframes, opts.CandleHistory),
		}
	}
	return ex
}

// now never goes backwards. Callers hold mu for writing.
func (ex *exchangeImpl) now() time.Time {
	t := ex.clock()
	if t.Before(ex.lastNow) {
		t = ex.lastNow
	}
	ex.lastNow = t
	return t
}

// readNow is now for readers holding only the read lock.
func (ex *exchangeImpl) readNow() time.Time {
	t := ex.clock()
	if t.Before(ex.lastNow) {
		return ex.lastNow
	}
	return t
}

func (ex *exchangeImpl) AttachGenerator(g Generator) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.generator = g
}

// PlaceOrder validates, matches and records an order. A rejected order
// leaves no trace in the exchange.
func (ex *exchangeImpl) PlaceOrder(ctx context.Context, in PlaceOrderInput) (model.Order, error) {
	if err := ctx.Err(); err != nil {
		return model.Order{}, err
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()

	if ex.closed {
		return model.Order{}, ErrClosed
	}
	state, err := ex.validate(in)
	if err != nil {
		return model.Order{}, err
	}

	now := ex.now()
	ex.orderSeq++
	id := model.OrderId(fmt.Sprintf("ORD-%08d", ex.orderSeq))
	order := model.NewOrder(id, in.PairID, in.Trader, in.Side, in.Type, in.Price, in.Amount, now)

	result, err := state.book.Match(&order, now)
	if err != nil {
		return model.Order{}, fmt.Errorf("match order %s: %w", id, err)
	}
	if err := ex.orders.CreateOrder(&order); err != nil {
		return model.Order{}, fmt.Errorf("register order %s: %w", id, err)
	}
	for _, maker := range result.Makers {
		ex.orders.Refresh(maker)
	}

	trades := make([]model.Trade, 0, len(result.Trades))
	for _, tr := range result.Trades {
		state.tape.Append(tr)
		state.candles.Add(tr)
		trades = append(trades, *tr)
	}

	ex.publishPair(state, trades, false)
	changed := make(map[string][]*model.Order, 1+len(result.Makers))
	changed[order.Trader] = append(changed[order.Trader], &order)
	for _, maker := range result.Makers {
		changed[maker.Trader] = append(changed[maker.Trader], maker)
	}
	for trader, orders := range changed {
		ex.publishTrader(trader, orders)
	}

	ex.logger.Debug().
		Str("pair", in.PairID).
		Str("order_id", string(id)).
		Str("trader", in.Trader).
		Stringer("side", in.Side).
		Stringer("type", in.Type).
		Stringer("status", order.Status).
		Int("trades", len(trades)).
		Msg("order placed")
	return order, nil
}

// CancelOrder returns false when the order is unknown or already terminal.
func (ex *exchangeImpl) CancelOrder(ctx context.Context, orderID model.OrderId) bool {
	if ctx.Err() != nil {
		return false
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()

	if ex.closed {
		return false
	}
	order, ok := ex.orders.GetOrderByID(orderID)
	if !ok || !order.IsActive() {
		return false
	}
	state := ex.state[order.PairID]
	if _, ok := state.book.Cancel(orderID, ex.now()); !ok {
		return false
	}
	ex.orders.Refresh(order)

	ex.publishPair(state, nil, false)
	ex.publishTrader(order.Trader, []*model.Order{order})
	ex.logger.Debug().Str("pair", order.PairID).Str("order_id", string(orderID)).Msg("order cancelled")
	return true
}

// Reset clears every pair back to its seed state. The generator is stopped
// before the lock is taken, since an in-flight tick may be waiting on it, and
// restarted once the cleared state is visible.
func (ex *exchangeImpl) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ex.mu.RLock()
	g, closed := ex.generator, ex.closed
	ex.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if g != nil {
		g.Stop()
	}

	ex.mu.Lock()
	traders := ex.orders.Traders()
	ex.orders.Reset()
	for _, p := range ex.pairs {
		state := ex.state[p.ID]
		state.book.Initialize()
		state.tape.Reset()
		state.candles.Reset()
	}
	for _, p := range ex.pairs {
		ex.publishPair(ex.state[p.ID], nil, true)
	}
	for _, trader := range traders {
		ex.publishTrader(trader, nil)
	}
	ex.mu.Unlock()

	ex.logger.Info().Int("pairs", len(ex.pairs)).Int("traders", len(traders)).Msg("exchange reset")
	if g != nil {
		g.Restart()
	}
	return nil
}

// Close stops the generator and ends every subscription. Later mutations
// fail with ErrClosed; reads keep working on the final state.
func (ex *exchangeImpl) Close() {
	ex.mu.RLock()
	g := ex.generator
	ex.mu.RUnlock()
	if g != nil {
		g.Stop()
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.closed {
		return
	}
	ex.closed = true
	ex.bus.Close()
}

func (ex *exchangeImpl) Subscribe(topics ...bus.Topic) *bus.Subscription {
	return ex.bus.Subscribe(topics...)
}

func (ex *exchangeImpl) publishPair(state *pairState, trades []model.Trade, reset bool) {
	if trades == nil {
		trades = []model.Trade{}
	}
	now := ex.readNow()
	ex.bus.Publish(bus.PairTopic(state.pair.ID), bus.PairSnapshot{
		Book:   ex.bookSnapshot(state, 0, now),
		Ticker: market.ComputeTicker(state.pair, state.tape, state.book.GetTopOfBook(), now),
		Trades: trades,
		Reset:  reset,
	})
}

func (ex *exchangeImpl) publishTrader(trader string, changed []*model.Order) {
	orders := ex.orders.ListOrdersByUser(trader, orderRepository.FilterOpen)
	for _, o := range changed {
		if !o.IsActive() {
			orders = append(orders, *o)
		}
	}
	ex.bus.Publish(bus.TraderTopic(trader), bus.TraderSnapshot{Trader: trader, Orders: orders})
}
