// Package marketmaker keeps idle pairs populated with synthetic orders. It
// trades through the same PlaceOrder path as everyone else.
package marketmaker

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/DangVuDev/vndc-exchange/internal/usecase/exchange"
	"github.com/DangVuDev/vndc-exchange/pkg/model"
	"github.com/DangVuDev/vndc-exchange/pkg/util"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Trader is the identity every synthetic order is placed under.
const Trader = "market-maker"

const (
	defaultInterval     = 2 * time.Second
	defaultMaxStepBps   = 50
	defaultLadderLevels = 5
	defaultSpacingBps   = 10
	defaultMarketRatio  = 0.3
	bps                 = 10000
	midExtraPlaces      = 8
)

var ten = decimal.NewFromInt(10)

// Exchange is the part of the control surface the market maker drives.
type Exchange interface {
	PlaceOrder(ctx context.Context, in exchange.PlaceOrderInput) (model.Order, error)
	CancelOrder(ctx context.Context, orderID model.OrderId) bool
	GetOrderBook(pairID string) (model.OrderBook, error)
	GetUserOpenOrders(trader string) []model.Order
	Pairs() []model.TradingPair
}

type MarketMakerOpts struct {
	Exchange     Exchange
	Interval     time.Duration
	Seed         int64
	MaxStepBps   int     // bound of one random-walk step
	LadderLevels int     // resting levels kept on each side
	SpacingBps   int     // distance between ladder levels
	MarketRatio  float64 // share of ticks that send a market order
	Logger       zerolog.Logger
}

type MarketMaker struct {
	ex    Exchange
	opts  MarketMakerOpts
	pairs []model.TradingPair

	mu   sync.Mutex // guards rng and mids, serializes steps
	rng  *rand.Rand
	mids map[string]decimal.Decimal

	runMu  sync.Mutex
	parent context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger zerolog.Logger
}

func NewMarketMaker(opts MarketMakerOpts) *MarketMaker {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.MaxStepBps <= 0 {
		opts.MaxStepBps = defaultMaxStepBps
	}
	if opts.LadderLevels <= 0 {
		opts.LadderLevels = defaultLadderLevels
	}
	if opts.SpacingBps <= 0 {
		opts.SpacingBps = defaultSpacingBps
	}
	if opts.MarketRatio < 0 || opts.MarketRatio > 1 {
		opts.MarketRatio = defaultMarketRatio
	}

	m := &MarketMaker{
		ex:     opts.Exchange,
		opts:   opts,
		pairs:  opts.Exchange.Pairs(),
		logger: opts.Logger.With().Str("component", "market-maker").Logger(),
	}
	m.Reset()
	return m
}

// Reset reseeds the generator and puts every mid back at its seed price.
func (m *MarketMaker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rng = rand.New(rand.NewSource(m.opts.Seed))
	m.mids = make(map[string]decimal.Decimal, len(m.pairs))
	for _, p := range m.pairs {
		m.mids[p.ID] = p.SeedPrice
	}
}

// Mid is the current reference price of a pair, before rounding to a tick.
func (m *MarketMaker) Mid(pairID string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mids[pairID]
}

func (m *MarketMaker) pair(pairID string) (model.TradingPair, bool) {
	return model.FindPair(m.pairs, pairID)
}

// Step runs one tick for a pair: nudge the mid, drop far away quotes, top up
// the ladder and send one random order.
func (m *MarketMaker) Step(ctx context.Context, pairID string) error {
	pair, ok := m.pair(pairID)
	if !ok {
		return exchange.ErrUnknownPair
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mid := quoteMid(pair, m.walk(pair))
	m.cancelStale(ctx, pair, mid)
	if err := m.topUpLadder(ctx, pair, mid); err != nil {
		return err
	}
	return m.randomOrder(ctx, pair, mid)
}

// walk moves the mid by at most MaxStepBps and keeps it within a decade of
// the seed price. The mid keeps sub-tick precision so steps smaller than a
// tick still accumulate in both directions; only quotes are rounded.
func (m *MarketMaker) walk(pair model.TradingPair) decimal.Decimal {
	step := (m.rng.Float64()*2 - 1) * float64(m.opts.MaxStepBps) / bps
	mid := m.mids[pair.ID].Mul(decimal.NewFromFloat(1 + step))
	mid = mid.Round(pair.PricePrecision + midExtraPlaces)
	lo, hi := midBounds(pair)
	mid = util.Clamp(mid, lo, hi)
	m.mids[pair.ID] = mid
	return mid
}

// midBounds is [SeedPrice/10, SeedPrice*10] with the floor raised to a
// whole tick.
func midBounds(pair model.TradingPair) (decimal.Decimal, decimal.Decimal) {
	lo := util.RoundUp(pair.SeedPrice.Div(ten), pair.PricePrecision)
	if lo.LessThan(pair.TickSize()) {
		lo = pair.TickSize()
	}
	return lo, pair.SeedPrice.Mul(ten)
}

// quoteMid is the mid on the pair's price grid.
func quoteMid(pair model.TradingPair, mid decimal.Decimal) decimal.Decimal {
	q := mid.Round(pair.PricePrecision)
	if q.LessThan(pair.TickSize()) {
		return pair.TickSize()
	}
	return q
}

// spacing is the ladder gap, never below one tick.
func (m *MarketMaker) spacing(pair model.TradingPair, mid decimal.Decimal) decimal.Decimal {
	gap := mid.Mul(decimal.NewFromInt(int64(m.opts.SpacingBps))).Div(decimal.NewFromInt(bps))
	gap = gap.Truncate(pair.PricePrecision)
	if gap.LessThan(pair.TickSize()) {
		return pair.TickSize()
	}
	return gap
}

// size picks an amount between 10 and 1000 minimum lots.
func (m *MarketMaker) size(pair model.TradingPair) decimal.Decimal {
	lots := decimal.NewFromInt(int64(10 + m.rng.Intn(991)))
	return util.RoundDown(pair.MinAmount.Mul(lots), pair.AmountPrecision, pair.MinAmount)
}

func (m *MarketMaker) openOrders(pairID string) []model.Order {
	out := make([]model.Order, 0)
	for _, o := range m.ex.GetUserOpenOrders(Trader) {
		if o.PairID == pairID {
			out = append(out, o)
		}
	}
	return out
}

// cancelStale pulls quotes that drifted too far from mid, and the oldest
// quotes once there are more than four ladders worth resting.
func (m *MarketMaker) cancelStale(ctx context.Context, pair model.TradingPair, mid decimal.Decimal) {
	limit := m.spacing(pair, mid).Mul(decimal.NewFromInt(int64(3 * m.opts.LadderLevels)))
	open := m.openOrders(pair.ID)
	maxOpen := 4 * m.opts.LadderLevels
	cancelled := 0
	for i, o := range open {
		tooMany := i >= maxOpen // open is newest first
		if tooMany || o.Price.Sub(mid).Abs().GreaterThan(limit) {
			if m.ex.CancelOrder(ctx, o.ID) {
				cancelled++
			}
		}
	}
	if cancelled > 0 {
		m.logger.Debug().Str("pair", pair.ID).Int("cancelled", cancelled).Msg("stale quotes cancelled")
	}
}

func (m *MarketMaker) topUpLadder(ctx context.Context, pair model.TradingPair, mid decimal.Decimal) error {
	book, err := m.ex.GetOrderBook(pair.ID)
	if err != nil {
		return err
	}
	gap := m.spacing(pair, mid)
	for _, side := range []model.Side{model.BUY, model.SELL} {
		have := len(book.Bids)
		if side == model.SELL {
			have = len(book.Asks)
		}
		for k := have + 1; k <= m.opts.LadderLevels; k++ {
			offset := gap.Mul(decimal.NewFromInt(int64(k)))
			price := mid.Add(offset)
			if side == model.BUY {
				price = mid.Sub(offset)
			}
			if !price.IsPositive() {
				break
			}
			if err := m.place(ctx, pair, side, model.ORDER_LIMIT, price); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MarketMaker) randomOrder(ctx context.Context, pair model.TradingPair, mid decimal.Decimal) error {
	side := model.BUY
	if m.rng.Intn(2) == 1 {
		side = model.SELL
	}
	if m.rng.Float64() < m.opts.MarketRatio {
		return m.place(ctx, pair, side, model.ORDER_MARKET, decimal.Zero)
	}

	// within two gaps of mid, leaning toward the other side so it may cross
	offset := m.spacing(pair, mid).Mul(decimal.NewFromFloat(m.rng.Float64() * 2))
	price := mid.Sub(offset)
	if side == model.BUY {
		price = mid.Add(offset)
	}
	price = util.RoundDown(price, pair.PricePrecision, pair.TickSize())
	return m.place(ctx, pair, side, model.ORDER_LIMIT, price)
}

func (m *MarketMaker) place(ctx context.Context, pair model.TradingPair, side model.Side, orderType model.OrderType, price decimal.Decimal) error {
	_, err := m.ex.PlaceOrder(ctx, exchange.PlaceOrderInput{
		PairID: pair.ID,
		Trader: Trader,
		Side:   side,
		Type:   orderType,
		Price:  price.Truncate(pair.PricePrecision),
		Amount: m.size(pair),
	})
	return err
}

// Start runs one ticker per pair until ctx ends or Stop is called.
func (m *MarketMaker) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	m.parent = ctx
	if m.cancel != nil {
		return
	}
	m.spawn()
}

// spawn needs runMu held.
func (m *MarketMaker) spawn() {
	ctx, cancel := context.WithCancel(m.parent)
	m.cancel = cancel
	for _, p := range m.pairs {
		m.wg.Add(1)
		go m.loop(ctx, p.ID)
	}
	m.logger.Info().Int("pairs", len(m.pairs)).Dur("interval", m.opts.Interval).Msg("market maker started")
}

func (m *MarketMaker) loop(ctx context.Context, pairID string) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := m.Step(ctx, pairID)
			switch {
			case err == nil:
			case errors.Is(err, exchange.ErrClosed), errors.Is(err, context.Canceled):
				return
			default:
				m.logger.Warn().Err(err).Str("pair", pairID).Msg("market maker tick failed")
			}
		}
	}
}

// Stop cancels the timers and waits for in-flight ticks to return.
func (m *MarketMaker) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.cancel = nil
	m.logger.Info().Msg("market maker stopped")
}

// Restart reseeds and starts the timers again if Start was called before and
// its context is still live.
func (m *MarketMaker) Restart() {
	m.Reset()
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel != nil || m.parent == nil || m.parent.Err() != nil {
		return
	}
	m.spawn()
}
