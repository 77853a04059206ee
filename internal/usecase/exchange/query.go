package exchange

import (
	"fmt"
	"slices"
	"time"

	"github.com/DangVuDev/vndc-exchange/internal/market"
	orderRepository "github.com/DangVuDev/vndc-exchange/internal/repository/order"
	"github.com/DangVuDev/vndc-exchange/pkg/model"
)

func (ex *exchangeImpl) lookup(pairID string) (*pairState, error) {
	state, ok := ex.state[pairID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPair, pairID)
	}
	return state, nil
}

func (ex *exchangeImpl) bookSnapshot(state *pairState, levels int, now time.Time) model.OrderBook {
	book := state.book.GetMarketDepth(levels)
	book.Timestamp = now.UnixMilli()
	return *book
}

func (ex *exchangeImpl) GetOrderBook(pairID string) (model.OrderBook, error) {
	return ex.GetOrderBookDepth(pairID, 0)
}

// GetOrderBookDepth limits each side to levels; levels <= 0 returns the full
// book.
func (ex *exchangeImpl) GetOrderBookDepth(pairID string, levels int) (model.OrderBook, error) {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	state, err := ex.lookup(pairID)
	if err != nil {
		return model.OrderBook{}, err
	}
	return ex.bookSnapshot(state, levels, ex.readNow()), nil
}

// GetTicker is computed on every read from the tape and the current book.
func (ex *exchangeImpl) GetTicker(pairID string) (model.Ticker, error) {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	state, err := ex.lookup(pairID)
	if err != nil {
		return model.Ticker{}, err
	}
	return market.ComputeTicker(state.pair, state.tape, state.book.GetTopOfBook(), ex.readNow()), nil
}

func (ex *exchangeImpl) GetAllTickers() map[string]model.Ticker {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	now := ex.readNow()
	out := make(map[string]model.Ticker, len(ex.state))
	for id, state := range ex.state {
		out[id] = market.ComputeTicker(state.pair, state.tape, state.book.GetTopOfBook(), now)
	}
	return out
}

// GetRecentTrades returns up to limit trades, newest first. limit <= 0
// returns everything on the tape.
func (ex *exchangeImpl) GetRecentTrades(pairID string, limit int) ([]model.Trade, error) {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	state, err := ex.lookup(pairID)
	if err != nil {
		return nil, err
	}
	return state.tape.Recent(limit), nil
}

func (ex *exchangeImpl) series(pairID, timeframe string) (*pairState, *market.Series, error) {
	state, err := ex.lookup(pairID)
	if err != nil {
		return nil, nil, err
	}
	s, ok := state.candles.Series(timeframe)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownTimeframe, timeframe)
	}
	return state, s, nil
}

// GetCandles returns the buckets that saw trades, oldest first.
func (ex *exchangeImpl) GetCandles(pairID, timeframe string) ([]model.Candle, error) {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	_, s, err := ex.series(pairID, timeframe)
	if err != nil {
		return nil, err
	}
	return s.Candles(), nil
}

// GetCandleSeries returns a continuous series between from and to with empty
// buckets flat at the previous close. Zero from starts at the first trade,
// zero to ends at the current bucket.
func (ex *exchangeImpl) GetCandleSeries(pairID, timeframe string, from, to time.Time) ([]model.Candle, error) {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	state, s, err := ex.series(pairID, timeframe)
	if err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = ex.readNow()
	}
	candles := s.Candles()
	if from.IsZero() && len(candles) == 0 {
		return []model.Candle{}, nil
	}
	return market.FillGaps(candles, s.Timeframe(), from, to, state.pair.SeedPrice, market.DefaultHistory), nil
}

func (ex *exchangeImpl) GetOrder(orderID model.OrderId) (model.Order, bool) {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	o, ok := ex.orders.GetOrderByID(orderID)
	if !ok {
		return model.Order{}, false
	}
	return *o, true
}

// GetUserOrders returns every order of the trader, newest first.
func (ex *exchangeImpl) GetUserOrders(trader string) []model.Order {
	return ex.userOrders(trader, orderRepository.FilterAll)
}

func (ex *exchangeImpl) GetUserOpenOrders(trader string) []model.Order {
	return ex.userOrders(trader, orderRepository.FilterOpen)
}

func (ex *exchangeImpl) GetUserClosedOrders(trader string) []model.Order {
	return ex.userOrders(trader, orderRepository.FilterClosed)
}

func (ex *exchangeImpl) userOrders(trader string, filter orderRepository.Filter) []model.Order {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.orders.ListOrdersByUser(trader, filter)
}

func (ex *exchangeImpl) GetPairOrders(pairID string) ([]model.Order, error) {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	if _, err := ex.lookup(pairID); err != nil {
		return nil, err
	}
	return ex.orders.ListOrdersByPair(pairID, orderRepository.FilterAll), nil
}

func (ex *exchangeImpl) Pairs() []model.TradingPair {
	return slices.Clone(ex.pairs)
}

func (ex *exchangeImpl) Timeframes() []model.Timeframe {
	return slices.Clone(ex.timeframes)
}
