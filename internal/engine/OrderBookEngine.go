package engine

import (
	"fmt"
	"time"

	orderbookModel "github.com/DangVuDev/vndc-exchange/internal/engine/model"
	"github.com/DangVuDev/vndc-exchange/pkg/model"
	"github.com/google/btree"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MatchResult is everything one call to Match changed. Trades carry no ID or
// Seq yet; the tape assigns both on append.
type MatchResult struct {
	Trades []*model.Trade
	Makers []*model.Order // resting orders touched, in fill order
	Rested bool
}

type OrderBookEngine interface {
	Match(order *model.Order, now time.Time) (MatchResult, error)
	Cancel(orderID model.OrderId, now time.Time) (*model.Order, bool)
	Initialize()
	OrderSize() int
	BestBid() (decimal.Decimal, bool)
	BestAsk() (decimal.Decimal, bool)
	GetTopOfBook() *model.TopOfBook
	GetMarketDepth(levels int) *model.OrderBook
}

type priceTree = btree.BTreeG[*orderbookModel.PriceLevel]

type OrderBookEngineImpl struct {
	pairID     string
	bids, asks *priceTree                     // price-level trees
	orders     map[model.OrderId]*model.Order // resting orders by ID
	logger     zerolog.Logger
}

func NewOrderBookEngine(pairID string, logger zerolog.Logger) OrderBookEngine {
	o := &OrderBookEngineImpl{
		pairID: pairID,
		logger: logger.With().Str("pair", pairID).Logger(),
	}
	o.Initialize()
	return o
}

func (o *OrderBookEngineImpl) tree(side model.Side) *priceTree {
	if side == model.BUY {
		return o.bids
	}
	return o.asks
}

// crosses reports whether a limit order may trade against a level price.
func crosses(order *model.Order, levelPrice decimal.Decimal) bool {
	if order.Type == model.ORDER_MARKET {
		return true
	}
	switch order.Side {
	case model.BUY:
		return levelPrice.LessThanOrEqual(order.Price)
	case model.SELL:
		return levelPrice.GreaterThanOrEqual(order.Price)
	default:
		return false
	}
}

// Match walks the opposite side under price-time priority. Every fill trades
// at the resting level's price. A limit order with size left rests on the
// book, a market order drops what it could not fill.
func (o *OrderBookEngineImpl) Match(order *model.Order, now time.Time) (MatchResult, error) {
	result := MatchResult{}
	if _, ok := o.orders[order.ID]; ok {
		return result, fmt.Errorf("order already exist for id %s", order.ID)
	}
	if !order.Side.Valid() || !order.Type.Valid() {
		return result, fmt.Errorf("order %s has invalid side or type", order.ID)
	}
	if !order.Remaining().IsPositive() {
		return result, fmt.Errorf("order %s has nothing left to match", order.ID)
	}

	opposite := o.tree(order.Side.Opposite())
	for order.Remaining().IsPositive() {
		level, ok := opposite.Min()
		if !ok || !crosses(order, level.Price) {
			break
		}

		for order.Remaining().IsPositive() && !level.Empty() {
			maker := level.Front()
			quantity := decimal.Min(order.Remaining(), maker.Remaining())
			if err := maker.Fill(quantity, now); err != nil {
				return result, err
			}
			if err := order.Fill(quantity, now); err != nil {
				return result, err
			}
			level.Reduce(quantity)

			result.Trades = append(result.Trades, &model.Trade{
				PairID:       o.pairID,
				Side:         order.Side,
				Price:        level.Price,
				Amount:       quantity,
				QuoteAmount:  level.Price.Mul(quantity),
				MakerOrderID: maker.ID,
				TakerOrderID: order.ID,
				MakerTrader:  maker.Trader,
				TakerTrader:  order.Trader,
				Timestamp:    now,
			})
			result.Makers = append(result.Makers, maker)

			if maker.IsFilled() {
				level.PopFront()
				delete(o.orders, maker.ID)
			}
		}

		if level.Empty() {
			opposite.Delete(level)
		}
	}

	if order.Remaining().IsPositive() {
		switch order.Type {
		case model.ORDER_LIMIT:
			o.rest(order)
			result.Rested = true
		case model.ORDER_MARKET:
			order.DropRemainder(now)
		}
	}

	o.logger.Debug().
		Str("order_id", string(order.ID)).
		Int("trades", len(result.Trades)).
		Bool("rested", result.Rested).
		Msg("order matched")
	return result, nil
}

func (o *OrderBookEngineImpl) rest(order *model.Order) {
	tree := o.tree(order.Side)
	level, ok := tree.Get(&orderbookModel.PriceLevel{Price: order.Price})
	if !ok {
		level = orderbookModel.NewPriceLevel(order.Price)
		tree.ReplaceOrInsert(level)
	}
	level.Append(order)
	o.orders[order.ID] = order
}

// Cancel pulls a resting order off the book and marks it cancelled. Orders
// not resting here are left untouched.
func (o *OrderBookEngineImpl) Cancel(orderID model.OrderId, now time.Time) (*model.Order, bool) {
	order, exists := o.orders[orderID]
	if !exists {
		return nil, false
	}

	tree := o.tree(order.Side)
	if level, ok := tree.Get(&orderbookModel.PriceLevel{Price: order.Price}); ok {
		level.RemoveOrderByID(order.ID)
		if level.Empty() {
			tree.Delete(level)
		}
	}

	delete(o.orders, orderID)
	order.Cancel(now)
	return order, true
}

// OrderSize is the number of resting orders.
func (o *OrderBookEngineImpl) OrderSize() int {
	return len(o.orders)
}

func (o *OrderBookEngineImpl) BestBid() (decimal.Decimal, bool) {
	if level, ok := o.bids.Min(); ok {
		return level.Price, true
	}
	return decimal.Zero, false
}

func (o *OrderBookEngineImpl) BestAsk() (decimal.Decimal, bool) {
	if level, ok := o.asks.Min(); ok {
		return level.Price, true
	}
	return decimal.Zero, false
}

func collectLevels(tree *priceTree, levels int) []model.BookLevel {
	size := tree.Len()
	if levels > 0 && levels < size {
		size = levels
	}
	out := make([]model.BookLevel, 0, size)
	total := decimal.Zero
	tree.Ascend(func(level *orderbookModel.PriceLevel) bool {
		if levels > 0 && len(out) >= levels {
			return false // Stop iteration
		}
		total = total.Add(level.TotalVolume)
		out = append(out, model.BookLevel{
			Price:      level.Price,
			Amount:     level.TotalVolume,
			Total:      total,
			OrderCount: len(level.Orders),
		})
		return true
	})
	return out
}

// GetMarketDepth returns up to levels price levels per side, best price
// first, with running totals. levels <= 0 means the whole book.
func (o *OrderBookEngineImpl) GetMarketDepth(levels int) *model.OrderBook {
	return &model.OrderBook{
		PairID: o.pairID,
		Bids:   collectLevels(o.bids, levels),
		Asks:   collectLevels(o.asks, levels),
	}
}

// GetTopOfBook returns best bid and ask
func (o *OrderBookEngineImpl) GetTopOfBook() *model.TopOfBook {
	tob := &model.TopOfBook{Spread: decimal.Zero}

	if bids := collectLevels(o.bids, 1); len(bids) == 1 {
		tob.BestBid = &bids[0]
	}
	if asks := collectLevels(o.asks, 1); len(asks) == 1 {
		tob.BestAsk = &asks[0]
	}

	if tob.BestBid != nil && tob.BestAsk != nil {
		tob.Spread = tob.BestAsk.Price.Sub(tob.BestBid.Price)
	}
	return tob
}

// Initialize drops every resting order and starts from an empty book.
func (o *OrderBookEngineImpl) Initialize() {
	o.bids = btree.NewG(32, orderbookModel.BidLess) // degree tuned for performance
	o.asks = btree.NewG(32, orderbookModel.AskLess)
	o.orders = make(map[model.OrderId]*model.Order)
	o.logger.Debug().Msg("order book is initialized")
}
