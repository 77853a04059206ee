package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderId string
type Side uint8
type OrderType uint8
type OrderStatus uint8

const (
	BUY Side = iota + 1
	SELL
)

const (
	ORDER_LIMIT OrderType = iota + 1
	ORDER_MARKET
)

const (
	ORDER_STATUS_OPEN OrderStatus = iota + 1
	ORDER_STATUS_PARTIALLY_FILLED
	ORDER_STATUS_FILLED
	ORDER_STATUS_CANCELLED
)

func (s Side) String() string {
	switch s {
	case BUY:
		return "buy"
	case SELL:
		return "sell"
	default:
		return "unknown"
	}
}

func (s Side) Valid() bool {
	return s == BUY || s == SELL
}

// Opposite returns the book side an order of side s matches against.
func (s Side) Opposite() Side {
	switch s {
	case BUY:
		return SELL
	case SELL:
		return BUY
	default:
		return 0
	}
}

func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid side %d", s)
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "buy", "bid":
		*s = BUY
	case "sell", "ask":
		*s = SELL
	default:
		return fmt.Errorf("invalid side %q", string(b))
	}
	return nil
}

func (t OrderType) String() string {
	switch t {
	case ORDER_LIMIT:
		return "limit"
	case ORDER_MARKET:
		return "market"
	default:
		return "unknown"
	}
}

func (t OrderType) Valid() bool {
	return t == ORDER_LIMIT || t == ORDER_MARKET
}

func (t OrderType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid order type %d", t)
	}
	return []byte(t.String()), nil
}

func (t *OrderType) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "limit":
		*t = ORDER_LIMIT
	case "market":
		*t = ORDER_MARKET
	default:
		return fmt.Errorf("invalid order type %q", string(b))
	}
	return nil
}

func (s OrderStatus) String() string {
	switch s {
	case ORDER_STATUS_OPEN:
		return "open"
	case ORDER_STATUS_PARTIALLY_FILLED:
		return "partially_filled"
	case ORDER_STATUS_FILLED:
		return "filled"
	case ORDER_STATUS_CANCELLED:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further fills or cancels can touch the order.
func (s OrderStatus) Terminal() bool {
	return s == ORDER_STATUS_FILLED || s == ORDER_STATUS_CANCELLED
}

func (s OrderStatus) MarshalText() ([]byte, error) {
	if s < ORDER_STATUS_OPEN || s > ORDER_STATUS_CANCELLED {
		return nil, fmt.Errorf("invalid order status %d", s)
	}
	return []byte(s.String()), nil
}

func (s *OrderStatus) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "open":
		*s = ORDER_STATUS_OPEN
	case "partially_filled":
		*s = ORDER_STATUS_PARTIALLY_FILLED
	case "filled":
		*s = ORDER_STATUS_FILLED
	case "cancelled", "canceled":
		*s = ORDER_STATUS_CANCELLED
	default:
		return fmt.Errorf("invalid order status %q", string(b))
	}
	return nil
}

type Order struct {
	ID        OrderId         `json:"id"`
	PairID    string          `json:"pairId"`
	Trader    string          `json:"trader"`
	Side      Side            `json:"side"`
	Type      OrderType       `json:"type"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Filled    decimal.Decimal `json:"filled"`
	Status    OrderStatus     `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func NewOrder(id OrderId, pairID, trader string, side Side, orderType OrderType, price, amount decimal.Decimal, createdAt time.Time) Order {
	if orderType == ORDER_MARKET {
		price = decimal.Zero
	}
	return Order{
		ID:        id,
		PairID:    pairID,
		Trader:    trader,
		Side:      side,
		Type:      orderType,
		Price:     price,
		Amount:    amount,
		Filled:    decimal.Zero,
		Status:    ORDER_STATUS_OPEN,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func (o *Order) Remaining() decimal.Decimal {
	return o.Amount.Sub(o.Filled)
}

func (o *Order) Fill(quantity decimal.Decimal, at time.Time) error {
	if !quantity.IsPositive() {
		return fmt.Errorf("fill quantity must be positive for order %s", o.ID)
	}
	if quantity.GreaterThan(o.Remaining()) {
		return fmt.Errorf("order cannot be filled for more than its remaining quantity %s", o.ID)
	}
	o.Filled = o.Filled.Add(quantity)
	if o.Filled.Equal(o.Amount) {
		o.Status = ORDER_STATUS_FILLED
	} else {
		o.Status = ORDER_STATUS_PARTIALLY_FILLED
	}
	o.UpdatedAt = at
	return nil
}

func (o *Order) IsFilled() bool {
	return o.Filled.Equal(o.Amount)
}

// IsActive reports whether the order is resting on the book. Market orders
// never rest, so a partially filled market order is not active.
func (o *Order) IsActive() bool {
	if o.Type != ORDER_LIMIT {
		return false
	}
	return o.Status == ORDER_STATUS_OPEN || o.Status == ORDER_STATUS_PARTIALLY_FILLED
}

func (o *Order) Cancel(at time.Time) {
	o.Status = ORDER_STATUS_CANCELLED
	o.UpdatedAt = at
}

// DropRemainder closes a market order whose leftover size found no liquidity.
// The filled part keeps its status; an order with nothing filled is cancelled.
func (o *Order) DropRemainder(at time.Time) {
	if o.Filled.IsZero() {
		o.Cancel(at)
		return
	}
	o.UpdatedAt = at
}
