package model

import (
	"github.com/DangVuDev/vndc-exchange/pkg/model"
	"github.com/shopspring/decimal"
)

// PriceLevel is a FIFO queue of resting orders at one price. TotalVolume is
// the outstanding (unfilled) size of the queue.
type PriceLevel struct {
	Price       decimal.Decimal
	Orders      []*model.Order
	TotalVolume decimal.Decimal
}

func NewPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{
		Price:       price,
		Orders:      make([]*model.Order, 0, 4),
		TotalVolume: decimal.Zero,
	}
}

// AskLess orders ask levels ascending
func AskLess(a, b *PriceLevel) bool {
	return a.Price.LessThan(b.Price)
}

// BidLess orders bid levels descending
func BidLess(a, b *PriceLevel) bool {
	return a.Price.GreaterThan(b.Price) // Reverse
}

func (pl *PriceLevel) Append(order *model.Order) {
	pl.Orders = append(pl.Orders, order)
	pl.TotalVolume = pl.TotalVolume.Add(order.Remaining())
}

func (pl *PriceLevel) Front() *model.Order {
	if len(pl.Orders) == 0 {
		return nil
	}
	return pl.Orders[0]
}

// PopFront drops the head of the queue. Its remaining size must already have
// been taken out of TotalVolume through Reduce.
func (pl *PriceLevel) PopFront() {
	if len(pl.Orders) == 0 {
		return
	}
	pl.Orders[0] = nil
	pl.Orders = pl.Orders[1:]
}

// Reduce takes a filled quantity out of the level total.
func (pl *PriceLevel) Reduce(quantity decimal.Decimal) {
	pl.TotalVolume = pl.TotalVolume.Sub(quantity)
}

func (pl *PriceLevel) RemoveOrderByID(orderID model.OrderId) (*model.Order, bool) {
	for i, order := range pl.Orders {
		if order.ID == orderID {
			pl.Orders = append(pl.Orders[:i], pl.Orders[i+1:]...)
			pl.TotalVolume = pl.TotalVolume.Sub(order.Remaining())
			return order, true
		}
	}
	return nil, false
}

func (pl *PriceLevel) Empty() bool {
	return len(pl.Orders) == 0
}
