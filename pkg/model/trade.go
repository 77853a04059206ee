package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TradeId string

// Trade is one fill between a resting maker and an incoming taker. Side is
// the taker's side and Price is always the maker's price.
type Trade struct {
	ID           TradeId         `json:"id"`
	Seq          uint64          `json:"seq"`
	PairID       string          `json:"pairId"`
	Side         Side            `json:"side"`
	Price        decimal.Decimal `json:"price"`
	Amount       decimal.Decimal `json:"amount"`
	QuoteAmount  decimal.Decimal `json:"quoteAmount"`
	MakerOrderID OrderId         `json:"makerOrderId"`
	TakerOrderID OrderId         `json:"takerOrderId"`
	MakerTrader  string          `json:"makerTrader"`
	TakerTrader  string          `json:"takerTrader"`
	Timestamp    time.Time       `json:"timestamp"`
}
