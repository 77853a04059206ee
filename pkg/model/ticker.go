package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Ticker struct {
	PairID           string          `json:"pairId"`
	LastPrice        decimal.Decimal `json:"lastPrice"`
	High24h          decimal.Decimal `json:"high24h"`
	Low24h           decimal.Decimal `json:"low24h"`
	Volume24h        decimal.Decimal `json:"volume24h"`
	QuoteVolume24h   decimal.Decimal `json:"quoteVolume24h"`
	ChangePercent24h decimal.Decimal `json:"changePercent24h"`
	BestBid          decimal.Decimal `json:"bestBid"`
	BestAsk          decimal.Decimal `json:"bestAsk"`
	Spread           decimal.Decimal `json:"spread"`
	SpreadPercent    decimal.Decimal `json:"spreadPercent"`
	TradeCount24h    int             `json:"tradeCount24h"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}
