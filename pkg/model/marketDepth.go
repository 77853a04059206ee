package model

import "github.com/shopspring/decimal"

// BookLevel is one aggregated price level. Total is the running sum of
// Amount from the best price down to this level.
type BookLevel struct {
	Price      decimal.Decimal `json:"price"`
	Amount     decimal.Decimal `json:"amount"`
	Total      decimal.Decimal `json:"total"`
	OrderCount int             `json:"orderCount"`
}

// OrderBook represents the full order book depth
type OrderBook struct {
	PairID    string      `json:"pairId"`
	Bids      []BookLevel `json:"bids"` // Highest to lowest price
	Asks      []BookLevel `json:"asks"` // Lowest to highest price
	Timestamp int64       `json:"timestamp"`
}

// TopOfBook represents best bid/ask
type TopOfBook struct {
	BestBid *BookLevel      `json:"bestBid"`
	BestAsk *BookLevel      `json:"bestAsk"`
	Spread  decimal.Decimal `json:"spread"`
}
