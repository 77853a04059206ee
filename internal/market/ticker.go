// Package market derives tickers and candles from a pair's trade tape.
package market

import (
	"time"

	"github.com/DangVuDev/vndc-exchange/pkg/model"
	"github.com/shopspring/decimal"
)

const (
	Window24h     = 24 * time.Hour
	percentPlaces = 2
)

var hundred = decimal.NewFromInt(100)

// TradeSource is the read side of a trade tape.
type TradeSource interface {
	Last() (*model.Trade, bool)
	Since(from time.Time) []*model.Trade
	LastBefore(at time.Time) (*model.Trade, bool)
}

// ComputeTicker is a pure projection of the tape and the top of book at now.
// The 24h window is [now-24h, now]. Without trades the pair's seed price is
// the last price and the change is 0.
func ComputeTicker(pair model.TradingPair, src TradeSource, top *model.TopOfBook, now time.Time) model.Ticker {
	ticker := model.Ticker{
		PairID:         pair.ID,
		LastPrice:      pair.SeedPrice,
		Volume24h:      decimal.Zero,
		QuoteVolume24h: decimal.Zero,
		BestBid:        decimal.Zero,
		BestAsk:        decimal.Zero,
		Spread:         decimal.Zero,
		SpreadPercent:  decimal.Zero,
		UpdatedAt:      now,
	}
	if last, ok := src.Last(); ok {
		ticker.LastPrice = last.Price
	}
	ticker.High24h = ticker.LastPrice
	ticker.Low24h = ticker.LastPrice

	windowStart := now.Add(-Window24h)
	for i, tr := range src.Since(windowStart) {
		if i == 0 || tr.Price.GreaterThan(ticker.High24h) {
			ticker.High24h = tr.Price
		}
		if i == 0 || tr.Price.LessThan(ticker.Low24h) {
			ticker.Low24h = tr.Price
		}
		ticker.Volume24h = ticker.Volume24h.Add(tr.Amount)
		ticker.QuoteVolume24h = ticker.QuoteVolume24h.Add(tr.QuoteAmount)
		ticker.TradeCount24h++
	}

	priceAgo := ticker.LastPrice
	if prev, ok := src.LastBefore(windowStart); ok {
		priceAgo = prev.Price
	}
	ticker.ChangePercent24h = percentOf(ticker.LastPrice.Sub(priceAgo), priceAgo)

	if top != nil {
		if top.BestBid != nil {
			ticker.BestBid = top.BestBid.Price
		}
		if top.BestAsk != nil {
			ticker.BestAsk = top.BestAsk.Price
		}
		if top.BestBid != nil && top.BestAsk != nil {
			ticker.Spread = top.BestAsk.Price.Sub(top.BestBid.Price)
		}
	}
	ticker.SpreadPercent = percentOf(ticker.Spread, ticker.LastPrice)
	return ticker
}

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(percentPlaces)
}
