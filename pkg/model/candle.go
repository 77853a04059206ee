package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is an OHLCV bar. Time is the bucket start.
type Candle struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
	Trades int             `json:"trades"`
}

// Add folds one trade into the candle.
func (c *Candle) Add(price, amount decimal.Decimal) {
	if c.Trades == 0 {
		c.Open, c.High, c.Low = price, price, price
	} else {
		if price.GreaterThan(c.High) {
			c.High = price
		}
		if price.LessThan(c.Low) {
			c.Low = price
		}
	}
	c.Close = price
	c.Volume = c.Volume.Add(amount)
	c.Trades++
}

// Flat returns an empty bar carrying the previous close, used for gap filling.
func Flat(at time.Time, prevClose decimal.Decimal) Candle {
	return Candle{
		Time:   at,
		Open:   prevClose,
		High:   prevClose,
		Low:    prevClose,
		Close:  prevClose,
		Volume: decimal.Zero,
	}
}
