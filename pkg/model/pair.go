package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradingPair is immutable once the catalog is built.
type TradingPair struct {
	ID              string          `json:"id"`
	BaseSymbol      string          `json:"baseSymbol"`
	QuoteSymbol     string          `json:"quoteSymbol"`
	PricePrecision  int32           `json:"pricePrecision"`
	AmountPrecision int32           `json:"amountPrecision"`
	MinAmount       decimal.Decimal `json:"minAmount"`
	SeedPrice       decimal.Decimal `json:"seedPrice"`
}

// TickSize is the smallest price increment for the pair.
func (p TradingPair) TickSize() decimal.Decimal {
	return decimal.New(1, -p.PricePrecision)
}

// LotSize is the smallest amount increment for the pair.
func (p TradingPair) LotSize() decimal.Decimal {
	return decimal.New(1, -p.AmountPrecision)
}

func newPair(base, quote string, pricePrecision, amountPrecision int32, minAmount, seed string) TradingPair {
	return TradingPair{
		ID:              base + "_" + quote,
		BaseSymbol:      base,
		QuoteSymbol:     quote,
		PricePrecision:  pricePrecision,
		AmountPrecision: amountPrecision,
		MinAmount:       decimal.RequireFromString(minAmount),
		SeedPrice:       decimal.RequireFromString(seed),
	}
}

// Pairs returns the default pair catalog. Each call returns a fresh slice.
func Pairs() []TradingPair {
	return []TradingPair{
		newPair("VNDC", "ETH", 2, 4, "0.0001", "100"),
		newPair("VNDC", "USDT", 4, 2, "1", "0.0425"),
		newPair("ETH", "USDT", 2, 4, "0.001", "2350"),
		newPair("BTC", "USDT", 2, 5, "0.00001", "43250"),
		newPair("VNDC", "BTC", 8, 2, "1", "0.00000098"),
	}
}

// FindPair looks a pair up by id in a catalog.
func FindPair(pairs []TradingPair, id string) (TradingPair, bool) {
	for _, p := range pairs {
		if p.ID == id {
			return p, true
		}
	}
	return TradingPair{}, false
}

type Timeframe struct {
	ID       string        `json:"id"`
	Duration time.Duration `json:"-"`
	Seconds  int64         `json:"seconds"`
}

func newTimeframe(id string, d time.Duration) Timeframe {
	return Timeframe{ID: id, Duration: d, Seconds: int64(d / time.Second)}
}

// BucketStart aligns t down to the start of its bucket. Buckets are aligned
// on the unix epoch in UTC.
func (tf Timeframe) BucketStart(t time.Time) time.Time {
	return t.UTC().Truncate(tf.Duration)
}

func Timeframes() []Timeframe {
	return []Timeframe{
		newTimeframe("1m", time.Minute),
		newTimeframe("5m", 5*time.Minute),
		newTimeframe("15m", 15*time.Minute),
		newTimeframe("1h", time.Hour),
		newTimeframe("4h", 4*time.Hour),
		newTimeframe("1d", 24*time.Hour),
	}
}

func FindTimeframe(timeframes []Timeframe, id string) (Timeframe, bool) {
	for _, tf := range timeframes {
		if tf.ID == id {
			return tf, true
		}
	}
	return Timeframe{}, false
}
