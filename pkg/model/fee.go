package model

import "github.com/shopspring/decimal"

// DefaultFeeRate is the 0.1% taker fee shown next to the order form. Fees are
// display-only and never touch engine state.
var DefaultFeeRate = decimal.RequireFromString("0.001")

func EstimateFee(quoteAmount, rate decimal.Decimal) decimal.Decimal {
	return quoteAmount.Mul(rate)
}
