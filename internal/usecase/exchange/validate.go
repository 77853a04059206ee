package exchange

import (
	"strings"

	"github.com/DangVuDev/vndc-exchange/pkg/model"
	"github.com/DangVuDev/vndc-exchange/pkg/util"
)

func (ex *exchangeImpl) validate(in PlaceOrderInput) (*pairState, error) {
	state, ok := ex.state[in.PairID]
	if !ok {
		return nil, &InvalidOrderError{Field: "pairId", Reason: "is not a listed pair", Err: ErrUnknownPair}
	}
	pair := state.pair

	if strings.TrimSpace(in.Trader) == "" {
		return nil, invalid("trader", "is required")
	}
	if !in.Side.Valid() {
		return nil, invalid("side", "must be buy or sell")
	}
	if !in.Type.Valid() {
		return nil, invalid("type", "must be limit or market")
	}

	if !in.Amount.IsPositive() {
		return nil, invalid("amount", "must be positive")
	}
	if in.Amount.LessThan(pair.MinAmount) {
		return nil, invalid("amount", "is below the minimum of "+pair.MinAmount.String())
	}
	if util.ExceedsPlaces(in.Amount, pair.AmountPrecision) {
		return nil, invalid("amount", "has too many decimal places")
	}

	switch in.Type {
	case model.ORDER_LIMIT:
		if !in.Price.IsPositive() {
			return nil, invalid("price", "must be positive for a limit order")
		}
		if util.ExceedsPlaces(in.Price, pair.PricePrecision) {
			return nil, invalid("price", "has too many decimal places")
		}
	case model.ORDER_MARKET:
		// price is ignored
	}
	return state, nil
}
