package router

import (
	"errors"
	"net/http"

	"github.com/DangVuDev/vndc-exchange/internal/router/middleware"
	"github.com/DangVuDev/vndc-exchange/internal/usecase/exchange"
	"github.com/DangVuDev/vndc-exchange/pkg/model"
	"github.com/shopspring/decimal"
)

var errForbidden = errors.New("order belongs to another trader")

type OrderRouter interface {
	Place(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Cancel(w http.ResponseWriter, r *http.Request)
	MyOrders(w http.ResponseWriter, r *http.Request)
	Reset(w http.ResponseWriter, r *http.Request)
}

type orderRouterImpl struct {
	exchange exchange.Exchange
}

func NewOrderRouter(ex exchange.Exchange) OrderRouter {
	return &orderRouterImpl{exchange: ex}
}

type PlaceOrderRequest struct {
	PairID string          `json:"pairId" validate:"required,max=32"`
	Side   model.Side      `json:"side" validate:"required"`
	Type   model.OrderType `json:"type" validate:"required"`
	Price  decimal.Decimal `json:"price"` // ignored for market orders
	Amount decimal.Decimal `json:"amount"`
}

type PlaceOrderResponse struct {
	Order        model.Order     `json:"order"`
	EstimatedFee decimal.Decimal `json:"estimatedFee"`
	FeeRate      decimal.Decimal `json:"feeRate"`
}

func (or *orderRouterImpl) Place(w http.ResponseWriter, r *http.Request) {
	trader, ok := middleware.TraderFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, errors.New("missing trader"))
		return
	}
	req, err := decodeJSON[PlaceOrderRequest](w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	order, err := or.exchange.PlaceOrder(r.Context(), exchange.PlaceOrderInput{
		PairID: req.PairID,
		Trader: trader,
		Side:   req.Side,
		Type:   req.Type,
		Price:  req.Price,
		Amount: req.Amount,
	})
	if err != nil {
		writeExchangeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, PlaceOrderResponse{
		Order:        order,
		EstimatedFee: model.EstimateFee(or.notional(order), model.DefaultFeeRate),
		FeeRate:      model.DefaultFeeRate,
	})
}

// notional values a market order at the last traded price.
func (or *orderRouterImpl) notional(order model.Order) decimal.Decimal {
	price := order.Price
	if order.Type == model.ORDER_MARKET {
		ticker, err := or.exchange.GetTicker(order.PairID)
		if err != nil {
			return decimal.Zero
		}
		price = ticker.LastPrice
	}
	return price.Mul(order.Amount)
}

// owned loads the order named in the path and checks it belongs to the caller.
func (or *orderRouterImpl) owned(w http.ResponseWriter, r *http.Request) (model.Order, bool) {
	trader, ok := middleware.TraderFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, errors.New("missing trader"))
		return model.Order{}, false
	}
	order, ok := or.exchange.GetOrder(model.OrderId(r.PathValue("id")))
	if !ok {
		writeJSONError(w, http.StatusNotFound, errors.New("order not found"))
		return model.Order{}, false
	}
	if order.Trader != trader {
		writeJSONError(w, http.StatusForbidden, errForbidden)
		return model.Order{}, false
	}
	return order, true
}

func (or *orderRouterImpl) Get(w http.ResponseWriter, r *http.Request) {
	order, ok := or.owned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Cancel is idempotent: a finished order answers cancelled=false.
func (or *orderRouterImpl) Cancel(w http.ResponseWriter, r *http.Request) {
	order, ok := or.owned(w, r)
	if !ok {
		return
	}
	type cancelResponse struct {
		OrderID   model.OrderId `json:"orderId"`
		Cancelled bool          `json:"cancelled"`
	}
	writeJSON(w, http.StatusOK, cancelResponse{
		OrderID:   order.ID,
		Cancelled: or.exchange.CancelOrder(r.Context(), order.ID),
	})
}

// MyOrders lists the caller's orders, narrowed by ?status=open|closed.
func (or *orderRouterImpl) MyOrders(w http.ResponseWriter, r *http.Request) {
	trader, ok := middleware.TraderFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, errors.New("missing trader"))
		return
	}
	switch r.URL.Query().Get("status") {
	case "":
		writeJSON(w, http.StatusOK, or.exchange.GetUserOrders(trader))
	case "open":
		writeJSON(w, http.StatusOK, or.exchange.GetUserOpenOrders(trader))
	case "closed":
		writeJSON(w, http.StatusOK, or.exchange.GetUserClosedOrders(trader))
	default:
		writeJSONError(w, http.StatusBadRequest, errors.New("status must be open or closed"))
	}
}

func (or *orderRouterImpl) Reset(w http.ResponseWriter, r *http.Request) {
	if err := or.exchange.Reset(r.Context()); err != nil {
		writeExchangeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reset": true})
}
