package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DangVuDev/vndc-exchange/internal/router/middleware"
	"github.com/DangVuDev/vndc-exchange/internal/usecase/exchange"
	"github.com/DangVuDev/vndc-exchange/pkg/model"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t   *testing.T
	srv *httptest.Server
	ex  exchange.Exchange
}

func newTestServer(t *testing.T, limiter *TraderLimiter) *testServer {
	t.Helper()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ex := exchange.NewExchange(exchange.ExchangeOpts{
		Clock:  func() time.Time { return at },
		Logger: zerolog.Nop(),
	})
	mux := http.NewServeMux()
	BindRouter(BindRouterOpts{
		ServerRouter: mux,
		Exchange:     ex,
		TokenMaker:   middleware.NewJWTMaker("test-secret"),
		TokenTTL:     time.Hour,
		Limiter:      limiter,
		Logger:       zerolog.Nop(),
	})
	srv := httptest.NewServer(Cors(mux))
	t.Cleanup(func() {
		srv.Close()
		ex.Close()
	})
	return &testServer{t: t, srv: srv, ex: ex}
}

func (s *testServer) do(method, path, token string, body any, out any) int {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.srv.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) login(trader string) string {
	s.t.Helper()
	var session struct {
		Token     string    `json:"token"`
		Trader    string    `json:"trader"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	status := s.do(http.MethodPost, "/api/v1/session", "", map[string]string{"trader": trader}, &session)
	require.Equal(s.t, http.StatusCreated, status)
	require.Equal(s.t, trader, session.Trader)
	require.NotEmpty(s.t, session.Token)
	return session.Token
}

func orderRequest(side, orderType, price, amount string) map[string]string {
	req := map[string]string{"pairId": "VNDC_ETH", "side": side, "type": orderType, "amount": amount}
	if price != "" {
		req["price"] = price
	}
	return req
}

func TestRouter_OrderFlow(t *testing.T) {
	s := newTestServer(t, nil)
	alice, bob := s.login("alice"), s.login("bob")

	var placed PlaceOrderResponse
	status := s.do(http.MethodPost, "/api/v1/orders", alice, orderRequest("sell", "limit", "100", "1"), &placed)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "alice", placed.Order.Trader)
	assert.Equal(t, model.ORDER_STATUS_OPEN, placed.Order.Status)
	assert.True(t, placed.EstimatedFee.Equal(decimal.RequireFromString("0.1")))
	askID := placed.Order.ID

	status = s.do(http.MethodPost, "/api/v1/orders", bob, orderRequest("buy", "market", "", "0.4"), &placed)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, model.ORDER_STATUS_FILLED, placed.Order.Status)
	assert.True(t, placed.EstimatedFee.Equal(decimal.RequireFromString("0.04")))

	var order model.Order
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/orders/"+string(askID), alice, nil, &order))
	assert.Equal(t, model.ORDER_STATUS_PARTIALLY_FILLED, order.Status)
	assert.True(t, order.Filled.Equal(decimal.RequireFromString("0.4")))

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/orders/"+string(askID), bob, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/orders/ORD-99999999", alice, nil, nil))

	var cancelled struct {
		Cancelled bool `json:"cancelled"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/v1/orders/"+string(askID), alice, nil, &cancelled))
	assert.True(t, cancelled.Cancelled)
	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/v1/orders/"+string(askID), alice, nil, &cancelled))
	assert.False(t, cancelled.Cancelled)

	var mine []model.Order
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/me/orders?status=closed", alice, nil, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, model.ORDER_STATUS_CANCELLED, mine[0].Status)
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/me/orders?status=open", alice, nil, &mine))
	assert.Empty(t, mine)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/v1/me/orders?status=weird", alice, nil, nil))
}

func TestRouter_MarketData(t *testing.T) {
	s := newTestServer(t, nil)
	alice, bob := s.login("alice"), s.login("bob")
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/orders", alice, orderRequest("sell", "limit", "101", "2"), nil))
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/orders", alice, orderRequest("buy", "limit", "99", "2"), nil))
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/orders", bob, orderRequest("buy", "limit", "101", "1"), nil))

	var pairs []model.TradingPair
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/pairs", "", nil, &pairs))
	assert.Len(t, pairs, 5)

	var timeframes []map[string]any
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/timeframes", "", nil, &timeframes))
	assert.Len(t, timeframes, 6)

	var book model.OrderBook
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/pairs/VNDC_ETH/book?depth=1", "", nil, &book))
	require.Len(t, book.Bids, 1)
	require.Len(t, book.Asks, 1)
	assert.True(t, book.Asks[0].Amount.Equal(decimal.NewFromInt(1)))

	var ticker model.Ticker
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/pairs/VNDC_ETH/ticker", "", nil, &ticker))
	assert.True(t, ticker.LastPrice.Equal(decimal.NewFromInt(101)))
	assert.True(t, ticker.Spread.Equal(decimal.NewFromInt(2)))

	var tickers map[string]model.Ticker
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/tickers", "", nil, &tickers))
	assert.Len(t, tickers, 5)

	var trades []model.Trade
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/pairs/VNDC_ETH/trades?limit=10", "", nil, &trades))
	require.Len(t, trades, 1)
	assert.Equal(t, "bob", trades[0].TakerTrader)

	var candles []model.Candle
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/pairs/VNDC_ETH/candles", "", nil, &candles))
	require.Len(t, candles, 1)
	assert.True(t, candles[0].Close.Equal(decimal.NewFromInt(101)))
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/pairs/VNDC_ETH/candles?timeframe=5m&fill=true", "", nil, &candles))
	assert.NotEmpty(t, candles)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/pairs/NOPE/ticker", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/pairs/VNDC_ETH/candles?timeframe=2m", "", nil, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/v1/pairs/VNDC_ETH/trades?limit=abc", "", nil, nil))
}

func TestRouter_Rejections(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.login("alice")

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/v1/orders", "", orderRequest("buy", "limit", "100", "1"), nil))
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/v1/orders", "garbage", orderRequest("buy", "limit", "100", "1"), nil))

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"zero amount", orderRequest("buy", "limit", "100", "0"), http.StatusUnprocessableEntity},
		{"too precise", orderRequest("buy", "limit", "100.001", "1"), http.StatusUnprocessableEntity},
		{"unknown pair", map[string]string{"pairId": "NOPE", "side": "buy", "type": "limit", "price": "1", "amount": "1"}, http.StatusUnprocessableEntity},
		{"missing pair", map[string]string{"side": "buy", "type": "limit", "price": "1", "amount": "1"}, http.StatusBadRequest},
		{"bad side", orderRequest("hold", "limit", "100", "1"), http.StatusBadRequest},
		{"unknown field", map[string]string{"pairId": "VNDC_ETH", "side": "buy", "type": "limit", "amount": "1", "leverage": "10"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, s.do(http.MethodPost, "/api/v1/orders", alice, tt.body, nil))
		})
	}

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/v1/session", "", map[string]string{"trader": ""}, nil))
}

func TestRouter_RateLimitPerTrader(t *testing.T) {
	s := newTestServer(t, NewTraderLimiter(0.001, 1))
	alice, bob := s.login("alice"), s.login("bob")

	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/orders", alice, orderRequest("buy", "limit", "99", "1"), nil))
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodPost, "/api/v1/orders", alice, orderRequest("buy", "limit", "99", "1"), nil))
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/orders", bob, orderRequest("buy", "limit", "98", "1"), nil))
}

func TestRouter_Reset(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.login("alice")
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/orders", alice, orderRequest("buy", "limit", "99", "1"), nil))

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/admin/reset", alice, nil, nil))
	book, err := s.ex.GetOrderBook("VNDC_ETH")
	require.NoError(t, err)
	assert.Empty(t, book.Bids)
}

func TestTraderLimiter_EvictsIdle(t *testing.T) {
	l := NewTraderLimiter(1, 1)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return at }

	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"))
	assert.Equal(t, 1, l.Len())

	at = at.Add(limiterIdleTTL + time.Minute)
	assert.True(t, l.Allow("bob"))
	assert.Equal(t, 1, l.Len(), "alice was idle and dropped")
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil, nil))
}
