package router

import (
	"net/http"
	"strconv"

	"github.com/DangVuDev/vndc-exchange/internal/usecase/exchange"
)

const (
	defaultTradeLimit = 50
	maxTradeLimit     = 500
	maxBookDepth      = 500
)

type MarketRouter interface {
	Pairs(w http.ResponseWriter, r *http.Request)
	Timeframes(w http.ResponseWriter, r *http.Request)
	Tickers(w http.ResponseWriter, r *http.Request)
	Book(w http.ResponseWriter, r *http.Request)
	Ticker(w http.ResponseWriter, r *http.Request)
	Trades(w http.ResponseWriter, r *http.Request)
	Candles(w http.ResponseWriter, r *http.Request)
}

type marketRouterImpl struct {
	exchange exchange.Exchange
}

func NewMarketRouter(ex exchange.Exchange) MarketRouter {
	return &marketRouterImpl{exchange: ex}
}

func (mr *marketRouterImpl) Pairs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, mr.exchange.Pairs())
}

func (mr *marketRouterImpl) Timeframes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, mr.exchange.Timeframes())
}

func (mr *marketRouterImpl) Tickers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, mr.exchange.GetAllTickers())
}

func (mr *marketRouterImpl) Book(w http.ResponseWriter, r *http.Request) {
	depth, err := queryInt(r, "depth", 0, 0, maxBookDepth)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	book, err := mr.exchange.GetOrderBookDepth(r.PathValue("pair"), depth)
	if err != nil {
		writeExchangeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (mr *marketRouterImpl) Ticker(w http.ResponseWriter, r *http.Request) {
	ticker, err := mr.exchange.GetTicker(r.PathValue("pair"))
	if err != nil {
		writeExchangeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticker)
}

func (mr *marketRouterImpl) Trades(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultTradeLimit, 1, maxTradeLimit)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	trades, err := mr.exchange.GetRecentTrades(r.PathValue("pair"), limit)
	if err != nil {
		writeExchangeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

// Candles serves ?timeframe=1m, with fill=true for a gap-filled series bounded
// by optional from/to unix seconds.
func (mr *marketRouterImpl) Candles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	timeframe := q.Get("timeframe")
	if timeframe == "" {
		timeframe = "1m"
	}
	fill := false
	if raw := q.Get("fill"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}
		fill = v
	}

	pair := r.PathValue("pair")
	if !fill {
		candles, err := mr.exchange.GetCandles(pair, timeframe)
		if err != nil {
			writeExchangeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, candles)
		return
	}

	from, err := queryUnix(r, "from")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	to, err := queryUnix(r, "to")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	candles, err := mr.exchange.GetCandleSeries(pair, timeframe, from, to)
	if err != nil {
		writeExchangeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candles)
}
