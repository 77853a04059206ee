package marketmaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DangVuDev/vndc-exchange/internal/usecase/exchange"
	"github.com/DangVuDev/vndc-exchange/pkg/model"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pair = "VNDC_ETH"

func newTestExchange(t *testing.T) exchange.Exchange {
	t.Helper()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ex := exchange.NewExchange(exchange.ExchangeOpts{
		Clock:  func() time.Time { return at },
		Logger: zerolog.Nop(),
	})
	t.Cleanup(ex.Close)
	return ex
}

func newTestMarketMaker(ex exchange.Exchange, seed int64) *MarketMaker {
	return NewMarketMaker(MarketMakerOpts{
		Exchange:     ex,
		Interval:     time.Hour,
		Seed:         seed,
		LadderLevels: 3,
		Logger:       zerolog.Nop(),
	})
}

func TestStep_PopulatesBothSides(t *testing.T) {
	ex := newTestExchange(t)
	mm := newTestMarketMaker(ex, 1)

	require.NoError(t, mm.Step(context.Background(), pair))

	book, err := ex.GetOrderBook(pair)
	require.NoError(t, err)
	assert.NotEmpty(t, book.Bids)
	assert.NotEmpty(t, book.Asks)

	for _, o := range ex.GetUserOrders(Trader) {
		assert.Equal(t, Trader, o.Trader)
		assert.Equal(t, pair, o.PairID)
	}
	assert.Empty(t, ex.GetUserOrders("alice"))
}

func TestStep_ProducesTradesWithinBounds(t *testing.T) {
	ex := newTestExchange(t)
	mm := newTestMarketMaker(ex, 42)
	p, _ := model.FindPair(ex.Pairs(), pair)

	for i := 0; i < 200; i++ {
		require.NoError(t, mm.Step(context.Background(), pair))
		mid := mm.Mid(pair)
		assert.True(t, mid.GreaterThanOrEqual(p.SeedPrice.Div(ten).Truncate(p.PricePrecision)))
		assert.True(t, mid.LessThanOrEqual(p.SeedPrice.Mul(ten)))
	}

	trades, err := ex.GetRecentTrades(pair, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, trades)
	for _, tr := range trades {
		assert.Equal(t, Trader, tr.MakerTrader)
		assert.Equal(t, Trader, tr.TakerTrader)
	}

	// the stale sweep keeps the resting quotes bounded
	assert.LessOrEqual(t, len(ex.GetUserOpenOrders(Trader)), 4*3+2*3+1)

	tk, err := ex.GetTicker(pair)
	require.NoError(t, err)
	assert.True(t, tk.Volume24h.IsPositive())
	candles, err := ex.GetCandles(pair, "1m")
	require.NoError(t, err)
	assert.Len(t, candles, 1)
}

func TestWalk_MovesBothWaysWithinBounds(t *testing.T) {
	for _, p := range model.Pairs() {
		for _, seed := range []int64{1, 2, 3} {
			t.Run(fmt.Sprintf("%s/seed=%d", p.ID, seed), func(t *testing.T) {
				ex := newTestExchange(t)
				mm := newTestMarketMaker(ex, seed)
				lo, hi := p.SeedPrice.Div(ten), p.SeedPrice.Mul(ten)

				ups, downs := 0, 0
				prev := mm.Mid(p.ID)
				for i := 0; i < 500; i++ {
					require.NoError(t, mm.Step(context.Background(), p.ID))
					mid := mm.Mid(p.ID)
					switch mid.Cmp(prev) {
					case 1:
						ups++
					case -1:
						downs++
					}
					require.True(t, mid.GreaterThanOrEqual(lo), "mid %s under %s", mid, lo)
					require.True(t, mid.LessThanOrEqual(hi), "mid %s over %s", mid, hi)
					prev = mid
				}
				assert.Greater(t, ups, 100)
				assert.Greater(t, downs, 100)

				book, err := ex.GetOrderBook(p.ID)
				require.NoError(t, err)
				for _, level := range append(book.Bids, book.Asks...) {
					assert.True(t, level.Price.Equal(level.Price.Truncate(p.PricePrecision)), "quote %s off the tick grid", level.Price)
				}
			})
		}
	}
}

func TestWalk_ClampsAtTheFloor(t *testing.T) {
	ex := newTestExchange(t)
	mm := newTestMarketMaker(ex, 5)
	btc, ok := model.FindPair(ex.Pairs(), "VNDC_BTC")
	require.True(t, ok)

	mm.mu.Lock()
	mm.mids[btc.ID] = btc.SeedPrice.Div(ten).Div(ten)
	mm.mu.Unlock()
	require.NoError(t, mm.Step(context.Background(), btc.ID))

	lo, _ := midBounds(btc)
	assert.True(t, lo.Equal(decimal.RequireFromString("0.0000001")))
	assert.True(t, mm.Mid(btc.ID).Equal(lo))
}

func TestStep_IsDeterministicForASeed(t *testing.T) {
	run := func() []model.Trade {
		ex := newTestExchange(t)
		mm := newTestMarketMaker(ex, 7)
		for i := 0; i < 50; i++ {
			require.NoError(t, mm.Step(context.Background(), pair))
		}
		trades, err := ex.GetRecentTrades(pair, 0)
		require.NoError(t, err)
		return trades
	}

	first, second := run(), run()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.True(t, first[i].Price.Equal(second[i].Price))
		assert.True(t, first[i].Amount.Equal(second[i].Amount))
		assert.Equal(t, first[i].Side, second[i].Side)
	}
}

func TestStep_UnknownPair(t *testing.T) {
	ex := newTestExchange(t)
	mm := newTestMarketMaker(ex, 1)
	assert.ErrorIs(t, mm.Step(context.Background(), "NOPE"), exchange.ErrUnknownPair)
}

func TestReset_ThroughExchange(t *testing.T) {
	ex := newTestExchange(t)
	mm := newTestMarketMaker(ex, 3)
	ex.AttachGenerator(mm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mm.Start(ctx)

	for i := 0; i < 10; i++ {
		require.NoError(t, mm.Step(ctx, pair))
	}
	p, _ := model.FindPair(ex.Pairs(), pair)

	require.NoError(t, ex.Reset(ctx))
	assert.True(t, mm.Mid(pair).Equal(p.SeedPrice))
	assert.Empty(t, ex.GetUserOrders(Trader))

	mm.runMu.Lock()
	running := mm.cancel != nil
	mm.runMu.Unlock()
	assert.True(t, running, "timers restarted after reset")

	mm.Stop()
	mm.Stop()
}

func TestStartStop_Ticks(t *testing.T) {
	ex := newTestExchange(t)
	mm := NewMarketMaker(MarketMakerOpts{
		Exchange: ex,
		Interval: 5 * time.Millisecond,
		Seed:     9,
		Logger:   zerolog.Nop(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mm.Start(ctx)
	assert.Eventually(t, func() bool {
		for _, p := range ex.Pairs() {
			book, _ := ex.GetOrderBook(p.ID)
			if len(book.Bids) == 0 || len(book.Asks) == 0 {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
	mm.Stop()

	count := len(ex.GetUserOrders(Trader))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, count, len(ex.GetUserOrders(Trader)), "no ticks after Stop")

	// a restart after Stop resumes ticking under the original context
	mm.Restart()
	mm.Stop()
}
