// Command experiment replays the market maker offline against a simulated
// clock and prints what the market looks like afterwards.
package main

import (
	"context"
	"flag"
	"os"
	"sync"
	"time"

	"github.com/DangVuDev/vndc-exchange/internal/marketmaker"
	"github.com/DangVuDev/vndc-exchange/internal/usecase/exchange"
	"github.com/rs/zerolog"
)

type simClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *simClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func main() {
	ticks := flag.Int("ticks", 600, "market maker ticks per pair")
	interval := flag.Duration("interval", 2*time.Second, "simulated time between ticks")
	seed := flag.Int64("seed", 1, "market maker seed")
	timeframe := flag.String("timeframe", "1m", "candle timeframe to print")
	candles := flag.Int("candles", 5, "most recent candles to print per pair")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	clock := &simClock{t: time.Now().UTC().Truncate(time.Minute)}
	ex := exchange.NewExchange(exchange.ExchangeOpts{
		Clock:  clock.Now,
		Logger: logger.Level(zerolog.WarnLevel),
	})
	defer ex.Close()

	mm := marketmaker.NewMarketMaker(marketmaker.MarketMakerOpts{
		Exchange: ex,
		Seed:     *seed,
		Logger:   logger.Level(zerolog.WarnLevel),
	})

	ctx := context.Background()
	for i := 0; i < *ticks; i++ {
		for _, p := range ex.Pairs() {
			if err := mm.Step(ctx, p.ID); err != nil {
				logger.Fatal().Err(err).Str("pair", p.ID).Int("tick", i).Msg("step failed")
			}
		}
		clock.advance(*interval)
	}

	for _, p := range ex.Pairs() {
		ticker, err := ex.GetTicker(p.ID)
		if err != nil {
			logger.Fatal().Err(err).Msg("ticker")
		}
		logger.Info().
			Str("pair", p.ID).
			Stringer("last", ticker.LastPrice).
			Stringer("high", ticker.High24h).
			Stringer("low", ticker.Low24h).
			Stringer("volume", ticker.Volume24h).
			Stringer("change_pct", ticker.ChangePercent24h).
			Stringer("spread", ticker.Spread).
			Int("trades", ticker.TradeCount24h).
			Msg("ticker")

		series, err := ex.GetCandleSeries(p.ID, *timeframe, time.Time{}, time.Time{})
		if err != nil {
			logger.Fatal().Err(err).Msg("candles")
		}
		if len(series) > *candles {
			series = series[len(series)-*candles:]
		}
		for _, c := range series {
			logger.Info().
				Str("pair", p.ID).
				Time("time", c.Time).
				Stringer("open", c.Open).
				Stringer("high", c.High).
				Stringer("low", c.Low).
				Stringer("close", c.Close).
				Stringer("volume", c.Volume).
				Int("trades", c.Trades).
				Msg("candle")
		}
	}
}
