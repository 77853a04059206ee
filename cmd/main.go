package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DangVuDev/vndc-exchange/internal/config"
	"github.com/DangVuDev/vndc-exchange/internal/marketmaker"
	"github.com/DangVuDev/vndc-exchange/internal/router"
	"github.com/DangVuDev/vndc-exchange/internal/router/middleware"
	"github.com/DangVuDev/vndc-exchange/internal/usecase/exchange"
	"github.com/DangVuDev/vndc-exchange/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(cfg.LogLevel).
		With().Timestamp().Logger()

	if cfg.JWTSecret == "" {
		// tokens will not survive a restart
		cfg.JWTSecret = uuid.NewString()
		logger.Warn().Msg("JWT_SECRET not set, using a random secret")
	}

	ex := exchange.NewExchange(exchange.ExchangeOpts{
		TapeCapacity:  cfg.TapeCapacity,
		CandleHistory: cfg.CandleHistory,
		Logger:        logger,
	})

	if cfg.MarketMakerEnabled {
		mm := marketmaker.NewMarketMaker(marketmaker.MarketMakerOpts{
			Exchange:     ex,
			Interval:     cfg.MarketMakerConfig.Interval,
			Seed:         cfg.MarketMakerConfig.Seed,
			MaxStepBps:   cfg.MarketMakerConfig.MaxStepBps,
			LadderLevels: cfg.MarketMakerConfig.LadderLevels,
			MarketRatio:  cfg.MarketMakerConfig.MarketRatio,
			Logger:       logger,
		})
		ex.AttachGenerator(mm)
		mm.Start(rootCtx)
	}

	hub := websocket.NewHub(logger)
	go hub.Run(rootCtx)
	go hub.Bridge(rootCtx, ex.Subscribe())

	serveMux := http.NewServeMux()

	//start ws on servemux
	serveMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWS(hub, w, r)
	})

	//bind router
	router.BindRouter(router.BindRouterOpts{
		ServerRouter: serveMux,
		Exchange:     ex,
		TokenMaker:   middleware.NewJWTMaker(cfg.JWTSecret),
		TokenTTL:     cfg.TokenTTL,
		Limiter:      router.NewTraderLimiter(cfg.OrderRatePerSec, cfg.OrderRateBurst),
		Logger:       logger,
	})
	logger.Info().Msg("finished binding router")

	server := http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.Cors(serveMux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Start server in background.
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen error")
		}
	}()

	// Block until we get a signal (or parent context canceled).
	<-rootCtx.Done()
	logger.Info().Msg("shutdown signal received")

	// Give in-flight requests up to 10s to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		// If graceful shutdown times out, force close.
		logger.Warn().Err(err).Msg("graceful shutdown failed, forcing close")
		_ = server.Close()
	}
	ex.Close()

	logger.Info().Msg("server stopped")
}
