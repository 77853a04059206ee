package router

import (
	"net/http"
	"time"

	"github.com/DangVuDev/vndc-exchange/internal/router/middleware"
	"github.com/DangVuDev/vndc-exchange/internal/usecase/exchange"
	"github.com/rs/zerolog"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	n      int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.n += n
	return n, err
}

func logging(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(sw, r)
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Int("bytes", sw.n).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// wrap your mux with cors(mux) when starting the server
// http.ListenAndServe(":8080", cors(logging(mux)))

func Cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			// If you need cookies, echo origin & add Allow-Credentials (no "*")
			w.Header().Set("Access-Control-Allow-Origin", origin) // or "*" if no credentials
			w.Header().Set("Vary", "Origin")

			// Reflect requested headers/method for preflight robustness
			reqHdrs := r.Header.Get("Access-Control-Request-Headers")
			if reqHdrs == "" {
				reqHdrs = "Content-Type, Authorization"
			}
			w.Header().Set("Access-Control-Allow-Headers", reqHdrs)

			reqMethod := r.Header.Get("Access-Control-Request-Method")
			if reqMethod == "" {
				reqMethod = "GET, POST, DELETE, OPTIONS"
			}
			w.Header().Set("Access-Control-Allow-Methods", reqMethod)

			// Cache preflight for a day (optional)
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		// Short-circuit preflight so it never hits your route table
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent) // 204
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GET /api/v1/pairs/{pair}/book?depth=20 etc. Public market data.
func bindMarket(serverRouter *http.ServeMux, ex exchange.Exchange, logger zerolog.Logger) {
	marketRouter := NewMarketRouter(ex)
	serverRouter.Handle("GET /api/v1/pairs", logging(logger, http.HandlerFunc(marketRouter.Pairs)))
	serverRouter.Handle("GET /api/v1/timeframes", logging(logger, http.HandlerFunc(marketRouter.Timeframes)))
	serverRouter.Handle("GET /api/v1/tickers", logging(logger, http.HandlerFunc(marketRouter.Tickers)))
	serverRouter.Handle("GET /api/v1/pairs/{pair}/book", logging(logger, http.HandlerFunc(marketRouter.Book)))
	serverRouter.Handle("GET /api/v1/pairs/{pair}/ticker", logging(logger, http.HandlerFunc(marketRouter.Ticker)))
	serverRouter.Handle("GET /api/v1/pairs/{pair}/trades", logging(logger, http.HandlerFunc(marketRouter.Trades)))
	serverRouter.Handle("GET /api/v1/pairs/{pair}/candles", logging(logger, http.HandlerFunc(marketRouter.Candles)))
}

func bindOrder(serverRouter *http.ServeMux, ex exchange.Exchange, tokenMaker *middleware.JWTMaker, limiter *TraderLimiter, logger zerolog.Logger) {
	authmiddleware := middleware.AuthMiddleware(tokenMaker)
	orderRouter := NewOrderRouter(ex)
	serverRouter.Handle("POST /api/v1/orders", logging(logger, authmiddleware(limiter.Middleware(http.HandlerFunc(orderRouter.Place)))))
	serverRouter.Handle("GET /api/v1/orders/{id}", logging(logger, authmiddleware(http.HandlerFunc(orderRouter.Get))))
	serverRouter.Handle("DELETE /api/v1/orders/{id}", logging(logger, authmiddleware(limiter.Middleware(http.HandlerFunc(orderRouter.Cancel)))))
	serverRouter.Handle("GET /api/v1/me/orders", logging(logger, authmiddleware(http.HandlerFunc(orderRouter.MyOrders))))
	serverRouter.Handle("POST /api/v1/admin/reset", logging(logger, authmiddleware(http.HandlerFunc(orderRouter.Reset))))
}

func bindSession(serverRouter *http.ServeMux, tokenMaker *middleware.JWTMaker, tokenTTL time.Duration, logger zerolog.Logger) {
	sessionRouter := NewSessionRouter(tokenMaker, tokenTTL)
	serverRouter.Handle("POST /api/v1/session", logging(logger, http.HandlerFunc(sessionRouter.Create)))
}

type BindRouterOpts struct {
	ServerRouter *http.ServeMux
	Exchange     exchange.Exchange
	TokenMaker   *middleware.JWTMaker
	TokenTTL     time.Duration
	Limiter      *TraderLimiter
	Logger       zerolog.Logger
}

func BindRouter(opts BindRouterOpts) {
	if opts.Limiter == nil {
		opts.Limiter = NewTraderLimiter(0, 0)
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	bindSession(opts.ServerRouter, opts.TokenMaker, opts.TokenTTL, opts.Logger)
	bindMarket(opts.ServerRouter, opts.Exchange, opts.Logger)
	bindOrder(opts.ServerRouter, opts.Exchange, opts.TokenMaker, opts.Limiter, opts.Logger)

	//healthcheck
	opts.ServerRouter.Handle("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": 200,
			"health": "healthy",
		})
	}))
}
