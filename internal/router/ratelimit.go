package router

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/DangVuDev/vndc-exchange/internal/router/middleware"
	"golang.org/x/time/rate"
)

const (
	defaultTraderRPS   = 10
	defaultTraderBurst = 20
	limiterIdleTTL     = 10 * time.Minute
)

var errRateLimited = errors.New("too many requests")

type traderBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// TraderLimiter throttles order writes per authenticated trader.
type TraderLimiter struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	buckets   map[string]*traderBucket
	lastSweep time.Time
	now       func() time.Time
}

func NewTraderLimiter(rps float64, burst int) *TraderLimiter {
	if rps <= 0 {
		rps = defaultTraderRPS
	}
	if burst <= 0 {
		burst = defaultTraderBurst
	}
	return &TraderLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: make(map[string]*traderBucket),
		now:     time.Now,
	}
}

// Allow spends one token of the trader's bucket.
func (l *TraderLimiter) Allow(trader string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for id, b := range l.buckets {
			if now.Sub(b.lastSeen) > limiterIdleTTL {
				delete(l.buckets, id)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[trader]
	if !ok {
		b = &traderBucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[trader] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (l *TraderLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Middleware must sit behind the auth middleware.
func (l *TraderLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trader, ok := middleware.TraderFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, errors.New("missing trader"))
			return
		}
		if !l.Allow(trader) {
			w.Header().Set("Retry-After", strconv.Itoa(int(1/float64(l.rps))+1))
			writeJSONError(w, http.StatusTooManyRequests, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
