package middleware

import (
	"net/http"
	"sync"
	"time"

	"autoexit/pkg/ratelimit"
)

// idleLimiterTTL - limiter клиента удаляется после этого времени без запросов
const idleLimiterTTL = 10 * time.Minute

type ipLimiter struct {
	limiter  *ratelimit.RateLimiter
	lastSeen time.Time
}

// IPRateLimiter ограничивает частоту запросов с одного IP (token bucket)
type IPRateLimiter struct {
	rate  float64
	burst float64

	mu        sync.Mutex
	clients   map[string]*ipLimiter
	lastPrune time.Time
	now       func() time.Time
}

// NewIPRateLimiter создаёт ограничитель: rate запросов/сек, burst всплеск
func NewIPRateLimiter(rate, burst float64) *IPRateLimiter {
	return &IPRateLimiter{
		rate:    rate,
		burst:   burst,
		clients: make(map[string]*ipLimiter),
		now:     time.Now,
	}
}

// Allow расходует токен клиента ip
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastPrune) > idleLimiterTTL {
		for key, c := range l.clients {
			if now.Sub(c.lastSeen) > idleLimiterTTL {
				delete(l.clients, key)
			}
		}
		l.lastPrune = now
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &ipLimiter{limiter: ratelimit.NewRateLimiter(l.rate, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	l.mu.Unlock()

	return c.limiter.Allow()
}

// Middleware отвечает 429, когда клиент исчерпал лимит.
// /health, /metrics и /ws не ограничиваются.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health", "/metrics", "/ws":
			next.ServeHTTP(w, r)
			return
		}

		if !l.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
