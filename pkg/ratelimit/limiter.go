package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Значения по умолчанию для rate <= 0 и burst <= 0
const (
	defaultRate       = 10
	defaultBurstRatio = 2
)

// RateLimiter - token bucket.
//
// Ведро пополняется со скоростью rate токенов в секунду до ёмкости burst,
// каждый запрос забирает один токен. Новый limiter начинает с полным ведром.
//
//	limiter := NewRateLimiter(5, 10)
//	if err := limiter.Wait(ctx); err != nil { ... } // блокирующее ожидание
//	if limiter.Allow() { ... }                      // без ожидания
type RateLimiter struct {
	mu         sync.Mutex
	rate       float64
	burst      float64
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
}

// NewRateLimiter создаёт limiter на rate запросов в секунду с ёмкостью burst.
// burst меньше rate поднимается до rate.
func NewRateLimiter(rate, burst float64) *RateLimiter {
	if rate <= 0 {
		rate = defaultRate
	}
	if burst <= 0 {
		burst = rate * defaultBurstRatio
	}
	if burst < rate {
		burst = rate
	}

	rl := &RateLimiter{
		rate:  rate,
		burst: burst,
		now:   time.Now,
	}
	rl.tokens = burst
	rl.lastRefill = rl.now()
	return rl
}

// refill вызывается под mu
func (rl *RateLimiter) refill() {
	now := rl.now()
	if elapsed := now.Sub(rl.lastRefill).Seconds(); elapsed > 0 {
		rl.tokens += elapsed * rl.rate
		if rl.tokens > rl.burst {
			rl.tokens = rl.burst
		}
	}
	rl.lastRefill = now
}

// take забирает токен или возвращает время до появления следующего
func (rl *RateLimiter) take() (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return true, 0
	}
	return false, time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
}

// Allow забирает токен без ожидания
func (rl *RateLimiter) Allow() bool {
	ok, _ := rl.take()
	return ok
}

// Wait ждёт токен или отмену контекста
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		ok, delay := rl.take()
		if ok {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Tokens возвращает текущее число токенов
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// ============================================================
// MultiLimiter - отдельные лимиты для разных категорий запросов
// ============================================================

// MultiLimiter хранит limiter на каждую категорию (позиции, ордера).
// Категория без limiter не ограничивается.
type MultiLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*RateLimiter
}

// NewMultiLimiter создаёт пустой MultiLimiter
func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{limiters: make(map[string]*RateLimiter)}
}

// Add задаёт лимит для категории
func (ml *MultiLimiter) Add(category string, rate, burst float64) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	ml.limiters[category] = NewRateLimiter(rate, burst)
}

func (ml *MultiLimiter) get(category string) *RateLimiter {
	ml.mu.RLock()
	defer ml.mu.RUnlock()
	return ml.limiters[category]
}

// Wait ждёт токен категории
func (ml *MultiLimiter) Wait(ctx context.Context, category string) error {
	if l := ml.get(category); l != nil {
		return l.Wait(ctx)
	}
	return nil
}

// Allow забирает токен категории без ожидания
func (ml *MultiLimiter) Allow(category string) bool {
	if l := ml.get(category); l != nil {
		return l.Allow()
	}
	return true
}
