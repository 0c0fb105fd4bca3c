package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config - экспоненциальный backoff с jitter:
// delay = min(InitialDelay * Multiplier^attempt, MaxDelay) ± JitterFactor.
//
// Используется только для ожидания зависимостей при старте (БД).
// Тики мониторинга и закрытие позиций не повторяются.
type Config struct {
	MaxRetries   int // попыток всего, включая первую; <= 0 - до отмены ctx
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0..1

	// RetryIf решает, повторять ли ошибку (nil - повторять все, кроме Permanent)
	RetryIf func(error) bool

	// OnRetry вызывается перед ожиданием очередной попытки
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig: 4 попытки, 100ms, 200ms, 400ms
func DefaultConfig() Config {
	return Config{
		MaxRetries:   4,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.1,
	}
}

// NetworkConfig для сетевых зависимостей: 4 попытки, 1s, 2s, 4s
func NetworkConfig() Config {
	return Config{
		MaxRetries:   4,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.2,
	}
}

func (c *Config) normalize() {
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2
	}
	c.JitterFactor = math.Min(math.Max(c.JitterFactor, 0), 1)
}

// delay возвращает паузу после попытки attempt (с нуля)
func (c *Config) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt))
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.JitterFactor > 0 {
		d += d * c.JitterFactor * (rand.Float64()*2 - 1)
	}
	return time.Duration(math.Max(d, 0))
}

// Do выполняет operation, пока она не вернёт nil, не закончатся попытки
// или не отменится ctx. Возвращает последнюю ошибку операции.
func Do(ctx context.Context, operation func() error, cfg Config) error {
	cfg.normalize()

	var lastErr error
	for attempt := 0; cfg.MaxRetries <= 0 || attempt < cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsPermanent(err) || (cfg.RetryIf != nil && !cfg.RetryIf(err)) {
			return err
		}
		if cfg.MaxRetries > 0 && attempt == cfg.MaxRetries-1 {
			break
		}

		delay := cfg.delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		}
	}

	return lastErr
}

// permanentError - ошибка, которую нет смысла повторять
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку как неповторяемую (неверный пароль БД и т.п.)
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent проверяет метку Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
