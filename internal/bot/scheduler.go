package bot

import (
	"context"
	"sync"
	"time"
)

// Task - повторяющаяся задача с возможностью отмены
type Task interface {
	// Stop отменяет будущие запуски. Безопасен для повторного вызова
	// и для вызова изнутри самой задачи.
	Stop()
	// Done закрывается после выхода из цикла задачи
	Done() <-chan struct{}
}

// Scheduler запускает fn каждые interval до вызова Task.Stop
type Scheduler interface {
	Every(interval time.Duration, fn func(ctx context.Context)) Task
}

// TickerScheduler - планировщик на time.Ticker
//
// Запуски fn внутри одной задачи не пересекаются: следующий тик
// ticker'а ждёт завершения предыдущего вызова (лишние тики отбрасываются).
type TickerScheduler struct {
	parent context.Context
}

// NewTickerScheduler создаёт планировщик; отмена parent останавливает все задачи
func NewTickerScheduler(parent context.Context) *TickerScheduler {
	if parent == nil {
		parent = context.Background()
	}
	return &TickerScheduler{parent: parent}
}

// Every запускает fn с интервалом interval
func (s *TickerScheduler) Every(interval time.Duration, fn func(ctx context.Context)) Task {
	ctx, cancel := context.WithCancel(s.parent)
	t := &tickerTask{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(t.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Stop мог быть вызван пока ждали ticker
				if ctx.Err() != nil {
					return
				}
				fn(ctx)
			}
		}
	}()

	return t
}

type tickerTask struct {
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

func (t *tickerTask) Stop() {
	t.once.Do(t.cancel)
}

func (t *tickerTask) Done() <-chan struct{} {
	return t.done
}
