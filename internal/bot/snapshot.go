package bot

import (
	"sync"
	"sync/atomic"
	"time"

	"autoexit/internal/models"
)

// SnapshotListener получает каждый опубликованный снимок.
// Вызывается асинхронно; снимок нельзя изменять.
type SnapshotListener func(*models.MonitorSnapshot)

// SnapshotPublisher - хранилище последнего снимка мониторинга (copy-on-write)
//
// Запись заменяет указатель целиком, поэтому читатель всегда видит
// либо старый, либо новый полный снимок.
type SnapshotPublisher struct {
	current atomic.Pointer[models.MonitorSnapshot]

	mu        sync.RWMutex
	listeners []SnapshotListener
	notifyCh  chan *models.MonitorSnapshot
	stopOnce  sync.Once
	done      chan struct{}

	now func() time.Time
}

// notifyBufferSize - размер очереди уведомлений подписчиков
const notifyBufferSize = 64

// NewSnapshotPublisher создаёт publisher с пустым снимком
func NewSnapshotPublisher() *SnapshotPublisher {
	p := &SnapshotPublisher{
		notifyCh: make(chan *models.MonitorSnapshot, notifyBufferSize),
		done:     make(chan struct{}),
		now:      time.Now,
	}
	p.current.Store(models.EmptySnapshot(p.now()))
	go p.dispatch()
	return p
}

// Get возвращает текущий снимок. Результат нельзя изменять.
func (p *SnapshotPublisher) Get() *models.MonitorSnapshot {
	return p.current.Load()
}

// Publish атомарно заменяет снимок
func (p *SnapshotPublisher) Publish(s *models.MonitorSnapshot) {
	if s == nil {
		return
	}
	p.current.Store(s)
	p.notify(s)
}

// Reset возвращает начальный пустой снимок (очистка истории трейлинга)
func (p *SnapshotPublisher) Reset() *models.MonitorSnapshot {
	s := models.EmptySnapshot(p.now())
	p.current.Store(s)
	p.notify(s)
	return s
}

// Subscribe добавляет подписчика на новые снимки
func (p *SnapshotPublisher) Subscribe(l SnapshotListener) {
	if l == nil {
		return
	}
	p.mu.Lock()
	p.listeners = append(p.listeners, l)
	p.mu.Unlock()
}

// Close останавливает рассылку подписчикам
func (p *SnapshotPublisher) Close() {
	p.stopOnce.Do(func() { close(p.done) })
}

// notify не блокирует писателя: при переполнении старое уведомление вытесняется
func (p *SnapshotPublisher) notify(s *models.MonitorSnapshot) {
	select {
	case <-p.done:
		return
	default:
	}

	for {
		select {
		case p.notifyCh <- s:
			return
		default:
		}
		select {
		case <-p.notifyCh:
			RecordBufferOverflow("snapshot_notify")
		default:
		}
	}
}

func (p *SnapshotPublisher) dispatch() {
	for {
		select {
		case <-p.done:
			return
		case s := <-p.notifyCh:
			p.mu.RLock()
			listeners := p.listeners
			p.mu.RUnlock()
			for _, l := range listeners {
				l(s)
			}
		}
	}
}
