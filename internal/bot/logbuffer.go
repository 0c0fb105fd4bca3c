package bot

import (
	"sync"
	"time"

	"autoexit/internal/models"
)

// LogBuffer - кольцевой буфер строк журнала мониторинга
//
// Хранит последние maxSize записей, старые перезаписываются.
type LogBuffer struct {
	mu      sync.Mutex
	entries []models.LogEntry
	maxSize int
	next    int
	wrapped bool
	now     func() time.Time
}

// NewLogBuffer создаёт буфер на maxSize записей
func NewLogBuffer(maxSize int) *LogBuffer {
	if maxSize <= 0 {
		maxSize = models.MaxSnapshotLogs
	}
	return &LogBuffer{
		entries: make([]models.LogEntry, maxSize),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Add добавляет запись
func (lb *LogBuffer) Add(level, message string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.entries[lb.next] = models.LogEntry{
		Time:    lb.now(),
		Level:   level,
		Message: message,
	}
	lb.next = (lb.next + 1) % lb.maxSize
	if lb.next == 0 {
		lb.wrapped = true
	}
}

// Recent возвращает до limit последних записей в хронологическом порядке
func (lb *LogBuffer) Recent(limit int) []models.LogEntry {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	size := lb.next
	if lb.wrapped {
		size = lb.maxSize
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]models.LogEntry, 0, limit)
	start := lb.next - limit
	if start < 0 {
		start += lb.maxSize
	}
	for i := 0; i < limit; i++ {
		out = append(out, lb.entries[(start+i)%lb.maxSize])
	}
	return out
}

// Len возвращает количество записей в буфере
func (lb *LogBuffer) Len() int {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.wrapped {
		return lb.maxSize
	}
	return lb.next
}

// Clear очищает буфер
func (lb *LogBuffer) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.entries = make([]models.LogEntry, lb.maxSize)
	lb.next = 0
	lb.wrapped = false
}
