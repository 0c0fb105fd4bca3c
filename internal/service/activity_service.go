package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"autoexit/internal/bot"
	"autoexit/internal/models"
	"autoexit/internal/repository"
	"autoexit/pkg/utils"

	"go.uber.org/zap"
)

// Ошибки сервиса журнала
var (
	ErrInvalidLogType      = errors.New("invalid log type")
	ErrInvalidStatusAction = repository.ErrInvalidStatusAction
)

// Параметры журнала
const (
	defaultLogsLimit      = 100
	maxLogsLimit          = 1000
	defaultActivityBuffer = 256
	// Как часто (в записях) обрезать журнал до keep последних
	trimEvery = 100
	// Таймаут записи одной строки журнала
	activityWriteTimeout = 5 * time.Second
)

var validLogTypes = map[string]bool{
	models.ActivityTypeMonitor:   true,
	models.ActivityTypeAutoExit:  true,
	models.ActivityTypeSettings:  true,
	models.ActivityTypePositions: true,
	models.ActivityTypeError:     true,
}

// ActivityService - журнал действий мониторинга.
//
// Record никогда не блокирует вызывающего: запись кладётся в буферизованный
// канал, который разбирает фоновый worker (Run). При переполнении
// запись отбрасывается с предупреждением. Ошибки БД логируются и
// не возвращаются в Monitor.
type ActivityService struct {
	repo   ActivityRepositoryInterface
	logger *zap.Logger

	queue   chan *models.ActivityLog
	keep    int
	written int

	closeOnce sync.Once
	closed    chan struct{}
	now       func() time.Time
}

// NewActivityService создает сервис журнала.
// keep > 0 включает периодическую обрезку до keep последних записей.
func NewActivityService(repo ActivityRepositoryInterface, bufferSize, keep int, logger *zap.Logger) *ActivityService {
	if bufferSize <= 0 {
		bufferSize = defaultActivityBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{
		repo:   repo,
		logger: logger.With(utils.Component("activity")),
		queue:  make(chan *models.ActivityLog, bufferSize),
		keep:   keep,
		closed: make(chan struct{}),
		now:    time.Now,
	}
}

// Record реализует bot.AuditLog.
// Тип записи берётся из meta["type"], по умолчанию MONITOR.
func (s *ActivityService) Record(level, message string, meta map[string]interface{}) {
	entry := &models.ActivityLog{
		Timestamp: s.now(),
		Type:      models.ActivityTypeMonitor,
		Level:     level,
		Message:   message,
	}

	if len(meta) > 0 {
		entry.Meta = make(map[string]interface{}, len(meta))
		for k, v := range meta {
			if k == "type" {
				if t, ok := v.(string); ok && t != "" {
					entry.Type = t
				}
				continue
			}
			entry.Meta[k] = v
		}
		if len(entry.Meta) == 0 {
			entry.Meta = nil
		}
	}

	select {
	case <-s.closed:
		return
	default:
	}

	select {
	case s.queue <- entry:
	default:
		bot.RecordBufferOverflow("activity_log")
		s.logger.Warn("Activity buffer full, entry dropped",
			zap.String("type", entry.Type),
			zap.String("message", entry.Message),
		)
	}
}

// Run разбирает очередь до отмены ctx, затем дописывает оставшееся
func (s *ActivityService) Run(ctx context.Context) error {
	for {
		select {
		case entry := <-s.queue:
			s.write(entry)
		case <-ctx.Done():
			s.closeOnce.Do(func() { close(s.closed) })
			s.drain()
			return nil
		}
	}
}

// drain записывает то, что осталось в очереди на момент остановки
func (s *ActivityService) drain() {
	for {
		select {
		case entry := <-s.queue:
			s.write(entry)
		default:
			return
		}
	}
}

func (s *ActivityService) write(entry *models.ActivityLog) {
	ctx, cancel := context.WithTimeout(context.Background(), activityWriteTimeout)
	defer cancel()

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to write activity log",
			zap.String("type", entry.Type),
			zap.Error(err),
		)
		return
	}

	s.written++
	if s.keep > 0 && s.written%trimEvery == 0 {
		if deleted, err := s.repo.KeepRecent(ctx, s.keep); err != nil {
			s.logger.Warn("Failed to trim activity log", zap.Error(err))
		} else if deleted > 0 {
			s.logger.Debug("Activity log trimmed", zap.Int64("deleted", deleted))
		}
	}
}

// GetLogs возвращает последние записи журнала, новые первыми.
//
// logType пустой - все типы. limit по умолчанию 100, не больше 1000.
func (s *ActivityService) GetLogs(ctx context.Context, logType string, limit int) ([]*models.ActivityLog, error) {
	if limit <= 0 {
		limit = defaultLogsLimit
	}
	if limit > maxLogsLimit {
		limit = maxLogsLimit
	}

	logType = strings.ToUpper(strings.TrimSpace(logType))
	if logType == "" {
		return s.repo.GetRecent(ctx, limit)
	}
	if !validLogTypes[logType] {
		return nil, ErrInvalidLogType
	}
	return s.repo.GetByType(ctx, logType, limit)
}

// ClearLogs очищает журнал
func (s *ActivityService) ClearLogs(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Activity log cleared", zap.Int64("deleted", deleted))
	return deleted, nil
}

// GetStatus возвращает флаги статуса для UI
func (s *ActivityService) GetStatus(ctx context.Context) (*models.ActivityStatus, error) {
	return s.repo.GetStatus(ctx)
}

// SetStatus применяет действие live_on|live_off|auto_exit_start|auto_exit_stop
func (s *ActivityService) SetStatus(ctx context.Context, action string) (*models.ActivityStatus, error) {
	if !models.IsValidStatusAction(action) {
		return nil, ErrInvalidStatusAction
	}
	return s.repo.SetStatus(ctx, action)
}
