package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"autoexit/internal/bot"
	"autoexit/internal/models"
	"autoexit/pkg/utils"

	"go.uber.org/zap"
)

// Ошибки и ответы сервиса мониторинга
var (
	ErrInvalidAction = errors.New("invalid action")
)

// Тексты ответов, которые видит UI
const (
	MessageAlreadyRunning = "Already running"
	MessageInvalidAction  = "Invalid action"
	MessageStatusCleared  = "All trailing_sl_status entries cleared."
)

// persistTimeout - таймаут записи снимка в БД и Redis
const persistTimeout = 5 * time.Second

// StatusSetter обновляет флаги статуса для UI
type StatusSetter interface {
	SetStatus(ctx context.Context, action string) (*models.ActivityStatus, error)
}

// MonitorServiceConfig - зависимости MonitorService
type MonitorServiceConfig struct {
	Monitor     MonitorController
	StatusRepo  TrailingStatusRepositoryInterface
	Status      StatusSetter        // опционально
	Mirror      SnapshotMirror      // опционально (Redis)
	Broadcaster SnapshotBroadcaster // опционально (WebSocket)
	Logger      *zap.Logger
}

// MonitorService - команды управления мониторингом и хранение снимков.
//
// Отвечает за:
// - start/stop/tick по запросу UI или внешнего планировщика
// - сохранение каждого опубликованного снимка (БД, Redis, WebSocket)
// - очистку сохранённого статуса
// - восстановление мониторинга после перезапуска
type MonitorService struct {
	monitor     MonitorController
	statusRepo  TrailingStatusRepositoryInterface
	status      StatusSetter
	mirror      SnapshotMirror
	broadcaster SnapshotBroadcaster
	logger      *zap.Logger

	mu          sync.Mutex
	lastRunning bool
}

// NewMonitorService создает сервис мониторинга
func NewMonitorService(cfg MonitorServiceConfig) *MonitorService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &MonitorService{
		monitor:     cfg.Monitor,
		statusRepo:  cfg.StatusRepo,
		status:      cfg.Status,
		mirror:      cfg.Mirror,
		broadcaster: cfg.Broadcaster,
		logger:      cfg.Logger.With(utils.Component("monitor_service")),
	}
}

// HandleAction выполняет команду start|stop|tick.
//
// Повторный start не ошибка API: возвращается {success: false, error: "Already running"}.
// Неизвестная команда возвращает ErrInvalidAction.
func (s *MonitorService) HandleAction(ctx context.Context, action string) (*models.ActionResult, error) {
	switch action {
	case models.ActionStart:
		err := s.monitor.Start(ctx)
		if errors.Is(err, bot.ErrAlreadyRunning) {
			return &models.ActionResult{Success: false, Error: MessageAlreadyRunning}, nil
		}
		if err != nil {
			return nil, err
		}
		return &models.ActionResult{Success: true, Message: "Auto-exit monitoring started"}, nil

	case models.ActionStop:
		s.monitor.Stop(ctx)
		return &models.ActionResult{Success: true, Message: "Auto-exit monitoring stopped"}, nil

	case models.ActionTick:
		if err := s.monitor.Tick(ctx); err != nil {
			return &models.ActionResult{Success: false, Error: err.Error()}, nil
		}
		return &models.ActionResult{Success: true}, nil
	}

	return nil, ErrInvalidAction
}

// Snapshot возвращает текущий снимок мониторинга
func (s *MonitorService) Snapshot() *models.MonitorSnapshot {
	return s.monitor.Snapshot()
}

// GetStatus возвращает сохранённый снимок (nil, если его нет)
func (s *MonitorService) GetStatus(ctx context.Context) (*models.TrailingStatus, error) {
	return s.statusRepo.Get(ctx)
}

// ClearStatus удаляет сохранённый снимок и сбрасывает текущий
func (s *MonitorService) ClearStatus(ctx context.Context) (*models.MonitorSnapshot, error) {
	if err := s.statusRepo.Clear(ctx); err != nil {
		return nil, err
	}
	if s.mirror != nil {
		if err := s.mirror.ClearSnapshot(ctx); err != nil {
			s.logger.Warn("Failed to clear snapshot mirror", zap.Error(err))
		}
	}
	return s.monitor.ClearSnapshot(), nil
}

// Persist сохраняет опубликованный снимок.
// Подписывается на SnapshotPublisher; ошибки хранилищ логируются.
func (s *MonitorService) Persist(snapshot *models.MonitorSnapshot) {
	if snapshot == nil {
		return
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastSnapshot(snapshot)
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.statusRepo.Save(ctx, snapshot); err != nil {
		s.logger.Warn("Failed to persist trailing SL status", zap.Error(err))
	}
	if s.mirror != nil {
		if err := s.mirror.SaveSnapshot(ctx, snapshot); err != nil {
			s.logger.Warn("Failed to mirror snapshot", zap.Error(err))
		}
	}

	s.syncRunningFlag(ctx, snapshot.Running)
}

// syncRunningFlag обновляет auto_exit_running при смене состояния
func (s *MonitorService) syncRunningFlag(ctx context.Context, running bool) {
	s.mu.Lock()
	changed := running != s.lastRunning
	s.lastRunning = running
	s.mu.Unlock()

	if !changed || s.status == nil {
		return
	}

	action := models.StatusActionAutoExitStop
	if running {
		action = models.StatusActionAutoExitStart
	}
	if _, err := s.status.SetStatus(ctx, action); err != nil {
		s.logger.Warn("Failed to update auto-exit status", utils.Action(action), zap.Error(err))
	}
}

// Resume запускает мониторинг, если сохранённый снимок говорит,
// что до перезапуска сессия работала и выхода не было.
func (s *MonitorService) Resume(ctx context.Context) (bool, error) {
	status, err := s.statusRepo.Get(ctx)
	if err != nil {
		return false, err
	}
	if status == nil || status.Snapshot == nil {
		return false, nil
	}
	if !status.Snapshot.Running || status.Snapshot.Exited {
		return false, nil
	}

	s.logger.Info("Resuming auto-exit monitoring after restart",
		zap.Time("last_update", status.UpdatedAt),
	)
	if err := s.monitor.Start(ctx); err != nil && !errors.Is(err, bot.ErrAlreadyRunning) {
		return false, err
	}
	return true, nil
}
