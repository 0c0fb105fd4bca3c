package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"autoexit/internal/models"
	"autoexit/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ============================================================
// Внешние зависимости мониторинга
// ============================================================

// PositionsSource - источник текущих позиций брокера
type PositionsSource interface {
	FetchPositions(ctx context.Context) (*models.PositionsResponse, error)
}

// SettingsSource - источник настроек мониторинга
type SettingsSource interface {
	GetMonitorSettings(ctx context.Context) (*models.Settings, error)
}

// LiquidationAction закрывает все опционные позиции
type LiquidationAction interface {
	ExitAll(ctx context.Context) (*models.ExitSummary, error)
}

// AuditLog - журнал действий (fire-and-forget, ошибки не возвращаются)
type AuditLog interface {
	Record(level, message string, meta map[string]interface{})
}

// ============================================================
// Ошибки и сообщения
// ============================================================

var (
	ErrAlreadyRunning = errors.New("monitoring already running")
	ErrNoPositions    = errors.New("positions source returned no data")
)

// Причины остановки, которые видит пользователь
const (
	CutReasonStopped = "Stopped by user."
	CutReasonError   = "Error in auto-exit monitoring."
)

// cutReasonExit формирует причину для срабатывания стопа
func cutReasonExit(trailingSL float64) string {
	return fmt.Sprintf("MTM hit trailing stop loss (₹%.2f). Trade auto-cut.", trailingSL)
}

// ============================================================
// Monitor
// ============================================================

// MonitorConfig - зависимости и параметры Monitor
type MonitorConfig struct {
	Positions  PositionsSource
	Settings   SettingsSource
	Liquidator LiquidationAction
	Audit      AuditLog           // опционально
	Publisher  *SnapshotPublisher // опционально, создаётся если nil
	Scheduler  Scheduler          // опционально, TickerScheduler по умолчанию
	Logger     *zap.Logger

	LogSize            int           // размер журнала сессии
	TickTimeout        time.Duration // таймаут I/O одного тика
	LiquidationTimeout time.Duration // таймаут закрытия позиций
}

// Monitor - цикл авто-выхода по трейлинг стопу
//
// Назначение:
// Периодически получает позиции, считает MTM, прогоняет трейлинг стоп
// и ровно один раз закрывает все позиции при срабатывании.
//
// Поддерживает два режима с одинаковой семантикой:
// - внутренний планировщик (Start)
// - внешний планировщик, вызывающий Tick (cron, scheduler endpoint)
//
// Гарантии:
// - тики не пересекаются (singleflight + проверка running/exited на входе)
// - TrailingState меняется только после расчёта и только текущим тиком
// - ликвидация вызывается не более одного раза на сессию
type Monitor struct {
	positions  PositionsSource
	settings   SettingsSource
	liquidator LiquidationAction
	audit      AuditLog
	publisher  *SnapshotPublisher
	scheduler  Scheduler
	logger     *zap.Logger

	logSize            int
	tickTimeout        time.Duration
	liquidationTimeout time.Duration

	mu        sync.Mutex // защищает state, task, sessionID
	state     *MonitorState
	task      Task
	sessionID string

	flight singleflight.Group
	now    func() time.Time
}

// Значения по умолчанию
const (
	defaultTickTimeout        = 10 * time.Second
	defaultLiquidationTimeout = 60 * time.Second
)

// NewMonitor создаёт Monitor
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = NewSnapshotPublisher()
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewTickerScheduler(context.Background())
	}
	if cfg.LogSize <= 0 {
		cfg.LogSize = models.MaxSnapshotLogs
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = defaultTickTimeout
	}
	if cfg.LiquidationTimeout <= 0 {
		cfg.LiquidationTimeout = defaultLiquidationTimeout
	}

	return &Monitor{
		positions:          cfg.Positions,
		settings:           cfg.Settings,
		liquidator:         cfg.Liquidator,
		audit:              cfg.Audit,
		publisher:          cfg.Publisher,
		scheduler:          cfg.Scheduler,
		logger:             cfg.Logger.With(utils.Component("monitor")),
		logSize:            cfg.LogSize,
		tickTimeout:        cfg.TickTimeout,
		liquidationTimeout: cfg.LiquidationTimeout,
		state:              NewMonitorState(cfg.LogSize),
		now:                time.Now,
	}
}

// Publisher возвращает publisher снимков
func (m *Monitor) Publisher() *SnapshotPublisher {
	return m.publisher
}

// Snapshot возвращает последний опубликованный снимок
func (m *Monitor) Snapshot() *models.MonitorSnapshot {
	return m.publisher.Get()
}

// State возвращает текущее состояние сессии
func (m *Monitor) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.State()
}

// ============================================================
// Start / Stop
// ============================================================

// Start запускает мониторинг: немедленный тик, затем тики по расписанию.
// Возвращает ErrAlreadyRunning если мониторинг уже запущен (состояние не меняется).
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	running := m.state.Running
	m.mu.Unlock()
	if running {
		m.logger.Warn("Start rejected: monitoring already running")
		return ErrAlreadyRunning
	}

	raw, err := m.settings.GetMonitorSettings(ctx)
	if err != nil {
		m.logger.Warn("Failed to load settings on start, using defaults", zap.Error(err))
		raw = nil
	}
	settings := NormalizeSettings(raw)

	m.mu.Lock()
	// Повторная проверка: параллельный Start мог успеть между блокировками
	if m.state.Running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.transition(models.StateRunning)
	m.sessionID = uuid.NewString()
	m.state.begin(settings.Trailing, m.now())
	m.state.Log(models.LevelInfo, fmt.Sprintf("Auto-exit monitoring started (every %s)", utils.FormatDuration(settings.Frequency)))
	session := m.sessionID
	snap := m.state.Snapshot(m.now())
	m.mu.Unlock()

	m.publisher.Publish(snap)
	m.logger.Info("Auto-exit monitoring started",
		utils.SessionID(session),
		zap.Duration("frequency", settings.Frequency),
		zap.Float64("capital", settings.TotalCapital),
	)
	m.record(models.LevelInfo, "Auto-exit monitoring started", map[string]interface{}{
		"type":         models.ActivityTypeMonitor,
		"session_id":   session,
		"frequency_ms": settings.Frequency.Milliseconds(),
	})

	// Немедленный тик сокращает время до первой оценки
	_ = m.Tick(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Running || m.sessionID != session {
		// Первый тик уже завершил сессию (выход или ошибка)
		return nil
	}
	m.task = m.scheduler.Every(settings.Frequency, func(tickCtx context.Context) {
		_ = m.Tick(tickCtx)
	})
	return nil
}

// Stop останавливает мониторинг. Идемпотентен.
func (m *Monitor) Stop(ctx context.Context) {
	m.mu.Lock()
	wasRunning := m.state.Running || m.task != nil
	task := m.task
	m.task = nil

	m.transition(models.StateStopped)
	m.state.halt(CutReasonStopped)
	if wasRunning {
		m.state.Log(models.LevelInfo, "Auto-exit monitoring stopped by user")
	} else {
		m.state.Log(models.LevelInfo, "Stop requested, monitoring was not running")
	}
	session := m.sessionID
	snap := m.state.Snapshot(m.now())
	m.mu.Unlock()

	if task != nil {
		task.Stop()
	}
	m.publisher.Publish(snap)

	if wasRunning {
		m.logger.Info("Auto-exit monitoring stopped", utils.SessionID(session))
	} else {
		m.logger.Info("Stop requested but no monitoring interval was running")
	}
	m.record(models.LevelInfo, "Auto-exit monitoring stopped", map[string]interface{}{
		"type":        models.ActivityTypeMonitor,
		"session_id":  session,
		"was_running": wasRunning,
	})
}

// Shutdown останавливает расписание и ждёт выхода из цикла задачи
func (m *Monitor) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	task := m.task
	m.task = nil
	m.mu.Unlock()

	if task == nil {
		return nil
	}
	task.Stop()

	select {
	case <-task.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClearSnapshot сбрасывает опубликованный снимок в начальное состояние.
// Если мониторинг не запущен, журнал и числа сессии тоже очищаются.
func (m *Monitor) ClearSnapshot() *models.MonitorSnapshot {
	m.mu.Lock()
	if !m.state.Running {
		m.state = NewMonitorState(m.logSize)
		// незавершённая ликвидация прошлой сессии не пишет в очищенное состояние
		m.sessionID = ""
	}
	m.mu.Unlock()

	m.logger.Info("Trailing SL snapshot cleared")
	return m.publisher.Reset()
}

// ============================================================
// Tick
// ============================================================

// Tick выполняет один цикл оценки.
// Параллельные вызовы в рамках одной сессии объединяются: пока идёт тик,
// новый вызов ждёт его результат вместо второго расчёта.
func (m *Monitor) Tick(ctx context.Context) error {
	m.mu.Lock()
	key := "tick:" + m.sessionID
	m.mu.Unlock()

	_, err, _ := m.flight.Do(key, func() (interface{}, error) {
		return nil, m.tick(ctx)
	})
	return err
}

func (m *Monitor) tick(parent context.Context) error {
	m.mu.Lock()
	if !m.state.Running || m.state.Exited {
		m.mu.Unlock()
		RecordTick("skipped", 0)
		return nil
	}
	session := m.sessionID
	m.mu.Unlock()

	started := time.Now()

	// Тик, начатый до отмены расписания, должен завершиться
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), m.tickTimeout)
	defer cancel()

	positions, err := m.positions.FetchPositions(ctx)
	if err == nil && positions == nil {
		err = ErrNoPositions
	}
	if err != nil {
		return m.fail(session, fmt.Errorf("fetch positions: %w", err), started)
	}

	raw, err := m.settings.GetMonitorSettings(ctx)
	if err != nil {
		return m.fail(session, fmt.Errorf("fetch settings: %w", err), started)
	}
	settings := NormalizeSettings(raw)

	mtm := positions.TotalUnrealized()
	mtmPct := utils.PercentOf(mtm, settings.TotalCapital)

	m.mu.Lock()
	if m.sessionID != session || m.state.Exited {
		m.mu.Unlock()
		RecordTick("skipped", msSince(started))
		return nil
	}

	result := nextTrailingStop(settings.Trailing, m.state.Trailing, mtmPct)
	m.state.applyTick(mtm, mtmPct, result, settings.TotalCapital)

	trailingSL := *m.state.TrailingSL
	m.state.Log(models.LevelInfo, fmt.Sprintf("MTM: ₹%.2f (%.2f%%) | Trailing SL: ₹%.2f (%.2f%%)",
		mtm, mtmPct, trailingSL, result.StopLossPct))

	// Стоп после начала тика: числа применяем, но выход не запускаем
	shouldExit := result.ShouldExit && m.state.Running && !m.state.Exited

	var task Task
	if shouldExit {
		reason := cutReasonExit(trailingSL)
		m.transition(models.StateExited)
		m.state.exit(reason)
		m.state.Log(models.LevelWarn, reason)
		task = m.task
		m.task = nil
	}
	snap := m.state.Snapshot(m.now())
	m.mu.Unlock()

	m.publisher.Publish(snap)
	RecordTrailing(mtmPct, result.StopLossPct)
	RecordTick("ok", msSince(started))

	m.logger.Debug("Tick evaluated",
		utils.SessionID(session),
		utils.MTM(mtm),
		utils.MTMPct(mtmPct),
		utils.StopLossPct(result.StopLossPct),
		zap.Bool("should_exit", result.ShouldExit),
	)

	if !shouldExit {
		return nil
	}

	if task != nil {
		task.Stop()
	}
	m.liquidate(session, mtm, trailingSL)
	return nil
}

// liquidate закрывает позиции ровно один раз и сохраняет summary
func (m *Monitor) liquidate(session string, mtm, trailingSL float64) {
	m.logger.Warn("Trailing stop loss hit, exiting all positions",
		utils.SessionID(session),
		utils.MTM(mtm),
		utils.TrailingSL(trailingSL),
	)
	m.record(models.LevelWarn, cutReasonExit(trailingSL), map[string]interface{}{
		"type":        models.ActivityTypeAutoExit,
		"session_id":  session,
		"mtm":         mtm,
		"trailing_sl": trailingSL,
	})

	ctx, cancel := context.WithTimeout(context.Background(), m.liquidationTimeout)
	defer cancel()

	started := time.Now()
	summary, err := m.liquidator.ExitAll(ctx)
	if err != nil {
		m.logger.Error("Liquidation failed", utils.SessionID(session), zap.Error(err))
		summary = models.FailedExitSummary(err)
	} else if summary == nil {
		summary = &models.ExitSummary{Success: false, Error: "liquidation returned no result"}
	}
	RecordExit(msSince(started))
	for _, r := range summary.Results {
		RecordExitOrder(r.Error == "")
	}

	m.mu.Lock()
	if m.sessionID != session {
		// Запущена новая сессия или снимок очищен, summary к ним не относится
		m.mu.Unlock()
		m.logger.Warn("Liquidation finished after a new session started", utils.SessionID(session))
		return
	}
	m.state.Summary = summary
	level := models.LevelInfo
	if !summary.Success {
		level = models.LevelError
	}
	m.state.Log(level, fmt.Sprintf("Exit all positions: success=%t, exited=%d", summary.Success, summary.ExitedCount))
	snap := m.state.Snapshot(m.now())
	m.mu.Unlock()

	m.publisher.Publish(snap)
	m.record(level, "Auto-exit liquidation finished", map[string]interface{}{
		"type":         models.ActivityTypeAutoExit,
		"session_id":   session,
		"success":      summary.Success,
		"exited_count": summary.ExitedCount,
		"error":        summary.Error,
	})
}

// fail останавливает мониторинг после ошибки тика. Повторов нет.
func (m *Monitor) fail(session string, err error, started time.Time) error {
	RecordTick("error", msSince(started))
	m.logger.Error("Auto-exit monitoring tick failed", utils.SessionID(session), zap.Error(err))

	m.mu.Lock()
	if m.sessionID != session || !m.state.Running {
		// Сессию уже остановили: причину не перезаписываем
		m.mu.Unlock()
		return err
	}
	m.transition(models.StateStopped)
	m.state.halt(CutReasonError)
	m.state.Log(models.LevelError, fmt.Sprintf("%s %v", CutReasonError, err))
	task := m.task
	m.task = nil
	snap := m.state.Snapshot(m.now())
	m.mu.Unlock()

	if task != nil {
		task.Stop()
	}
	m.publisher.Publish(snap)
	m.record(models.LevelError, CutReasonError, map[string]interface{}{
		"type":       models.ActivityTypeError,
		"session_id": session,
		"error":      err.Error(),
	})
	return err
}

// transition вызывается под m.mu
func (m *Monitor) transition(to string) {
	from := m.state.State()
	if !CanTransition(from, to) {
		m.logger.Debug("Unexpected monitor state transition", zap.String("from", from), zap.String("to", to))
	}
	RecordTransition(from, to)
}

func (m *Monitor) record(level, message string, meta map[string]interface{}) {
	if m.audit == nil {
		return
	}
	m.audit.Record(level, message, meta)
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
