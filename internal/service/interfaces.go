package service

import (
	"context"

	"autoexit/internal/bot"
	"autoexit/internal/exchange"
	"autoexit/internal/models"
	"autoexit/internal/repository"
)

// SettingsRepositoryInterface определяет интерфейс репозитория настроек
type SettingsRepositoryInterface interface {
	Get(ctx context.Context) (*models.Settings, error)
	Update(ctx context.Context, settings *models.Settings) error
	ResetToDefaults(ctx context.Context) (*models.Settings, error)
}

// ActivityRepositoryInterface определяет интерфейс репозитория журнала действий
type ActivityRepositoryInterface interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	GetRecent(ctx context.Context, limit int) ([]*models.ActivityLog, error)
	GetByType(ctx context.Context, logType string, limit int) ([]*models.ActivityLog, error)
	DeleteAll(ctx context.Context) (int64, error)
	KeepRecent(ctx context.Context, keep int) (int64, error)
	GetStatus(ctx context.Context) (*models.ActivityStatus, error)
	SetStatus(ctx context.Context, action string) (*models.ActivityStatus, error)
}

// TrailingStatusRepositoryInterface определяет интерфейс хранилища последнего снимка
type TrailingStatusRepositoryInterface interface {
	Get(ctx context.Context) (*models.TrailingStatus, error)
	Save(ctx context.Context, snapshot *models.MonitorSnapshot) error
	Clear(ctx context.Context) error
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ SettingsRepositoryInterface = (*repository.SettingsRepository)(nil)
var _ ActivityRepositoryInterface = (*repository.ActivityRepository)(nil)
var _ TrailingStatusRepositoryInterface = (*repository.TrailingStatusRepository)(nil)

// ============ Зависимости мониторинга ============

// MonitorController - управление циклом авто-выхода (реализует *bot.Monitor)
type MonitorController interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	Tick(ctx context.Context) error
	Snapshot() *models.MonitorSnapshot
	ClearSnapshot() *models.MonitorSnapshot
	State() string
}

// SnapshotMirror - внешняя копия снимка (Redis)
type SnapshotMirror interface {
	SaveSnapshot(ctx context.Context, snapshot *models.MonitorSnapshot) error
	ClearSnapshot(ctx context.Context) error
}

// SnapshotBroadcaster - рассылка снимков клиентам (WebSocket hub)
type SnapshotBroadcaster interface {
	BroadcastSnapshot(snapshot *models.MonitorSnapshot)
}

// ExitAction закрывает все опционные позиции
type ExitAction interface {
	ExitAll(ctx context.Context) (*models.ExitSummary, error)
}

var _ MonitorController = (*bot.Monitor)(nil)
var _ ExitAction = (*exchange.Liquidator)(nil)
var _ bot.AuditLog = (*ActivityService)(nil)
var _ bot.SettingsSource = (*SettingsService)(nil)

// ============ Интерфейсы сервисов для Dependency Injection ============

// SettingsServiceInterface определяет интерфейс сервиса настроек
type SettingsServiceInterface interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	UpdateSettings(ctx context.Context, req *UpdateSettingsRequest) (*models.Settings, error)
	ResetToDefaults(ctx context.Context) (*models.Settings, error)
}

// ActivityServiceInterface определяет интерфейс сервиса журнала действий
type ActivityServiceInterface interface {
	GetLogs(ctx context.Context, logType string, limit int) ([]*models.ActivityLog, error)
	ClearLogs(ctx context.Context) (int64, error)
	GetStatus(ctx context.Context) (*models.ActivityStatus, error)
	SetStatus(ctx context.Context, action string) (*models.ActivityStatus, error)
}

// MonitorServiceInterface определяет интерфейс сервиса мониторинга
type MonitorServiceInterface interface {
	HandleAction(ctx context.Context, action string) (*models.ActionResult, error)
	Snapshot() *models.MonitorSnapshot
	GetStatus(ctx context.Context) (*models.TrailingStatus, error)
	ClearStatus(ctx context.Context) (*models.MonitorSnapshot, error)
}

// PositionsServiceInterface определяет интерфейс сервиса позиций
type PositionsServiceInterface interface {
	GetPositions(ctx context.Context) (*models.PositionsResponse, error)
	ExitAll(ctx context.Context) (*models.ExitSummary, error)
	MockEnabled() bool
	GetMockPositions() ([]models.Position, error)
	SaveMockPositions(positions []models.Position) ([]models.Position, error)
	SetMockUnrealized(index int, target float64) (*models.Position, error)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ SettingsServiceInterface = (*SettingsService)(nil)
var _ ActivityServiceInterface = (*ActivityService)(nil)
var _ MonitorServiceInterface = (*MonitorService)(nil)
var _ PositionsServiceInterface = (*PositionsService)(nil)
