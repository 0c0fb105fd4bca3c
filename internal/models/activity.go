package models

import "time"

// ActivityLog представляет запись журнала действий
type ActivityLog struct {
	ID        int                    `json:"id" db:"id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	Type      string                 `json:"type" db:"type"`   // MONITOR, AUTO_EXIT, SETTINGS, POSITIONS, ERROR
	Level     string                 `json:"level" db:"level"` // info, warn, error
	Message   string                 `json:"message" db:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty" db:"meta"` // JSON в БД
}

// Типы записей журнала
const (
	ActivityTypeMonitor   = "MONITOR"   // старт/стоп/тик мониторинга
	ActivityTypeAutoExit  = "AUTO_EXIT" // срабатывание трейлинг-стопа и закрытие позиций
	ActivityTypeSettings  = "SETTINGS"  // изменение настроек
	ActivityTypePositions = "POSITIONS" // работа с позициями брокера
	ActivityTypeError     = "ERROR"     // ошибки мониторинга
)

// Уровни важности
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// ActivityStatus - флаги состояния для UI (одна строка в БД)
type ActivityStatus struct {
	Live            bool       `json:"live" db:"live"`
	AutoExitRunning bool       `json:"auto_exit_running" db:"auto_exit_running"`
	UpdatedAt       *time.Time `json:"updated_at" db:"updated_at"`
}

// Действия над статусом
const (
	StatusActionLiveOn        = "live_on"
	StatusActionLiveOff       = "live_off"
	StatusActionAutoExitStart = "auto_exit_start"
	StatusActionAutoExitStop  = "auto_exit_stop"
)

// IsValidStatusAction проверяет действие над статусом
func IsValidStatusAction(action string) bool {
	switch action {
	case StatusActionLiveOn, StatusActionLiveOff, StatusActionAutoExitStart, StatusActionAutoExitStop:
		return true
	}
	return false
}
