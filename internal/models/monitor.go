package models

// Состояния сессии мониторинга
const (
	StateIdle    = "IDLE"    // мониторинг ещё не запускался
	StateRunning = "RUNNING" // тики выполняются
	StateExited  = "EXITED"  // сработал трейлинг-стоп, позиции закрыты
	StateStopped = "STOPPED" // остановлен пользователем или ошибкой
)

// Команды управления мониторингом
const (
	ActionStart = "start"
	ActionStop  = "stop"
	ActionTick  = "tick"
)

// ActionRequest - запрос на выполнение команды
type ActionRequest struct {
	Action string `json:"action"`
}

// ActionResult - результат выполнения команды
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
