package bot

import "autoexit/internal/models"

// ValidTransitions определяет допустимые переходы между состояниями мониторинга
var ValidTransitions = map[string][]string{
	models.StateIdle:    {models.StateRunning, models.StateStopped},
	models.StateRunning: {models.StateRunning, models.StateExited, models.StateStopped}, // Running -> Running на каждом тике
	models.StateExited:  {models.StateRunning, models.StateStopped},                     // только явный перезапуск
	models.StateStopped: {models.StateRunning, models.StateStopped},                     // повторный stop - no-op
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StateInfo возвращает описание состояния для UI
func StateInfo(s string) string {
	switch s {
	case models.StateIdle:
		return "Auto-exit monitoring has not been started"
	case models.StateRunning:
		return "Monitoring MTM against trailing stop loss"
	case models.StateExited:
		return "Trailing stop loss hit, positions exited"
	case models.StateStopped:
		return "Monitoring stopped"
	default:
		return "Unknown state"
	}
}

// IsActive возвращает true если тики выполняются
func IsActive(s string) bool {
	return s == models.StateRunning
}

// IsTerminal возвращает true если сессия завершена выходом из позиций
func IsTerminal(s string) bool {
	return s == models.StateExited
}
