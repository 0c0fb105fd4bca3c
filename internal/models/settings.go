package models

import "time"

// Settings представляет настройки мониторинга (одна строка в БД, id=1)
//
// Все проценты считаются от TotalCapital.
type Settings struct {
	ID                   int       `json:"id" db:"id"`
	TotalCapital         float64   `json:"total_capital" db:"total_capital"`                     // капитал для расчёта MTM%
	SchedulerFrequencyMs int64     `json:"scheduler_frequency_ms" db:"scheduler_frequency_ms"`   // интервал тиков
	InitialStopLossPct   float64   `json:"initial_stop_loss_pct" db:"initial_stop_loss_pct"`     // стартовый SL ниже нуля
	BreakEvenTriggerPct  float64   `json:"break_even_trigger_pct" db:"break_even_trigger_pct"`   // SL -> 0
	ProfitLockTriggerPct float64   `json:"profit_lock_trigger_pct" db:"profit_lock_trigger_pct"` // фиксация прибыли
	LockedProfitPct      float64   `json:"locked_profit_pct" db:"locked_profit_pct"`             // уровень SL после фиксации
	TrailingStepPct      float64   `json:"trailing_step_pct" db:"trailing_step_pct"`             // шаг трейлинга
	TrailingGapPct       float64   `json:"trailing_gap_pct" db:"trailing_gap_pct"`               // отступ SL от MTM
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// Значения по умолчанию для настроек мониторинга
const (
	DefaultTotalCapital         = 0
	DefaultSchedulerFrequencyMs = 2000
	DefaultInitialStopLossPct   = 1
	DefaultBreakEvenTriggerPct  = 1
	DefaultProfitLockTriggerPct = 2
	DefaultLockedProfitPct      = 1
	DefaultTrailingStepPct      = 1
	DefaultTrailingGapPct       = 0.5
)

// DefaultSettings возвращает настройки по умолчанию
func DefaultSettings() *Settings {
	return &Settings{
		ID:                   1,
		TotalCapital:         DefaultTotalCapital,
		SchedulerFrequencyMs: DefaultSchedulerFrequencyMs,
		InitialStopLossPct:   DefaultInitialStopLossPct,
		BreakEvenTriggerPct:  DefaultBreakEvenTriggerPct,
		ProfitLockTriggerPct: DefaultProfitLockTriggerPct,
		LockedProfitPct:      DefaultLockedProfitPct,
		TrailingStepPct:      DefaultTrailingStepPct,
		TrailingGapPct:       DefaultTrailingGapPct,
		UpdatedAt:            time.Now(),
	}
}
