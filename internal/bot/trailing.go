package bot

import (
	"math"

	"autoexit/pkg/utils"
)

// ============================================================
// Трейлинг стоп-лосс
// ============================================================
//
// Все величины - проценты от капитала (MTM%).
//
// Порядок правил (каждое может только поднять кандидата):
//  1. Базовый стоп: -|InitialStopLossPct|
//  2. Безубыток: MTM >= BreakEvenTriggerPct -> стоп не ниже 0
//  3. Фиксация прибыли: MTM >= ProfitLockTriggerPct -> стоп не ниже
//     max(LockedProfitPct, BreakEvenTriggerPct)
//  4. Трейлинг: после фиксации прибыли, каждые целые TrailingStepPct
//     выше последнего уровня -> стоп = MTM - TrailingGapPct (не ниже 0)
//  5. Стоп никогда не опускается ниже предыдущего значения
//  6. Стоп не выше MTM, если предыдущий стоп сам не выше MTM
//  7. Округление до 2 знаков
//  8. Выход при MTM <= стоп

// Значения, подставляемые вместо некорректных настроек
const (
	fallbackInitialStopLossPct  = 1.0
	fallbackBreakEvenTriggerPct = 0.5
	fallbackTrailingStepPct     = 0.5
)

// trailingEpsilon гасит погрешность float при сравнении уровней (2.1+0.2 != 2.3)
const trailingEpsilon = 1e-9

// TrailingSettings - параметры трейлинг стопа в процентах от капитала
type TrailingSettings struct {
	InitialStopLossPct   float64 `json:"initial_stop_loss_pct"`
	BreakEvenTriggerPct  float64 `json:"break_even_trigger_pct"`
	ProfitLockTriggerPct float64 `json:"profit_lock_trigger_pct"`
	LockedProfitPct      float64 `json:"locked_profit_pct"`
	TrailingStepPct      float64 `json:"trailing_step_pct"`
	TrailingGapPct       float64 `json:"trailing_gap_pct"`
}

// TrailingResult - результат расчёта на одном тике
type TrailingResult struct {
	StopLossPct          float64  `json:"stop_loss_pct"`
	LastTrailingLevelPct *float64 `json:"last_trailing_level_pct"` // nil - трейлинг ещё не включался
	ShouldExit           bool     `json:"should_exit"`
}

// Sanitize приводит настройки к допустимым значениям.
// NaN и ±Inf никогда не попадают в расчёт.
func (s TrailingSettings) Sanitize() TrailingSettings {
	out := s

	if !isPositive(out.InitialStopLossPct) {
		out.InitialStopLossPct = fallbackInitialStopLossPct
	}
	if !isPositive(out.BreakEvenTriggerPct) {
		out.BreakEvenTriggerPct = fallbackBreakEvenTriggerPct
	}
	if !isPositive(out.TrailingStepPct) {
		out.TrailingStepPct = fallbackTrailingStepPct
	}
	if !utils.IsFinite(out.ProfitLockTriggerPct) || out.ProfitLockTriggerPct < out.BreakEvenTriggerPct {
		out.ProfitLockTriggerPct = out.BreakEvenTriggerPct
	}
	out.LockedProfitPct = utils.Clamp(utils.FiniteOr(out.LockedProfitPct, 0), 0, out.ProfitLockTriggerPct)
	if !utils.IsFinite(out.TrailingGapPct) || out.TrailingGapPct < 0 {
		out.TrailingGapPct = 0
	}

	return out
}

// ComputeTrailingStop рассчитывает новый стоп и решение о выходе.
//
// Чистая функция: без состояния и I/O, никогда не паникует.
//
// Параметры:
//   - settings: параметры трейлинга (санитизируются внутри)
//   - currentMtmPct: текущий MTM в % капитала
//   - lastTrailingLevelPct: последний уровень трейлинга (nil - не было)
//   - previousStopLossPct: стоп с прошлого тика
//
// Стоп 0 без истории трейлинга при нулевом MTM считается пустым значением
// свежей сессии и заменяется на -InitialStopLossPct.
func ComputeTrailingStop(settings TrailingSettings, currentMtmPct float64, lastTrailingLevelPct *float64, previousStopLossPct float64) TrailingResult {
	return computeTrailingStop(settings, currentMtmPct, lastTrailingLevelPct, previousStopLossPct, true)
}

// nextTrailingStop - расчёт внутри сессии, где стоп уже инициализирован
// NewTrailingState. Стоп 0 здесь - настоящий безубыток и не сбрасывается.
func nextTrailingStop(settings TrailingSettings, state TrailingState, currentMtmPct float64) TrailingResult {
	return computeTrailingStop(settings, currentMtmPct, state.LastTrailingLevelPct, state.PreviousStopLossPct, false)
}

func computeTrailingStop(settings TrailingSettings, currentMtmPct float64, lastTrailingLevelPct *float64, previousStopLossPct float64, resetEmptyStop bool) TrailingResult {
	s := settings.Sanitize()
	mtm := utils.FiniteOr(currentMtmPct, 0)

	var level *float64
	if lastTrailingLevelPct != nil && utils.IsFinite(*lastTrailingLevelPct) {
		v := *lastTrailingLevelPct
		level = &v
	}

	prev := previousStopLossPct
	if !utils.IsFinite(prev) || (resetEmptyStop && prev == 0 && level == nil && mtm == 0) {
		prev = -s.InitialStopLossPct
	}

	candidate := -math.Abs(s.InitialStopLossPct)

	if mtm >= s.BreakEvenTriggerPct {
		candidate = math.Max(candidate, 0)
	}

	if mtm >= s.ProfitLockTriggerPct {
		candidate = utils.Max(candidate, s.LockedProfitPct, s.BreakEvenTriggerPct)

		lastLevel := s.ProfitLockTriggerPct
		if level != nil {
			lastLevel = *level
		}

		if mtm+trailingEpsilon >= lastLevel+s.TrailingStepPct {
			steps := math.Floor((mtm-lastLevel)/s.TrailingStepPct + trailingEpsilon)
			newLevel := utils.RoundTo(lastLevel+steps*s.TrailingStepPct, 6)
			level = &newLevel

			trailing := math.Max(mtm-s.TrailingGapPct, 0)
			candidate = math.Max(candidate, trailing)
		}
	}

	stop := math.Max(prev, candidate)
	if stop > mtm && prev <= mtm {
		stop = mtm
	}

	stop = utils.RoundTo(stop, 2)
	if stop < prev {
		stop = prev
	}

	return TrailingResult{
		StopLossPct:          stop,
		LastTrailingLevelPct: level,
		ShouldExit:           mtm <= stop,
	}
}

func isPositive(x float64) bool {
	return utils.IsFinite(x) && x > 0
}
