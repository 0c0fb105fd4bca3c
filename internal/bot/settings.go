package bot

import (
	"time"

	"autoexit/internal/models"
	"autoexit/pkg/utils"
)

// MonitorSettings - полностью заполненные настройки одного тика
type MonitorSettings struct {
	TotalCapital float64
	Frequency    time.Duration
	Trailing     TrailingSettings
}

// DefaultFrequency - интервал тиков по умолчанию
const DefaultFrequency = models.DefaultSchedulerFrequencyMs * time.Millisecond

// NormalizeSettings превращает настройки из хранилища в MonitorSettings.
//
// Отсутствующие и некорректные значения заменяются значениями по умолчанию:
//   - капитал: 0 (MTM% тогда тоже 0)
//   - интервал: 2000ms
//   - стартовый SL, безубыток, фиксация прибыли, шаг: 1, 1, 2, 1 (должны быть > 0)
//   - зафиксированная прибыль, отступ: 1, 0.5 (0 допустим)
//
// Выполняется один раз за тик.
func NormalizeSettings(s *models.Settings) MonitorSettings {
	if s == nil {
		s = models.DefaultSettings()
	}

	capital := s.TotalCapital
	if !utils.IsFinite(capital) || capital < 0 {
		capital = models.DefaultTotalCapital
	}

	return MonitorSettings{
		TotalCapital: capital,
		Frequency:    utils.DurationFromMillis(s.SchedulerFrequencyMs, DefaultFrequency),
		Trailing: TrailingSettings{
			InitialStopLossPct:   positiveOr(s.InitialStopLossPct, models.DefaultInitialStopLossPct),
			BreakEvenTriggerPct:  positiveOr(s.BreakEvenTriggerPct, models.DefaultBreakEvenTriggerPct),
			ProfitLockTriggerPct: positiveOr(s.ProfitLockTriggerPct, models.DefaultProfitLockTriggerPct),
			LockedProfitPct:      nonNegativeOr(s.LockedProfitPct, models.DefaultLockedProfitPct),
			TrailingStepPct:      positiveOr(s.TrailingStepPct, models.DefaultTrailingStepPct),
			TrailingGapPct:       nonNegativeOr(s.TrailingGapPct, models.DefaultTrailingGapPct),
		},
	}
}

func positiveOr(v, fallback float64) float64 {
	if isPositive(v) {
		return v
	}
	return fallback
}

func nonNegativeOr(v, fallback float64) float64 {
	if utils.IsFinite(v) && v >= 0 {
		return v
	}
	return fallback
}
