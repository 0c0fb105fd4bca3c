package utils

import (
	"time"
)

// time.go - утилиты для работы со временем
//
// Назначение:
// Интервалы планировщика и их вывод в журнал активности.
//
// Функции:
// - DurationFromMillis: интервал из миллисекунд с fallback
// - FormatDuration: человекочитаемый интервал

// DurationFromMillis переводит миллисекунды в time.Duration.
// Для ms <= 0 возвращается fallback.
//
// Примеры:
//   - DurationFromMillis(2000, time.Second) = 2s
//   - DurationFromMillis(0, 2*time.Second) = 2s
func DurationFromMillis(ms int64, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

// ============================================================
// Форматирование времени
// ============================================================

// FormatDuration форматирует продолжительность в человекочитаемый формат
//
// Примеры:
//   - "45s"
//   - "5m30s"
//   - "2h15m0s"
//   - "1.5s" для интервалов меньше минуты с миллисекундами
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	if d < time.Minute {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
