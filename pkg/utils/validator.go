package utils

import (
	"fmt"
)

// validator.go - валидация входных данных
//
// Назначение:
// Проверка корректности пользовательских настроек и параметров запросов.
//
// Функции:
// - ValidatePercent: процент в допустимом диапазоне
// - ValidateCapital: капитал >= 0
// - ValidateFrequencyMs: интервал планировщика
//
// Возвращает error с описанием проблемы или nil

// Границы интервала планировщика
const (
	MinFrequencyMs = 500
	MaxFrequencyMs = 60 * 60 * 1000
)

// ValidatePercent проверяет что value лежит в [min, max] и является числом
func ValidatePercent(name string, value, min, max float64) error {
	if !IsFinite(value) {
		return fmt.Errorf("%s must be a number", name)
	}
	if value < min || value > max {
		return fmt.Errorf("%s must be between %g and %g", name, min, max)
	}
	return nil
}

// ValidateCapital проверяет размер капитала
func ValidateCapital(capital float64) error {
	if !IsFinite(capital) {
		return fmt.Errorf("total capital must be a number")
	}
	if capital < 0 {
		return fmt.Errorf("total capital cannot be negative")
	}
	return nil
}

// ValidateFrequencyMs проверяет интервал планировщика в миллисекундах
func ValidateFrequencyMs(ms int64) error {
	if ms < MinFrequencyMs || ms > MaxFrequencyMs {
		return fmt.Errorf("scheduler frequency must be between %d and %d ms", MinFrequencyMs, MaxFrequencyMs)
	}
	return nil
}
