package utils

import (
	"math"

	"github.com/shopspring/decimal"
)

// math.go - математические утилиты для опционных позиций
//
// Назначение:
// Вспомогательные функции для расчёта MTM и процентов от капитала.
// Все функции являются чистыми (pure functions) без побочных эффектов.
//
// Функции:
// - RoundTo: округление до N знаков (decimal, без артефактов float)
// - PercentOf / FromPercent: перевод сумм в проценты капитала и обратно
// - UnrealizedPNL: нереализованный PNL по чистой позиции
// - LTPForUnrealized: цена, при которой PNL станет заданным

// RoundTo округляет значение до places знаков после запятой.
//
// Округление выполняется через decimal, поэтому 1.005 -> 1.01,
// а не 1.00 как при math.Round(x*100)/100.
// Нечисловые значения (NaN, ±Inf) возвращаются без изменений.
//
// Примеры:
//   - RoundTo(1.23456, 2) = 1.23
//   - RoundTo(-0.125, 2) = -0.13
func RoundTo(value float64, places int32) float64 {
	if !IsFinite(value) {
		return value
	}
	f, _ := decimal.NewFromFloat(value).Round(places).Float64()
	return f
}

// IsFinite возвращает true для обычных чисел (не NaN и не ±Inf)
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// FiniteOr возвращает x если оно конечно, иначе fallback
func FiniteOr(x, fallback float64) float64 {
	if IsFinite(x) {
		return x
	}
	return fallback
}

// PercentOf рассчитывает amount в процентах от base.
//
// Возвращает 0 если base <= 0 или результат не является конечным числом.
//
// Примеры:
//   - PercentOf(1500, 100000) = 1.5
//   - PercentOf(-2000, 100000) = -2
//   - PercentOf(500, 0) = 0
func PercentOf(amount, base float64) float64 {
	if base <= 0 || !IsFinite(base) {
		return 0
	}
	return FiniteOr(amount/base*100, 0)
}

// FromPercent переводит процент от base обратно в абсолютную сумму.
func FromPercent(pct, base float64) float64 {
	if !IsFinite(base) {
		return 0
	}
	return FiniteOr(base*pct/100, 0)
}

// UnrealizedPNL рассчитывает нереализованный PNL по чистой позиции.
//
// Формула: netQty × (ltp - avgPrice)
//   - netQty > 0 (лонг): прибыль при росте цены
//   - netQty < 0 (шорт): прибыль при падении цены
func UnrealizedPNL(netQty, avgPrice, ltp float64) float64 {
	return FiniteOr(netQty*(ltp-avgPrice), 0)
}

// LTPForUnrealized возвращает цену, при которой нереализованный PNL
// позиции равен targetUnrealized.
//
// Формула: avgPrice + targetUnrealized / netQty
// При netQty == 0 цена не определена, возвращается avgPrice.
func LTPForUnrealized(avgPrice, netQty, targetUnrealized float64) float64 {
	if netQty == 0 || !IsFinite(netQty) {
		return avgPrice
	}
	return RoundTo(avgPrice+targetUnrealized/netQty, 2)
}

// Max возвращает максимум из чисел. Для пустого списка возвращает -Inf.
func Max(values ...float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}

// Clamp ограничивает значение диапазоном [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
