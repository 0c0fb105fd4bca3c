package bot

import (
	"autoexit/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики мониторинга
// ============================================================
//
// Использование:
// - Grafana дашборд: MTM%, стоп%, латентность тиков
// - Alertmanager: ошибки тиков, срабатывания авто-выхода

// ============ Метрики латентности ============

// TickLatency - полная длительность тика (позиции + настройки + расчёт)
var TickLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "autoexit",
		Subsystem: "monitor",
		Name:      "tick_latency_ms",
		Help:      "Duration of a monitoring tick in milliseconds",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2000, 5000},
	},
)

// LiquidationLatency - время закрытия всех позиций
var LiquidationLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "autoexit",
		Subsystem: "broker",
		Name:      "liquidation_latency_ms",
		Help:      "Time to place all exit orders in milliseconds",
		Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000},
	},
)

// ============ Счётчики событий ============

// TicksTotal - количество тиков по результату
var TicksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autoexit",
		Subsystem: "monitor",
		Name:      "ticks_total",
		Help:      "Total number of monitoring ticks",
	},
	[]string{"result"}, // ok, error, skipped
)

// ExitsTotal - срабатывания трейлинг-стопа
var ExitsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "autoexit",
		Subsystem: "risk",
		Name:      "trailing_stop_exits_total",
		Help:      "Number of trailing stop loss exits",
	},
)

// ExitOrdersTotal - закрывающие ордера по результату
var ExitOrdersTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autoexit",
		Subsystem: "broker",
		Name:      "exit_orders_total",
		Help:      "Number of exit orders sent to the broker",
	},
	[]string{"result"}, // success, failed
)

// StateTransitions - переходы состояния мониторинга
var StateTransitions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autoexit",
		Subsystem: "monitor",
		Name:      "state_transitions_total",
		Help:      "Number of monitor state transitions",
	},
	[]string{"from", "to"},
)

// BufferOverflows - вытесненные уведомления
var BufferOverflows = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autoexit",
		Subsystem: "runtime",
		Name:      "buffer_overflows_total",
		Help:      "Number of channel buffer overflows (events dropped)",
	},
	[]string{"buffer"}, // snapshot_notify, activity_log
)

// ============ Метрики состояния ============

// MonitorRunning - 1 если мониторинг запущен
var MonitorRunning = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "autoexit",
		Subsystem: "monitor",
		Name:      "running",
		Help:      "Whether auto-exit monitoring is running (1) or not (0)",
	},
)

// MTMPercent - текущий MTM в % капитала
var MTMPercent = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "autoexit",
		Subsystem: "monitor",
		Name:      "mtm_percent",
		Help:      "Current mark-to-market as percent of capital",
	},
)

// StopLossPercent - текущий трейлинг стоп в % капитала
var StopLossPercent = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "autoexit",
		Subsystem: "monitor",
		Name:      "stop_loss_percent",
		Help:      "Current trailing stop loss as percent of capital",
	},
)

// ============ Вспомогательные функции ============

// RecordTick записывает результат и длительность тика
func RecordTick(result string, latencyMs float64) {
	TicksTotal.WithLabelValues(result).Inc()
	if result != "skipped" {
		TickLatency.Observe(latencyMs)
	}
}

// RecordTrailing обновляет текущие MTM% и стоп%
func RecordTrailing(mtmPct, stopLossPct float64) {
	MTMPercent.Set(mtmPct)
	StopLossPercent.Set(stopLossPct)
}

// RecordExit записывает срабатывание авто-выхода
func RecordExit(latencyMs float64) {
	ExitsTotal.Inc()
	LiquidationLatency.Observe(latencyMs)
}

// RecordExitOrder записывает результат закрывающего ордера
func RecordExitOrder(success bool) {
	if success {
		ExitOrdersTotal.WithLabelValues("success").Inc()
		return
	}
	ExitOrdersTotal.WithLabelValues("failed").Inc()
}

// RecordTransition записывает переход состояния
func RecordTransition(from, to string) {
	StateTransitions.WithLabelValues(from, to).Inc()
	if to == models.StateRunning {
		MonitorRunning.Set(1)
	} else {
		MonitorRunning.Set(0)
	}
}

// RecordBufferOverflow записывает переполнение буфера
func RecordBufferOverflow(bufferName string) {
	BufferOverflows.WithLabelValues(bufferName).Inc()
}
