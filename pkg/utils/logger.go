package utils

// logger.go - структурированное логирование на базе zap
//
// InitLogger собирает logger по LogConfig (json/text, уровень, вывод).
// Конструкторы полей держат ключи логов единообразными во всех пакетах.

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig - параметры логирования
type LogConfig struct {
	Level       string // debug, info, warn, error
	Format      string // json, text
	Output      string // stdout, stderr или путь к файлу
	Development bool
}

// Logger - обёртка над zap.Logger
type Logger struct {
	*zap.Logger
}

// InitLogger создаёт logger по конфигурации.
// При ошибке открытия файла вывод переключается на stderr.
func InitLogger(cfg LogConfig) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	if cfg.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, "text") {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, openOutput(cfg.Output), zap.NewAtomicLevelAt(parseLevel(cfg.Level)))

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	return &Logger{Logger: zap.New(core, opts...)}
}

// InitGlobalLogger создаёт logger и делает его глобальным для zap.L()
func InitGlobalLogger(cfg LogConfig) *Logger {
	l := InitLogger(cfg)
	zap.ReplaceGlobals(l.Logger)
	return l
}

func openOutput(output string) zapcore.WriteSyncer {
	switch strings.ToLower(output) {
	case "", "stdout":
		return zapcore.Lock(os.Stdout)
	case "stderr":
		return zapcore.Lock(os.Stderr)
	}

	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.AddSync(f)
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ============================================================
// Конструкторы полей
// ============================================================

func Broker(name string) zap.Field { return zap.String("broker", name) }
func SessionID(id string) zap.Field { return zap.String("session_id", id) }
func MTM(v float64) zap.Field { return zap.Float64("mtm", v) }
func MTMPct(v float64) zap.Field { return zap.Float64("mtm_pct", v) }
func StopLossPct(v float64) zap.Field { return zap.Float64("stop_loss_pct", v) }
func TrailingSL(v float64) zap.Field { return zap.Float64("trailing_sl", v) }
func Action(action string) zap.Field { return zap.String("action", action) }
func Component(name string) zap.Field { return zap.String("component", name) }
func Latency(ms float64) zap.Field { return zap.Float64("latency_ms", ms) }
func RequestID(id string) zap.Field { return zap.String("request_id", id) }
