package middleware

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"autoexit/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// RequestIDHeader - заголовок с id запроса
const RequestIDHeader = "X-Request-ID"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	subjectKey
)

// RequestIDFromContext возвращает id запроса из context
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// responseWriter запоминает статус и размер ответа
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Hijack нужен для апгрейда /ws до WebSocket
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Logging - middleware для логирования HTTP запросов
//
// Присваивает запросу id (из X-Request-ID или новый uuid), возвращает
// его в ответе и пишет строку лога: метод, путь, статус, длительность,
// IP клиента, размер ответа. /health и /metrics логируются на debug.
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID))

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				utils.Latency(float64(time.Since(start).Microseconds()) / 1000),
				zap.String("client_ip", clientIP(r)),
				zap.Int64("bytes", wrapped.written),
				utils.RequestID(requestID),
			}

			switch {
			case r.URL.Path == "/health" || r.URL.Path == "/metrics":
				logger.Debug("HTTP request", fields...)
			case wrapped.statusCode >= http.StatusInternalServerError:
				logger.Error("HTTP request", fields...)
			case wrapped.statusCode >= http.StatusBadRequest:
				logger.Warn("HTTP request", fields...)
			default:
				logger.Info("HTTP request", fields...)
			}
		})
	}
}

// clientIP возвращает IP клиента без порта
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeError пишет JSON ошибку в формате handlers.ErrorResponse
func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	jsonAPI.NewEncoder(w).Encode(map[string]string{"error": message})
}
