package middleware

import (
	"net/http"
	"runtime/debug"

	"autoexit/pkg/utils"

	"go.uber.org/zap"
)

// Recovery - middleware для восстановления после паники в handlers
//
// Перехватывает panic, логирует значение и stack trace и возвращает
// клиенту 500 без деталей паники.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic in HTTP handler",
						zap.Any("panic", err),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						utils.RequestID(RequestIDFromContext(r.Context())),
						zap.ByteString("stack", debug.Stack()),
					)
					writeError(w, http.StatusInternalServerError, "Internal Server Error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
