package middleware

import (
	"net/http"
	"strings"
)

// devOrigins разрешены, когда список origin не задан
var devOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
	"http://localhost:8080",
	"http://127.0.0.1:8080",
	"http://localhost:5173", // Vite dev server
	"http://127.0.0.1:5173",
}

// CORS - middleware для настройки Cross-Origin Resource Sharing
//
// Разрешенные origins берутся из конфигурации (server.allowed_origins);
// пустой список означает dev origins на localhost.
//
// Важные заголовки:
// - Access-Control-Allow-Origin: конкретный домен (не * при credentials)
// - Access-Control-Allow-Headers: включая заголовки секрета планировщика
// - Access-Control-Max-Age: 86400 (24 часа)
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = devOrigins
	}
	allowed := make(map[string]bool, len(origins))
	allowAll := false
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			allowAll = true
		}
		if origin != "" {
			allowed[origin] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			switch {
			case origin == "":
				// не браузер (curl, планировщик)
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case allowAll || allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}
			// для неразрешенных origins заголовки не ставим - браузер заблокирует

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers",
				"Content-Type, Authorization, X-Requested-With, "+RequestIDHeader+", "+SchedulerSecretHeader+", "+InternalSecretHeader)
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
