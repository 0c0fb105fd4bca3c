package api

import (
	"net/http"

	"autoexit/internal/api/handlers"
	"autoexit/internal/api/middleware"
	"autoexit/internal/service"
	"autoexit/internal/websocket"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	MonitorService   service.MonitorServiceInterface
	SettingsService  service.SettingsServiceInterface
	ActivityService  service.ActivityServiceInterface
	PositionsService service.PositionsServiceInterface

	Hub            *websocket.Hub
	SchedulerAuth  *middleware.SchedulerAuth
	RateLimiter    *middleware.IPRateLimiter
	JWTSecret      string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /monitor
//	│   ├── GET - текущий снимок
//	│   ├── POST - {action: start|stop|tick}
//	│   └── POST /tick - тик внешнего планировщика (секрет планировщика)
//	├── /trailing-sl-status
//	│   ├── GET - сохранённый снимок
//	│   └── POST /clear - очистка
//	├── /settings
//	│   ├── GET / PATCH
//	│   └── POST /reset
//	├── /positions
//	│   ├── GET - позиции и MTM
//	│   └── POST /exit - закрыть все
//	├── /mock/positions (только в mock режиме)
//	│   ├── GET / PUT
//	│   └── POST /target
//	└── /logs
//	    ├── GET - журнал (?type=&limit=)
//	    ├── POST /clear
//	    └── GET / POST /status
//
// /ws - WebSocket поток снимков
// /health, /metrics
//
// Middleware (снаружи внутрь): Recovery, Logging, CORS, RateLimit.
// JWT применяется только к /api/v1. Обертка всего роутера нужна, чтобы
// preflight OPTIONS на несуществующие для mux маршруты тоже получал CORS.
func SetupRoutes(deps *Dependencies) http.Handler {
	if deps == nil {
		deps = &Dependencies{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()

	var monitorHandler *handlers.MonitorHandler
	if deps.MonitorService != nil {
		monitorHandler = handlers.NewMonitorHandler(deps.MonitorService, deps.SchedulerAuth.Check)
	}

	// Тик планировщика с секретом обходит JWT
	if monitorHandler != nil && deps.SchedulerAuth.Enabled() {
		router.Handle("/api/v1/monitor/tick",
			deps.SchedulerAuth.Middleware(http.HandlerFunc(monitorHandler.Tick)),
		).Methods(http.MethodPost)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.JWTAuth(deps.JWTSecret, deps.SchedulerAuth))

	// Monitor routes
	if monitorHandler != nil {
		api.HandleFunc("/monitor", monitorHandler.GetMonitor).Methods(http.MethodGet)
		api.HandleFunc("/monitor", monitorHandler.PostMonitor).Methods(http.MethodPost)
		if !deps.SchedulerAuth.Enabled() {
			api.HandleFunc("/monitor/tick", monitorHandler.Tick).Methods(http.MethodPost)
		}
		api.HandleFunc("/trailing-sl-status", monitorHandler.GetTrailingStatus).Methods(http.MethodGet)
		api.HandleFunc("/trailing-sl-status/clear", monitorHandler.ClearTrailingStatus).Methods(http.MethodPost)
	}

	// Settings routes
	if deps.SettingsService != nil {
		settingsHandler := handlers.NewSettingsHandler(deps.SettingsService)
		api.HandleFunc("/settings", settingsHandler.GetSettings).Methods(http.MethodGet)
		api.HandleFunc("/settings", settingsHandler.UpdateSettings).Methods(http.MethodPatch)
		api.HandleFunc("/settings/reset", settingsHandler.ResetSettings).Methods(http.MethodPost)
	}

	// Positions routes
	if deps.PositionsService != nil {
		positionsHandler := handlers.NewPositionsHandler(deps.PositionsService)
		api.HandleFunc("/positions", positionsHandler.GetPositions).Methods(http.MethodGet)
		api.HandleFunc("/positions/exit", positionsHandler.ExitAll).Methods(http.MethodPost)
		api.HandleFunc("/mock/positions", positionsHandler.GetMockPositions).Methods(http.MethodGet)
		api.HandleFunc("/mock/positions", positionsHandler.SaveMockPositions).Methods(http.MethodPut)
		api.HandleFunc("/mock/positions/target", positionsHandler.SetMockTarget).Methods(http.MethodPost)
	}

	// Activity log routes
	if deps.ActivityService != nil {
		activityHandler := handlers.NewActivityHandler(deps.ActivityService)
		api.HandleFunc("/logs", activityHandler.GetLogs).Methods(http.MethodGet)
		api.HandleFunc("/logs/clear", activityHandler.ClearLogs).Methods(http.MethodPost)
		api.HandleFunc("/logs/status", activityHandler.GetStatus).Methods(http.MethodGet)
		api.HandleFunc("/logs/status", activityHandler.SetStatus).Methods(http.MethodPost)
	}

	// WebSocket route
	if deps.Hub != nil {
		router.HandleFunc("/ws", deps.Hub.ServeWS).Methods(http.MethodGet)
	}

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/health", healthHandler(deps.Hub)).Methods(http.MethodGet)

	var handler http.Handler = router
	if deps.RateLimiter != nil {
		handler = deps.RateLimiter.Middleware(handler)
	}
	handler = middleware.CORS(deps.AllowedOrigins)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)

	return handler
}

// HealthResponse - ответ /health
type HealthResponse struct {
	Status    string `json:"status"`
	WSClients int    `json:"ws_clients"`
	WSDropped int64  `json:"ws_dropped"`
}

// healthHandler отвечает 200 и показывает состояние WebSocket hub
func healthHandler(hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}
		if hub != nil {
			resp.WSClients = hub.ClientCount()
			resp.WSDropped = hub.DroppedMessages()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w).Encode(resp)
	}
}
