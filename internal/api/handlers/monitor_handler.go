package handlers

import (
	"errors"
	"net/http"

	"autoexit/internal/models"
	"autoexit/internal/service"
)

// MonitorHandler отвечает за управление мониторингом авто-выхода
//
// Endpoints:
// - GET /api/v1/monitor - текущий снимок
// - POST /api/v1/monitor - команда {action: start|stop|tick}
// - POST /api/v1/monitor/tick - тик от внешнего планировщика
// - GET /api/v1/trailing-sl-status - сохранённый снимок
// - POST /api/v1/trailing-sl-status/clear - очистка сохранённого статуса
type MonitorHandler struct {
	monitorService service.MonitorServiceInterface
	tickAllowed    func(*http.Request) bool
}

// NewMonitorHandler создает новый MonitorHandler.
// tickAllowed проверяет секрет планировщика для команды tick; nil - без проверки.
func NewMonitorHandler(monitorService service.MonitorServiceInterface, tickAllowed func(*http.Request) bool) *MonitorHandler {
	return &MonitorHandler{
		monitorService: monitorService,
		tickAllowed:    tickAllowed,
	}
}

// GetMonitor возвращает текущий снимок мониторинга
// GET /api/v1/monitor
func (h *MonitorHandler) GetMonitor(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.monitorService.Snapshot())
}

// PostMonitor выполняет команду мониторинга
//
// POST /api/v1/monitor
// Body: {"action": "start" | "stop" | "tick"}
//
// HTTP коды:
// - 200 OK: команда выполнена ({success: true}) или отклонена
// ({success: false, error: "Already running"})
// - 400 Bad Request: неизвестная команда или невалидный JSON
// - 401 Unauthorized: tick без секрета планировщика
func (h *MonitorHandler) PostMonitor(w http.ResponseWriter, r *http.Request) {
	var req models.ActionRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, models.ActionResult{Success: false, Error: service.MessageInvalidAction})
		return
	}
	h.handleAction(w, r, req.Action)
}

// Tick выполняет один тик по запросу внешнего планировщика
// POST /api/v1/monitor/tick
func (h *MonitorHandler) Tick(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, models.ActionTick)
}

func (h *MonitorHandler) handleAction(w http.ResponseWriter, r *http.Request, action string) {
	if action == models.ActionTick && h.tickAllowed != nil && !h.tickAllowed(r) {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	result, err := h.monitorService.HandleAction(r.Context(), action)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAction) {
			respondWithJSON(w, http.StatusBadRequest, models.ActionResult{Success: false, Error: service.MessageInvalidAction})
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to execute action", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// TrailingStatusResponse - ответ GET /trailing-sl-status
type TrailingStatusResponse struct {
	Status *models.TrailingStatus `json:"status"`
}

// GetTrailingStatus возвращает сохранённый снимок (status: null, если его нет)
// GET /api/v1/trailing-sl-status
func (h *MonitorHandler) GetTrailingStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.monitorService.GetStatus(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get trailing SL status", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, TrailingStatusResponse{Status: status})
}

// ClearTrailingStatus удаляет сохранённый статус и сбрасывает текущий снимок
// POST /api/v1/trailing-sl-status/clear
func (h *MonitorHandler) ClearTrailingStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.monitorService.ClearStatus(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to clear trailing SL status", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{
		Success: true,
		Message: service.MessageStatusCleared,
		Data:    snapshot,
	})
}
