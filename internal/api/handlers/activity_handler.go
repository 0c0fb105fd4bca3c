package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"autoexit/internal/models"
	"autoexit/internal/service"
)

// ActivityHandler отвечает за журнал действий и флаги статуса
//
// Endpoints:
// - GET /api/v1/logs?type=AUTO_EXIT&limit=50 - последние записи журнала
// - POST /api/v1/logs/clear - очистка журнала
// - GET /api/v1/logs/status - флаги live / auto_exit_running
// - POST /api/v1/logs/status - {action: live_on|live_off|auto_exit_start|auto_exit_stop}
type ActivityHandler struct {
	activityService service.ActivityServiceInterface
}

// NewActivityHandler создает новый ActivityHandler
func NewActivityHandler(activityService service.ActivityServiceInterface) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

// GetLogsResponse представляет ответ списка записей журнала
type GetLogsResponse struct {
	Logs  []*models.ActivityLog `json:"logs"`
	Total int                   `json:"total"`
}

// GetLogs возвращает записи журнала, новые первыми
//
// Query параметры:
// - type (string): MONITOR, AUTO_EXIT, SETTINGS, POSITIONS, ERROR
// - limit (int): количество записей (по умолчанию 100)
func (h *ActivityHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	logType := r.URL.Query().Get("type")

	limit := 0
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid limit", limitParam)
			return
		}
		limit = parsed
	}

	logs, err := h.activityService.GetLogs(r.Context(), logType, limit)
	if err != nil {
		if errors.Is(err, service.ErrInvalidLogType) {
			respondWithError(w, http.StatusBadRequest, "Invalid log type", logType)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to get logs", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, GetLogsResponse{Logs: logs, Total: len(logs)})
}

// ClearLogsResponse представляет ответ очистки журнала
type ClearLogsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}

// ClearLogs удаляет все записи журнала
// POST /api/v1/logs/clear
func (h *ActivityHandler) ClearLogs(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.activityService.ClearLogs(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to clear logs", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, ClearLogsResponse{
		Success: true,
		Message: "Activity logs cleared",
		Deleted: deleted,
	})
}

// GetStatus возвращает флаги статуса
// GET /api/v1/logs/status
func (h *ActivityHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.activityService.GetStatus(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get status", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

// SetStatus применяет действие к флагам статуса
// POST /api/v1/logs/status
func (h *ActivityHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req models.ActionRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	status, err := h.activityService.SetStatus(r.Context(), req.Action)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatusAction) {
			respondWithError(w, http.StatusBadRequest, "Invalid action", req.Action)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to update status", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}
