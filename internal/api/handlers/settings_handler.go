package handlers

import (
	"errors"
	"net/http"

	"autoexit/internal/service"
)

// SettingsHandler отвечает за настройки трейлинг-стопа
//
// Функции:
// - Получение настроек (GET /api/v1/settings)
// - Частичное обновление (PATCH /api/v1/settings)
// - Сброс к значениям по умолчанию (POST /api/v1/settings/reset)
//
// Новые значения применяются со следующего тика мониторинга.
type SettingsHandler struct {
	settingsService service.SettingsServiceInterface
}

// NewSettingsHandler создает новый SettingsHandler
func NewSettingsHandler(settingsService service.SettingsServiceInterface) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// GetSettings возвращает текущие настройки
// GET /api/v1/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsService.GetSettings(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get settings", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

// UpdateSettings обновляет переданные поля настроек
//
// PATCH /api/v1/settings
// Body: любые из total_capital, scheduler_frequency_ms, initial_stop_loss_pct,
// break_even_trigger_pct, profit_lock_trigger_pct, locked_profit_pct,
// trailing_step_pct, trailing_gap_pct
//
// HTTP коды:
// - 200 OK: обновленные настройки
// - 400 Bad Request: невалидный JSON, пустой запрос или недопустимое значение
// - 500 Internal Server Error: ошибка БД
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateSettingsRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.IsEmpty() {
		respondWithError(w, http.StatusBadRequest, "No settings provided", "")
		return
	}

	settings, err := h.settingsService.UpdateSettings(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSettings) {
			respondWithError(w, http.StatusBadRequest, "Invalid settings", err.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to update settings", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, settings)
}

// ResetSettings сбрасывает настройки к значениям по умолчанию
// POST /api/v1/settings/reset
func (h *SettingsHandler) ResetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsService.ResetToDefaults(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to reset settings", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}
