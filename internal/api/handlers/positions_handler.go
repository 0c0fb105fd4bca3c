package handlers

import (
	"errors"
	"net/http"

	"autoexit/internal/exchange"
	"autoexit/internal/models"
	"autoexit/internal/service"
	"autoexit/pkg/utils"
)

// PositionsHandler отвечает за позиции брокера
//
// Endpoints:
// - GET /api/v1/positions - опционные позиции и суммарный MTM
// - POST /api/v1/positions/exit - ручное закрытие всех опционных позиций
// - GET /api/v1/mock/positions - содержимое файла mock позиций
// - PUT /api/v1/mock/positions - перезапись файла mock позиций
// - POST /api/v1/mock/positions/target - подбор LTP под заданный PNL позиции
//
// mock endpoints отвечают 404, если сервис работает с реальным брокером.
type PositionsHandler struct {
	positionsService service.PositionsServiceInterface
}

// NewPositionsHandler создает новый PositionsHandler
func NewPositionsHandler(positionsService service.PositionsServiceInterface) *PositionsHandler {
	return &PositionsHandler{positionsService: positionsService}
}

// PositionsResponse - ответ GET /positions
type PositionsResponse struct {
	Positions []models.Position `json:"positions"`
	MTM       float64           `json:"mtm"`
	Mock      bool              `json:"mock"`
}

// GetPositions возвращает текущие опционные позиции
//
// HTTP коды:
// - 200 OK: позиции (пустой массив, если их нет)
// - 502 Bad Gateway: брокер недоступен или вернул ошибку
func (h *PositionsHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	resp, err := h.positionsService.GetPositions(r.Context())
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "Failed to fetch positions", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, PositionsResponse{
		Positions: resp.Positions,
		MTM:       utils.RoundTo(resp.TotalUnrealized(), 2),
		Mock:      resp.Mock,
	})
}

// ExitAll закрывает все опционные позиции
// POST /api/v1/positions/exit
func (h *PositionsHandler) ExitAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.positionsService.ExitAll(r.Context())
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "Failed to exit positions", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

// GetMockPositions возвращает mock позиции
// GET /api/v1/mock/positions
func (h *PositionsHandler) GetMockPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positionsService.GetMockPositions()
	if err != nil {
		h.respondMockError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, positions)
}

// SaveMockPositions перезаписывает mock позиции
// PUT /api/v1/mock/positions
// Body: массив позиций
func (h *PositionsHandler) SaveMockPositions(w http.ResponseWriter, r *http.Request) {
	if !h.positionsService.MockEnabled() {
		h.respondMockError(w, service.ErrMockDisabled)
		return
	}

	var positions []models.Position
	if err := decodeBody(w, r, &positions); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	saved, err := h.positionsService.SaveMockPositions(positions)
	if err != nil {
		h.respondMockError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, saved)
}

// MockTargetRequest - запрос подбора LTP
type MockTargetRequest struct {
	Index      *int     `json:"index"`
	Unrealized *float64 `json:"unrealized"`
}

// SetMockTarget меняет LTP позиции так, чтобы её PNL стал unrealized
// POST /api/v1/mock/positions/target
// Body: {"index": 0, "unrealized": -1500}
func (h *PositionsHandler) SetMockTarget(w http.ResponseWriter, r *http.Request) {
	if !h.positionsService.MockEnabled() {
		h.respondMockError(w, service.ErrMockDisabled)
		return
	}

	var req MockTargetRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Index == nil || req.Unrealized == nil {
		respondWithError(w, http.StatusBadRequest, "index and unrealized are required", "")
		return
	}

	position, err := h.positionsService.SetMockUnrealized(*req.Index, *req.Unrealized)
	if err != nil {
		h.respondMockError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, position)
}

func (h *PositionsHandler) respondMockError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMockDisabled):
		respondWithError(w, http.StatusNotFound, "Mock positions are disabled", "")
	case errors.Is(err, exchange.ErrMockIndexOutOfRange):
		respondWithError(w, http.StatusBadRequest, "Position index out of range", err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, "Mock positions error", err.Error())
	}
}
