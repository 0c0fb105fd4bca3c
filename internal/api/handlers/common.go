package handlers

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes - ограничение размера тела запроса
const maxBodyBytes = 1 << 20

// ErrorResponse стандартный формат ответа об ошибке для всех API endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse стандартный формат успешного ответа
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// respondWithJSON отправляет JSON ответ
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	jsonAPI.NewEncoder(w).Encode(payload)
}

// respondWithError отправляет JSON ошибку
func respondWithError(w http.ResponseWriter, code int, message, details string) {
	respondWithJSON(w, code, ErrorResponse{Error: message, Details: details})
}

// decodeBody читает JSON тело запроса
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return jsonAPI.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}
