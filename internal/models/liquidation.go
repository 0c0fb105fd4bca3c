package models

import "encoding/json"

// ExitSummary - результат закрытия всех опционных позиций
//
// Сохраняется в снимке мониторинга без изменений, в том числе при ошибке.
type ExitSummary struct {
	Success     bool         `json:"success"`
	ExitedCount int          `json:"exited_count"`
	Message     string       `json:"message,omitempty"`
	Error       string       `json:"error,omitempty"`
	Results     []ExitResult `json:"results,omitempty"`
}

// ExitResult - результат выставления одного закрывающего ордера
type ExitResult struct {
	ScripCode     int64           `json:"scrip_code"`
	ScripName     string          `json:"scrip_name"`
	ExitedQty     float64         `json:"exited_qty"`
	OrderType     string          `json:"order_type"` // Buy / Sell
	RemoteOrderID string          `json:"remote_order_id"`
	Response      json.RawMessage `json:"response,omitempty"`
	Error         string          `json:"error,omitempty"`
	Message       string          `json:"message,omitempty"`
}

// FailedExitSummary оборачивает ошибку ликвидации в summary
func FailedExitSummary(err error) *ExitSummary {
	msg := "liquidation failed"
	if err != nil {
		msg = err.Error()
	}
	return &ExitSummary{Success: false, Error: msg}
}
