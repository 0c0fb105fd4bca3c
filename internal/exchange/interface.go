package exchange

import (
	"context"
	"encoding/json"
)

// Broker определяет операции брокера, которые нужны авто-выходу
type Broker interface {
	// GetName возвращает имя брокера
	GetName() string

	// GetNetPositions получает чистые позиции клиента в сыром виде брокера
	GetNetPositions(ctx context.Context) ([]RawPosition, error)

	// PlaceOrder размещает ордер и возвращает тело ответа брокера как есть
	PlaceOrder(ctx context.Context, req OrderRequest) (json.RawMessage, error)
}

// RawPosition - позиция в формате брокера (поля различаются между версиями API)
type RawPosition map[string]interface{}

// OrderRequest - тело запроса на размещение ордера
type OrderRequest struct {
	Exchange      string  `json:"Exchange"`     // N - NSE, B - BSE
	ExchangeType  string  `json:"ExchangeType"` // D - деривативы
	ScripCode     int64   `json:"ScripCode"`
	OrderType     string  `json:"OrderType"` // Buy / Sell
	Qty           float64 `json:"Qty"`
	Price         float64 `json:"Price"` // 0 - рыночный
	IsIntraday    bool    `json:"IsIntraday"`
	OrderValidity int     `json:"iOrderValidity"`
	AHPlaced      string  `json:"AHPlaced"`
	RemoteOrderID string  `json:"RemoteOrderID"`
}

// BrokerError представляет ошибку от брокера
type BrokerError struct {
	Broker     string
	StatusCode int
	Code       string
	Message    string
	Original   error
}

func (e *BrokerError) Error() string {
	if e.Code != "" {
		return e.Broker + ": " + e.Code + ": " + e.Message
	}
	return e.Broker + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *BrokerError) Unwrap() error {
	return e.Original
}

// Направление ордера
const (
	OrderTypeBuy  = "Buy"
	OrderTypeSell = "Sell"
)

// Коды бирж и сегментов
const (
	ExchangeNSE       = "N"
	ExchangeTypeDeriv = "D"
	OrderForDelivery  = "D" // позиция переносится (carry forward)
)

// Коды ошибок
const (
	ErrCodeNonJSON       = "NON_JSON_RESPONSE"
	ErrCodeFetchFailed   = "positions_fetch_failed"
	ErrCodeNoPositions   = "no_positions_found"
	ErrCodeNotAuthorized = "not_authenticated"
)
