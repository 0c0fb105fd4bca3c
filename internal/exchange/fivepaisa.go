package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"autoexit/pkg/ratelimit"
	"autoexit/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

const (
	fivePaisaName    = "5paisa"
	fivePaisaBaseURL = "https://Openapi.5paisa.com/VendorsAPI/Service1.svc"

	netPositionsPath = "/V3/NetPositionNetWise"
	placeOrderPath   = "/V1/PlaceOrderRequest"

	// Категории лимитов запросов
	limitPositions = "positions"
	limitOrders    = "orders"

	// Сколько байт тела ответа попадает в текст ошибки
	maxErrorBody = 512
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// FivePaisaConfig - параметры подключения к API брокера
type FivePaisaConfig struct {
	BaseURL     string
	AppKey      string
	ClientCode  string
	AccessToken string

	PositionsRate float64 // запросов позиций в секунду
	OrdersRate    float64 // ордеров в секунду

	HTTP HTTPClientConfig
}

// FivePaisa реализует Broker для 5paisa OpenAPI
type FivePaisa struct {
	baseURL     string
	appKey      string
	clientCode  string
	accessToken string

	http   *HTTPClient
	logger *zap.Logger
}

// NewFivePaisa создаёт клиент брокера
func NewFivePaisa(cfg FivePaisaConfig, logger *zap.Logger) *FivePaisa {
	if cfg.BaseURL == "" {
		cfg.BaseURL = fivePaisaBaseURL
	}
	if cfg.HTTP.TotalTimeout == 0 {
		cfg.HTTP = DefaultHTTPClientConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := ratelimit.NewMultiLimiter()
	limiter.Add(limitPositions, cfg.PositionsRate, 0)
	limiter.Add(limitOrders, cfg.OrdersRate, 0)

	return &FivePaisa{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		appKey:      cfg.AppKey,
		clientCode:  cfg.ClientCode,
		accessToken: cfg.AccessToken,
		http:        NewHTTPClient(cfg.HTTP, limiter),
		logger:      logger.With(utils.Broker(fivePaisaName)),
	}
}

// GetName возвращает имя брокера
func (f *FivePaisa) GetName() string {
	return fivePaisaName
}

// Close закрывает idle соединения
func (f *FivePaisa) Close() {
	f.http.Close()
}

// doRequest выполняет POST запрос в формате {head: {key}, body}
func (f *FivePaisa) doRequest(ctx context.Context, category, path string, body interface{}) ([]byte, int, error) {
	reqBody, err := jsonAPI.Marshal(map[string]interface{}{
		"head": map[string]string{"key": f.appKey},
		"body": body,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}

	return f.http.PostJSON(ctx, category, f.baseURL+path, map[string]string{
		"Authorization": "Bearer " + f.accessToken,
	}, reqBody)
}

// GetNetPositions получает чистые позиции клиента
//
// Брокер возвращает список под разными ключами в зависимости от версии API:
// body.NetPositionDetail, body.NetPositions, body.Positions или сам body.
func (f *FivePaisa) GetNetPositions(ctx context.Context) ([]RawPosition, error) {
	if f.accessToken == "" || f.clientCode == "" {
		return nil, &BrokerError{
			Broker:  fivePaisaName,
			Code:    ErrCodeNotAuthorized,
			Message: "missing access token or client code",
		}
	}

	body, status, err := f.doRequest(ctx, limitPositions, netPositionsPath, map[string]string{
		"ClientCode": f.clientCode,
	})
	if err != nil {
		return nil, fmt.Errorf("net positions request: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, &BrokerError{
			Broker:     fivePaisaName,
			StatusCode: status,
			Code:       ErrCodeFetchFailed,
			Message:    truncate(string(body), maxErrorBody),
		}
	}

	positions, err := extractPositions(body)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("Net positions fetched", zap.Int("count", len(positions)))
	return positions, nil
}

// extractPositions находит массив позиций в ответе брокера
func extractPositions(raw []byte) ([]RawPosition, error) {
	var envelope struct {
		Body json.RawMessage `json:"body"`
	}
	if err := jsonAPI.Unmarshal(raw, &envelope); err != nil {
		return nil, &BrokerError{Broker: fivePaisaName, Code: ErrCodeNonJSON, Message: truncate(string(raw), maxErrorBody), Original: err}
	}

	body := bytes.TrimSpace(envelope.Body)
	if len(body) > 0 && body[0] == '[' {
		var list []RawPosition
		if err := jsonAPI.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("decode positions: %w", err)
		}
		return list, nil
	}

	var fields map[string]json.RawMessage
	if len(body) > 0 && body[0] == '{' {
		if err := jsonAPI.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("decode positions body: %w", err)
		}
	}

	for _, key := range []string{"NetPositionDetail", "NetPositions", "Positions"} {
		v := bytes.TrimSpace(fields[key])
		if len(v) == 0 || v[0] != '[' {
			continue
		}
		var list []RawPosition
		if err := jsonAPI.Unmarshal(v, &list); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return list, nil
	}

	return nil, &BrokerError{
		Broker:  fivePaisaName,
		Code:    ErrCodeNoPositions,
		Message: truncate(string(raw), maxErrorBody),
	}
}

// PlaceOrder размещает ордер.
// Ответ брокера возвращается как есть; не-JSON ответ заворачивается в
// {"error": "NON_JSON_RESPONSE", "raw": "..."} без ошибки, чтобы его увидел пользователь.
func (f *FivePaisa) PlaceOrder(ctx context.Context, req OrderRequest) (json.RawMessage, error) {
	if f.accessToken == "" {
		return nil, &BrokerError{
			Broker:  fivePaisaName,
			Code:    ErrCodeNotAuthorized,
			Message: "missing access token",
		}
	}

	body, status, err := f.doRequest(ctx, limitOrders, placeOrderPath, req)
	if err != nil {
		return nil, fmt.Errorf("place order request: %w", err)
	}

	f.logger.Info("Exit order sent",
		zap.Int64("scrip_code", req.ScripCode),
		zap.String("order_type", req.OrderType),
		zap.Float64("qty", req.Qty),
		zap.String("remote_order_id", req.RemoteOrderID),
		zap.Int("status", status),
	)

	if !jsonAPI.Valid(body) {
		wrapped, _ := jsonAPI.Marshal(map[string]string{
			"error": ErrCodeNonJSON,
			"raw":   string(body),
		})
		return wrapped, nil
	}
	return json.RawMessage(body), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
