package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"autoexit/internal/models"
	"autoexit/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PositionsSource - источник позиций для закрытия
type PositionsSource interface {
	FetchPositions(ctx context.Context) (*models.PositionsResponse, error)
}

// OrderPlacer размещает ордер у брокера
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (json.RawMessage, error)
}

// MessageNoOpenPositions - ответ, когда закрывать нечего
const MessageNoOpenPositions = "No open option positions"

// Liquidator закрывает все опционные позиции обратными рыночными ордерами
//
// Каждая позиция закрывается одним ордером на |NetQty|, последовательно.
// Ошибка одного ордера не останавливает закрытие остальных: результат
// каждого ордера попадает в ExitSummary.Results.
type Liquidator struct {
	positions PositionsSource
	placer    OrderPlacer
	logger    *zap.Logger
}

// NewLiquidator создаёт Liquidator
func NewLiquidator(positions PositionsSource, placer OrderPlacer, logger *zap.Logger) *Liquidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Liquidator{
		positions: positions,
		placer:    placer,
		logger:    logger.With(utils.Component("liquidator")),
	}
}

// ExitAll закрывает все открытые опционные позиции
func (l *Liquidator) ExitAll(ctx context.Context) (*models.ExitSummary, error) {
	resp, err := l.positions.FetchPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch positions for exit: %w", err)
	}
	if resp == nil {
		return nil, errors.New("positions source returned no data")
	}

	exitable := ExitablePositions(resp.Positions)
	if len(exitable) == 0 {
		l.logger.Info("Nothing to exit")
		return &models.ExitSummary{Success: true, Message: MessageNoOpenPositions}, nil
	}

	results := make([]models.ExitResult, 0, len(exitable))
	for _, p := range exitable {
		results = append(results, l.exitOne(ctx, RawPosition(p.Raw)))
	}

	l.logger.Info("Exit orders placed", zap.Int("count", len(results)))
	return &models.ExitSummary{
		Success:     true,
		ExitedCount: len(results),
		Results:     results,
	}, nil
}

// exitOne размещает обратный ордер для одной позиции
func (l *Liquidator) exitOne(ctx context.Context, raw RawPosition) models.ExitResult {
	req := BuildExitOrder(raw)
	scripName, _ := raw.ScripName()

	result := models.ExitResult{
		ScripCode:     req.ScripCode,
		ScripName:     scripName,
		ExitedQty:     req.Qty,
		OrderType:     req.OrderType,
		RemoteOrderID: req.RemoteOrderID,
	}

	body, err := l.placer.PlaceOrder(ctx, req)
	if err != nil {
		l.logger.Error("Exit order failed",
			zap.Int64("scrip_code", req.ScripCode),
			zap.String("scrip_name", scripName),
			zap.Error(err),
		)
		result.Error = err.Error()
		return result
	}

	result.Response = body
	result.Message = responseMessage(body)
	if code := responseError(body); code != "" {
		result.Error = code
	}
	return result
}

// ExitablePositions отбирает позиции, которые можно закрыть ордером:
// деривативы с числовым кодом, CE/PE в имени и ненулевым количеством.
func ExitablePositions(positions []models.Position) []models.Position {
	out := make([]models.Position, 0, len(positions))
	for _, p := range positions {
		raw := RawPosition(p.Raw)
		if raw == nil {
			continue
		}
		if exch, _ := raw["ExchType"].(string); exch != ExchangeTypeDeriv {
			continue
		}
		if _, ok := raw.ScripCode(); !ok {
			continue
		}
		name, ok := raw.ScripName()
		if !ok || !(strings.Contains(name, " CE ") || strings.Contains(name, " PE ")) {
			continue
		}
		if raw.NetQty() == 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// BuildExitOrder строит обратный рыночный ордер для позиции
func BuildExitOrder(raw RawPosition) OrderRequest {
	netQty := raw.NetQty()
	scripCode, _ := raw.ScripCode()

	orderType := OrderTypeSell
	if netQty < 0 {
		orderType = OrderTypeBuy
	}

	exch, _ := raw["Exch"].(string)
	if exch == "" {
		exch = ExchangeNSE
	}
	orderFor, _ := raw["OrderFor"].(string)

	return OrderRequest{
		Exchange:      exch,
		ExchangeType:  ExchangeTypeDeriv,
		ScripCode:     scripCode,
		OrderType:     orderType,
		Qty:           math.Abs(netQty),
		Price:         0,
		IsIntraday:    orderFor != OrderForDelivery,
		OrderValidity: 0,
		AHPlaced:      "N",
		RemoteOrderID: "EXIT_OPT_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
}

// responseMessage достаёт body.Message из ответа брокера
func responseMessage(body json.RawMessage) string {
	var resp struct {
		Body struct {
			Message string `json:"Message"`
		} `json:"body"`
	}
	if err := jsonAPI.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return resp.Body.Message
}

// responseError возвращает код ошибки, если ответ - обёртка не-JSON ответа
func responseError(body json.RawMessage) string {
	var resp struct {
		Error string `json:"error"`
	}
	if err := jsonAPI.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return resp.Error
}
