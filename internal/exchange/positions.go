package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"autoexit/internal/models"
	"autoexit/pkg/utils"

	"go.uber.org/zap"
)

// ============================================================
// Разбор позиций брокера
// ============================================================

// scripNamePattern разбирает имя контракта вида "NIFTY 25 NOV 2025 CE 26450.00"
var scripNamePattern = regexp.MustCompile(`(?i)([A-Z]+)\s+(\d{2})\s+([A-Z]{3})\s+(\d{4})\s+(CE|PE)\s+(\d+(?:\.\d+)?)`)

// ScripInfo - поля опционного контракта, извлечённые из имени
type ScripInfo struct {
	Symbol     string
	Expiry     string
	OptionType string // CE / PE
	Strike     string
}

// ParseScripName разбирает имя контракта. ok=false если формат не распознан.
func ParseScripName(name string) (ScripInfo, bool) {
	m := scripNamePattern.FindStringSubmatch(name)
	if m == nil {
		return ScripInfo{}, false
	}
	return ScripInfo{
		Symbol:     strings.ToUpper(m[1]),
		Expiry:     fmt.Sprintf("%s %s %s", m[2], strings.ToUpper(m[3]), m[4]),
		OptionType: strings.ToUpper(m[5]),
		Strike:     strings.TrimSuffix(m[6], ".00"),
	}, true
}

// IsOptionPosition проверяет, что позиция - опцион в сегменте деривативов
func IsOptionPosition(p RawPosition) bool {
	if strings.ToUpper(p.firstString("ExchType", "ExchangeType")) != ExchangeTypeDeriv {
		return false
	}
	sym := p.firstString("Symbol", "ScripName", "ScripData")
	return strings.Contains(sym, "CE") || strings.Contains(sym, "PE") ||
		p.firstString("OptionType", "CEPE") != ""
}

// MapPosition переводит позицию брокера в models.Position
func MapPosition(p RawPosition) models.Position {
	netQty, ok := p.firstNumber("NetQty", "NetQuantity")
	if !ok {
		buy, _ := p.firstNumber("BuyQty")
		sell, _ := p.firstNumber("SellQty")
		netQty = buy - sell
	}
	avgPrice, _ := p.firstNumber("AvgRate", "AveragePrice", "BookedAvgPrice")
	ltp, _ := p.firstNumber("LTP", "LastTradedPrice", "LastPrice")

	symbolRaw := p.firstString("Symbol", "ScripName", "ScripData")
	optionType := p.firstString("OptionType", "CEPE")
	expiry := p.firstString("ExpiryDate", "Expiry")
	strike := p.firstString("StrikePrice", "Strike")
	symbol := symbolRaw

	if optionType == "" || expiry == "" || strike == "" || symbol == "" {
		if info, ok := ParseScripName(symbolRaw); ok {
			symbol = info.Symbol
			if optionType == "" {
				optionType = info.OptionType
			}
			if expiry == "" {
				expiry = info.Expiry
			}
			if strike == "" {
				strike = info.Strike
			}
		}
	}

	side := OrderTypeBuy
	if netQty < 0 {
		side = OrderTypeSell
	}

	return models.Position{
		Expiry:     expiry,
		Symbol:     symbol,
		OptionType: side + " - " + optionType,
		Strike:     strike,
		NetQty:     netQty,
		AvgPrice:   avgPrice,
		LTP:        ltp,
		Unrealized: utils.UnrealizedPNL(netQty, avgPrice, ltp),
		Raw:        p,
	}
}

// MapOptionPositions отбирает опционные позиции и переводит их в models.Position
func MapOptionPositions(raw []RawPosition) []models.Position {
	out := make([]models.Position, 0, len(raw))
	for _, p := range raw {
		if !IsOptionPosition(p) {
			continue
		}
		out = append(out, MapPosition(p))
	}
	return out
}

// ============================================================
// Источник позиций брокера
// ============================================================

// BrokerPositions получает позиции у брокера (реализует bot.PositionsSource)
type BrokerPositions struct {
	broker Broker
	logger *zap.Logger
}

// NewBrokerPositions создаёт источник позиций
func NewBrokerPositions(broker Broker, logger *zap.Logger) *BrokerPositions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrokerPositions{broker: broker, logger: logger}
}

// FetchPositions возвращает опционные позиции клиента
func (b *BrokerPositions) FetchPositions(ctx context.Context) (*models.PositionsResponse, error) {
	raw, err := b.broker.GetNetPositions(ctx)
	if err != nil {
		return nil, err
	}
	positions := MapOptionPositions(raw)
	b.logger.Debug("Option positions mapped",
		utils.Broker(b.broker.GetName()),
		zap.Int("raw", len(raw)),
		zap.Int("options", len(positions)),
	)
	return &models.PositionsResponse{Positions: positions}, nil
}

// ============================================================
// Доступ к полям сырой позиции
// ============================================================

// firstString возвращает первое непустое поле из списка в виде строки
func (p RawPosition) firstString(keys ...string) string {
	for _, k := range keys {
		v, ok := p[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case json.Number:
			s = t.String()
		case bool:
			if !t {
				continue
			}
			s = "true"
		default:
			s = fmt.Sprint(t)
		}
		if s != "" {
			return s
		}
	}
	return ""
}

// firstNumber возвращает первое поле из списка, которое является числом
func (p RawPosition) firstNumber(keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := p[k]
		if !ok || v == nil {
			continue
		}
		if n, ok := toFloat(v); ok {
			return n, true
		}
	}
	return 0, false
}

// ScripCode возвращает числовой код контракта. Строковые коды не принимаются:
// брокер требует число в запросе ордера.
func (p RawPosition) ScripCode() (int64, bool) {
	switch t := p["ScripCode"].(type) {
	case float64:
		if t != math.Trunc(t) || !utils.IsFinite(t) {
			return 0, false
		}
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	}
	return 0, false
}

// ScripName возвращает имя контракта если это строка
func (p RawPosition) ScripName() (string, bool) {
	s, ok := p["ScripName"].(string)
	return s, ok
}

// NetQty возвращает чистое количество
func (p RawPosition) NetQty() float64 {
	n, _ := p.firstNumber("NetQty")
	return n
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, utils.IsFinite(t)
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil && utils.IsFinite(f)
	}
	return 0, false
}
