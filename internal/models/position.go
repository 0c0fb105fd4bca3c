package models

// Position представляет чистую опционную позицию у брокера
type Position struct {
	Expiry     string                 `json:"expiry"`      // 25 NOV 2025
	Symbol     string                 `json:"symbol"`      // базовый актив (NIFTY)
	OptionType string                 `json:"option_type"` // "Buy - CE", "Sell - PE"
	Strike     string                 `json:"strike"`
	NetQty     float64                `json:"net_qty"` // < 0 для шорта
	AvgPrice   float64                `json:"avg_price"`
	LTP        float64                `json:"ltp"`
	Unrealized float64                `json:"unrealized"` // NetQty × (LTP - AvgPrice)
	Raw        map[string]interface{} `json:"raw,omitempty"`
}

// PositionsResponse - ответ источника позиций
type PositionsResponse struct {
	Positions []Position `json:"positions"`
	Mock      bool       `json:"mock,omitempty"`
}

// TotalUnrealized возвращает сумму нереализованного PNL по всем позициям
func (r *PositionsResponse) TotalUnrealized() float64 {
	if r == nil {
		return 0
	}
	total := 0.0
	for _, p := range r.Positions {
		total += p.Unrealized
	}
	return total
}
