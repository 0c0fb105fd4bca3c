package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScripName(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   ScripInfo
		wantOK bool
	}{
		{
			name:   "nifty call",
			in:     "NIFTY 25 NOV 2025 CE 26450.00",
			want:   ScripInfo{Symbol: "NIFTY", Expiry: "25 NOV 2025", OptionType: "CE", Strike: "26450"},
			wantOK: true,
		},
		{
			name:   "banknifty put fractional strike",
			in:     "BANKNIFTY 30 DEC 2025 PE 51250.50",
			want:   ScripInfo{Symbol: "BANKNIFTY", Expiry: "30 DEC 2025", OptionType: "PE", Strike: "51250.50"},
			wantOK: true,
		},
		{
			name:   "lowercase",
			in:     "nifty 02 jan 2026 ce 24000",
			want:   ScripInfo{Symbol: "NIFTY", Expiry: "02 JAN 2026", OptionType: "CE", Strike: "24000"},
			wantOK: true,
		},
		{name: "future", in: "NIFTY 25 NOV 2025", wantOK: false},
		{name: "empty", in: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseScripName(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestIsOptionPosition(t *testing.T) {
	tests := []struct {
		name string
		raw  RawPosition
		want bool
	}{
		{"derivative option", RawPosition{"ExchType": "D", "ScripName": "NIFTY 25 NOV 2025 CE 26450.00"}, true},
		{"lowercase exch type", RawPosition{"ExchType": "d", "ScripName": "NIFTY 25 NOV 2025 PE 26000.00"}, true},
		{"exchange type field", RawPosition{"ExchangeType": "D", "Symbol": "NIFTY25NOVCE"}, true},
		{"option type flag", RawPosition{"ExchType": "D", "ScripName": "SOMETHING", "CEPE": "CE"}, true},
		{"cash segment", RawPosition{"ExchType": "C", "ScripName": "RELIANCE"}, false},
		{"future", RawPosition{"ExchType": "D", "ScripName": "NIFTY 25 NOV 2025"}, false},
		{"empty", RawPosition{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOptionPosition(tt.raw))
		})
	}
}

func TestMapPosition_FromScripName(t *testing.T) {
	raw := RawPosition{
		"ExchType":  "D",
		"ScripName": "NIFTY 25 NOV 2025 CE 26450.00",
		"NetQty":    float64(-75),
		"AvgRate":   float64(120.5),
		"LTP":       float64(100.5),
	}

	p := MapPosition(raw)

	assert.Equal(t, "NIFTY", p.Symbol)
	assert.Equal(t, "25 NOV 2025", p.Expiry)
	assert.Equal(t, "26450", p.Strike)
	assert.Equal(t, "Sell - CE", p.OptionType)
	assert.Equal(t, -75.0, p.NetQty)
	assert.Equal(t, 120.5, p.AvgPrice)
	assert.Equal(t, 100.5, p.LTP)
	assert.Equal(t, 1500.0, p.Unrealized)
	assert.Equal(t, "D", p.Raw["ExchType"])
}

func TestMapPosition_FieldFallbacks(t *testing.T) {
	raw := RawPosition{
		"ExchType":        "D",
		"Symbol":          "BANKNIFTY",
		"OptionType":      "PE",
		"ExpiryDate":      "30 DEC 2025",
		"StrikePrice":     float64(51000),
		"BuyQty":          float64(60),
		"SellQty":         float64(30),
		"AveragePrice":    "200",
		"LastTradedPrice": json.Number("210"),
	}

	p := MapPosition(raw)

	assert.Equal(t, "BANKNIFTY", p.Symbol)
	assert.Equal(t, "30 DEC 2025", p.Expiry)
	assert.Equal(t, "51000", p.Strike)
	assert.Equal(t, "Buy - PE", p.OptionType)
	assert.Equal(t, 30.0, p.NetQty)
	assert.Equal(t, 200.0, p.AvgPrice)
	assert.Equal(t, 210.0, p.LTP)
	assert.Equal(t, 300.0, p.Unrealized)
}

func TestMapOptionPositions_FiltersNonOptions(t *testing.T) {
	raw := []RawPosition{
		{"ExchType": "D", "ScripName": "NIFTY 25 NOV 2025 CE 26450.00", "NetQty": float64(50), "AvgRate": float64(10), "LTP": float64(12)},
		{"ExchType": "C", "ScripName": "INFY", "NetQty": float64(10)},
		{"ExchType": "D", "ScripName": "NIFTY 25 NOV 2025 PE 26000.00", "NetQty": float64(-50), "AvgRate": float64(8), "LTP": float64(5)},
	}

	got := MapOptionPositions(raw)

	require.Len(t, got, 2)
	assert.Equal(t, 100.0, got[0].Unrealized)
	assert.Equal(t, 150.0, got[1].Unrealized)
}

func TestRawPosition_ScripCode(t *testing.T) {
	tests := []struct {
		name   string
		raw    RawPosition
		want   int64
		wantOK bool
	}{
		{"float", RawPosition{"ScripCode": float64(54321)}, 54321, true},
		{"int", RawPosition{"ScripCode": 42}, 42, true},
		{"json number", RawPosition{"ScripCode": json.Number("777")}, 777, true},
		{"fractional", RawPosition{"ScripCode": 1.5}, 0, false},
		{"string", RawPosition{"ScripCode": "54321"}, 0, false},
		{"missing", RawPosition{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.raw.ScripCode()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type stubBroker struct {
	positions []RawPosition
	err       error
	orders    []OrderRequest
	orderErr  map[int64]error
	response  json.RawMessage
}

func (s *stubBroker) GetName() string { return "stub" }

func (s *stubBroker) GetNetPositions(ctx context.Context) ([]RawPosition, error) {
	return s.positions, s.err
}

func (s *stubBroker) PlaceOrder(ctx context.Context, req OrderRequest) (json.RawMessage, error) {
	s.orders = append(s.orders, req)
	if err := s.orderErr[req.ScripCode]; err != nil {
		return nil, err
	}
	if s.response != nil {
		return s.response, nil
	}
	return json.RawMessage(`{"body":{"Message":"Success","Status":0}}`), nil
}

func TestBrokerPositions_FetchPositions(t *testing.T) {
	broker := &stubBroker{positions: []RawPosition{
		{"ExchType": "D", "ScripName": "NIFTY 25 NOV 2025 CE 26450.00", "NetQty": float64(-75), "AvgRate": float64(100), "LTP": float64(90)},
		{"ExchType": "C", "ScripName": "TCS", "NetQty": float64(5)},
	}}

	resp, err := NewBrokerPositions(broker, nil).FetchPositions(context.Background())

	require.NoError(t, err)
	require.Len(t, resp.Positions, 1)
	assert.False(t, resp.Mock)
	assert.Equal(t, 750.0, resp.TotalUnrealized())
}

func TestBrokerPositions_Error(t *testing.T) {
	broker := &stubBroker{err: errors.New("unauthorized")}

	_, err := NewBrokerPositions(broker, nil).FetchPositions(context.Background())

	assert.EqualError(t, err, "unauthorized")
}
