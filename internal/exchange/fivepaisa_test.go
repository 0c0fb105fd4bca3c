package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFivePaisa(t *testing.T, handler http.HandlerFunc) *FivePaisa {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewFivePaisa(FivePaisaConfig{
		BaseURL:       srv.URL,
		AppKey:        "app-key",
		ClientCode:    "5012345",
		AccessToken:   "access-token",
		PositionsRate: 100,
		OrdersRate:    100,
	}, nil)
	t.Cleanup(client.Close)
	return client
}

func TestFivePaisa_GetNetPositions(t *testing.T) {
	var gotBody map[string]map[string]string
	client := newTestFivePaisa(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, netPositionsPath, r.URL.Path)
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &gotBody))

		w.Write([]byte(`{"head":{"status":"0"},"body":{"NetPositionDetail":[
			{"ExchType":"D","ScripCode":54321,"ScripName":"NIFTY 25 NOV 2025 CE 26450.00","NetQty":-75,"AvgRate":120.5,"LTP":100.5}
		]}}`))
	})

	positions, err := client.GetNetPositions(context.Background())

	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "app-key", gotBody["head"]["key"])
	assert.Equal(t, "5012345", gotBody["body"]["ClientCode"])

	code, ok := positions[0].ScripCode()
	assert.True(t, ok)
	assert.Equal(t, int64(54321), code)
}

func TestExtractPositions(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCount int
		wantCode  string
	}{
		{name: "NetPositionDetail", body: `{"body":{"NetPositionDetail":[{"a":1},{"a":2}]}}`, wantCount: 2},
		{name: "NetPositions", body: `{"body":{"NetPositions":[{"a":1}]}}`, wantCount: 1},
		{name: "Positions", body: `{"body":{"Positions":[{"a":1}]}}`, wantCount: 1},
		{name: "null detail falls through", body: `{"body":{"NetPositionDetail":null,"Positions":[{"a":1}]}}`, wantCount: 1},
		{name: "body array", body: `{"body":[{"a":1},{"a":2},{"a":3}]}`, wantCount: 3},
		{name: "empty list", body: `{"body":{"NetPositionDetail":[]}}`, wantCount: 0},
		{name: "no list", body: `{"body":{"Message":"Invalid session"}}`, wantCode: ErrCodeNoPositions},
		{name: "not json", body: `<html>oops</html>`, wantCode: ErrCodeNonJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractPositions([]byte(tt.body))
			if tt.wantCode != "" {
				var be *BrokerError
				require.True(t, errors.As(err, &be), "error %v", err)
				assert.Equal(t, tt.wantCode, be.Code)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantCount)
		})
	}
}

func TestFivePaisa_GetNetPositions_HTTPError(t *testing.T) {
	client := newTestFivePaisa(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`token expired`))
	})

	_, err := client.GetNetPositions(context.Background())

	var be *BrokerError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, http.StatusUnauthorized, be.StatusCode)
	assert.Equal(t, ErrCodeFetchFailed, be.Code)
	assert.Equal(t, "token expired", be.Message)
}

func TestFivePaisa_MissingCredentials(t *testing.T) {
	client := NewFivePaisa(FivePaisaConfig{BaseURL: "http://127.0.0.1:1"}, nil)

	_, err := client.GetNetPositions(context.Background())
	var be *BrokerError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, ErrCodeNotAuthorized, be.Code)

	_, err = client.PlaceOrder(context.Background(), OrderRequest{})
	require.True(t, errors.As(err, &be))
	assert.Equal(t, ErrCodeNotAuthorized, be.Code)
}

func TestFivePaisa_PlaceOrder(t *testing.T) {
	var got struct {
		Head map[string]string `json:"head"`
		Body OrderRequest      `json:"body"`
	}
	client := newTestFivePaisa(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, placeOrderPath, r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &got))
		w.Write([]byte(`{"body":{"Message":"Success","BrokerOrderID":987}}`))
	})

	req := OrderRequest{
		Exchange:      "N",
		ExchangeType:  "D",
		ScripCode:     54321,
		OrderType:     OrderTypeBuy,
		Qty:           75,
		IsIntraday:    true,
		AHPlaced:      "N",
		RemoteOrderID: "EXIT_OPT_1",
	}
	body, err := client.PlaceOrder(context.Background(), req)

	require.NoError(t, err)
	assert.JSONEq(t, `{"body":{"Message":"Success","BrokerOrderID":987}}`, string(body))
	assert.Equal(t, req, got.Body)
	assert.Equal(t, "app-key", got.Head["key"])
}

func TestFivePaisa_PlaceOrder_NonJSON(t *testing.T) {
	client := newTestFivePaisa(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html>Bad Gateway</html>`))
	})

	body, err := client.PlaceOrder(context.Background(), OrderRequest{ScripCode: 1})

	require.NoError(t, err)
	var wrapped map[string]string
	require.NoError(t, json.Unmarshal(body, &wrapped))
	assert.Equal(t, ErrCodeNonJSON, wrapped["error"])
	assert.Equal(t, "<html>Bad Gateway</html>", wrapped["raw"])
}

func TestFivePaisa_ContextCancelled(t *testing.T) {
	client := newTestFivePaisa(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"body":[]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetNetPositions(ctx)
	assert.Error(t, err)
}
