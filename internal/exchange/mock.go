package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"autoexit/internal/models"
	"autoexit/pkg/utils"

	"go.uber.org/zap"
)

// ErrMockIndexOutOfRange - позиция с таким индексом отсутствует в файле
var ErrMockIndexOutOfRange = errors.New("mock position index out of range")

// MockPositions - источник позиций из JSON файла
//
// Используется без учётных данных брокера и для ручной проверки
// авто-выхода: LTP позиций можно менять через API.
type MockPositions struct {
	path string
	mu   sync.Mutex
}

// NewMockPositions создаёт источник поверх файла path
func NewMockPositions(path string) *MockPositions {
	return &MockPositions{path: path}
}

// FetchPositions читает позиции из файла (реализует bot.PositionsSource)
func (m *MockPositions) FetchPositions(ctx context.Context) (*models.PositionsResponse, error) {
	positions, err := m.Load()
	if err != nil {
		return nil, err
	}
	return &models.PositionsResponse{Positions: positions, Mock: true}, nil
}

// Load читает позиции и пересчитывает нереализованный PNL
func (m *MockPositions) Load() ([]models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

// Save перезаписывает файл позиций
func (m *MockPositions) Save(positions []models.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(positions)
}

// SetUnrealized подбирает LTP позиции так, чтобы её PNL стал target
func (m *MockPositions) SetUnrealized(index int, target float64) (*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	positions, err := m.load()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(positions) {
		return nil, ErrMockIndexOutOfRange
	}

	p := &positions[index]
	p.LTP = utils.LTPForUnrealized(p.AvgPrice, p.NetQty, target)
	p.Unrealized = utils.UnrealizedPNL(p.NetQty, p.AvgPrice, p.LTP)
	if p.Raw != nil {
		p.Raw["LTP"] = p.LTP
	}

	if err := m.save(positions); err != nil {
		return nil, err
	}
	updated := *p
	return &updated, nil
}

// closeScrip обнуляет количество позиции с кодом scripCode
func (m *MockPositions) closeScrip(scripCode int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	positions, err := m.load()
	if err != nil {
		return false, err
	}

	found := false
	for i := range positions {
		code, ok := RawPosition(positions[i].Raw).ScripCode()
		if !ok || code != scripCode {
			continue
		}
		positions[i].NetQty = 0
		positions[i].Unrealized = 0
		positions[i].Raw["NetQty"] = 0
		found = true
	}
	if !found {
		return false, nil
	}
	return true, m.save(positions)
}

func (m *MockPositions) load() ([]models.Position, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("read mock positions: %w", err)
	}

	var positions []models.Position
	if err := jsonAPI.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("decode mock positions: %w", err)
	}
	for i := range positions {
		p := &positions[i]
		p.Unrealized = utils.UnrealizedPNL(p.NetQty, p.AvgPrice, p.LTP)
	}
	return positions, nil
}

// save пишет во временный файл и переименовывает, чтобы читатель не увидел половину файла
func (m *MockPositions) save(positions []models.Position) error {
	if positions == nil {
		positions = []models.Position{}
	}
	data, err := jsonAPI.MarshalIndent(positions, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mock positions: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".positions-*.json")
	if err != nil {
		return fmt.Errorf("write mock positions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write mock positions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write mock positions: %w", err)
	}
	return os.Rename(tmp.Name(), m.path)
}

// ============================================================
// PaperBroker
// ============================================================

// PaperBroker исполняет закрывающие ордера по позициям из MockPositions
// без обращения к брокеру: позиция с кодом ордера обнуляется в файле.
type PaperBroker struct {
	mock   *MockPositions
	logger *zap.Logger
}

// NewPaperBroker создаёт PaperBroker
func NewPaperBroker(mock *MockPositions, logger *zap.Logger) *PaperBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaperBroker{mock: mock, logger: logger.With(utils.Broker("paper"))}
}

// PlaceOrder имитирует исполнение рыночного ордера
func (p *PaperBroker) PlaceOrder(ctx context.Context, req OrderRequest) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	found, err := p.mock.closeScrip(req.ScripCode)
	if err != nil {
		return nil, err
	}

	status, message := 0, "Paper exit order filled"
	if !found {
		status, message = 1, "Scrip not found in mock positions"
	}
	p.logger.Info("Paper order",
		zap.Int64("scrip_code", req.ScripCode),
		zap.String("order_type", req.OrderType),
		zap.Float64("qty", req.Qty),
		zap.Bool("filled", found),
	)

	return jsonAPI.Marshal(map[string]interface{}{
		"head": map[string]string{"status": "0"},
		"body": map[string]interface{}{
			"Message":       message,
			"Status":        status,
			"RemoteOrderID": req.RemoteOrderID,
		},
	})
}
