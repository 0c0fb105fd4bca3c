package handlers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"autoexit/internal/exchange"
	"autoexit/internal/models"
	"autoexit/internal/service"
)

// ErrMockDatabase - ошибка БД для тестов
var ErrMockDatabase = errors.New("mock database error")

// ============ Mock Monitor Service ============

// MockMonitorService мок для MonitorServiceInterface
type MockMonitorService struct {
	mu        sync.Mutex
	running   bool
	actions   []string
	tickErr   error
	statusErr error
	clearErr  error
	status    *models.TrailingStatus
	snapshot  *models.MonitorSnapshot
}

// NewMockMonitorService создает новый мок сервиса мониторинга
func NewMockMonitorService() *MockMonitorService {
	return &MockMonitorService{snapshot: models.EmptySnapshot(time.Now())}
}

func (m *MockMonitorService) HandleAction(ctx context.Context, action string) (*models.ActionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, action)

	switch action {
	case models.ActionStart:
		if m.running {
			return &models.ActionResult{Success: false, Error: service.MessageAlreadyRunning}, nil
		}
		m.running = true
		m.snapshot.Running = true
		return &models.ActionResult{Success: true}, nil
	case models.ActionStop:
		m.running = false
		m.snapshot.Running = false
		return &models.ActionResult{Success: true}, nil
	case models.ActionTick:
		if m.tickErr != nil {
			return &models.ActionResult{Success: false, Error: m.tickErr.Error()}, nil
		}
		return &models.ActionResult{Success: true}, nil
	}
	return nil, service.ErrInvalidAction
}

func (m *MockMonitorService) Snapshot() *models.MonitorSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot.Clone()
}

func (m *MockMonitorService) GetStatus(ctx context.Context) (*models.TrailingStatus, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return m.status, nil
}

func (m *MockMonitorService) ClearStatus(ctx context.Context) (*models.MonitorSnapshot, error) {
	if m.clearErr != nil {
		return nil, m.clearErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = nil
	m.snapshot = models.EmptySnapshot(time.Now())
	return m.snapshot.Clone(), nil
}

func (m *MockMonitorService) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.actions...)
}

// ============ Mock Settings Service ============

// MockSettingsService мок для SettingsServiceInterface
type MockSettingsService struct {
	settings  *models.Settings
	getErr    error
	updateErr error
	mu        sync.RWMutex
}

// NewMockSettingsService создает новый мок сервиса настроек
func NewMockSettingsService() *MockSettingsService {
	return &MockSettingsService{settings: models.DefaultSettings()}
}

func (m *MockSettingsService) GetSettings(ctx context.Context) (*models.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	copied := *m.settings
	return &copied, nil
}

func (m *MockSettingsService) UpdateSettings(ctx context.Context, req *service.UpdateSettingsRequest) (*models.Settings, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.Join(service.ErrInvalidSettings, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if req.TotalCapital != nil {
		m.settings.TotalCapital = *req.TotalCapital
	}
	if req.TrailingGapPct != nil {
		m.settings.TrailingGapPct = *req.TrailingGapPct
	}
	if req.SchedulerFrequencyMs != nil {
		m.settings.SchedulerFrequencyMs = *req.SchedulerFrequencyMs
	}
	copied := *m.settings
	return &copied, nil
}

func (m *MockSettingsService) ResetToDefaults(ctx context.Context) (*models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	m.settings = models.DefaultSettings()
	copied := *m.settings
	return &copied, nil
}

// SetError устанавливает ошибку для указанной операции
func (m *MockSettingsService) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch operation {
	case "get":
		m.getErr = err
	case "update":
		m.updateErr = err
	}
}

// ============ Mock Activity Service ============

// MockActivityService мок для ActivityServiceInterface
type MockActivityService struct {
	logs      []*models.ActivityLog
	status    models.ActivityStatus
	getErr    error
	clearErr  error
	lastType  string
	lastLimit int
}

func (m *MockActivityService) GetLogs(ctx context.Context, logType string, limit int) ([]*models.ActivityLog, error) {
	m.lastType, m.lastLimit = logType, limit
	if m.getErr != nil {
		return nil, m.getErr
	}
	if logType != "" {
		switch strings.ToUpper(logType) {
		case models.ActivityTypeMonitor, models.ActivityTypeAutoExit, models.ActivityTypeSettings,
			models.ActivityTypePositions, models.ActivityTypeError:
		default:
			return nil, service.ErrInvalidLogType
		}
	}
	result := make([]*models.ActivityLog, 0, len(m.logs))
	for _, l := range m.logs {
		if logType == "" || l.Type == strings.ToUpper(logType) {
			result = append(result, l)
		}
	}
	return result, nil
}

func (m *MockActivityService) ClearLogs(ctx context.Context) (int64, error) {
	if m.clearErr != nil {
		return 0, m.clearErr
	}
	n := int64(len(m.logs))
	m.logs = nil
	return n, nil
}

func (m *MockActivityService) GetStatus(ctx context.Context) (*models.ActivityStatus, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	status := m.status
	return &status, nil
}

func (m *MockActivityService) SetStatus(ctx context.Context, action string) (*models.ActivityStatus, error) {
	switch action {
	case models.StatusActionLiveOn:
		m.status.Live = true
	case models.StatusActionLiveOff:
		m.status.Live = false
	case models.StatusActionAutoExitStart:
		m.status.AutoExitRunning = true
	case models.StatusActionAutoExitStop:
		m.status.AutoExitRunning = false
	default:
		return nil, service.ErrInvalidStatusAction
	}
	now := time.Now()
	m.status.UpdatedAt = &now
	status := m.status
	return &status, nil
}

// ============ Mock Positions Service ============

// MockPositionsService мок для PositionsServiceInterface
type MockPositionsService struct {
	resp      *models.PositionsResponse
	summary   *models.ExitSummary
	fetchErr  error
	exitErr   error
	mock      []models.Position
	mockOn    bool
	exitCalls int
}

func (m *MockPositionsService) GetPositions(ctx context.Context) (*models.PositionsResponse, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if m.resp == nil {
		return &models.PositionsResponse{Positions: []models.Position{}}, nil
	}
	return m.resp, nil
}

func (m *MockPositionsService) ExitAll(ctx context.Context) (*models.ExitSummary, error) {
	m.exitCalls++
	if m.exitErr != nil {
		return nil, m.exitErr
	}
	return m.summary, nil
}

func (m *MockPositionsService) MockEnabled() bool {
	return m.mockOn
}

func (m *MockPositionsService) GetMockPositions() ([]models.Position, error) {
	if !m.mockOn {
		return nil, service.ErrMockDisabled
	}
	return m.mock, nil
}

func (m *MockPositionsService) SaveMockPositions(positions []models.Position) ([]models.Position, error) {
	if !m.mockOn {
		return nil, service.ErrMockDisabled
	}
	m.mock = positions
	return m.mock, nil
}

func (m *MockPositionsService) SetMockUnrealized(index int, target float64) (*models.Position, error) {
	if !m.mockOn {
		return nil, service.ErrMockDisabled
	}
	if index < 0 || index >= len(m.mock) {
		return nil, exchange.ErrMockIndexOutOfRange
	}
	p := &m.mock[index]
	p.Unrealized = target
	return p, nil
}

// Проверяем, что моки реализуют интерфейсы сервисов
var (
	_ service.MonitorServiceInterface   = (*MockMonitorService)(nil)
	_ service.SettingsServiceInterface  = (*MockSettingsService)(nil)
	_ service.ActivityServiceInterface  = (*MockActivityService)(nil)
	_ service.PositionsServiceInterface = (*MockPositionsService)(nil)
)
