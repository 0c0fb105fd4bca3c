package service

import (
	"context"
	"sync"
	"time"

	"autoexit/internal/models"
	"autoexit/internal/repository"
)

// ============ Mock SettingsRepository ============

type MockSettingsRepository struct {
	settings    *models.Settings
	getErr      error
	updateErr   error
	updateCalls int
}

func NewMockSettingsRepository() *MockSettingsRepository {
	return &MockSettingsRepository{settings: models.DefaultSettings()}
}

func (m *MockSettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	copied := *m.settings
	return &copied, nil
}

func (m *MockSettingsRepository) Update(ctx context.Context, settings *models.Settings) error {
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	copied := *settings
	m.settings = &copied
	return nil
}

func (m *MockSettingsRepository) ResetToDefaults(ctx context.Context) (*models.Settings, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	m.settings = models.DefaultSettings()
	return m.Get(ctx)
}

// ============ Mock ActivityRepository ============

type MockActivityRepository struct {
	mu          sync.Mutex
	entries     []*models.ActivityLog
	status      models.ActivityStatus
	createErr   error
	getErr      error
	deleteErr   error
	statusErr   error
	keepCalls   []int
	typeQueries []string
	nextID      int
}

func NewMockActivityRepository() *MockActivityRepository {
	return &MockActivityRepository{nextID: 1}
}

func (m *MockActivityRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	entry.ID = m.nextID
	m.nextID++
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockActivityRepository) GetRecent(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.newestFirst(func(*models.ActivityLog) bool { return true }, limit), nil
}

func (m *MockActivityRepository) GetByType(ctx context.Context, logType string, limit int) ([]*models.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.typeQueries = append(m.typeQueries, logType)
	return m.newestFirst(func(e *models.ActivityLog) bool { return e.Type == logType }, limit), nil
}

func (m *MockActivityRepository) newestFirst(keep func(*models.ActivityLog) bool, limit int) []*models.ActivityLog {
	result := make([]*models.ActivityLog, 0)
	for i := len(m.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if keep(m.entries[i]) {
			result = append(result, m.entries[i])
		}
	}
	return result
}

func (m *MockActivityRepository) DeleteAll(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	n := int64(len(m.entries))
	m.entries = nil
	return n, nil
}

func (m *MockActivityRepository) KeepRecent(ctx context.Context, keep int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keepCalls = append(m.keepCalls, keep)
	if len(m.entries) <= keep {
		return 0, nil
	}
	deleted := int64(len(m.entries) - keep)
	m.entries = m.entries[len(m.entries)-keep:]
	return deleted, nil
}

func (m *MockActivityRepository) GetStatus(ctx context.Context) (*models.ActivityStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	status := m.status
	return &status, nil
}

func (m *MockActivityRepository) SetStatus(ctx context.Context, action string) (*models.ActivityStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return nil, m.statusErr
	}
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
		return nil, repository.ErrInvalidStatusAction
	}
	now := time.Now()
	m.status.UpdatedAt = &now
	status := m.status
	return &status, nil
}

func (m *MockActivityRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// ============ Mock TrailingStatusRepository ============

type MockTrailingStatusRepository struct {
	mu         sync.Mutex
	status     *models.TrailingStatus
	saved      []*models.MonitorSnapshot
	getErr     error
	saveErr    error
	clearErr   error
	clearCalls int
}

func (m *MockTrailingStatusRepository) Get(ctx context.Context) (*models.TrailingStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.status, nil
}

func (m *MockTrailingStatusRepository) Save(ctx context.Context, snapshot *models.MonitorSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, snapshot)
	m.status = &models.TrailingStatus{Snapshot: snapshot, UpdatedAt: time.Now()}
	return nil
}

func (m *MockTrailingStatusRepository) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	if m.clearErr != nil {
		return m.clearErr
	}
	m.status = nil
	return nil
}

// ============ Mock MonitorController ============

type MockMonitor struct {
	startErr   error
	tickErr    error
	startCalls int
	stopCalls  int
	tickCalls  int
	clearCalls int
	snapshot   *models.MonitorSnapshot
	state      string
}

func NewMockMonitor() *MockMonitor {
	return &MockMonitor{
		snapshot: models.EmptySnapshot(time.Now()),
		state:    models.StateIdle,
	}
}

func (m *MockMonitor) Start(ctx context.Context) error {
	m.startCalls++
	if m.startErr != nil {
		return m.startErr
	}
	m.state = models.StateRunning
	return nil
}

func (m *MockMonitor) Stop(ctx context.Context) {
	m.stopCalls++
	m.state = models.StateStopped
}

func (m *MockMonitor) Tick(ctx context.Context) error {
	m.tickCalls++
	return m.tickErr
}

func (m *MockMonitor) Snapshot() *models.MonitorSnapshot {
	return m.snapshot
}

func (m *MockMonitor) ClearSnapshot() *models.MonitorSnapshot {
	m.clearCalls++
	m.snapshot = models.EmptySnapshot(time.Now())
	return m.snapshot
}

func (m *MockMonitor) State() string {
	return m.state
}

// ============ Mock Mirror / Broadcaster ============

type MockMirror struct {
	saved    int
	cleared  int
	saveErr  error
	clearErr error
}

func (m *MockMirror) SaveSnapshot(ctx context.Context, snapshot *models.MonitorSnapshot) error {
	m.saved++
	return m.saveErr
}

func (m *MockMirror) ClearSnapshot(ctx context.Context) error {
	m.cleared++
	return m.clearErr
}

type MockBroadcaster struct {
	snapshots []*models.MonitorSnapshot
}

func (m *MockBroadcaster) BroadcastSnapshot(snapshot *models.MonitorSnapshot) {
	m.snapshots = append(m.snapshots, snapshot)
}

// ============ Mock AuditLog ============

type auditEntry struct {
	level   string
	message string
	meta    map[string]interface{}
}

type MockAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (m *MockAudit) Record(level, message string, meta map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, auditEntry{level: level, message: message, meta: meta})
}

func (m *MockAudit) last() (auditEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return auditEntry{}, false
	}
	return m.entries[len(m.entries)-1], true
}

// ============ Mock positions / exit ============

type MockPositionsSource struct {
	resp *models.PositionsResponse
	err  error
}

func (m *MockPositionsSource) FetchPositions(ctx context.Context) (*models.PositionsResponse, error) {
	return m.resp, m.err
}

type MockExitAction struct {
	summary *models.ExitSummary
	err     error
	calls   int
}

func (m *MockExitAction) ExitAll(ctx context.Context) (*models.ExitSummary, error) {
	m.calls++
	return m.summary, m.err
}

// waitFor ждёт выполнения условия не дольше timeout
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func floatPtr(v float64) *float64 { return &v }

func int64Ptr(v int64) *int64 { return &v }
