package service

import (
	"context"
	"errors"

	"autoexit/internal/bot"
	"autoexit/internal/exchange"
	"autoexit/internal/models"
	"autoexit/pkg/utils"

	"go.uber.org/zap"
)

// ErrMockDisabled - операции с mock позициями недоступны при работе с брокером
var ErrMockDisabled = errors.New("mock positions are disabled")

// PositionsService - позиции брокера и ручное закрытие
type PositionsService struct {
	source bot.PositionsSource
	exit   ExitAction
	mock   *exchange.MockPositions
	audit  bot.AuditLog
	logger *zap.Logger
}

// NewPositionsService создает сервис позиций.
// mock == nil означает работу с реальным брокером.
func NewPositionsService(source bot.PositionsSource, exit ExitAction, mock *exchange.MockPositions, audit bot.AuditLog, logger *zap.Logger) *PositionsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PositionsService{
		source: source,
		exit:   exit,
		mock:   mock,
		audit:  audit,
		logger: logger.With(utils.Component("positions")),
	}
}

// GetPositions возвращает текущие опционные позиции
func (s *PositionsService) GetPositions(ctx context.Context) (*models.PositionsResponse, error) {
	resp, err := s.source.FetchPositions(ctx)
	if err != nil {
		s.record(models.LevelError, "Failed to fetch positions", map[string]interface{}{
			"type":  models.ActivityTypePositions,
			"error": err.Error(),
		})
		return nil, err
	}
	if resp == nil {
		resp = &models.PositionsResponse{}
	}
	if resp.Positions == nil {
		resp.Positions = []models.Position{}
	}
	return resp, nil
}

// ExitAll закрывает все опционные позиции по запросу пользователя
func (s *PositionsService) ExitAll(ctx context.Context) (*models.ExitSummary, error) {
	summary, err := s.exit.ExitAll(ctx)
	if err != nil {
		s.logger.Error("Manual exit failed", zap.Error(err))
		s.record(models.LevelError, "Manual exit failed", map[string]interface{}{
			"type":  models.ActivityTypePositions,
			"error": err.Error(),
		})
		return nil, err
	}

	s.logger.Info("Manual exit finished",
		zap.Bool("success", summary.Success),
		zap.Int("exited_count", summary.ExitedCount),
	)
	s.record(models.LevelInfo, "Manual exit of all option positions", map[string]interface{}{
		"type":         models.ActivityTypePositions,
		"success":      summary.Success,
		"exited_count": summary.ExitedCount,
	})
	return summary, nil
}

// MockEnabled возвращает true в режиме mock позиций
func (s *PositionsService) MockEnabled() bool {
	return s.mock != nil
}

// GetMockPositions возвращает содержимое файла mock позиций
func (s *PositionsService) GetMockPositions() ([]models.Position, error) {
	if s.mock == nil {
		return nil, ErrMockDisabled
	}
	return s.mock.Load()
}

// SaveMockPositions перезаписывает файл mock позиций
func (s *PositionsService) SaveMockPositions(positions []models.Position) ([]models.Position, error) {
	if s.mock == nil {
		return nil, ErrMockDisabled
	}
	if err := s.mock.Save(positions); err != nil {
		return nil, err
	}
	return s.mock.Load()
}

// SetMockUnrealized меняет LTP позиции так, чтобы её PNL стал target
func (s *PositionsService) SetMockUnrealized(index int, target float64) (*models.Position, error) {
	if s.mock == nil {
		return nil, ErrMockDisabled
	}
	p, err := s.mock.SetUnrealized(index, target)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Mock position updated",
		zap.Int("index", index),
		zap.Float64("ltp", p.LTP),
		zap.Float64("unrealized", p.Unrealized),
	)
	return p, nil
}

func (s *PositionsService) record(level, message string, meta map[string]interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.Record(level, message, meta)
}
