package service

import (
	"context"
	"errors"
	"fmt"

	"autoexit/internal/bot"
	"autoexit/internal/models"
	"autoexit/pkg/utils"
)

// Ошибки сервиса настроек
var (
	ErrInvalidSettings = errors.New("invalid settings")
)

// Допустимый диапазон процентных настроек
const (
	minSettingPct = 0
	maxSettingPct = 100
)

// SettingsService предоставляет бизнес-логику для управления настройками мониторинга.
//
// Отвечает за:
// - Получение и частичное обновление настроек
// - Валидацию процентов, капитала и интервала
// - Передачу настроек в Monitor на каждом тике (GetMonitorSettings)
type SettingsService struct {
	settingsRepo SettingsRepositoryInterface
	audit        bot.AuditLog
}

// NewSettingsService создает новый экземпляр SettingsService.
func NewSettingsService(settingsRepo SettingsRepositoryInterface, audit bot.AuditLog) *SettingsService {
	return &SettingsService{
		settingsRepo: settingsRepo,
		audit:        audit,
	}
}

// GetSettings возвращает текущие настройки.
//
// Если записи в БД нет, создается запись с дефолтными значениями.
func (s *SettingsService) GetSettings(ctx context.Context) (*models.Settings, error) {
	return s.settingsRepo.Get(ctx)
}

// GetMonitorSettings реализует bot.SettingsSource
func (s *SettingsService) GetMonitorSettings(ctx context.Context) (*models.Settings, error) {
	return s.settingsRepo.Get(ctx)
}

// UpdateSettingsRequest представляет запрос на обновление настроек.
// Все поля опциональны - обновляются только переданные.
type UpdateSettingsRequest struct {
	TotalCapital         *float64 `json:"total_capital,omitempty"`
	SchedulerFrequencyMs *int64   `json:"scheduler_frequency_ms,omitempty"`
	InitialStopLossPct   *float64 `json:"initial_stop_loss_pct,omitempty"`
	BreakEvenTriggerPct  *float64 `json:"break_even_trigger_pct,omitempty"`
	ProfitLockTriggerPct *float64 `json:"profit_lock_trigger_pct,omitempty"`
	LockedProfitPct      *float64 `json:"locked_profit_pct,omitempty"`
	TrailingStepPct      *float64 `json:"trailing_step_pct,omitempty"`
	TrailingGapPct       *float64 `json:"trailing_gap_pct,omitempty"`
}

// IsEmpty возвращает true, если в запросе нет ни одного поля
func (r *UpdateSettingsRequest) IsEmpty() bool {
	return r.TotalCapital == nil && r.SchedulerFrequencyMs == nil &&
		r.InitialStopLossPct == nil && r.BreakEvenTriggerPct == nil &&
		r.ProfitLockTriggerPct == nil && r.LockedProfitPct == nil &&
		r.TrailingStepPct == nil && r.TrailingGapPct == nil
}

// Validate проверяет переданные поля.
//
// Правила валидации:
// - total_capital: >= 0
// - scheduler_frequency_ms: от 500ms до 1 часа
// - стартовый SL, безубыток, фиксация прибыли, шаг: (0, 100]
// - зафиксированная прибыль, отступ: [0, 100]
func (r *UpdateSettingsRequest) Validate() error {
	if r.TotalCapital != nil {
		if err := utils.ValidateCapital(*r.TotalCapital); err != nil {
			return err
		}
	}
	if r.SchedulerFrequencyMs != nil {
		if err := utils.ValidateFrequencyMs(*r.SchedulerFrequencyMs); err != nil {
			return err
		}
	}

	positive := []struct {
		name  string
		value *float64
	}{
		{"initial_stop_loss_pct", r.InitialStopLossPct},
		{"break_even_trigger_pct", r.BreakEvenTriggerPct},
		{"profit_lock_trigger_pct", r.ProfitLockTriggerPct},
		{"trailing_step_pct", r.TrailingStepPct},
	}
	for _, f := range positive {
		if f.value == nil {
			continue
		}
		if err := utils.ValidatePercent(f.name, *f.value, minSettingPct, maxSettingPct); err != nil {
			return err
		}
		if *f.value == 0 {
			return fmt.Errorf("%s must be greater than 0", f.name)
		}
	}

	nonNegative := []struct {
		name  string
		value *float64
	}{
		{"locked_profit_pct", r.LockedProfitPct},
		{"trailing_gap_pct", r.TrailingGapPct},
	}
	for _, f := range nonNegative {
		if f.value == nil {
			continue
		}
		if err := utils.ValidatePercent(f.name, *f.value, minSettingPct, maxSettingPct); err != nil {
			return err
		}
	}

	return nil
}

// UpdateSettings обновляет настройки.
//
// Принимает только те поля, которые нужно обновить.
// Изменения подхватываются мониторингом на следующем тике.
func (s *SettingsService) UpdateSettings(ctx context.Context, req *UpdateSettingsRequest) (*models.Settings, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}

	if req.TotalCapital != nil {
		settings.TotalCapital = *req.TotalCapital
	}
	if req.SchedulerFrequencyMs != nil {
		settings.SchedulerFrequencyMs = *req.SchedulerFrequencyMs
	}
	if req.InitialStopLossPct != nil {
		settings.InitialStopLossPct = *req.InitialStopLossPct
	}
	if req.BreakEvenTriggerPct != nil {
		settings.BreakEvenTriggerPct = *req.BreakEvenTriggerPct
	}
	if req.ProfitLockTriggerPct != nil {
		settings.ProfitLockTriggerPct = *req.ProfitLockTriggerPct
	}
	if req.LockedProfitPct != nil {
		settings.LockedProfitPct = *req.LockedProfitPct
	}
	if req.TrailingStepPct != nil {
		settings.TrailingStepPct = *req.TrailingStepPct
	}
	if req.TrailingGapPct != nil {
		settings.TrailingGapPct = *req.TrailingGapPct
	}

	if err := s.settingsRepo.Update(ctx, settings); err != nil {
		return nil, err
	}

	s.record("Settings updated", settings)
	return settings, nil
}

// ResetToDefaults сбрасывает все настройки к значениям по умолчанию.
func (s *SettingsService) ResetToDefaults(ctx context.Context) (*models.Settings, error) {
	settings, err := s.settingsRepo.ResetToDefaults(ctx)
	if err != nil {
		return nil, err
	}
	s.record("Settings reset to defaults", settings)
	return settings, nil
}

func (s *SettingsService) record(message string, settings *models.Settings) {
	if s.audit == nil {
		return
	}
	s.audit.Record(models.LevelInfo, message, map[string]interface{}{
		"type":                    models.ActivityTypeSettings,
		"total_capital":           settings.TotalCapital,
		"scheduler_frequency_ms":  settings.SchedulerFrequencyMs,
		"initial_stop_loss_pct":   settings.InitialStopLossPct,
		"break_even_trigger_pct":  settings.BreakEvenTriggerPct,
		"profit_lock_trigger_pct": settings.ProfitLockTriggerPct,
		"locked_profit_pct":       settings.LockedProfitPct,
		"trailing_step_pct":       settings.TrailingStepPct,
		"trailing_gap_pct":        settings.TrailingGapPct,
	})
}
