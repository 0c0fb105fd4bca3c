package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"autoexit/internal/models"
)

// Ошибки репозитория настроек
var (
	ErrSettingsNotFound = errors.New("settings not found")
)

// SettingsRepository - работа с таблицей monitor_settings
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository создает новый экземпляр репозитория
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get возвращает настройки мониторинга (всегда id=1, одна запись)
func (r *SettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	query := `
		SELECT id, total_capital, scheduler_frequency_ms, initial_stop_loss_pct,
			break_even_trigger_pct, profit_lock_trigger_pct, locked_profit_pct,
			trailing_step_pct, trailing_gap_pct, updated_at
		FROM monitor_settings
		WHERE id = 1`

	settings := &models.Settings{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&settings.ID,
		&settings.TotalCapital,
		&settings.SchedulerFrequencyMs,
		&settings.InitialStopLossPct,
		&settings.BreakEvenTriggerPct,
		&settings.ProfitLockTriggerPct,
		&settings.LockedProfitPct,
		&settings.TrailingStepPct,
		&settings.TrailingGapPct,
		&settings.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Если записи нет, создаем ее с дефолтными значениями
			return r.createDefault(ctx)
		}
		return nil, err
	}

	return settings, nil
}

// Update обновляет настройки
func (r *SettingsRepository) Update(ctx context.Context, settings *models.Settings) error {
	query := `
		UPDATE monitor_settings
		SET total_capital = $1, scheduler_frequency_ms = $2, initial_stop_loss_pct = $3,
			break_even_trigger_pct = $4, profit_lock_trigger_pct = $5, locked_profit_pct = $6,
			trailing_step_pct = $7, trailing_gap_pct = $8, updated_at = $9
		WHERE id = 1`

	settings.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		settings.TotalCapital,
		settings.SchedulerFrequencyMs,
		settings.InitialStopLossPct,
		settings.BreakEvenTriggerPct,
		settings.ProfitLockTriggerPct,
		settings.LockedProfitPct,
		settings.TrailingStepPct,
		settings.TrailingGapPct,
		settings.UpdatedAt,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrSettingsNotFound
	}

	return nil
}

// ResetToDefaults сбрасывает настройки к значениям по умолчанию
func (r *SettingsRepository) ResetToDefaults(ctx context.Context) (*models.Settings, error) {
	settings := models.DefaultSettings()
	if err := r.Update(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// createDefault создает запись настроек с дефолтными значениями
func (r *SettingsRepository) createDefault(ctx context.Context) (*models.Settings, error) {
	settings := models.DefaultSettings()

	query := `
		INSERT INTO monitor_settings (id, total_capital, scheduler_frequency_ms, initial_stop_loss_pct,
			break_even_trigger_pct, profit_lock_trigger_pct, locked_profit_pct,
			trailing_step_pct, trailing_gap_pct, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		settings.TotalCapital,
		settings.SchedulerFrequencyMs,
		settings.InitialStopLossPct,
		settings.BreakEvenTriggerPct,
		settings.ProfitLockTriggerPct,
		settings.LockedProfitPct,
		settings.TrailingStepPct,
		settings.TrailingGapPct,
		settings.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return settings, nil
}
