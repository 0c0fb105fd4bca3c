package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"autoexit/internal/models"
)

func TestSettingsService_GetSettings(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*MockSettingsRepository)
		wantErr bool
	}{
		{
			name: "успешное получение настроек",
		},
		{
			name: "ошибка базы данных",
			setup: func(m *MockSettingsRepository) {
				m.getErr = errors.New("db error")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := NewMockSettingsRepository()
			if tt.setup != nil {
				tt.setup(mockRepo)
			}

			svc := NewSettingsService(mockRepo, nil)
			settings, err := svc.GetSettings(context.Background())

			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if settings.SchedulerFrequencyMs != models.DefaultSchedulerFrequencyMs {
				t.Errorf("expected default frequency, got %d", settings.SchedulerFrequencyMs)
			}
		})
	}
}

func TestSettingsService_GetMonitorSettings(t *testing.T) {
	mockRepo := NewMockSettingsRepository()
	mockRepo.settings.TotalCapital = 500000

	svc := NewSettingsService(mockRepo, nil)
	settings, err := svc.GetMonitorSettings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.TotalCapital != 500000 {
		t.Errorf("expected capital 500000, got %v", settings.TotalCapital)
	}
}

func TestSettingsService_UpdateSettings(t *testing.T) {
	tests := []struct {
		name      string
		req       *UpdateSettingsRequest
		setup     func(*MockSettingsRepository)
		wantErr   error
		errSubstr string
		check     func(t *testing.T, s *models.Settings)
	}{
		{
			name: "частичное обновление",
			req: &UpdateSettingsRequest{
				TotalCapital:    floatPtr(200000),
				TrailingGapPct:  floatPtr(0.25),
				TrailingStepPct: floatPtr(0.5),
			},
			check: func(t *testing.T, s *models.Settings) {
				if s.TotalCapital != 200000 {
					t.Errorf("TotalCapital = %v, want 200000", s.TotalCapital)
				}
				if s.TrailingGapPct != 0.25 || s.TrailingStepPct != 0.5 {
					t.Errorf("trailing = %v/%v, want 0.25/0.5", s.TrailingGapPct, s.TrailingStepPct)
				}
				if s.InitialStopLossPct != models.DefaultInitialStopLossPct {
					t.Errorf("InitialStopLossPct changed to %v", s.InitialStopLossPct)
				}
			},
		},
		{
			name: "нулевой отступ допустим",
			req:  &UpdateSettingsRequest{TrailingGapPct: floatPtr(0), LockedProfitPct: floatPtr(0)},
			check: func(t *testing.T, s *models.Settings) {
				if s.TrailingGapPct != 0 || s.LockedProfitPct != 0 {
					t.Errorf("gap/locked = %v/%v, want 0/0", s.TrailingGapPct, s.LockedProfitPct)
				}
			},
		},
		{
			name: "интервал планировщика",
			req:  &UpdateSettingsRequest{SchedulerFrequencyMs: int64Ptr(5000)},
			check: func(t *testing.T, s *models.Settings) {
				if s.SchedulerFrequencyMs != 5000 {
					t.Errorf("SchedulerFrequencyMs = %d, want 5000", s.SchedulerFrequencyMs)
				}
			},
		},
		{
			name:      "отрицательный капитал",
			req:       &UpdateSettingsRequest{TotalCapital: floatPtr(-1)},
			wantErr:   ErrInvalidSettings,
			errSubstr: "negative",
		},
		{
			name:      "нулевой шаг",
			req:       &UpdateSettingsRequest{TrailingStepPct: floatPtr(0)},
			wantErr:   ErrInvalidSettings,
			errSubstr: "trailing_step_pct",
		},
		{
			name:      "NaN стартовый стоп",
			req:       &UpdateSettingsRequest{InitialStopLossPct: floatPtr(math.NaN())},
			wantErr:   ErrInvalidSettings,
			errSubstr: "initial_stop_loss_pct",
		},
		{
			name:      "слишком большой процент",
			req:       &UpdateSettingsRequest{ProfitLockTriggerPct: floatPtr(150)},
			wantErr:   ErrInvalidSettings,
			errSubstr: "profit_lock_trigger_pct",
		},
		{
			name:      "отрицательный отступ",
			req:       &UpdateSettingsRequest{TrailingGapPct: floatPtr(-0.5)},
			wantErr:   ErrInvalidSettings,
			errSubstr: "trailing_gap_pct",
		},
		{
			name:      "слишком частый планировщик",
			req:       &UpdateSettingsRequest{SchedulerFrequencyMs: int64Ptr(100)},
			wantErr:   ErrInvalidSettings,
			errSubstr: "scheduler frequency",
		},
		{
			name: "ошибка сохранения",
			req:  &UpdateSettingsRequest{TotalCapital: floatPtr(1000)},
			setup: func(m *MockSettingsRepository) {
				m.updateErr = errors.New("db error")
			},
			errSubstr: "db error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := NewMockSettingsRepository()
			if tt.setup != nil {
				tt.setup(mockRepo)
			}
			audit := &MockAudit{}

			svc := NewSettingsService(mockRepo, audit)
			settings, err := svc.UpdateSettings(context.Background(), tt.req)

			if tt.errSubstr != "" {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				if !strings.Contains(err.Error(), tt.errSubstr) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errSubstr)
				}
				if tt.wantErr != nil && mockRepo.updateCalls != 0 {
					t.Error("invalid settings must not be saved")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, settings)
			tt.check(t, mockRepo.settings)

			entry, ok := audit.last()
			if !ok {
				t.Fatal("settings change not recorded")
			}
			if entry.meta["type"] != models.ActivityTypeSettings {
				t.Errorf("audit type = %v, want SETTINGS", entry.meta["type"])
			}
		})
	}
}

func TestUpdateSettingsRequest_IsEmpty(t *testing.T) {
	if !(&UpdateSettingsRequest{}).IsEmpty() {
		t.Error("empty request must report IsEmpty")
	}
	if (&UpdateSettingsRequest{TrailingGapPct: floatPtr(0)}).IsEmpty() {
		t.Error("request with zero gap is not empty")
	}
}

func TestSettingsService_ResetToDefaults(t *testing.T) {
	mockRepo := NewMockSettingsRepository()
	mockRepo.settings.TotalCapital = 123
	mockRepo.settings.TrailingGapPct = 3

	svc := NewSettingsService(mockRepo, nil)
	settings, err := svc.ResetToDefaults(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.TrailingGapPct != models.DefaultTrailingGapPct || settings.TotalCapital != models.DefaultTotalCapital {
		t.Errorf("settings not reset: %+v", settings)
	}
}
