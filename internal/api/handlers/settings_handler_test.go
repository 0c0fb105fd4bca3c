package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"autoexit/internal/models"
)

// ============ SettingsHandler Tests ============

func TestSettingsHandler_GetSettings(t *testing.T) {
	t.Run("successfully returns settings", func(t *testing.T) {
		mockSvc := NewMockSettingsService()
		handler := NewSettingsHandler(mockSvc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
		w := httptest.NewRecorder()

		handler.GetSettings(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response map[string]interface{}
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		for _, field := range []string{"total_capital", "scheduler_frequency_ms", "trailing_gap_pct"} {
			if _, ok := response[field]; !ok {
				t.Errorf("response should contain %s field", field)
			}
		}
		if response["trailing_gap_pct"] != models.DefaultTrailingGapPct {
			t.Errorf("expected default trailing gap, got %v", response["trailing_gap_pct"])
		}
	})

	t.Run("returns 500 on service error", func(t *testing.T) {
		mockSvc := NewMockSettingsService()
		handler := NewSettingsHandler(mockSvc)

		mockSvc.SetError("get", ErrMockDatabase)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
		w := httptest.NewRecorder()

		handler.GetSettings(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

func TestSettingsHandler_UpdateSettings(t *testing.T) {
	t.Run("successfully updates capital and gap", func(t *testing.T) {
		mockSvc := NewMockSettingsService()
		handler := NewSettingsHandler(mockSvc)

		body := map[string]interface{}{
			"total_capital":    500000,
			"trailing_gap_pct": 0.75,
		}
		jsonBody, _ := json.Marshal(body)

		req := httptest.NewRequest(http.MethodPatch, "/api/v1/settings", bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		handler.UpdateSettings(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		settings, _ := mockSvc.GetSettings(context.Background())
		if settings.TotalCapital != 500000 {
			t.Errorf("expected total_capital 500000, got %v", settings.TotalCapital)
		}
		if settings.TrailingGapPct != 0.75 {
			t.Errorf("expected trailing_gap_pct 0.75, got %v", settings.TrailingGapPct)
		}
		if settings.SchedulerFrequencyMs != models.DefaultSchedulerFrequencyMs {
			t.Errorf("untouched field changed: %v", settings.SchedulerFrequencyMs)
		}
	})

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"невалидный JSON", `{"total_capital":`, http.StatusBadRequest},
		{"пустой запрос", `{}`, http.StatusBadRequest},
		{"отрицательный капитал", `{"total_capital": -1}`, http.StatusBadRequest},
		{"нулевой шаг", `{"trailing_step_pct": 0}`, http.StatusBadRequest},
		{"процент больше 100", `{"trailing_gap_pct": 150}`, http.StatusBadRequest},
		{"слишком частый тик", `{"scheduler_frequency_ms": 10}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewSettingsHandler(NewMockSettingsService())

			req := httptest.NewRequest(http.MethodPatch, "/api/v1/settings", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler.UpdateSettings(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}

	t.Run("returns 500 on service error", func(t *testing.T) {
		mockSvc := NewMockSettingsService()
		mockSvc.SetError("update", ErrMockDatabase)
		handler := NewSettingsHandler(mockSvc)

		req := httptest.NewRequest(http.MethodPatch, "/api/v1/settings", strings.NewReader(`{"total_capital": 100}`))
		w := httptest.NewRecorder()

		handler.UpdateSettings(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

func TestSettingsHandler_ResetSettings(t *testing.T) {
	mockSvc := NewMockSettingsService()
	handler := NewSettingsHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/settings", strings.NewReader(`{"trailing_gap_pct": 3}`))
	handler.UpdateSettings(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/settings/reset", nil)
	w := httptest.NewRecorder()

	handler.ResetSettings(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var settings models.Settings
	if err := json.NewDecoder(w.Body).Decode(&settings); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if settings.TrailingGapPct != models.DefaultTrailingGapPct {
		t.Errorf("expected default trailing gap, got %v", settings.TrailingGapPct)
	}
}
