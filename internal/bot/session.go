package bot

import (
	"time"

	"autoexit/internal/models"
	"autoexit/pkg/utils"
)

// TrailingState - состояние трейлинга внутри одной сессии мониторинга
type TrailingState struct {
	LastTrailingLevelPct *float64
	PreviousStopLossPct  float64
}

// NewTrailingState создаёт состояние для новой сессии
func NewTrailingState(settings TrailingSettings) TrailingState {
	s := settings.Sanitize()
	return TrailingState{
		LastTrailingLevelPct: nil,
		PreviousStopLossPct:  -s.InitialStopLossPct,
	}
}

// Apply сохраняет результат расчёта
func (ts *TrailingState) Apply(r TrailingResult) {
	ts.LastTrailingLevelPct = r.LastTrailingLevelPct
	ts.PreviousStopLossPct = r.StopLossPct
}

// MonitorState - изменяемое состояние сессии мониторинга
//
// Принадлежит одному Monitor и меняется только им под его мьютексом.
// Инвариант: Exited => !Running.
type MonitorState struct {
	Running       bool
	Exited        bool
	MTM           *float64
	MTMPct        *float64
	TrailingSL    *float64
	TrailingSLPct *float64
	CutReason     *string
	Summary       *models.ExitSummary
	Trailing      TrailingState
	StartedAt     time.Time

	logs *LogBuffer
}

// NewMonitorState создаёт пустое состояние
func NewMonitorState(logSize int) *MonitorState {
	return &MonitorState{logs: NewLogBuffer(logSize)}
}

// State возвращает имя состояния для state machine
func (s *MonitorState) State() string {
	switch {
	case s.Running:
		return models.StateRunning
	case s.Exited:
		return models.StateExited
	case s.CutReason != nil:
		return models.StateStopped
	default:
		return models.StateIdle
	}
}

// begin переводит состояние в Running для новой сессии
func (s *MonitorState) begin(settings TrailingSettings, now time.Time) {
	s.Running = true
	s.Exited = false
	s.CutReason = nil
	s.Summary = nil
	s.Trailing = NewTrailingState(settings)
	s.StartedAt = now
}

// applyTick записывает числа, рассчитанные на тике
func (s *MonitorState) applyTick(mtm, mtmPct float64, r TrailingResult, capital float64) {
	s.Trailing.Apply(r)

	trailingSL := utils.RoundTo(utils.FromPercent(r.StopLossPct, capital), 2)
	stopPct := r.StopLossPct
	mtmRounded := utils.RoundTo(mtm, 2)
	pct := utils.RoundTo(mtmPct, 2)

	s.MTM = &mtmRounded
	s.MTMPct = &pct
	s.TrailingSL = &trailingSL
	s.TrailingSLPct = &stopPct
}

// exit фиксирует срабатывание стопа
func (s *MonitorState) exit(reason string) {
	s.Running = false
	s.Exited = true
	s.setReason(reason)
}

// halt останавливает мониторинг без выхода (пользователь или ошибка)
func (s *MonitorState) halt(reason string) {
	s.Running = false
	s.Exited = false
	s.setReason(reason)
}

func (s *MonitorState) setReason(reason string) {
	r := reason
	s.CutReason = &r
}

// Log добавляет строку в журнал сессии
func (s *MonitorState) Log(level, message string) {
	s.logs.Add(level, message)
}

// Snapshot строит неизменяемый снимок для публикации
func (s *MonitorState) Snapshot(now time.Time) *models.MonitorSnapshot {
	snap := &models.MonitorSnapshot{
		Running:       s.Running,
		Exited:        s.Exited,
		MTM:           s.MTM,
		MTMPct:        s.MTMPct,
		TrailingSL:    s.TrailingSL,
		TrailingSLPct: s.TrailingSLPct,
		CutReason:     s.CutReason,
		Summary:       s.Summary,
		Logs:          s.logs.Recent(models.MaxSnapshotLogs),
		UpdatedAt:     now,
	}
	// Указатели делятся с состоянием, поэтому публикуем копию
	return snap.Clone()
}
