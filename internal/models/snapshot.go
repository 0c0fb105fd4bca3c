package models

import "time"

// MonitorSnapshot - неизменяемый снимок состояния мониторинга для UI
//
// Публикуется целиком; читатели никогда не видят частично обновлённый снимок.
type MonitorSnapshot struct {
	Running       bool         `json:"running"`
	Exited        bool         `json:"exited"`
	MTM           *float64     `json:"mtm"`             // абсолютный MTM, nil до первого тика
	TrailingSL    *float64     `json:"trailing_sl"`     // абсолютный стоп
	TrailingSLPct *float64     `json:"trailing_sl_pct"` // стоп в % капитала
	MTMPct        *float64     `json:"mtm_pct"`
	CutReason     *string      `json:"cut_reason"`
	Summary       *ExitSummary `json:"summary"`
	Logs          []LogEntry   `json:"logs"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// LogEntry - строка журнала мониторинга
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// MaxSnapshotLogs - сколько последних строк журнала попадает в снимок
const MaxSnapshotLogs = 100

// EmptySnapshot возвращает начальный снимок
func EmptySnapshot(now time.Time) *MonitorSnapshot {
	return &MonitorSnapshot{
		Logs:      []LogEntry{},
		UpdatedAt: now,
	}
}

// Clone возвращает глубокую копию снимка
func (s *MonitorSnapshot) Clone() *MonitorSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.MTM = cloneFloat(s.MTM)
	c.TrailingSL = cloneFloat(s.TrailingSL)
	c.TrailingSLPct = cloneFloat(s.TrailingSLPct)
	c.MTMPct = cloneFloat(s.MTMPct)
	if s.CutReason != nil {
		r := *s.CutReason
		c.CutReason = &r
	}
	if s.Summary != nil {
		sum := *s.Summary
		sum.Results = append([]ExitResult(nil), s.Summary.Results...)
		c.Summary = &sum
	}
	c.Logs = append([]LogEntry{}, s.Logs...)
	return &c
}

// TrailingStatus - последний снимок, сохранённый в БД
type TrailingStatus struct {
	Snapshot  *MonitorSnapshot `json:"snapshot"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}
