package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// schema - таблицы сервиса авто-выхода
var schema = []string{
	`CREATE TABLE IF NOT EXISTS monitor_settings (
		id INT PRIMARY KEY DEFAULT 1,
		total_capital DECIMAL(20, 2) NOT NULL DEFAULT 0,
		scheduler_frequency_ms BIGINT NOT NULL DEFAULT 2000,
		initial_stop_loss_pct DECIMAL(10, 4) NOT NULL DEFAULT 1,
		break_even_trigger_pct DECIMAL(10, 4) NOT NULL DEFAULT 1,
		profit_lock_trigger_pct DECIMAL(10, 4) NOT NULL DEFAULT 2,
		locked_profit_pct DECIMAL(10, 4) NOT NULL DEFAULT 1,
		trailing_step_pct DECIMAL(10, 4) NOT NULL DEFAULT 1,
		trailing_gap_pct DECIMAL(10, 4) NOT NULL DEFAULT 0.5,
		updated_at TIMESTAMP DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMP DEFAULT NOW(),
		type VARCHAR(50) NOT NULL,
		level VARCHAR(10) DEFAULT 'info',
		message TEXT NOT NULL,
		meta JSONB DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_logs_timestamp ON activity_logs (timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS activity_status (
		id INT PRIMARY KEY DEFAULT 1,
		live BOOLEAN NOT NULL DEFAULT false,
		auto_exit_running BOOLEAN NOT NULL DEFAULT false,
		updated_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS trailing_sl_status (
		id VARCHAR(20) PRIMARY KEY,
		snapshot JSONB NOT NULL,
		updated_at TIMESTAMP DEFAULT NOW()
	)`,
}

// EnsureSchema создаёт таблицы, если их ещё нет
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
