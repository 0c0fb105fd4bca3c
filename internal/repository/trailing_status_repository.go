package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"autoexit/internal/models"
)

// trailingStatusID - ключ единственной строки статуса
const trailingStatusID = "current"

// TrailingStatusRepository - последний снимок мониторинга в таблице trailing_sl_status
//
// Снимок пишется после каждой публикации и переживает перезапуск сервиса,
// чтобы UI видел результат последней сессии.
type TrailingStatusRepository struct {
	db *sql.DB
}

// NewTrailingStatusRepository создает новый экземпляр репозитория
func NewTrailingStatusRepository(db *sql.DB) *TrailingStatusRepository {
	return &TrailingStatusRepository{db: db}
}

// Get возвращает сохранённый снимок или nil, если его нет
func (r *TrailingStatusRepository) Get(ctx context.Context) (*models.TrailingStatus, error) {
	query := `SELECT snapshot, updated_at FROM trailing_sl_status WHERE id = $1`

	var snapshotJSON []byte
	status := &models.TrailingStatus{}
	err := r.db.QueryRowContext(ctx, query, trailingStatusID).Scan(&snapshotJSON, &status.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	status.Snapshot = &models.MonitorSnapshot{}
	if err := json.Unmarshal(snapshotJSON, status.Snapshot); err != nil {
		return nil, err
	}
	return status, nil
}

// Save сохраняет снимок (upsert)
func (r *TrailingStatusRepository) Save(ctx context.Context, snapshot *models.MonitorSnapshot) error {
	if snapshot == nil {
		return nil
	}

	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO trailing_sl_status (id, snapshot, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = EXCLUDED.updated_at`

	_, err = r.db.ExecContext(ctx, query, trailingStatusID, snapshotJSON, time.Now())
	return err
}

// Clear удаляет сохранённый снимок
func (r *TrailingStatusRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM trailing_sl_status WHERE id = $1`, trailingStatusID)
	return err
}
