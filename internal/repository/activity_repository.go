package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"autoexit/internal/models"
)

// ActivityRepository - работа с таблицами activity_logs и activity_status
//
// Журнал действий мониторинга: старт/стоп, срабатывания стопа,
// изменения настроек, ошибки брокера. Строка activity_status хранит
// флаги для UI (live, auto_exit_running).
type ActivityRepository struct {
	db *sql.DB
}

// ErrInvalidStatusAction - неизвестное действие над статусом
var ErrInvalidStatusAction = errors.New("invalid status action")

// NewActivityRepository создает новый экземпляр репозитория
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create добавляет запись в журнал
func (r *ActivityRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (timestamp, type, level, message, meta)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Level == "" {
		entry.Level = models.LevelInfo
	}

	var metaJSON []byte
	if len(entry.Meta) > 0 {
		var err error
		metaJSON, err = json.Marshal(entry.Meta)
		if err != nil {
			return err
		}
	}

	return r.db.QueryRowContext(ctx, query,
		entry.Timestamp,
		entry.Type,
		entry.Level,
		entry.Message,
		metaJSON,
	).Scan(&entry.ID)
}

// GetRecent возвращает последние limit записей, новые первыми
func (r *ActivityRepository) GetRecent(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	query := `
		SELECT id, timestamp, type, level, message, meta
		FROM activity_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivityLogs(rows)
}

// GetByType возвращает последние limit записей заданного типа
func (r *ActivityRepository) GetByType(ctx context.Context, logType string, limit int) ([]*models.ActivityLog, error) {
	query := `
		SELECT id, timestamp, type, level, message, meta
		FROM activity_logs
		WHERE type = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, logType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivityLogs(rows)
}

// DeleteAll очищает журнал, возвращает количество удалённых записей
func (r *ActivityRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM activity_logs`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// KeepRecent удаляет всё, кроме последних keep записей
func (r *ActivityRepository) KeepRecent(ctx context.Context, keep int) (int64, error) {
	query := `
		DELETE FROM activity_logs
		WHERE id NOT IN (
			SELECT id FROM activity_logs
			ORDER BY timestamp DESC, id DESC
			LIMIT $1
		)`

	result, err := r.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// GetStatus возвращает флаги статуса (нулевые, если строки ещё нет)
func (r *ActivityRepository) GetStatus(ctx context.Context) (*models.ActivityStatus, error) {
	query := `SELECT live, auto_exit_running, updated_at FROM activity_status WHERE id = 1`

	status := &models.ActivityStatus{}
	var updatedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query).Scan(&status.Live, &status.AutoExitRunning, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return status, nil
		}
		return nil, err
	}

	if updatedAt.Valid {
		t := updatedAt.Time
		status.UpdatedAt = &t
	}
	return status, nil
}

// SetStatus применяет действие к строке статуса и возвращает новое значение
func (r *ActivityRepository) SetStatus(ctx context.Context, action string) (*models.ActivityStatus, error) {
	var column string
	var value bool
	switch action {
	case models.StatusActionLiveOn:
		column, value = "live", true
	case models.StatusActionLiveOff:
		column, value = "live", false
	case models.StatusActionAutoExitStart:
		column, value = "auto_exit_running", true
	case models.StatusActionAutoExitStop:
		column, value = "auto_exit_running", false
	default:
		return nil, ErrInvalidStatusAction
	}

	// column выбирается только из фиксированного набора выше
	query := `
		INSERT INTO activity_status (id, ` + column + `, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET ` + column + ` = EXCLUDED.` + column + `, updated_at = EXCLUDED.updated_at
		RETURNING live, auto_exit_running, updated_at`

	now := time.Now()
	status := &models.ActivityStatus{}
	var updatedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, value, now).Scan(&status.Live, &status.AutoExitRunning, &updatedAt)
	if err != nil {
		return nil, err
	}

	if updatedAt.Valid {
		t := updatedAt.Time
		status.UpdatedAt = &t
	}
	return status, nil
}

// scanActivityLogs читает строки журнала
func scanActivityLogs(rows *sql.Rows) ([]*models.ActivityLog, error) {
	entries := make([]*models.ActivityLog, 0)
	for rows.Next() {
		entry := &models.ActivityLog{}
		var metaJSON []byte
		err := rows.Scan(
			&entry.ID,
			&entry.Timestamp,
			&entry.Type,
			&entry.Level,
			&entry.Message,
			&metaJSON,
		)
		if err != nil {
			return nil, err
		}

		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &entry.Meta); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
