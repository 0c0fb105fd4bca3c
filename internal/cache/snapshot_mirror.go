package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autoexit/internal/models"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Значения по умолчанию для ключей зеркала
const (
	DefaultSnapshotKey     = "autoexit:snapshot"
	DefaultSnapshotChannel = "autoexit:snapshots"
)

// ClientConfig - параметры подключения к Redis
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewClient создает клиент Redis и проверяет соединение
func NewClient(ctx context.Context, cfg ClientConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

// commander - команды Redis, которые использует зеркало
type commander interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

var _ commander = (*redis.Client)(nil)

// SnapshotMirror хранит последний снимок мониторинга в Redis
// и публикует каждый снимок в канал.
//
// Схема ключей:
//
//	{key}     - JSON последнего снимка (TTL)
//	{channel} - pub/sub канал снимков для внешних дашбордов
type SnapshotMirror struct {
	rdb     commander
	key     string
	channel string
	ttl     time.Duration
}

// NewSnapshotMirror создает зеркало поверх клиента Redis
func NewSnapshotMirror(rdb *redis.Client, key, channel string, ttl time.Duration) *SnapshotMirror {
	return newSnapshotMirror(rdb, key, channel, ttl)
}

func newSnapshotMirror(rdb commander, key, channel string, ttl time.Duration) *SnapshotMirror {
	if key == "" {
		key = DefaultSnapshotKey
	}
	if channel == "" {
		channel = DefaultSnapshotChannel
	}
	return &SnapshotMirror{rdb: rdb, key: key, channel: channel, ttl: ttl}
}

// SaveSnapshot записывает снимок и публикует его в канал
func (m *SnapshotMirror) SaveSnapshot(ctx context.Context, snapshot *models.MonitorSnapshot) error {
	if snapshot == nil {
		return nil
	}
	data, err := jsonAPI.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("redis: encode snapshot: %w", err)
	}
	if err := m.rdb.Set(ctx, m.key, data, m.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", m.key, err)
	}
	if err := m.rdb.Publish(ctx, m.channel, data).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", m.channel, err)
	}
	return nil
}

// LoadSnapshot возвращает последний снимок или nil, если ключа нет
func (m *SnapshotMirror) LoadSnapshot(ctx context.Context) (*models.MonitorSnapshot, error) {
	data, err := m.rdb.Get(ctx, m.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get %s: %w", m.key, err)
	}

	var snapshot models.MonitorSnapshot
	if err := jsonAPI.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("redis: decode snapshot: %w", err)
	}
	return &snapshot, nil
}

// ClearSnapshot удаляет сохранённый снимок
func (m *SnapshotMirror) ClearSnapshot(ctx context.Context) error {
	if err := m.rdb.Del(ctx, m.key).Err(); err != nil {
		return fmt.Errorf("redis: del %s: %w", m.key, err)
	}
	return nil
}
