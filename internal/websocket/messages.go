package websocket

import (
	"time"

	"autoexit/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// MessageTypeSnapshot - снимок состояния мониторинга.
// Отправляется при подключении и после каждой публикации снимка.
const MessageTypeSnapshot MessageType = "snapshot"

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// SnapshotMessage - сообщение со снимком мониторинга
//
// Содержит то же, что GET /api/v1/monitor:
// - флаги running/exited
// - MTM и трейлинг-стоп (абсолютные и в % капитала)
// - причину выхода и сводку ликвидации
// - последние строки журнала
type SnapshotMessage struct {
	BaseMessage
	Data *models.MonitorSnapshot `json:"data"`
}

// NewSnapshotMessage создает сообщение со снимком
func NewSnapshotMessage(snapshot *models.MonitorSnapshot) *SnapshotMessage {
	return &SnapshotMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeSnapshot,
			Timestamp: time.Now(),
		},
		Data: snapshot,
	}
}
