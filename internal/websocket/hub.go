package websocket

import (
	"sync"
	"sync/atomic"

	"autoexit/internal/bot"
	"autoexit/internal/models"
	"autoexit/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// broadcastBufferSize - очередь сообщений hub; при переполнении сообщение отбрасывается
const broadcastBufferSize = 256

// SnapshotSource возвращает текущий снимок для нового клиента
type SnapshotSource func() *models.MonitorSnapshot

// HubConfig - параметры Hub
type HubConfig struct {
	AllowedOrigins []string       // пусто - любой origin
	Snapshot       SnapshotSource // опционально
	Logger         *zap.Logger
}

// Hub управляет всеми активными WebSocket соединениями
//
// Назначение:
// Рассылает снимки мониторинга всем подключенным клиентам,
// чтобы UI не опрашивал GET /monitor.
//
// Функции:
// - Регистрация и отмена регистрации клиентов
// - Отправка текущего снимка сразу после подключения
// - Неблокирующий broadcast (издатель снимков никогда не ждёт hub)
// - Отключение клиентов, которые не успевают читать
//
// Использование:
// 1. Создать hub: hub := NewHub(cfg)
// 2. Запустить в горутине: go hub.Run()
// 3. Подписать на снимки: publisher.Subscribe(hub.BroadcastSnapshot)
// 4. При завершении: hub.Stop()
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once

	origins  *OriginChecker
	snapshot SnapshotSource
	logger   *zap.Logger

	dropped atomic.Int64
	count   atomic.Int64
}

// NewHub создает новый Hub
func NewHub(cfg HubConfig) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		origins:    NewOriginChecker(cfg.AllowedOrigins),
		snapshot:   cfg.Snapshot,
		logger:     cfg.Logger.With(utils.Component("ws_hub")),
	}
}

// Run запускает главный цикл Hub до вызова Stop
//
// clients изменяется только в этой горутине, поэтому mutex не нужен.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			h.sendCurrent(client)
			h.logger.Debug("Client connected", zap.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Debug("Client disconnected", zap.Int("clients", len(h.clients)))

		case message := <-h.broadcast:
			var slow []*Client
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					slow = append(slow, client)
				}
			}
			for _, client := range slow {
				h.remove(client)
			}
			if len(slow) > 0 {
				h.logger.Warn("Removed slow clients",
					zap.Int("removed", len(slow)),
					zap.Int("clients", len(h.clients)),
				)
			}

		case <-h.stop:
			for client := range h.clients {
				h.remove(client)
			}
			return
		}
	}
}

// Stop завершает Run и закрывает каналы всех клиентов
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.count.Store(int64(len(h.clients)))
}

// sendCurrent отправляет новому клиенту текущий снимок
func (h *Hub) sendCurrent(client *Client) {
	if h.snapshot == nil {
		return
	}
	snapshot := h.snapshot()
	if snapshot == nil {
		return
	}
	data, err := jsonAPI.Marshal(NewSnapshotMessage(snapshot))
	if err != nil {
		h.logger.Error("Failed to encode snapshot", zap.Error(err))
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// Broadcast сериализует сообщение и ставит его в очередь рассылки
func (h *Hub) Broadcast(message interface{}) {
	data, err := jsonAPI.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to encode broadcast message", zap.Error(err))
		return
	}
	h.BroadcastRaw(data)
}

// BroadcastRaw ставит в очередь уже сериализованное сообщение.
// Не блокирует: при полной очереди сообщение отбрасывается.
func (h *Hub) BroadcastRaw(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.dropped.Add(1)
		bot.RecordBufferOverflow("ws_broadcast")
	}
}

// BroadcastSnapshot рассылает снимок мониторинга
func (h *Hub) BroadcastSnapshot(snapshot *models.MonitorSnapshot) {
	if snapshot == nil {
		return
	}
	h.Broadcast(NewSnapshotMessage(snapshot))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// DroppedMessages возвращает число отброшенных сообщений
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}
