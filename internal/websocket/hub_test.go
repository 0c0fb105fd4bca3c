package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"autoexit/internal/models"

	"github.com/gorilla/websocket"
)

// ============================================================
// Unit Tests
// ============================================================

func TestNewHub(t *testing.T) {
	hub := NewHub(HubConfig{})

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
	if hub.DroppedMessages() != 0 {
		t.Errorf("expected 0 dropped messages, got %d", hub.DroppedMessages())
	}
}

func TestOriginChecker_Check(t *testing.T) {
	checker := NewOriginChecker([]string{"http://localhost:3000", " https://example.com "})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"https://example.com", true},
		{"http://evil.com", false},
		{"http://localhost:8080", false},
	}

	for _, tt := range tests {
		got := checker.Check(tt.origin)
		if got != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestOriginChecker_AllowAll(t *testing.T) {
	for _, origins := range [][]string{nil, {"*"}, {"", " "}} {
		checker := NewOriginChecker(origins)
		if !checker.Check("https://evil.com") {
			t.Errorf("origins %q must allow any origin", origins)
		}
	}
}

func TestHub_BroadcastNonBlocking(t *testing.T) {
	hub := NewHub(HubConfig{})
	// Run не запущен: очередь заполняется и сообщения отбрасываются

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < broadcastBufferSize+10; i++ {
			hub.Broadcast(map[string]int{"i": i})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked")
	}

	if hub.DroppedMessages() != 10 {
		t.Errorf("dropped = %d, want 10", hub.DroppedMessages())
	}
}

func TestHub_Stop(t *testing.T) {
	hub := NewHub(HubConfig{})

	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	hub.Stop()
	hub.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Hub.Run() did not exit after Stop()")
	}
}

func TestHub_SendsCurrentSnapshotOnRegister(t *testing.T) {
	mtm := -1500.0
	current := models.EmptySnapshot(time.Now())
	current.Running = true
	current.MTM = &mtm

	hub := NewHub(HubConfig{Snapshot: func() *models.MonitorSnapshot { return current }})
	go hub.Run()
	defer hub.Stop()

	client := &Client{hub: hub, send: make(chan []byte, 4)}
	hub.register <- client

	select {
	case data := <-client.send:
		var msg SnapshotMessage
		if err := jsonAPI.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Type != MessageTypeSnapshot {
			t.Errorf("type = %s, want snapshot", msg.Type)
		}
		if msg.Data == nil || !msg.Data.Running || msg.Data.MTM == nil || *msg.Data.MTM != mtm {
			t.Errorf("unexpected snapshot: %+v", msg.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("current snapshot not sent")
	}
}

func TestHub_BroadcastSnapshot(t *testing.T) {
	hub := NewHub(HubConfig{})
	go hub.Run()
	defer hub.Stop()

	client := &Client{hub: hub, send: make(chan []byte, 4)}
	hub.register <- client

	hub.BroadcastSnapshot(nil)
	snapshot := models.EmptySnapshot(time.Now())
	snapshot.Exited = true
	hub.BroadcastSnapshot(snapshot)

	select {
	case data := <-client.send:
		if !strings.Contains(string(data), `"exited":true`) {
			t.Errorf("unexpected message: %s", data)
		}
	case <-time.After(time.Second):
		t.Fatal("snapshot not delivered")
	}
}

func TestHub_RemovesSlowClient(t *testing.T) {
	hub := NewHub(HubConfig{})
	go hub.Run()
	defer hub.Stop()

	// никто не читает send: клиент не успевает
	slow := &Client{hub: hub, send: make(chan []byte)}
	hub.register <- slow
	if !waitFor(time.Second, func() bool { return hub.ClientCount() == 1 }) {
		t.Fatal("client not registered")
	}

	hub.BroadcastRaw([]byte(`{"type":"snapshot"}`))

	if !waitFor(time.Second, func() bool { return hub.ClientCount() == 0 }) {
		t.Fatal("slow client not removed")
	}
	if _, ok := <-slow.send; ok {
		t.Error("expected closed channel")
	}
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestHub_ServeWS(t *testing.T) {
	current := models.EmptySnapshot(time.Now())
	hub := NewHub(HubConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		Snapshot:       func() *models.MonitorSnapshot { return current },
	})
	go hub.Run()
	defer hub.Stop()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	// чужой origin отклоняется
	header := http.Header{"Origin": []string{"http://evil.com"}}
	if _, resp, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("expected handshake error for foreign origin")
	} else if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first SnapshotMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if first.Type != MessageTypeSnapshot || first.Data == nil {
		t.Fatalf("unexpected initial message: %+v", first)
	}

	updated := models.EmptySnapshot(time.Now())
	updated.Running = true
	hub.BroadcastSnapshot(updated)

	var next SnapshotMessage
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if !next.Data.Running {
		t.Error("expected running snapshot")
	}
}

// ============================================================
// Parallel Stress Test
// ============================================================

func TestHub_ConcurrentOperations(t *testing.T) {
	hub := NewHub(HubConfig{})
	go hub.Run()
	defer hub.Stop()

	var wg sync.WaitGroup
	const goroutines = 10
	const operations = 1000

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				hub.Broadcast(map[string]int{"goroutine": id, "op": j})
			}
		}(i)
	}

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				_ = hub.ClientCount()
			}
		}()
	}

	wg.Wait()
}

// ============================================================
// Benchmarks
// ============================================================

func BenchmarkHub_BroadcastSnapshot(b *testing.B) {
	hub := NewHub(HubConfig{})
	go hub.Run()
	defer hub.Stop()

	mtm := 1200.0
	snapshot := models.EmptySnapshot(time.Now())
	snapshot.Running = true
	snapshot.MTM = &mtm

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.BroadcastSnapshot(snapshot)
	}
}

func BenchmarkOriginChecker_Check(b *testing.B) {
	checker := NewOriginChecker([]string{"http://localhost:3000"})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		checker.Check("http://localhost:3000")
	}
}
