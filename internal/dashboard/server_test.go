package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"

	"mybrain/internal/model"
	"mybrain/internal/sync"
)

func startServer(t *testing.T, status StatusFunc) *Server {
	t.Helper()
	s := NewServer(Config{Status: status})
	if err := s.Start(); err != nil {
		t.Fatalf("starting server: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Stop(); err != nil {
			t.Errorf("stopping server: %v", err)
		}
	})
	return s
}

func TestServerStartStop(t *testing.T) {
	s := NewServer(Config{})
	if err := s.Start(); err != nil {
		t.Fatalf("starting server: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stopping server: %v", err)
	}
}

func TestEventBroadcast(t *testing.T) {
	s := startServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, fmt.Sprintf("ws://%s/ws", s.Addr()), nil)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Wait for the server to register the client before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Publish(sync.Event{
		Type:       sync.EventSnapshot,
		UID:        "u-1",
		Collection: model.CollectionTasks,
		Count:      3,
	})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("reading broadcast: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decoding broadcast: %v", err)
	}
	if msg.Event.Type != sync.EventSnapshot || msg.Event.Count != 3 {
		t.Errorf("unexpected event: %+v", msg.Event)
	}
	if msg.Timestamp.IsZero() {
		t.Error("broadcast has no timestamp")
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := startServer(t, func() sync.Status { return sync.StatusSubscribed })

	resp, err := http.Get(fmt.Sprintf("http://%s/health", s.Addr()))
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["sync"] != string(sync.StatusSubscribed) {
		t.Errorf("sync field = %v", body["sync"])
	}
}

func TestPublishWithoutClientsDoesNotBlock(t *testing.T) {
	s := startServer(t, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			s.Publish(sync.Event{Type: sync.EventQueueDrain, Count: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with no clients connected")
	}
}
