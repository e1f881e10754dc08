package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, familyID, userID int64) *Client {
	return &Client{
		hub:      hub,
		send:     make(chan []byte, sendBufferSize),
		familyID: familyID,
		userID:   userID,
		now:      time.Now,
	}
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got, true
	case <-time.After(50 * time.Millisecond):
		return Message{}, false
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1, 10)
	c2 := mockClient(hub, 2, 20)
	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}
	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}
	hub.Unregister(c2)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1, 10)
	hub.Register(c)
	hub.Unregister(c)
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastStaysInFamily(t *testing.T) {
	hub := NewHub(slog.Default())

	parent := mockClient(hub, 1, 10)
	child := mockClient(hub, 1, 11)
	stranger := mockClient(hub, 2, 20)
	for _, c := range []*Client{parent, child, stranger} {
		hub.Register(c)
	}

	hub.Broadcast(1, NewMessage("task", "updated", 42, map[string]any{"status": "COMPLETED"}))

	for _, c := range []*Client{parent, child} {
		got, ok := receive(t, c)
		if !ok {
			t.Fatalf("user %d: timeout waiting for message", c.userID)
		}
		if got.Type != "task_updated" || got.ID != 42 {
			t.Errorf("user %d: got %+v", c.userID, got)
		}
	}
	if _, ok := receive(t, stranger); ok {
		t.Error("message leaked to another family")
	}
}

func TestSendToUser(t *testing.T) {
	hub := NewHub(slog.Default())
	parent := mockClient(hub, 1, 10)
	child := mockClient(hub, 1, 11)
	hub.Register(parent)
	hub.Register(child)

	hub.SendToUser(1, 11, NewMessage("notification", "created", 7, nil))

	if _, ok := receive(t, child); !ok {
		t.Error("child did not receive message")
	}
	if _, ok := receive(t, parent); ok {
		t.Error("parent received a message meant for the child")
	}
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	hub.Broadcast(1, NewMessage("quiz", "created", 1, nil))
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1, 10)
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(1, NewMessage("test", "fill", int64(i), nil))
	}
	// dropped, must not block
	hub.Broadcast(1, NewMessage("test", "dropped", 999, nil))

	if got := len(c.send); got != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, got)
	}
	hub.Unregister(c)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("location", "updated", 5, nil)
	if msg.Type != "location_updated" {
		t.Errorf("expected type location_updated, got %s", msg.Type)
	}
	if msg.Entity != "location" || msg.Action != "updated" || msg.ID != 5 {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(family int64) {
			defer wg.Done()
			c := mockClient(hub, family, family*10)
			hub.Register(c)
			hub.Broadcast(family, NewMessage("test", "concurrent", 0, nil))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}(int64(i % 3))
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

func TestClientReply(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1, 10)
	c.now = func() time.Time { return time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC) }

	msg, ok := c.reply([]byte(`{"type":"ping"}`))
	if !ok {
		t.Fatal("expected a reply to ping")
	}
	if msg.Type != "pong" || msg.Extra["server_time"] != "2026-03-02T07:30:00Z" {
		t.Errorf("reply = %+v", msg)
	}

	for _, frame := range []string{`{"type":"subscribe"}`, `not json`, `{}`} {
		if _, ok := c.reply([]byte(frame)); ok {
			t.Errorf("frame %q should not be answered", frame)
		}
	}
}

func TestClientEnqueue(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1, 10)

	// Not registered yet, so nothing is queued.
	c.enqueue(c.hello())
	if _, ok := receive(t, c); ok {
		t.Fatal("unregistered client received a message")
	}

	hub.Register(c)
	c.enqueue(c.hello())
	got, ok := receive(t, c)
	if !ok {
		t.Fatal("expected hello message")
	}
	if got.Type != "session_connected" || got.ID != 10 {
		t.Errorf("hello = %+v", got)
	}

	hub.Unregister(c)
	// Must not panic on the closed channel.
	c.enqueue(c.hello())
}
