package ws

import (
	"encoding/json"
	"testing"
	"time"
)

// mockClient creates a client without a real connection for hub tests
func mockClient(hub *Hub, table string) *Client {
	return &Client{
		hub:   hub,
		table: table,
		send:  make(chan []byte, 16),
	}
}

func TestHubRegisterAndUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, "orders")
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if !hub.rooms["orders"][client] {
		t.Error("client not registered in its room")
	}
	hub.mu.RUnlock()

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if _, ok := hub.rooms["orders"]; ok {
		t.Error("empty room should be cleaned up")
	}
	hub.mu.RUnlock()

	// The hub closes the send channel on unregister
	if _, open := <-client.send; open {
		t.Error("send channel should be closed")
	}
}

func TestHubBroadcastToTable(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	ordersClient := mockClient(hub, "orders")
	clientsClient := mockClient(hub, "clients")
	hub.register <- ordersClient
	hub.register <- clientsClient
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToTable("orders", Event{
		Type:    "table_changed",
		Payload: json.RawMessage(`{"table":"orders"}`),
	})
	time.Sleep(10 * time.Millisecond)

	select {
	case message := <-ordersClient.send:
		var event Event
		if err := json.Unmarshal(message, &event); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		if event.Type != "table_changed" {
			t.Errorf("event type: got %q", event.Type)
		}
	default:
		t.Fatal("orders client did not receive the broadcast")
	}

	select {
	case <-clientsClient.send:
		t.Error("clients room must not receive an orders broadcast")
	default:
	}
}

func TestHubBroadcastToEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Nothing registered; must not panic or block
	hub.BroadcastToTable("pivot", Event{Type: "table_changed"})
	time.Sleep(10 * time.Millisecond)
}

func TestHubDropsClientWithFullBuffer(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{hub: hub, table: "orders", send: make(chan []byte)}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	// Nobody reads client.send, so the broadcast cannot be delivered
	hub.BroadcastToTable("orders", Event{Type: "table_changed"})
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if _, ok := hub.rooms["orders"]; ok {
		t.Error("unresponsive client should be dropped and its room removed")
	}
	hub.mu.RUnlock()
}
