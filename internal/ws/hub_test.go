package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, outletID uuid.UUID) *Client {
	return &Client{
		hub:      hub,
		outletID: outletID,
		send:     make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	outletID := uuid.New()
	client := mockClient(hub, outletID)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[outletID] == nil {
		t.Fatal("outlet room not created")
	}
	if !hub.rooms[outletID][client] {
		t.Fatal("client not registered in outlet room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	outletID := uuid.New()
	client := mockClient(hub, outletID)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[outletID] != nil {
		t.Fatal("outlet room not cleaned up after last client unregistered")
	}
}

func TestBroadcastToSingleOutlet(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	outlet1 := uuid.New()
	outlet2 := uuid.New()

	client1 := mockClient(hub, outlet1)
	client2 := mockClient(hub, outlet2)

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	testPayload := json.RawMessage(`{"order_id":"test-123"}`)
	hub.BroadcastToOutlet(outlet1, Event{
		Type:    EventOrderCreated,
		Payload: testPayload,
	})

	select {
	case msg := <-client1.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != EventOrderCreated {
			t.Errorf("expected type %q, got %q", EventOrderCreated, received.Type)
		}
		if string(received.Payload) != string(testPayload) {
			t.Errorf("expected payload '%s', got '%s'", testPayload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client1 did not receive message")
	}

	select {
	case <-client2.send:
		t.Fatal("client2 should not have received message for different outlet")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastToStation(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	outletID := uuid.New()
	kitchen := uuid.New()
	bar := uuid.New()

	kitchenDisplay := mockClient(hub, outletID)
	kitchenDisplay.stationID = kitchen
	barDisplay := mockClient(hub, outletID)
	barDisplay.stationID = bar
	posTerminal := mockClient(hub, outletID)

	hub.register <- kitchenDisplay
	hub.register <- barDisplay
	hub.register <- posTerminal
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToStation(outletID, kitchen, Event{
		Type:    EventKotCreated,
		Payload: json.RawMessage(`{"ticket_number":"KOT-001"}`),
	})

	// Kitchen display and unfiltered POS terminal should receive it.
	for name, client := range map[string]*Client{"kitchen display": kitchenDisplay, "pos terminal": posTerminal} {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("%s: unmarshal: %v", name, err)
			}
			if received.Type != EventKotCreated {
				t.Errorf("%s: expected type %q, got %q", name, EventKotCreated, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("%s did not receive message", name)
		}
	}

	select {
	case <-barDisplay.send:
		t.Fatal("bar display should not receive a kitchen-scoped event")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message
	}
}

func TestBroadcastToMultipleClientsInSameOutlet(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	outletID := uuid.New()
	client1 := mockClient(hub, outletID)
	client2 := mockClient(hub, outletID)
	client3 := mockClient(hub, outletID)

	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToOutlet(outletID, Event{
		Type:    EventKotReady,
		Payload: json.RawMessage(`{"status":"READY"}`),
	})

	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != EventKotReady {
				t.Errorf("client%d: expected type %q, got %q", i+1, EventKotReady, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestNewEvent(t *testing.T) {
	event, err := NewEvent(EventBillStatus, map[string]string{"status": "PAID"})
	if err != nil {
		t.Fatalf("NewEvent error: %v", err)
	}
	if event.Type != EventBillStatus {
		t.Errorf("type = %q, want %q", event.Type, EventBillStatus)
	}
	var payload map[string]string
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if payload["status"] != "PAID" {
		t.Errorf("payload status = %q, want PAID", payload["status"])
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	outletID := uuid.New()
	client1 := mockClient(hub, outletID)
	client2 := mockClient(hub, outletID)

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[outletID]) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(hub.rooms[outletID]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[outletID]) != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", len(hub.rooms[outletID]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.rooms[outletID] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}

func TestBroadcastToNonExistentOutlet(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	outlet1 := uuid.New()
	client1 := mockClient(hub, outlet1)
	hub.register <- client1
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToOutlet(uuid.New(), Event{
		Type:    EventOrderCreated,
		Payload: json.RawMessage(`{"test":"data"}`),
	})

	select {
	case <-client1.send:
		t.Fatal("client should not receive message for different outlet")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message
	}
}
