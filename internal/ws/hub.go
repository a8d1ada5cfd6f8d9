package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Event types pushed to connected POS terminals and kitchen displays.
const (
	EventOrderCreated       = "order:created"
	EventOrderItemsAdded    = "order:items_added"
	EventOrderItemCancelled = "order:item_cancelled"
	EventOrderCancelled     = "order:cancelled"
	EventOrderKotSent       = "order:kot_sent"
	EventKotCreated         = "kot:created"
	EventKotAccepted        = "kot:accepted"
	EventKotPreparing       = "kot:preparing"
	EventKotReady           = "kot:ready"
	EventKotServed          = "kot:served"
	EventKotCancelled       = "kot:cancelled"
	EventBillStatus         = "bill:status"
)

// Event is a WebSocket message to be broadcast to an outlet room.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent marshals payload into an Event of the given type.
func NewEvent(eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: raw}, nil
}

// outletEvent routes an event to one outlet's room. A non-nil station ID
// narrows delivery to clients subscribed to that station plus the
// unfiltered ones.
type outletEvent struct {
	OutletID  uuid.UUID
	StationID uuid.UUID
	Event     Event
}

// Hub maintains the set of active clients grouped into per-outlet rooms
// and fans broadcast events out to them.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcast chan *outletEvent

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *outletEvent, 256),
	}
}

// Run starts the hub's main loop. Call as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.outletID] == nil {
				h.rooms[client.outletID] = make(map[*Client]bool)
			}
			h.rooms[client.outletID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.outletID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.outletID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.OutletID]

			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			for client := range clients {
				// Station-filtered clients skip events scoped to other
				// stations. Outlet-wide events reach everyone.
				if client.stationID != uuid.Nil &&
					event.StationID != uuid.Nil &&
					client.stationID != event.StationID {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Send buffer full, drop the client.
					close(client.send)
					delete(h.rooms[event.OutletID], client)
					if len(h.rooms[event.OutletID]) == 0 {
						delete(h.rooms, event.OutletID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToOutlet sends an event to every client in an outlet's room.
func (h *Hub) BroadcastToOutlet(outletID uuid.UUID, event Event) {
	h.broadcast <- &outletEvent{OutletID: outletID, Event: event}
}

// BroadcastToStation sends an event to an outlet's room, narrowed to
// clients watching the given station (plus unfiltered clients).
func (h *Hub) BroadcastToStation(outletID, stationID uuid.UUID, event Event) {
	h.broadcast <- &outletEvent{OutletID: outletID, StationID: stationID, Event: event}
}
