package service

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dinemate-pos/api/internal/printer"
	"github.com/dinemate-pos/api/internal/ws"
)

// Notifier is the realtime bus. Satisfied by *ws.Hub.
type Notifier interface {
	BroadcastToOutlet(outletID uuid.UUID, event ws.Event)
	BroadcastToStation(outletID, stationID uuid.UUID, event ws.Event)
}

// Effects holds the side-effect collaborators shared by all services.
// Either field may be nil (tests); effects then become no-ops.
type Effects struct {
	Hub     Notifier
	Printer printer.Queue
}

// effect is one deferred side effect. Services collect effects while their
// transaction is open and run them only after a successful commit, so a
// broadcast or print failure can never roll back durable state.
type effect func(*Effects)

func runEffects(e *Effects, effects []effect) {
	if e == nil {
		return
	}
	for _, eff := range effects {
		eff(e)
	}
}

func notifyOutlet(outletID uuid.UUID, eventType string, payload map[string]any) effect {
	return func(e *Effects) {
		if e.Hub == nil {
			return
		}
		event, err := ws.NewEvent(eventType, stamped(payload))
		if err != nil {
			log.Printf("ERROR: build %s event: %v", eventType, err)
			return
		}
		e.Hub.BroadcastToOutlet(outletID, event)
	}
}

func notifyStation(outletID, stationID uuid.UUID, eventType string, payload map[string]any) effect {
	return func(e *Effects) {
		if e.Hub == nil {
			return
		}
		event, err := ws.NewEvent(eventType, stamped(payload))
		if err != nil {
			log.Printf("ERROR: build %s event: %v", eventType, err)
			return
		}
		e.Hub.BroadcastToStation(outletID, stationID, event)
	}
}

func enqueuePrint(job printer.Job) effect {
	return func(e *Effects) {
		if e.Printer == nil {
			return
		}
		e.Printer.Enqueue(job)
	}
}

func stamped(payload map[string]any) map[string]any {
	payload["at"] = time.Now().UTC().Format(time.RFC3339)
	return payload
}
