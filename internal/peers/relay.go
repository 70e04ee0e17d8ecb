package peers

import (
	"context"
	"encoding/json"

	"github.com/windowpeers/backend/internal/bus"
)

// Relay forwards opaque payloads to rooms.
type Relay struct {
	bus    RoomBus
	events Events
}

// NewRelay creates a Relay over b.
func NewRelay(b RoomBus, events Events) *Relay {
	return &Relay{bus: b, events: events}
}

// Send delivers payload unchanged to target under event. With excludeSender
// set, from does not receive its own message even if it is in target.
func (r *Relay) Send(_ context.Context, from bus.ConnID, target bus.RoomName, event string, payload json.RawMessage, excludeSender bool) {
	var exclude bus.ConnID
	if excludeSender {
		exclude = from
	}
	r.bus.Emit(target, r.events.Name(event), payload, exclude)
}
