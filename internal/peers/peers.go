// Package peers implements window-peer coordination on top of a room bus:
// session group identity, symmetric disconnect watching, departure
// notification, cross-window request routing, and generic relay.
//
// Nothing in this package keeps membership state of its own. Every decision is
// derived from the bus, so an in-memory bus and a distributed one are
// interchangeable behind RoomBus.
package peers

import (
	"encoding/json"
	"fmt"

	"github.com/windowpeers/backend/internal/bus"
)

// Outbound event names, before the configured prefix is applied.
const (
	EventHello            = "hello"
	EventUpdateMapping    = "updateMapping"
	EventHandleRequest    = "handleRequest"
	EventSuccess          = "success"
	EventError            = "error"
	EventHandleMessage    = "handleMessage"
	EventGeneric          = "genericEvent"
	EventWelcome          = "welcome"
	EventObserveDeparture = "observeDeparture"
)

// RoomBus is the pub/sub substrate the peers components run against.
type RoomBus interface {
	Join(room bus.RoomName, c bus.ConnID)
	Leave(room bus.RoomName, c bus.ConnID)
	Emit(room bus.RoomName, event string, payload json.RawMessage, exclude bus.ConnID)
	Close(room bus.RoomName)
	RoomsOf(c bus.ConnID) []bus.RoomName
}

// Events maps protocol event names to the names put on the wire.
type Events struct {
	Prefix string
}

// Name returns the wire name of event.
func (e Events) Name(event string) string {
	return e.Prefix + event
}

// emitJSON marshals payload and emits it. Payloads are built by this package,
// so a marshal failure is a programming error and panics.
func emitJSON(b RoomBus, events Events, room bus.RoomName, event string, payload any, exclude bus.ConnID) {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("peers: marshal %s payload: %v", event, err))
	}
	b.Emit(room, events.Name(event), raw, exclude)
}
