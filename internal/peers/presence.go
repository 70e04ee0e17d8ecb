package peers

import (
	"context"
	"log/slog"

	"github.com/windowpeers/backend/internal/bus"
)

// Departure is the payload of an observeDeparture event.
type Departure struct {
	Connection bus.ConnID `json:"connection"`
}

// PresenceNotifier tells the watchers of a connection that it has gone. It
// implements bus.Observer so the bus drives it on every disconnect, including
// slow-consumer evictions.
type PresenceNotifier struct {
	bus    RoomBus
	events Events
}

// NewPresenceNotifier creates a PresenceNotifier over b.
func NewPresenceNotifier(b RoomBus, events Events) *PresenceNotifier {
	return &PresenceNotifier{bus: b, events: events}
}

// Notify broadcasts the departure of c to WatchRoom(c) and then closes that
// room. Rooms c itself was watching are left to the bus, which drops c from
// them when the connection goes away.
func (n *PresenceNotifier) Notify(ctx context.Context, c bus.ConnID) {
	room := bus.WatchRoom(c)
	emitJSON(n.bus, n.events, room, EventObserveDeparture, Departure{Connection: c}, "")
	n.bus.Close(room)
	slog.DebugContext(ctx, "departure broadcast", slog.String("connection_id", string(c)))
}

// OnConnect is a no-op.
func (n *PresenceNotifier) OnConnect(bus.ConnID) {}

// OnDisconnect calls Notify for c.
func (n *PresenceNotifier) OnDisconnect(c bus.ConnID) {
	n.Notify(context.Background(), c)
}
