package peers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/windowpeers/backend/internal/bus"
)

// Hello announces a window to the rest of its group.
type Hello struct {
	GroupID      GroupID         `json:"groupId"`
	ConnectionID bus.ConnID      `json:"connectionId"`
	Birthday     json.RawMessage `json:"birthday"`
}

// Groups places connections in their session group room.
type Groups struct {
	bus    RoomBus
	events Events
}

// NewGroups creates a Groups over b.
func NewGroups(b RoomBus, events Events) *Groups {
	return &Groups{bus: b, events: events}
}

// Enter adds c to the room of group g.
func (g *Groups) Enter(c bus.ConnID, group GroupID) {
	g.bus.Join(bus.GroupRoom(string(group)), c)
}

// Announce enters c into its group room and sends a hello carrying birthday
// to every window in the group, c included.
func (g *Groups) Announce(ctx context.Context, c bus.ConnID, group GroupID, birthday json.RawMessage) Hello {
	g.Enter(c, group)
	hello := Hello{GroupID: group, ConnectionID: c, Birthday: birthday}
	emitJSON(g.bus, g.events, bus.GroupRoom(string(group)), EventHello, hello, "")
	slog.DebugContext(ctx, "window announced", slog.String("connection_id", string(c)))
	return hello
}
