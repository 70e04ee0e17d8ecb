package peers

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"github.com/windowpeers/backend/internal/bus"
)

// WatchMaintainer keeps every connection of a peer set watching every other
// one for departure, and no connection outside the set.
type WatchMaintainer struct {
	bus RoomBus
}

// NewWatchMaintainer creates a WatchMaintainer over b.
func NewWatchMaintainer(b RoomBus) *WatchMaintainer {
	return &WatchMaintainer{bus: b}
}

// Reconcile patches watch-room membership so that, afterwards, each c in
// peers is in WatchRoom(t) for every other t in peers and in no other watch
// room. Only the difference is applied; calling it again with the same set
// changes nothing. Unknown connection ids are passed to the bus as-is.
func (m *WatchMaintainer) Reconcile(ctx context.Context, peers []bus.ConnID) {
	peers = lo.Uniq(peers)
	inSet := lo.SliceToMap(peers, func(c bus.ConnID) (bus.ConnID, struct{}) {
		return c, struct{}{}
	})

	var joined, left int
	for _, c := range peers {
		current := m.bus.RoomsOf(c)
		watching := make(map[bus.ConnID]struct{}, len(current))

		for _, room := range current {
			x, ok := bus.ParseWatchRoom(room)
			if !ok {
				continue
			}
			if _, keep := inSet[x]; !keep {
				m.bus.Leave(room, c)
				left++
				continue
			}
			watching[x] = struct{}{}
		}

		for _, t := range peers {
			if t == c {
				continue
			}
			if _, ok := watching[t]; ok {
				continue
			}
			m.bus.Join(bus.WatchRoom(t), c)
			joined++
		}
	}

	slog.DebugContext(ctx, "watch rooms reconciled",
		slog.Int("peers", len(peers)),
		slog.Int("joined", joined),
		slog.Int("left", left),
	)
}
