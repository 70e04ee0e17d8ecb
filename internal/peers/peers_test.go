package peers

import (
	"encoding/json"
	"testing"

	"github.com/windowpeers/backend/internal/bus"
)

// harness bundles a bus with a few live connections and their queues.
type harness struct {
	bus    *bus.Bus
	queues map[bus.ConnID]<-chan bus.Message
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		bus:    bus.New(64),
		queues: make(map[bus.ConnID]<-chan bus.Message),
	}
}

func (h *harness) connect() bus.ConnID {
	c, ch := h.bus.Connect()
	h.queues[c] = ch
	return c
}

// received drains and returns every message queued for c.
func (h *harness) received(c bus.ConnID) []bus.Message {
	var out []bus.Message
	ch := h.queues[c]
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func (h *harness) watches(watcher, watched bus.ConnID) bool {
	for _, r := range h.bus.RoomsOf(watcher) {
		if r == bus.WatchRoom(watched) {
			return true
		}
	}
	return false
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}
