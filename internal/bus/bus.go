// Package bus provides an in-memory room bus: named rooms of live connections
// with room-scoped broadcast. It is the single owner of membership state; the
// peers package reaches it only through join, leave, emit, and close.
package bus

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Message is one outbound event queued for a connection.
type Message struct {
	Event   string
	Payload json.RawMessage
}

// Observer receives connection lifecycle events. Callbacks run outside the
// bus lock, so they may call back into the bus.
type Observer interface {
	OnConnect(c ConnID)
	OnDisconnect(c ConnID)
}

type member struct {
	send  chan Message
	rooms map[RoomName]struct{}
}

// Bus is a process-local room bus. Each connection has a bounded outbound
// queue; a connection whose queue is full when a message arrives is evicted
// rather than allowed to miss a message silently.
type Bus struct {
	mu         sync.Mutex
	conns      map[ConnID]*member
	rooms      map[RoomName]map[ConnID]struct{}
	observers  []Observer
	bufferSize int
}

// New creates a ready-to-use Bus with the given per-connection queue size.
func New(bufferSize int) *Bus {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Bus{
		conns:      make(map[ConnID]*member),
		rooms:      make(map[RoomName]map[ConnID]struct{}),
		bufferSize: bufferSize,
	}
}

// Observe registers o for connect and disconnect events.
func (b *Bus) Observe(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

// Connect registers a new connection, joins it to its personal room, and
// returns its id together with the channel its outbound messages arrive on.
// The channel is closed when the connection is disconnected or evicted.
func (b *Bus) Connect() (ConnID, <-chan Message) {
	c := ConnID(uuid.NewString())
	m := &member{
		send:  make(chan Message, b.bufferSize),
		rooms: make(map[RoomName]struct{}),
	}

	b.mu.Lock()
	b.conns[c] = m
	b.joinLocked(ConnRoom(c), c)
	observers := slices.Clone(b.observers)
	b.mu.Unlock()

	for _, o := range observers {
		o.OnConnect(c)
	}
	return c, m.send
}

// Disconnect removes c from every room and closes its outbound channel.
// Disconnecting an unknown or already removed connection is a no-op.
func (b *Bus) Disconnect(c ConnID) {
	b.mu.Lock()
	removed := b.removeLocked(c)
	observers := slices.Clone(b.observers)
	b.mu.Unlock()

	if removed {
		b.notifyDisconnect(observers, c)
	}
}

// Connected reports whether c is a live connection.
func (b *Bus) Connected(c ConnID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conns[c]
	return ok
}

// Join adds c to room, creating the room if needed. Unknown connections are
// ignored, and so is joining the watch room of a connection that is not live.
func (b *Bus) Join(room RoomName, c ConnID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.joinLocked(room, c)
}

// Leave removes c from room. The room is deleted once it is empty.
func (b *Bus) Leave(room RoomName, c ConnID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leaveLocked(room, c)
}

// Close evicts every member of room and deletes it.
func (b *Bus) Close(room RoomName) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.rooms[room] {
		if m, ok := b.conns[c]; ok {
			delete(m.rooms, room)
		}
	}
	delete(b.rooms, room)
}

// RoomsOf returns the rooms c currently belongs to, sorted by name.
func (b *Bus) RoomsOf(c ConnID) []RoomName {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.conns[c]
	if !ok {
		return nil
	}
	rooms := make([]RoomName, 0, len(m.rooms))
	for r := range m.rooms {
		rooms = append(rooms, r)
	}
	slices.Sort(rooms)
	return rooms
}

// Members returns the connections in room, sorted by id.
func (b *Bus) Members(room RoomName) []ConnID {
	b.mu.Lock()
	defer b.mu.Unlock()
	members := make([]ConnID, 0, len(b.rooms[room]))
	for c := range b.rooms[room] {
		members = append(members, c)
	}
	slices.Sort(members)
	return members
}

// Exists reports whether room currently has members.
func (b *Bus) Exists(room RoomName) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.rooms[room]
	return ok
}

// Emit queues event for every member of room except exclude. An empty exclude
// excludes nobody. Emitting to a room that does not exist is a no-op.
func (b *Bus) Emit(room RoomName, event string, payload json.RawMessage, exclude ConnID) {
	msg := Message{Event: event, Payload: payload}

	b.mu.Lock()
	var evicted []ConnID
	for c := range b.rooms[room] {
		if c == exclude {
			continue
		}
		select {
		case b.conns[c].send <- msg:
		default:
			evicted = append(evicted, c)
		}
	}
	for _, c := range evicted {
		b.removeLocked(c)
	}
	observers := slices.Clone(b.observers)
	b.mu.Unlock()

	for _, c := range evicted {
		b.notifyDisconnect(observers, c)
	}
}

func (b *Bus) notifyDisconnect(observers []Observer, c ConnID) {
	for _, o := range observers {
		o.OnDisconnect(c)
	}
}

func (b *Bus) joinLocked(room RoomName, c ConnID) {
	m, ok := b.conns[c]
	if !ok {
		return
	}
	// A departed connection's watch room was already closed by its
	// departure; recreating it would leave the watcher waiting forever.
	if watched, isWatch := ParseWatchRoom(room); isWatch {
		if _, live := b.conns[watched]; !live {
			return
		}
	}
	if b.rooms[room] == nil {
		b.rooms[room] = make(map[ConnID]struct{})
	}
	b.rooms[room][c] = struct{}{}
	m.rooms[room] = struct{}{}
}

func (b *Bus) leaveLocked(room RoomName, c ConnID) {
	if m, ok := b.conns[c]; ok {
		delete(m.rooms, room)
	}
	if members, ok := b.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(b.rooms, room)
		}
	}
}

// removeLocked drops c from all rooms and closes its queue. It reports whether
// c was still connected.
func (b *Bus) removeLocked(c ConnID) bool {
	m, ok := b.conns[c]
	if !ok {
		return false
	}
	for room := range m.rooms {
		b.leaveLocked(room, c)
	}
	delete(b.conns, c)
	close(m.send)
	return true
}
