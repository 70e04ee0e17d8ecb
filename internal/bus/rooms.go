package bus

import "strings"

// ConnID identifies one live transport connection. The bus mints it on Connect.
type ConnID string

// RoomName is the name of a broadcast room. Names are built only through the
// constructors below so that each kind of room lives in its own namespace.
type RoomName string

const (
	connPrefix  = "conn:"
	groupPrefix = "group:"
	watchPrefix = "watch:"
)

// ConnRoom is the personal room of a connection. Every connection is a member
// of its own room for its whole lifetime.
func ConnRoom(c ConnID) RoomName {
	return RoomName(connPrefix + string(c))
}

// GroupRoom is the room shared by all connections of one session group.
func GroupRoom(groupID string) RoomName {
	return RoomName(groupPrefix + groupID)
}

// WatchRoom is the disconnect-watch room of c: its members are notified when c departs.
func WatchRoom(c ConnID) RoomName {
	return RoomName(watchPrefix + string(c))
}

// ParseWatchRoom returns the connection watched through room, if room is a watch room.
func ParseWatchRoom(room RoomName) (ConnID, bool) {
	c, ok := strings.CutPrefix(string(room), watchPrefix)
	if !ok {
		return "", false
	}
	return ConnID(c), true
}
