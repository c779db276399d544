package signaling

import (
	"errors"
	"sort"
)

// DefaultMaxReceivers is the per-room receiver capacity.
const DefaultMaxReceivers = 5

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
)

// Registry is the single owner of every live room. It has no lock: only the
// hub goroutine calls it.
type Registry struct {
	rooms        map[string]*Room
	maxReceivers int
	newID        func() string
}

// NewRegistry creates an empty registry admitting at most maxReceivers per room.
func NewRegistry(maxReceivers int) *Registry {
	if maxReceivers <= 0 {
		maxReceivers = DefaultMaxReceivers
	}
	return &Registry{
		rooms:        make(map[string]*Room),
		maxReceivers: maxReceivers,
		newID:        newRoomID,
	}
}

// CreateRoom opens a room owned by sender and binds sender to it.
// Keep generating until we find an id that's not in use.
func (r *Registry) CreateRoom(sender *Connection) string {
	id := r.newID()
	for {
		if _, taken := r.rooms[id]; !taken {
			break
		}
		id = r.newID()
	}

	r.rooms[id] = &Room{
		ID:        id,
		Sender:    sender,
		receivers: make(map[string]*Connection),
	}
	sender.bind(RoleSender, id, "")
	return id
}

// Room looks up a live room.
func (r *Registry) Room(id string) (*Room, bool) {
	room, ok := r.rooms[id]
	return room, ok
}

// AddReceiver joins c to the room under receiverID, overwriting any previous
// holder of that id. The displaced connection is detached so it can no longer
// speak for the id.
func (r *Registry) AddReceiver(roomID, receiverID string, c *Connection) error {
	room, ok := r.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if len(room.receivers) >= r.maxReceivers {
		return ErrRoomFull
	}

	if prev, ok := room.receivers[receiverID]; ok && prev != c {
		prev.detach()
	}
	room.receivers[receiverID] = c
	c.bind(RoleReceiver, roomID, receiverID)
	return nil
}

// RemoveReceiver drops receiverID from the room if it still maps to c.
// It reports whether anything was removed; a missing room or id is a no-op.
func (r *Registry) RemoveReceiver(roomID, receiverID string, c *Connection) bool {
	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if cur, ok := room.receivers[receiverID]; !ok || cur != c {
		return false
	}
	delete(room.receivers, receiverID)
	return true
}

// DeleteRoom removes and returns the room.
func (r *Registry) DeleteRoom(id string) (*Room, bool) {
	room, ok := r.rooms[id]
	if ok {
		delete(r.rooms, id)
	}
	return room, ok
}

// RoomIDs is a sorted snapshot of live room ids.
func (r *Registry) RoomIDs() []string {
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len is the number of live rooms.
func (r *Registry) Len() int { return len(r.rooms) }

// ReceiverCount sums joined receivers across rooms.
func (r *Registry) ReceiverCount() int {
	n := 0
	for _, room := range r.rooms {
		n += len(room.receivers)
	}
	return n
}

// MaxReceivers is the configured per-room capacity.
func (r *Registry) MaxReceivers() int { return r.maxReceivers }
