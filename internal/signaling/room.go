package signaling

import "sort"

// Room binds one sender to a bounded set of receivers keyed by the
// caller-chosen receiver id.
type Room struct {
	// ID is the server-generated room token.
	ID string

	// Sender owns the room; the room lives exactly as long as its sender.
	Sender *Connection

	receivers map[string]*Connection
}

// Receiver looks up a joined receiver by id.
func (r *Room) Receiver(id string) (*Connection, bool) {
	c, ok := r.receivers[id]
	return c, ok
}

// ReceiverIDs returns the joined receiver ids in sorted order.
func (r *Room) ReceiverIDs() []string {
	ids := make([]string, 0, len(r.receivers))
	for id := range r.receivers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len is the number of joined receivers.
func (r *Room) Len() int { return len(r.receivers) }
