package signaling

import "github.com/BioHazard786/roomrelay/internal/protocol"

// pushRoomList sends the full room list to every open connection, whatever
// its role. The payload is encoded once.
func (h *Hub) pushRoomList() {
	b, err := encode(protocol.NewAvailableRooms(h.registry.RoomIDs()))
	if err != nil {
		h.log.Error("broadcast.encode", "err", err)
		return
	}
	for c := range h.conns {
		if c.closing {
			continue
		}
		c.enqueue(b)
	}
}

// pushReceiverIDs sends a room's receiver list to its sender. A room that no
// longer exists is skipped.
func (h *Hub) pushReceiverIDs(roomID string) {
	room, ok := h.registry.Room(roomID)
	if !ok {
		return
	}
	room.Sender.Send(protocol.NewReceiverIDs(room.ReceiverIDs()))
}
