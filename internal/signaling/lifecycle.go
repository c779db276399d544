package signaling

import (
	"github.com/gorilla/websocket"

	"github.com/BioHazard786/roomrelay/internal/protocol"
)

// handleDisconnect cleans up after a connection whose socket went away.
func (h *Hub) handleDisconnect(c *Connection) {
	if _, ok := h.conns[c]; !ok {
		return
	}
	delete(h.conns, c)
	h.metrics.ConnClosed()

	switch c.role {
	case RoleSender:
		h.closeRoom(c)
	case RoleReceiver:
		roomID := c.roomID
		h.registry.RemoveReceiver(roomID, c.receiverID, c)
		h.recordRegistry()
		c.log.Info("receiver.left", "room", roomID, "receiver", c.receiverID)
		h.pushReceiverIDs(roomID)
	}

	c.detach()
	c.closeWith(websocket.CloseNormalClosure, "")
	c.log.Debug("conn.unregistered")
}

// closeRoom tears down the room owned by sender: every receiver is told and
// disconnected, then the room list is rebroadcast.
func (h *Hub) closeRoom(sender *Connection) {
	room, ok := h.registry.Room(sender.roomID)
	if !ok || room.Sender != sender {
		return
	}

	for _, id := range room.ReceiverIDs() {
		receiver := room.receivers[id]
		receiver.Send(protocol.SenderDisconnected())
		receiver.detach()
		h.metrics.ForcedClose("sender_disconnected")
		receiver.closeWith(websocket.CloseNormalClosure, "sender disconnected")
	}

	h.registry.DeleteRoom(room.ID)
	h.recordRegistry()
	sender.log.Info("room.deleted", "room", room.ID, "receivers", room.Len())

	h.pushRoomList()
}
