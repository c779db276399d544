package signaling

import (
	"errors"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/roomrelay/internal/protocol"
)

// handleMessage is the single dispatch point for inbound frames. Every
// failure is answered with an error envelope on the same connection; a full
// room additionally closes it.
func (h *Hub) handleMessage(c *Connection, data []byte) {
	if _, ok := h.conns[c]; !ok || c.closing {
		return
	}

	req, err := protocol.ParseRequest(data)
	if err == nil {
		h.metrics.Message(string(req.Type()))
		err = h.route(c, req)
	}
	if err == nil {
		return
	}

	var perr *protocol.Error
	if !errors.As(err, &perr) {
		perr = protocol.Errorf(protocol.CodeValidation, "%v", err)
	}
	c.log.Debug("signal.rejected", "code", perr.Code, "msg", perr.Message)
	h.metrics.Error(string(perr.Code))
	c.Send(perr)

	if perr.Code == protocol.CodeRoomFull {
		h.metrics.ForcedClose("room_full")
		c.closeWith(websocket.ClosePolicyViolation, "room full")
	}
}

func (h *Hub) route(c *Connection, req protocol.Request) error {
	switch r := req.(type) {
	case protocol.SenderRequest:
		return h.onSender(c)
	case protocol.GetRoomsRequest:
		c.Send(protocol.NewAvailableRooms(h.registry.RoomIDs()))
		return nil
	case protocol.JoinRequest:
		return h.onJoin(c, r)
	case protocol.OfferRequest:
		return h.onOffer(c, r)
	case protocol.AnswerRequest:
		return h.onAnswer(c, r)
	case protocol.CandidateRequest:
		return h.onCandidate(c, r)
	case protocol.ReceiverIDsRequest:
		return h.onReceiverIDs(c, r)
	default:
		return protocol.Errorf(protocol.CodeUnknownType, "unknown message type %q", req.Type())
	}
}

func (h *Hub) onSender(c *Connection) error {
	switch c.role {
	case RoleSender:
		// Already owns a room; hand the same id back instead of opening another.
		c.Send(protocol.NewRoomCreated(c.roomID))
		return nil
	case RoleReceiver:
		return protocol.Errorf(protocol.CodeRoleViolation, "already joined room %s as a receiver", c.roomID)
	}

	roomID := h.registry.CreateRoom(c)
	h.recordRegistry()
	c.log.Info("room.created", "room", roomID)

	c.Send(protocol.NewRoomCreated(roomID))
	h.pushRoomList()
	return nil
}

func (h *Hub) onJoin(c *Connection, r protocol.JoinRequest) error {
	if c.role == RoleSender {
		return protocol.Errorf(protocol.CodeRoleViolation, "a sender cannot join a room as a receiver")
	}

	// A join to a missing room leaves the current membership alone.
	if _, ok := h.registry.Room(r.RoomID); !ok {
		return protocol.Errorf(protocol.CodeRoomNotFound, "Room not found")
	}

	// Joining again means leaving the previous room first.
	if c.role == RoleReceiver {
		prev := c.roomID
		h.registry.RemoveReceiver(prev, c.receiverID, c)
		c.detach()
		h.pushReceiverIDs(prev)
	}

	if err := h.registry.AddReceiver(r.RoomID, r.ReceiverID, c); err != nil {
		h.recordRegistry()
		switch {
		case errors.Is(err, ErrRoomNotFound):
			return protocol.Errorf(protocol.CodeRoomNotFound, "Room not found")
		case errors.Is(err, ErrRoomFull):
			return protocol.Errorf(protocol.CodeRoomFull, "Maximum receiver limit reached.")
		default:
			return err
		}
	}
	h.recordRegistry()
	c.log.Info("receiver.joined", "room", r.RoomID, "receiver", r.ReceiverID)

	h.pushReceiverIDs(r.RoomID)
	return nil
}

func (h *Hub) onOffer(c *Connection, r protocol.OfferRequest) error {
	room, ok := h.registry.Room(r.RoomID)
	if !ok {
		return protocol.Errorf(protocol.CodeRoomNotFound, "Room not found")
	}
	if room.Sender != c {
		return protocol.Errorf(protocol.CodeRoleViolation, "you must be the room's sender to create an offer")
	}

	receiver, ok := room.Receiver(r.ReceiverID)
	if !ok {
		return protocol.Errorf(protocol.CodeReceiverNotFound, "Receiver %s not found.", r.ReceiverID)
	}

	receiver.Send(protocol.NewOffer(r.SDP))
	h.metrics.Relay(string(protocol.TypeCreateOffer))
	return nil
}

func (h *Hub) onAnswer(c *Connection, r protocol.AnswerRequest) error {
	if c.role != RoleReceiver || c.roomID == "" {
		return protocol.Errorf(protocol.CodeRoleViolation, "join a room as a receiver before answering")
	}
	if (r.RoomID != "" && r.RoomID != c.roomID) || (r.ReceiverID != "" && r.ReceiverID != c.receiverID) {
		return protocol.Errorf(protocol.CodeValidation, "roomId/receiverId do not match this connection")
	}

	room, ok := h.registry.Room(c.roomID)
	if !ok {
		return protocol.Errorf(protocol.CodeRoomNotFound, "Room not found")
	}

	room.Sender.Send(protocol.NewAnswer(r.SDP, c.receiverID))
	h.metrics.Relay(string(protocol.TypeCreateAnswer))
	return nil
}

func (h *Hub) onCandidate(c *Connection, r protocol.CandidateRequest) error {
	room, ok := h.registry.Room(r.RoomID)
	if !ok {
		return protocol.Errorf(protocol.CodeRoomNotFound, "Room not found")
	}

	if room.Sender == c {
		if r.ReceiverID == "" {
			return protocol.Errorf(protocol.CodeValidation, "receiverId is required when the sender relays a candidate")
		}
		receiver, ok := room.Receiver(r.ReceiverID)
		if !ok {
			return protocol.Errorf(protocol.CodeReceiverNotFound, "Receiver %s not found.", r.ReceiverID)
		}
		receiver.Send(protocol.NewCandidate(r.Candidate, ""))
		h.metrics.Relay(string(protocol.TypeICECandidate))
		return nil
	}

	if c.role != RoleReceiver || c.roomID != room.ID {
		return protocol.Errorf(protocol.CodeRoleViolation, "join room %s before sending candidates", room.ID)
	}
	room.Sender.Send(protocol.NewCandidate(r.Candidate, c.receiverID))
	h.metrics.Relay(string(protocol.TypeICECandidate))
	return nil
}

func (h *Hub) onReceiverIDs(c *Connection, r protocol.ReceiverIDsRequest) error {
	room, ok := h.registry.Room(r.RoomID)
	if !ok {
		return protocol.Errorf(protocol.CodeRoomNotFound, "Room not found")
	}
	if room.Sender != c {
		return protocol.Errorf(protocol.CodeRoleViolation, "you must be the room's sender to list receivers")
	}
	h.pushReceiverIDs(room.ID)
	return nil
}
