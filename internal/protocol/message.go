package protocol

import "encoding/json"

// MessageType is the `type` discriminator carried by every envelope.
type MessageType string

// Client to server.
const (
	TypeSender         MessageType = "sender"
	TypeGetRooms       MessageType = "getRooms"
	TypeReceiver       MessageType = "receiver"
	TypeCreateOffer    MessageType = "createOffer"
	TypeCreateAnswer   MessageType = "createAnswer"
	TypeICECandidate   MessageType = "iceCandidate"
	TypeGetReceiverIDs MessageType = "getReceiverIds"
)

// Server to client. createOffer, createAnswer and iceCandidate are reused for
// the relayed direction.
const (
	TypeRoomCreated        MessageType = "roomCreated"
	TypeAvailableRooms     MessageType = "availableRooms"
	TypeReceiverIDs        MessageType = "receiverIds"
	TypeSenderDisconnected MessageType = "senderDisconnected"
	TypeSenderReconnected  MessageType = "senderReconnected" // single-room clients only, never sent by the room relay
	TypeError              MessageType = "error"
)

// Envelope is the union of every field a message can carry. Clients use it to
// build requests and to decode notifications; the server parses inbound
// envelopes into a Request variant instead.
type Envelope struct {
	Type        MessageType     `json:"type"`
	RoomID      string          `json:"roomId,omitempty"`
	ReceiverID  string          `json:"receiverId,omitempty"`
	SDP         json.RawMessage `json:"sdp,omitempty"`
	Candidate   json.RawMessage `json:"candidate,omitempty"`
	Rooms       []string        `json:"rooms,omitempty"`
	ReceiverIDs []string        `json:"receiverIds,omitempty"`
	Code        ErrorCode       `json:"code,omitempty"`
	Message     string          `json:"message,omitempty"`
}

// RoomCreated answers a sender request.
type RoomCreated struct {
	Type   MessageType `json:"type"`
	RoomID string      `json:"roomId"`
}

// AvailableRooms carries the full room-id list. Rooms is never omitted so an
// empty registry serializes as [].
type AvailableRooms struct {
	Type  MessageType `json:"type"`
	Rooms []string    `json:"rooms"`
}

// ReceiverIDs is pushed to a room's sender when its receiver set changes.
type ReceiverIDs struct {
	Type        MessageType `json:"type"`
	ReceiverIDs []string    `json:"receiverIds"`
}

// Offer is relayed from a sender to one receiver.
type Offer struct {
	Type MessageType     `json:"type"`
	SDP  json.RawMessage `json:"sdp"`
}

// Answer is relayed from a receiver to its sender, tagged with the receiver id
// so the sender can tell concurrent negotiations apart.
type Answer struct {
	Type       MessageType     `json:"type"`
	SDP        json.RawMessage `json:"sdp"`
	ReceiverID string          `json:"receiverId"`
}

// Candidate is relayed in either direction. ReceiverID is set only when the
// candidate travels towards the sender.
type Candidate struct {
	Type       MessageType     `json:"type"`
	Candidate  json.RawMessage `json:"candidate"`
	ReceiverID string          `json:"receiverId,omitempty"`
}

// Notice is a human-readable notification such as senderDisconnected.
type Notice struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

func NewRoomCreated(roomID string) RoomCreated {
	return RoomCreated{Type: TypeRoomCreated, RoomID: roomID}
}

func NewAvailableRooms(rooms []string) AvailableRooms {
	if rooms == nil {
		rooms = []string{}
	}
	return AvailableRooms{Type: TypeAvailableRooms, Rooms: rooms}
}

func NewReceiverIDs(ids []string) ReceiverIDs {
	if ids == nil {
		ids = []string{}
	}
	return ReceiverIDs{Type: TypeReceiverIDs, ReceiverIDs: ids}
}

func NewOffer(sdp json.RawMessage) Offer {
	return Offer{Type: TypeCreateOffer, SDP: sdp}
}

func NewAnswer(sdp json.RawMessage, receiverID string) Answer {
	return Answer{Type: TypeCreateAnswer, SDP: sdp, ReceiverID: receiverID}
}

func NewCandidate(candidate json.RawMessage, receiverID string) Candidate {
	return Candidate{Type: TypeICECandidate, Candidate: candidate, ReceiverID: receiverID}
}

// SenderDisconnected tells a receiver its room is gone.
func SenderDisconnected() Notice {
	return Notice{Type: TypeSenderDisconnected, Message: "Sender has disconnected, join another room."}
}
