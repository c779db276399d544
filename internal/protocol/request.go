package protocol

import (
	"bytes"
	"encoding/json"
)

// Request is one parsed client message. The concrete types below are the only
// implementations; each one has already passed its required-field checks.
type Request interface {
	Type() MessageType
}

type SenderRequest struct{}

type GetRoomsRequest struct{}

type JoinRequest struct {
	ReceiverID string
	RoomID     string
}

type OfferRequest struct {
	RoomID     string
	ReceiverID string
	SDP        json.RawMessage
}

// AnswerRequest may repeat the caller's room and receiver id. When present
// they must match what the relay has bound to the connection.
type AnswerRequest struct {
	SDP        json.RawMessage
	RoomID     string
	ReceiverID string
}

// CandidateRequest carries ReceiverID only when sent by a room's sender.
type CandidateRequest struct {
	Candidate  json.RawMessage
	RoomID     string
	ReceiverID string
}

type ReceiverIDsRequest struct {
	RoomID string
}

func (SenderRequest) Type() MessageType      { return TypeSender }
func (GetRoomsRequest) Type() MessageType    { return TypeGetRooms }
func (JoinRequest) Type() MessageType        { return TypeReceiver }
func (OfferRequest) Type() MessageType       { return TypeCreateOffer }
func (AnswerRequest) Type() MessageType      { return TypeCreateAnswer }
func (CandidateRequest) Type() MessageType   { return TypeICECandidate }
func (ReceiverIDsRequest) Type() MessageType { return TypeGetReceiverIDs }

// ParseRequest decodes one inbound frame. Malformed JSON and missing required
// fields yield a CodeValidation error, an unrecognized type yields
// CodeUnknownType. Payload fields (sdp, candidate) are kept as raw bytes.
func ParseRequest(data []byte) (Request, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, Errorf(CodeValidation, "malformed message: %v", err)
	}

	switch env.Type {
	case "":
		return nil, Errorf(CodeValidation, "message type is required")

	case TypeSender:
		return SenderRequest{}, nil

	case TypeGetRooms:
		return GetRoomsRequest{}, nil

	case TypeReceiver:
		if env.ReceiverID == "" || env.RoomID == "" {
			return nil, Errorf(CodeValidation, "receiverId and roomId are required")
		}
		return JoinRequest{ReceiverID: env.ReceiverID, RoomID: env.RoomID}, nil

	case TypeCreateOffer:
		if env.RoomID == "" || env.ReceiverID == "" || !present(env.SDP) {
			return nil, Errorf(CodeValidation, "required fields: roomId, receiverId, sdp")
		}
		return OfferRequest{RoomID: env.RoomID, ReceiverID: env.ReceiverID, SDP: env.SDP}, nil

	case TypeCreateAnswer:
		if !present(env.SDP) {
			return nil, Errorf(CodeValidation, "sdp is required")
		}
		return AnswerRequest{SDP: env.SDP, RoomID: env.RoomID, ReceiverID: env.ReceiverID}, nil

	case TypeICECandidate:
		if !present(env.Candidate) || env.RoomID == "" {
			return nil, Errorf(CodeValidation, "candidate and roomId are required")
		}
		return CandidateRequest{Candidate: env.Candidate, RoomID: env.RoomID, ReceiverID: env.ReceiverID}, nil

	case TypeGetReceiverIDs:
		if env.RoomID == "" {
			return nil, Errorf(CodeValidation, "roomId is required")
		}
		return ReceiverIDsRequest{RoomID: env.RoomID}, nil

	default:
		return nil, Errorf(CodeUnknownType, "unknown message type %q", env.Type)
	}
}

func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}
