package client

import (
	"encoding/json"

	"github.com/BioHazard786/roomrelay/internal/protocol"
)

// Signal is a relayed offer, answer or candidate. ReceiverID is set on
// messages travelling towards a sender.
type Signal struct {
	ReceiverID string
	Payload    json.RawMessage
}

// Handler routes incoming relay messages to typed channels.
//
// Rooms and ReceiverIDs are snapshots: only the latest value is kept when the
// consumer falls behind. The remaining channels block once their buffer fills,
// until the client is closed.
type Handler struct {
	client *Client

	RoomCreated chan string
	Rooms       chan []string
	ReceiverIDs chan []string
	Offers      chan Signal
	Answers     chan Signal
	Candidates  chan Signal
	SenderGone  chan string
	Errors      chan *protocol.Error
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:      client,
		RoomCreated: make(chan string, 1),
		Rooms:       make(chan []string, 1),
		ReceiverIDs: make(chan []string, 1),
		Offers:      make(chan Signal, 8),
		Answers:     make(chan Signal, 8),
		Candidates:  make(chan Signal, 64),
		SenderGone:  make(chan string, 1),
		Errors:      make(chan *protocol.Error, 8),
	}
}

// Start routes messages until the client's incoming channel closes, then
// closes every handler channel.
func (h *Handler) Start() {
	defer h.close()

	for msg := range h.client.Incoming() {
		switch msg.Type {
		case protocol.TypeRoomCreated:
			deliver(h, h.RoomCreated, msg.RoomID)

		case protocol.TypeAvailableRooms:
			latest(h.Rooms, nonNil(msg.Rooms))

		case protocol.TypeReceiverIDs:
			latest(h.ReceiverIDs, nonNil(msg.ReceiverIDs))

		case protocol.TypeCreateOffer:
			deliver(h, h.Offers, Signal{Payload: msg.SDP})

		case protocol.TypeCreateAnswer:
			deliver(h, h.Answers, Signal{ReceiverID: msg.ReceiverID, Payload: msg.SDP})

		case protocol.TypeICECandidate:
			deliver(h, h.Candidates, Signal{ReceiverID: msg.ReceiverID, Payload: msg.Candidate})

		case protocol.TypeSenderDisconnected:
			deliver(h, h.SenderGone, msg.Message)

		case protocol.TypeError:
			deliver(h, h.Errors, &protocol.Error{Type: protocol.TypeError, Code: msg.Code, Message: msg.Message})

		default:
		}
	}
}

func (h *Handler) close() {
	close(h.RoomCreated)
	close(h.Rooms)
	close(h.ReceiverIDs)
	close(h.Offers)
	close(h.Answers)
	close(h.Candidates)
	close(h.SenderGone)
	close(h.Errors)
}

// deliver blocks until ch accepts v or the client is closed.
func deliver[T any](h *Handler, ch chan T, v T) {
	select {
	case ch <- v:
	case <-h.client.done:
	}
}

// latest replaces whatever is buffered in ch with v. Start is the only writer.
func latest(ch chan []string, v []string) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
