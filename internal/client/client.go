// Package client is a websocket client for the room relay, used by relayctl
// and the WebRTC probe.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/roomrelay/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// ErrClosed is returned when sending on a closed client.
var ErrClosed = errors.New("client: connection closed")

// Client manages the websocket connection to the relay.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	resolver  *resolver

	incoming chan protocol.Envelope
	outgoing chan protocol.Envelope
	done     chan struct{}

	closeOnce sync.Once

	mu        sync.Mutex
	closeCode int
}

// New creates a client for the given ws:// or wss:// url.
func New(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		resolver:  newResolver(),
		incoming:  make(chan protocol.Envelope, 32),
		outgoing:  make(chan protocol.Envelope, 32),
		done:      make(chan struct{}),
	}
}

// Connect dials the relay and starts the pumps.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ip, err := c.resolver.lookup(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("dns lookup failed: %w", err)
		}
		var d net.Dialer
		return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()
	return nil
}

// readPump decodes frames until the connection drops. Frames that are not
// valid envelopes are skipped.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				c.mu.Lock()
				c.closeCode = ce.Code
				c.mu.Unlock()
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		select {
		case c.incoming <- env:
		case <-c.done:
			return
		}
	}
}

// writePump writes queued envelopes and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send queues an envelope for the server.
func (c *Client) Send(env protocol.Envelope) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.outgoing <- env:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Incoming returns the channel of decoded server messages. It is closed when
// the connection ends.
func (c *Client) Incoming() <-chan protocol.Envelope {
	return c.incoming
}

// CloseCode reports the close code the server sent, or 0.
func (c *Client) CloseCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

// Close sends a close frame and shuts the connection down.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) CreateRoom() error {
	return c.Send(protocol.Envelope{Type: protocol.TypeSender})
}

func (c *Client) GetRooms() error {
	return c.Send(protocol.Envelope{Type: protocol.TypeGetRooms})
}

func (c *Client) Join(roomID, receiverID string) error {
	return c.Send(protocol.Envelope{Type: protocol.TypeReceiver, RoomID: roomID, ReceiverID: receiverID})
}

func (c *Client) GetReceiverIDs(roomID string) error {
	return c.Send(protocol.Envelope{Type: protocol.TypeGetReceiverIDs, RoomID: roomID})
}

// SendOffer relays sdp to one receiver of the sender's room.
func (c *Client) SendOffer(roomID, receiverID string, sdp any) error {
	raw, err := json.Marshal(sdp)
	if err != nil {
		return fmt.Errorf("encode offer: %w", err)
	}
	return c.Send(protocol.Envelope{Type: protocol.TypeCreateOffer, RoomID: roomID, ReceiverID: receiverID, SDP: raw})
}

// SendAnswer relays sdp to the room's sender. The relay fills in the ids.
func (c *Client) SendAnswer(sdp any) error {
	raw, err := json.Marshal(sdp)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	return c.Send(protocol.Envelope{Type: protocol.TypeCreateAnswer, SDP: raw})
}

// SendCandidate relays an ICE candidate. Senders name the receiver; receivers
// leave receiverID empty.
func (c *Client) SendCandidate(roomID, receiverID string, candidate any) error {
	raw, err := json.Marshal(candidate)
	if err != nil {
		return fmt.Errorf("encode candidate: %w", err)
	}
	return c.Send(protocol.Envelope{Type: protocol.TypeICECandidate, RoomID: roomID, ReceiverID: receiverID, Candidate: raw})
}
