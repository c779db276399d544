package signaling

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/BioHazard786/roomrelay/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Role is what a connection has declared itself to be.
type Role int

const (
	RoleUnassigned Role = iota
	RoleSender
	RoleReceiver
)

func (r Role) String() string {
	switch r {
	case RoleSender:
		return "sender"
	case RoleReceiver:
		return "receiver"
	default:
		return "unassigned"
	}
}

// Connection is one live websocket peer. The pointer itself is the identity;
// ID only exists to correlate log lines.
//
// role, roomID, receiverID and closing belong to the hub goroutine and must
// not be touched from the pumps.
type Connection struct {
	ID string

	hub     *Hub
	conn    *websocket.Conn
	limiter *rate.Limiter
	log     *slog.Logger

	// send is drained by WritePump. Only the hub sends on it or closes it.
	send chan []byte

	role       Role
	roomID     string
	receiverID string

	closing   bool
	closeCode int
	closeText string
}

// NewConnection wraps an upgraded websocket. The caller registers it with the
// hub and starts both pumps.
func NewConnection(hub *Hub, conn *websocket.Conn) *Connection {
	c := &Connection{
		ID:      uuid.NewString(),
		hub:     hub,
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(hub.cfg.MessagesPerSecond), hub.cfg.MessageBurst),
		send:    make(chan []byte, hub.cfg.SendBuffer),
	}
	remote := ""
	if conn != nil {
		remote = conn.RemoteAddr().String()
	}
	c.log = hub.log.With("conn", c.ID, "remote", remote)
	return c
}

func (c *Connection) Role() Role         { return c.role }
func (c *Connection) RoomID() string     { return c.roomID }
func (c *Connection) ReceiverID() string { return c.receiverID }

// Send marshals msg and queues it for the write pump. It never blocks and
// never fails: a closing connection or a full queue drops the message.
func (c *Connection) Send(msg any) {
	b, err := encode(msg)
	if err != nil {
		c.log.Error("conn.encode", "err", err)
		return
	}
	c.enqueue(b)
}

func (c *Connection) enqueue(b []byte) {
	if c.closing {
		c.hub.metrics.Dropped()
		return
	}
	select {
	case c.send <- b:
	default:
		c.hub.metrics.Dropped()
		c.log.Debug("conn.send_queue_full", "role", c.role)
	}
}

// closeWith stops the write pump after the queued messages are flushed and
// ends the session with the given close frame. Repeated calls are no-ops.
func (c *Connection) closeWith(code int, text string) {
	if c.closing {
		return
	}
	c.closing = true
	c.closeCode = code
	c.closeText = text
	close(c.send)
}

func (c *Connection) bind(role Role, roomID, receiverID string) {
	c.role = role
	c.roomID = roomID
	c.receiverID = receiverID
}

func (c *Connection) detach() {
	c.bind(RoleUnassigned, "", "")
}

// encode is json.Marshal without HTML escaping. Relayed signals frame
// themselves so their payload bytes are not compacted.
func encode(v any) ([]byte, error) {
	if f, ok := v.(protocol.Framer); ok {
		return f.Frame()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Connection) ReadPump() {
	defer func() {
		c.hub.unregisterConn(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.cfg.MaxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn("conn.read", "err", err)
			}
			return
		}

		if mt != websocket.TextMessage {
			c.log.Warn("conn.binary_frame")
			c.writeClose(websocket.CloseUnsupportedData, "text frames only")
			return
		}

		if !c.limiter.Allow() {
			c.log.Warn("conn.rate_limited")
			c.writeClose(websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}

		if !c.hub.dispatch(c, data) {
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel; closeCode is set before that.
				code := c.closeCode
				if code == 0 {
					code = websocket.CloseNormalClosure
				}
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, c.closeText))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("conn.write", "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeClose sends a close frame from the read side. WriteControl is safe to
// call concurrently with the write pump.
func (c *Connection) writeClose(code int, text string) {
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}
