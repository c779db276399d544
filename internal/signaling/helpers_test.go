package signaling

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/roomrelay/internal/metrics"
	"github.com/BioHazard786/roomrelay/internal/protocol"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return newTestHubWith(t, DefaultConfig())
}

func newTestHubWith(t *testing.T, cfg Config) *Hub {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHub(cfg, logger, metrics.New(prometheus.NewRegistry()))
}

// sequentialIDs makes room ids predictable: r1, r2, ...
func sequentialIDs(h *Hub) {
	n := 0
	h.registry.newID = func() string {
		n++
		return fmt.Sprintf("r%d", n)
	}
}

// connect registers a socket-less connection, as the register event would.
func connect(h *Hub) *Connection {
	c := NewConnection(h, nil)
	h.handleRegister(c)
	return c
}

func send(h *Hub, c *Connection, msg string) {
	h.handleMessage(c, []byte(msg))
}

// drainRaw empties the connection's queue without blocking.
func drainRaw(c *Connection) [][]byte {
	var out [][]byte
	for {
		select {
		case b, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, b)
		default:
			return out
		}
	}
}

func drain(t *testing.T, c *Connection) []protocol.Envelope {
	t.Helper()
	var out []protocol.Envelope
	for _, b := range drainRaw(c) {
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(b, &env), string(b))
		out = append(out, env)
	}
	return out
}

// only drains c and requires exactly one message.
func only(t *testing.T, c *Connection) protocol.Envelope {
	t.Helper()
	msgs := drain(t, c)
	require.Len(t, msgs, 1, "messages: %+v", msgs)
	return msgs[0]
}

func ofType(msgs []protocol.Envelope, typ protocol.MessageType) []protocol.Envelope {
	var out []protocol.Envelope
	for _, m := range msgs {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

// newSender opens a room and discards the setup traffic.
func newSender(t *testing.T, h *Hub) (*Connection, string) {
	t.Helper()
	c := connect(h)
	send(h, c, `{"type":"sender"}`)
	created := ofType(drain(t, c), protocol.TypeRoomCreated)
	require.Len(t, created, 1)
	return c, created[0].RoomID
}

func newReceiver(t *testing.T, h *Hub, roomID, receiverID string) *Connection {
	t.Helper()
	c := connect(h)
	send(h, c, fmt.Sprintf(`{"type":"receiver","receiverId":%q,"roomId":%q}`, receiverID, roomID))
	require.False(t, c.closing, "receiver %s was rejected", receiverID)
	require.Equal(t, RoleReceiver, c.Role())
	return c
}
