package signaling

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/roomrelay/internal/metrics"
)

// ErrHubStopped is returned by queries made after Run has returned.
var ErrHubStopped = errors.New("hub stopped")

// Config tunes the hub and its connections.
type Config struct {
	MaxReceivers      int
	MaxMessageBytes   int64
	MessagesPerSecond float64
	MessageBurst      int
	SendBuffer        int
}

// DefaultConfig matches the defaults of the server configuration.
func DefaultConfig() Config {
	return Config{
		MaxReceivers:      DefaultMaxReceivers,
		MaxMessageBytes:   64 * 1024, // 64 KB - enough for WebRTC SDP messages
		MessagesPerSecond: 50,
		MessageBurst:      100,
		SendBuffer:        256,
	}
}

type inbound struct {
	conn *Connection
	data []byte
}

// Hub is the central brain of the signaling server.
// It manages all active rooms and connections from a single goroutine, so
// every handler below runs to completion before the next event is taken.
type Hub struct {
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics

	registry *Registry
	conns    map[*Connection]struct{}

	register   chan *Connection
	unregister chan *Connection
	inbound    chan inbound
	snapshots  chan chan []string
	done       chan struct{}
}

// NewHub creates a new Hub instance. metrics may be nil.
func NewHub(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Hub {
	def := DefaultConfig()
	if cfg.MaxReceivers <= 0 {
		cfg.MaxReceivers = def.MaxReceivers
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = def.MaxMessageBytes
	}
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = def.MessagesPerSecond
	}
	if cfg.MessageBurst <= 0 {
		cfg.MessageBurst = def.MessageBurst
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		cfg:        cfg,
		log:        logger,
		metrics:    m,
		registry:   NewRegistry(cfg.MaxReceivers),
		conns:      make(map[*Connection]struct{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		inbound:    make(chan inbound),
		snapshots:  make(chan chan []string),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main processing loop and returns once ctx is done,
// after closing every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unregister:
			h.handleDisconnect(c)

		case in := <-h.inbound:
			h.handleMessage(in.conn, in.data)

		case reply := <-h.snapshots:
			reply <- h.registry.RoomIDs()

		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

// Serve registers an upgraded websocket and starts its pumps.
func (h *Hub) Serve(ws *websocket.Conn) error {
	c := NewConnection(h, ws)
	select {
	case h.register <- c:
	case <-h.done:
		ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		ws.Close()
		return ErrHubStopped
	}

	go c.WritePump()
	go c.ReadPump()
	return nil
}

// RoomIDs returns the live room ids, read on the hub goroutine.
func (h *Hub) RoomIDs(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	select {
	case h.snapshots <- reply:
	case <-h.done:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case ids := <-reply:
		return ids, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// dispatch hands a frame to the hub; false means the hub is gone.
func (h *Hub) dispatch(c *Connection, data []byte) bool {
	select {
	case h.inbound <- inbound{conn: c, data: data}:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterConn(c *Connection) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) handleRegister(c *Connection) {
	h.conns[c] = struct{}{}
	h.metrics.ConnOpened()
	c.log.Debug("conn.registered")
}

func (h *Hub) shutdown() {
	for c := range h.conns {
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
		delete(h.conns, c)
		h.metrics.ConnClosed()
	}
	h.log.Info("hub.stopped", "rooms", h.registry.Len())
}

func (h *Hub) recordRegistry() {
	h.metrics.SetRegistry(h.registry.Len(), h.registry.ReceiverCount())
}
