package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/BioHazard786/roomrelay/internal/config"
	"github.com/BioHazard786/roomrelay/internal/metrics"
	"github.com/BioHazard786/roomrelay/internal/signaling"
)

// roomsTimeout bounds how long /rooms waits for the hub.
const roomsTimeout = 2 * time.Second

// NewRouter wires up the websocket endpoint and the HTTP endpoints around it.
func NewRouter(cfg *config.Server, logger *slog.Logger, hub *signaling.Hub, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthCheckHandler)
	mux.HandleFunc("GET /rooms", roomsHandler(hub, logger))
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("/ws", ServeWs(hub, newUpgrader(cfg), logger))

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

// Health Check endpoint
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

type roomsResponse struct {
	Rooms []string `json:"rooms"`
}

// roomsHandler serves the same list a getRooms message would.
func roomsHandler(hub *signaling.Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), roomsTimeout)
		defer cancel()

		ids, err := hub.RoomIDs(ctx)
		if err != nil {
			logger.Warn("rooms.snapshot", "err", err)
			http.Error(w, "relay unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(roomsResponse{Rooms: ids})
	}
}

// newUpgrader accepts the configured origins. Requests without an Origin
// header (non-browser clients) pass.
func newUpgrader(cfg *config.Server) websocket.Upgrader {
	allowAll := cfg.AllowAnyOrigin()
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.TrimRight(o, "/")] = true
	}

	return websocket.Upgrader{
		ReadBufferSize:  64 * 1024, // 64 KB
		WriteBufferSize: 64 * 1024, // 64 KB

		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return allowed[u.Scheme+"://"+u.Host]
		},
	}
}

// ServeWs returns an http.HandlerFunc that handles websocket requests.
// It takes the hub as a dependency.
func ServeWs(hub *signaling.Hub, upgrader websocket.Upgrader, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Upgrade the HTTP connection to a WebSocket
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("ws.upgrade", "err", err, "remote", r.RemoteAddr)
			return
		}

		// Register with the hub; it starts the read and write pumps.
		if err := hub.Serve(conn); err != nil {
			logger.Warn("ws.register", "err", err, "remote", r.RemoteAddr)
		}
	}
}
