package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/roomrelay/internal/config"
	"github.com/BioHazard786/roomrelay/internal/metrics"
	"github.com/BioHazard786/roomrelay/internal/signaling"
)

func newTestServer(t *testing.T, origins []string) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())
	hub := signaling.NewHub(signaling.DefaultConfig(), logger, m)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	cfg := &config.Server{Addr: ":0", AllowedOrigins: origins}
	ts := httptest.NewServer(NewRouter(cfg, logger, hub, m))
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, []string{"*"})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRooms_ReflectsSenders(t *testing.T) {
	ts := newTestServer(t, []string{"*"})

	c, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"type":"sender"}`)))

	var created struct {
		Type   string `json:"type"`
		RoomID string `json:"roomId"`
	}
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, c.ReadJSON(&created))
	require.Equal(t, "roomCreated", created.Type)

	resp, err := http.Get(ts.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body roomsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{created.RoomID}, body.Rooms)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, []string{"*"})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), "roomrelay_rooms")
}

func TestWebSocketOriginCheck(t *testing.T) {
	ts := newTestServer(t, []string{"https://app.example"})

	h := http.Header{}
	h.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), h)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	h.Set("Origin", "https://app.example")
	c, _, err := websocket.DefaultDialer.Dial(wsURL(ts), h)
	require.NoError(t, err)
	c.Close()
}

func TestRooms_CORS(t *testing.T) {
	ts := newTestServer(t, []string{"https://app.example"})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/rooms", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
}
