package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
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
	"github.com/BioHazard786/roomrelay/internal/protocol"
	"github.com/BioHazard786/roomrelay/internal/server"
	"github.com/BioHazard786/roomrelay/internal/signaling"
)

const wait = 5 * time.Second

func startRelay(t *testing.T) string {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())
	hub := signaling.NewHub(signaling.DefaultConfig(), logger, m)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	cfg := &config.Server{AllowedOrigins: []string{"*"}}
	ts := httptest.NewServer(server.NewRouter(cfg, logger, hub, m))
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func connect(t *testing.T, url string) (*Client, *Handler) {
	t.Helper()
	c := New(url)
	require.NoError(t, c.Connect(context.Background()))
	h := NewHandler(c)
	go h.Start()
	t.Cleanup(c.Close)
	return c, h
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(wait):
		t.Fatal("timed out waiting for message")
	}
	var zero T
	return zero
}

func TestClient_SignalingRoundTrip(t *testing.T) {
	url := startRelay(t)

	sender, sh := connect(t, url)
	require.NoError(t, sender.CreateRoom())
	roomID := recv(t, sh.RoomCreated)
	require.NotEmpty(t, roomID)

	receiver, rh := connect(t, url)
	require.NoError(t, receiver.Join(roomID, "r1"))
	assert.Equal(t, []string{"r1"}, recv(t, sh.ReceiverIDs))

	offer := map[string]string{"type": "offer", "sdp": "v=0"}
	require.NoError(t, sender.SendOffer(roomID, "r1", offer))
	got := recv(t, rh.Offers)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(got.Payload))

	require.NoError(t, receiver.SendAnswer(map[string]string{"type": "answer", "sdp": "v=0"}))
	ans := recv(t, sh.Answers)
	assert.Equal(t, "r1", ans.ReceiverID)
	assert.JSONEq(t, `{"type":"answer","sdp":"v=0"}`, string(ans.Payload))

	require.NoError(t, receiver.SendCandidate(roomID, "", map[string]any{"candidate": "c1"}))
	cand := recv(t, sh.Candidates)
	assert.Equal(t, "r1", cand.ReceiverID)

	require.NoError(t, sender.SendCandidate(roomID, "r1", map[string]any{"candidate": "c2"}))
	cand = recv(t, rh.Candidates)
	assert.Empty(t, cand.ReceiverID)
	assert.JSONEq(t, `{"candidate":"c2"}`, string(cand.Payload))

	require.NoError(t, sender.GetReceiverIDs(roomID))
	assert.Equal(t, []string{"r1"}, recv(t, sh.ReceiverIDs))
}

func TestClient_ErrorsAreTyped(t *testing.T) {
	url := startRelay(t)

	c, h := connect(t, url)
	require.NoError(t, c.Join("nope", "r1"))

	perr := recv(t, h.Errors)
	assert.Equal(t, protocol.CodeRoomNotFound, perr.Code)
	assert.Equal(t, "Room not found", perr.Message)
}

func TestClient_GetRooms(t *testing.T) {
	url := startRelay(t)

	sender, sh := connect(t, url)
	require.NoError(t, sender.CreateRoom())
	roomID := recv(t, sh.RoomCreated)

	c, h := connect(t, url)
	require.NoError(t, c.GetRooms())

	deadline := time.After(wait)
	for {
		select {
		case rooms := <-h.Rooms:
			if len(rooms) == 1 {
				assert.Equal(t, roomID, rooms[0])
				return
			}
		case <-deadline:
			t.Fatal("room list never included the new room")
		}
	}
}

func TestClient_SenderGone(t *testing.T) {
	url := startRelay(t)

	sender, sh := connect(t, url)
	require.NoError(t, sender.CreateRoom())
	roomID := recv(t, sh.RoomCreated)

	receiver, rh := connect(t, url)
	require.NoError(t, receiver.Join(roomID, "r1"))
	recv(t, sh.ReceiverIDs)

	sender.Close()
	assert.Equal(t, "Sender has disconnected, join another room.", recv(t, rh.SenderGone))

	// The relay closes the receiver afterwards.
	select {
	case _, ok := <-rh.Offers:
		for ok {
			_, ok = <-rh.Offers
		}
	case <-time.After(wait):
		t.Fatal("receiver connection was not closed")
	}
	assert.Equal(t, websocket.CloseNormalClosure, receiver.CloseCode())
}

func TestClient_SendAfterClose(t *testing.T) {
	url := startRelay(t)

	c, _ := connect(t, url)
	c.Close()
	assert.ErrorIs(t, c.GetRooms(), ErrClosed)
}

func TestClient_ConnectRejectsBadURL(t *testing.T) {
	c := New("://bad")
	assert.Error(t, c.Connect(context.Background()))
}

func TestResolver(t *testing.T) {
	ctx := context.Background()

	r := &resolver{local: func(context.Context, string) ([]string, error) {
		return []string{"::1", "127.0.0.1"}, nil
	}}
	ip, err := r.lookup(ctx, "relay.test")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ip)

	ip, err = r.lookup(ctx, "10.0.0.7")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", ip)

	r.local = func(context.Context, string) ([]string, error) {
		return nil, errors.New("no such host")
	}
	_, err = r.lookup(ctx, "relay.test")
	assert.ErrorContains(t, err, "no such host")
}

func TestHandler_LatestSnapshotWins(t *testing.T) {
	ch := make(chan []string, 1)
	latest(ch, []string{"a"})
	latest(ch, []string{"a", "b"})
	assert.Equal(t, []string{"a", "b"}, <-ch)

	var env protocol.Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"type":"availableRooms","rooms":[]}`), &env))
	assert.Equal(t, []string{}, nonNil(env.Rooms))
}
