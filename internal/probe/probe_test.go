package probe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/roomrelay/internal/config"
	"github.com/BioHazard786/roomrelay/internal/metrics"
	"github.com/BioHazard786/roomrelay/internal/protocol"
	"github.com/BioHazard786/roomrelay/internal/server"
	"github.com/BioHazard786/roomrelay/internal/signaling"
)

func startRelay(t *testing.T) string {
	t.Helper()
	return startRelayWith(t, signaling.DefaultConfig())
}

func startRelayWith(t *testing.T, hubCfg signaling.Config) string {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())
	hub := signaling.NewHub(hubCfg, logger, m)
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

func TestFrameCodec(t *testing.T) {
	data, err := encodeFrame(frame{Kind: kindPing, Seq: 7, Payload: []byte("abc")})
	require.NoError(t, err)

	f, err := decodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, kindPing, f.Kind)

	p := pong(f)
	assert.Equal(t, kindPong, p.Kind)
	assert.Equal(t, uint32(7), p.Seq)
	assert.Equal(t, []byte("abc"), p.Payload)

	_, err = decodeFrame([]byte{0xc1})
	assert.Error(t, err)
}

func TestResultStats(t *testing.T) {
	r := Result{RTTs: []time.Duration{3 * time.Millisecond, time.Millisecond, 2 * time.Millisecond}}
	lo, mean, hi := r.Stats()
	assert.Equal(t, time.Millisecond, lo)
	assert.Equal(t, 2*time.Millisecond, mean)
	assert.Equal(t, 3*time.Millisecond, hi)

	lo, mean, hi = Result{}.Stats()
	assert.Zero(t, lo+mean+hi)
}

func TestReportFailed(t *testing.T) {
	rep := &Report{Results: []Result{
		{ReceiverID: "probe-1"},
		{ReceiverID: "probe-2", Err: newReceiverError("ping", "probe-2", ErrTimeout)},
	}}
	assert.Equal(t, 1, rep.Failed())
	assert.False(t, rep.OK())
	assert.True(t, errors.Is(rep.Results[1].Err, ErrTimeout))
	assert.Equal(t, "ping probe-2: timeout", rep.Results[1].Err.Error())
}

func TestOptionsDefaults(t *testing.T) {
	var o Options
	o.defaults()
	assert.Equal(t, DefaultReceivers, o.Receivers)
	assert.Equal(t, DefaultPings, o.Pings)
	assert.Equal(t, DefaultPayloadSize, o.PayloadSize)
	assert.Equal(t, DefaultTimeout, o.Timeout)
	assert.NotNil(t, o.Logger)
}

func TestRun_UnreachableRelay(t *testing.T) {
	_, err := Run(context.Background(), Options{
		ServerURL: "ws://127.0.0.1:1/ws",
		Timeout:   2 * time.Second,
		PionLog:   io.Discard,
	})
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "connect sender", perr.Op)
}

func TestRun_Loopback(t *testing.T) {
	if testing.Short() {
		t.Skip("negotiates real WebRTC sessions")
	}
	url := startRelay(t)

	rep, err := Run(context.Background(), Options{
		ServerURL: url,
		Receivers: 2,
		Pings:     3,
		Timeout:   20 * time.Second,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		PionLog:   io.Discard,
	})
	require.NoError(t, err)
	require.Len(t, rep.Results, 2)
	assert.NotEmpty(t, rep.RoomID)
	for _, res := range rep.Results {
		require.NoError(t, res.Err, res.ReceiverID)
		assert.Len(t, res.RTTs, 3)
	}
	assert.True(t, rep.OK())
}

func TestRun_RoomFullStopsAtJoin(t *testing.T) {
	cfg := signaling.DefaultConfig()
	cfg.MaxReceivers = 1
	url := startRelayWith(t, cfg)

	_, err := Run(context.Background(), Options{
		ServerURL: url,
		Receivers: 2,
		Timeout:   5 * time.Second,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		PionLog:   io.Discard,
	})
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "join", perr.Op)
	assert.Contains(t, perr.Receiver, "-2-")

	var relayErr *protocol.Error
	require.ErrorAs(t, err, &relayErr)
	assert.Equal(t, protocol.CodeRoomFull, relayErr.Code)
}
