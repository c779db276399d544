package signaling

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/roomrelay/internal/protocol"
)

func TestLifecycle_SenderDisconnectCascades(t *testing.T) {
	h := newTestHub(t)
	sequentialIDs(h)

	a, roomID := newSender(t, h)
	other, otherRoom := newSender(t, h)
	idle := connect(h)

	const n = 4
	receivers := make([]*Connection, 0, n)
	for _, id := range []string{"b1", "b2", "b3", "b4"} {
		receivers = append(receivers, newReceiver(t, h, roomID, id))
	}
	for _, c := range append([]*Connection{a, other, idle}, receivers...) {
		drain(t, c)
	}

	h.handleDisconnect(a)

	for _, r := range receivers {
		msgs := drain(t, r)
		require.Len(t, msgs, 1, "receiver must only get the disconnect notice")
		assert.Equal(t, protocol.TypeSenderDisconnected, msgs[0].Type)
		assert.NotEmpty(t, msgs[0].Message)
		assert.True(t, r.closing)
		assert.Equal(t, RoleUnassigned, r.Role())
	}

	assert.Equal(t, []string{otherRoom}, h.registry.RoomIDs())
	for _, c := range []*Connection{other, idle} {
		msg := only(t, c)
		assert.Equal(t, protocol.TypeAvailableRooms, msg.Type)
		assert.Equal(t, []string{otherRoom}, msg.Rooms)
	}
	assert.True(t, a.closing)
	assert.Equal(t, float64(n), testutil.ToFloat64(h.metrics.ForcedClosures.WithLabelValues("sender_disconnected")))

	// The receivers' own disconnects arrive later and find nothing to clean.
	for _, r := range receivers {
		h.handleDisconnect(r)
	}
	assert.Empty(t, drain(t, other))
	assert.Empty(t, drain(t, idle))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.Receivers))
}

func TestLifecycle_ReceiverLeaves(t *testing.T) {
	h := newTestHub(t)
	a, roomID := newSender(t, h)
	b1 := newReceiver(t, h, roomID, "b1")
	newReceiver(t, h, roomID, "b2")
	newReceiver(t, h, roomID, "b3")
	drain(t, a)

	h.handleDisconnect(b1)

	room, ok := h.registry.Room(roomID)
	require.True(t, ok)
	assert.Equal(t, 2, room.Len())
	msg := only(t, a)
	assert.Equal(t, protocol.TypeReceiverIDs, msg.Type)
	assert.Equal(t, []string{"b2", "b3"}, msg.ReceiverIDs)
	assert.False(t, a.closing)
}

func TestLifecycle_UnassignedDisconnect(t *testing.T) {
	h := newTestHub(t)
	a, _ := newSender(t, h)
	c := connect(h)

	h.handleDisconnect(c)
	h.handleDisconnect(c)

	assert.Empty(t, drain(t, a))
	assert.Equal(t, 1, h.registry.Len())
	assert.Len(t, h.conns, 1)
}

func TestLifecycle_ShutdownClosesEverything(t *testing.T) {
	h := newTestHub(t)
	a, roomID := newSender(t, h)
	b := newReceiver(t, h, roomID, "b1")

	h.shutdown()

	assert.True(t, a.closing)
	assert.True(t, b.closing)
	assert.Empty(t, h.conns)
}
